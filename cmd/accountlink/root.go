package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/accountlink/internal/config"
	"github.com/dropDatabas3/accountlink/internal/http/server"
	"github.com/dropDatabas3/accountlink/internal/observability/logger"
)

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "accountlink",
		Short:         "Federated login and account linking service",
		Version:       server.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&f.configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config (empty: defaults + env)")
	cmd.PersistentFlags().StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading config")

	cmd.AddCommand(
		newServeCmd(f),
		newMigrateCmd(f),
		newProvidersCmd(f),
	)
	return cmd
}

// load carga .env (si existe), la config y deja el logger inicializado.
func (f *rootFlags) load() (*config.Config, error) {
	if f.envFile != "" {
		if _, err := os.Stat(f.envFile); err == nil {
			if err := godotenv.Load(f.envFile); err != nil {
				return nil, err
			}
		}
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		ServiceName: "accountlink",
		Version:     server.Version,
	})
	return cfg, nil
}
