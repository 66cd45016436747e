package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/accountlink/internal/store/pg"
	migrations "github.com/dropDatabas3/accountlink/migrations/postgres"
)

func newMigrateCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Postgres schema migrations",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return errors.New("migrate: storage.driver must be postgres")
			}
			st, err := pg.Open(cmd.Context(), cfg.Storage.DSN, pg.PoolOptions{MaxConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			applied, err := pg.Migrate(cmd.Context(), st.DB(), migrations.FS, migrations.Dir)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to apply")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %04d\n", v)
			}
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List embedded migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := pg.ParseMigrations(migrations.FS, migrations.Dir)
			if err != nil {
				return err
			}
			for _, m := range ms {
				fmt.Fprintf(cmd.OutOrStdout(), "%04d  %s\n", m.Version, m.Name)
			}
			return nil
		},
	}

	cmd.AddCommand(up, list)
	return cmd
}
