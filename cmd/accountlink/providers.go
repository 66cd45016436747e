package main

import (
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/accountlink/internal/providers"
)

func newProvidersCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured identity providers and their callback URLs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			reg, err := providers.NewRegistry(cfg.Providers, &http.Client{Timeout: 10 * time.Second})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKIND\tAUTHORITY\tCALLBACK")
			for _, p := range reg.All() {
				pc := p.Config()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s/account/callback/%s\n", pc.Name, pc.Kind, pc.Authority, cfg.Server.PublicURL, pc.Name)
			}
			return tw.Flush()
		},
	}
}
