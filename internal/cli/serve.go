package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/hwcomposer/internal/server"
)

func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the simulation API over HTTP",
		Long: `Serve the simulation API. Reports are kept in MongoDB when [mongo] uri is
configured and in memory otherwise; the report cache uses Redis when
[redis] addr is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.config.Server.Addr
			}
			runner, err := c.newRunner(cmd.Context(), runnerOpts{noCache: noCache, store: true, memoryStore: true})
			if err != nil {
				return err
			}
			defer runner.Close()
			return server.New(runner, c.Logger).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the report cache")
	return cmd
}
