package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/finboard/internal/logging"
	"github.com/rshade/finboard/internal/session"
)

// NewVersionCmd creates the version command. With --server it also reports
// the backend version and checks it against api.min_server_version.
func NewVersionCmd(ver string) *cobra.Command {
	var server bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the client version and optionally the backend version",
		Example: `  # Client version
  finboard version

  # Client and backend versions
  finboard version --server`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Printf("finboard %s\n", ver)
			if !server {
				return nil
			}

			cfg, err := globalConfig()
			if err != nil {
				return err
			}
			bus := session.NewBus(logging.ComponentLogger(logger, "session"))
			defer bus.Close()
			api, err := newAPIClient(cfg, bus, false)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.API.MinServerVersion == "" {
				v, verErr := api.ServerVersion(ctx)
				if verErr != nil {
					return verErr
				}
				cmd.Printf("server %s\n", v)
				return nil
			}

			v, err := api.CheckCompatibility(ctx, cfg.API.MinServerVersion)
			if v != nil {
				cmd.Printf("server %s\n", v)
			}
			if err != nil {
				return err
			}
			cmd.Printf("compatible with %s\n", cfg.API.MinServerVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&server, "server", false, "query the backend version")

	return cmd
}
