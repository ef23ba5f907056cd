package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/invoicely-dev/invoicely/internal/cli/userconfig"
)

// NewConfigCmd creates the config command group
func NewConfigCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change CLI settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := userconfig.Load()
			if err != nil {
				return err
			}
			path, err := userconfig.GetConfigPath()
			if err != nil {
				return err
			}

			fmt.Fprintf(rt.Out, "Config file:       %s\n", path)
			fmt.Fprintf(rt.Out, "API URL:           %s\n", rt.APIURL)
			fmt.Fprintf(rt.Out, "Last organization: %s\n", orDash(cfg.LastOrganization))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-api-url <url>",
		Short: "Set the API base URL used by default",
		Long: `Set the API base URL used by default.

The --api-url flag and INVOICELY_API_URL take precedence over this setting.

Examples:
  $ invoicely config set-api-url https://app.invoicely.example/api
  $ invoicely config set-api-url http://localhost:5000/api   # local sandbox`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := url.Parse(args[0])
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("invalid API URL %q (expected http(s)://host/path)", args[0])
			}

			if err := userconfig.SetAPIURL(args[0]); err != nil {
				return fmt.Errorf("failed to save API URL: %w", err)
			}

			fmt.Fprintf(rt.Out, "API URL set to %s\n", args[0])
			return nil
		},
	})

	return cmd
}
