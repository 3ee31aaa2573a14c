package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/buildinfo"
)

// RootCommand creates the root cobra command with all subcommands registered.
//
// The config file is loaded lazily by the commands that need it, so
// `labelkit completion` and `labelkit --version` work without one.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "labelkit prints price labels on network thermal printers",
		Long: `labelkit turns article lists into ZPL II label streams and sends them to
Zebra-compatible printers over raw TCP (port 9100).`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/labelkit/config.toml)")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.printCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.discoverCommand())
	root.AddCommand(c.printersCommand())
	root.AddCommand(c.templatesCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}
