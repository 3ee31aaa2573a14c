package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// printersCommand creates the printers command for managing named printers
// in the config file.
func (c *CLI) printersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "printers",
		Aliases: []string{"printer"},
		Short:   "Manage named printers",
	}

	cmd.AddCommand(c.printersListCommand())
	cmd.AddCommand(c.printersAddCommand())
	cmd.AddCommand(c.printersRemoveCommand())

	return cmd
}

func (c *CLI) printersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List configured printers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Printers) == 0 {
				printInfo("No printers configured")
				printNextStep("Find printers on this network", "labelkit discover --pick")
				return nil
			}
			rows := make([][]string, len(cfg.Printers))
			for i, p := range cfg.Printers {
				def := ""
				if p.Default {
					def = iconSuccess
				}
				rows[i] = []string{p.Name, p.Host, strconv.Itoa(portOrDefault(p.Port)), def}
			}
			fmt.Fprintln(c.out, renderTable([]string{"Name", "Host", "Port", "Default"}, rows))
			return nil
		},
	}
}

func (c *CLI) printersAddCommand() *cobra.Command {
	var (
		port       int
		setDefault bool
	)
	cmd := &cobra.Command{
		Use:   "add <name> <host>",
		Short: "Add or replace a named printer",
		Example: `  labelkit printers add front 192.168.1.50 --default
  labelkit printers add back zebra-back.local --port 6101`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			p := config.Printer{Name: args[0], Host: args[1], Port: port, Default: setDefault}
			if len(cfg.Printers) == 0 {
				p.Default = true
			}
			cfg.AddPrinter(p)
			if err := cfg.Validate(); err != nil {
				return err
			}
			path, err := c.saveConfig()
			if err != nil {
				return err
			}
			printSuccess("Saved printer %s (%s)", p.Name, p.Addr())
			printDetail("Config: %s", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "TCP port (default 9100)")
	cmd.Flags().BoolVar(&setDefault, "default", false, "make this the default printer")
	return cmd
}

func (c *CLI) printersRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a named printer",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.RemovePrinter(args[0]) {
				return errors.New(errors.ErrCodePrinterNotFound, "unknown printer %q", args[0])
			}
			if _, err := c.saveConfig(); err != nil {
				return err
			}
			printSuccess("Removed printer %s", args[0])
			return nil
		},
	}
}

func portOrDefault(port int) int {
	if port == 0 {
		return transport.DefaultPort
	}
	return port
}
