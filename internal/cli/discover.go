package cli

import (
	"context"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/transport"
)

type discoverOpts struct {
	port    int
	timeout time.Duration
	workers int
	probe   string
	pick    bool
	name    string
}

// discoverCommand creates the discover command, which scans a subnet for
// devices accepting connections on the printer port.
func (c *CLI) discoverCommand() *cobra.Command {
	var opts discoverOpts

	cmd := &cobra.Command{
		Use:   "discover [subnet]",
		Short: "Scan the local network for label printers",
		Long: `Discover probes every address of an IPv4 subnet (at most a /22) for an open
printer port. Without a subnet the first private IPv4 network of this machine is
scanned.

Use --probe to check a single host instead, and --pick to choose one of the
printers found and save it to the config file.`,
		Example: `  labelkit discover
  labelkit discover 192.168.1.0/24 --timeout 500ms
  labelkit discover --pick --name front
  labelkit discover --probe 192.168.1.50`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.probe != "" {
				return c.runProbe(cmd.Context(), &opts)
			}
			subnet := ""
			if len(args) == 1 {
				subnet = args[0]
			}
			return c.runDiscover(cmd.Context(), subnet, &opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", transport.DefaultPort, "port to probe")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", transport.DefaultProbeTimeout, "per-address probe timeout")
	cmd.Flags().IntVar(&opts.workers, "workers", transport.DefaultScanWorkers, "concurrent probes")
	cmd.Flags().StringVar(&opts.probe, "probe", "", "probe a single host instead of scanning")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "choose a printer interactively and save it to the config")
	cmd.Flags().StringVar(&opts.name, "name", "", "name for the picked printer (default: its address)")

	return cmd
}

func (c *CLI) runProbe(ctx context.Context, opts *discoverOpts) error {
	addr := fmt.Sprintf("%s:%d", opts.probe, opts.port)
	if !transport.Probe(ctx, opts.probe, opts.port, opts.timeout) {
		printWarning("Nothing answering on %s", addr)
		return nil
	}
	printSuccess("Printer port open on %s", addr)
	return nil
}

func (c *CLI) runDiscover(ctx context.Context, subnet string, opts *discoverOpts) error {
	logger := loggerFromContext(ctx)
	if subnet == "" {
		prefix, err := transport.LocalSubnet()
		if err != nil {
			return err
		}
		subnet = prefix.String()
	}
	logger.Debug("scanning", "subnet", subnet, "port", opts.port, "workers", opts.workers)

	var found atomic.Int32
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Scanning %s...", subnet))
	spinner.Start()
	hosts, err := transport.Discover(ctx, subnet, transport.DiscoverOptions{
		Port:    opts.port,
		Timeout: opts.timeout,
		Workers: opts.workers,
		OnFound: func(netip.Addr) {
			spinner.SetMessage("Scanning %s... %d found", subnet, found.Add(1))
		},
	})
	if err != nil {
		spinner.StopWithError("Scan failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Scanned %s", subnet))

	if len(hosts) == 0 {
		printWarning("No printers found on port %d", opts.port)
		return nil
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	known := knownHosts(cfg)

	if !opts.pick {
		rows := make([][]string, len(hosts))
		for i, h := range hosts {
			rows[i] = []string{h.String(), fmt.Sprint(opts.port), orDash(known[h.String()])}
		}
		fmt.Fprintln(c.out, renderTable([]string{"Host", "Port", "Configured as"}, rows))
		printNextStep("Save one as a named printer", "labelkit printers add <name> <host>")
		return nil
	}

	final, err := tea.NewProgram(NewPrinterListModel(hosts, opts.port, known)).Run()
	if err != nil {
		return fmt.Errorf("printer picker: %w", err)
	}
	m, ok := final.(PrinterListModel)
	if !ok || m.Selected == nil {
		printInfo("No printer selected")
		return nil
	}
	return c.savePicked(cfg, *m.Selected, opts)
}

// savePicked stores the picked address as the default printer.
func (c *CLI) savePicked(cfg *config.Config, addr netip.Addr, opts *discoverOpts) error {
	name := opts.name
	if name == "" {
		name = addr.String()
	}
	p := config.Printer{Name: name, Host: addr.String(), Default: true}
	if opts.port != transport.DefaultPort {
		p.Port = opts.port
	}
	cfg.AddPrinter(p)
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := c.saveConfig()
	if err != nil {
		return err
	}
	printSuccess("Saved %s as the default printer", name)
	printDetail("Config: %s", path)
	return nil
}

func knownHosts(cfg *config.Config) map[string]string {
	known := make(map[string]string, len(cfg.Printers))
	for _, p := range cfg.Printers {
		known[p.Host] = p.Name
	}
	return known
}
