package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/errors"
	"github.com/matzehuels/labelkit/pkg/items"
	"github.com/matzehuels/labelkit/pkg/pipeline"
	"github.com/matzehuels/labelkit/pkg/transport"
)

// printOpts holds the command-line flags for the print command.
type printOpts struct {
	labelFlags
	printer string
	port    int
	timeout time.Duration
	grace   time.Duration
	raw     bool
	dryRun  bool
}

// printCommand creates the print command, which renders articles and sends
// the label stream to a printer over raw TCP.
func (c *CLI) printCommand() *cobra.Command {
	var opts printOpts

	cmd := &cobra.Command{
		Use:   "print [file]",
		Short: "Render articles and send the labels to a printer",
		Long: `Print renders an article list to ZPL and writes it to a network printer on
port 9100. The printer is a name from the config file or a host address; without
--printer the default printer is used.

With --raw the file is sent as-is, for ZPL produced elsewhere.`,
		Example: `  labelkit print stock.csv
  labelkit print stock.csv -p front --qr
  labelkit print labels.zpl --raw -p 192.168.1.50
  labelkit print stock.csv --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrint(cmd.Context(), cmd, args[0], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.printer, "printer", "p", "", "printer name or host (default: the configured default printer)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "TCP port (default: from the printer entry, else 9100)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "overall send timeout (default 6s)")
	cmd.Flags().DurationVar(&opts.grace, "grace", 0, "pause after the write before closing (default 100ms)")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "send the file as-is instead of rendering it")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "render and report without connecting to the printer")

	return cmd
}

func (c *CLI) runPrint(ctx context.Context, cmd *cobra.Command, input string, opts *printOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	printer, err := cfg.ResolvePrinter(opts.printer)
	if err != nil {
		return err
	}
	port := printer.Port
	if opts.port != 0 {
		port = opts.port
	}
	timeout, grace := cfg.Transport.Timeout, cfg.Transport.Grace
	if cmd.Flags().Changed("timeout") {
		timeout = opts.timeout
	}
	if cmd.Flags().Changed("grace") {
		grace = opts.grace
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	var payload []byte
	labels := 0
	cached := false
	if opts.raw {
		payload, err = readRaw(input)
		if err != nil {
			return err
		}
	} else {
		articles, err := readArticles(input, opts.inputFormat)
		if err != nil {
			return err
		}
		popts, err := opts.options(ctx, cmd, cfg)
		if err != nil {
			return err
		}
		popts.Formats = []string{pipeline.FormatZPL}
		res, err := runner.Render(ctx, items.LineItems(articles), popts)
		if err != nil {
			return err
		}
		payload, labels, cached = res.Artifacts[pipeline.FormatZPL], res.Blocks, res.CacheHit
		if labels == 0 {
			return errors.Validation("nothing to print: every article has quantity 0")
		}
	}

	job := transport.Job{
		Host:    printer.Host,
		Port:    port,
		Payload: payload,
		Timeout: timeout,
		Grace:   grace,
	}.WithDefaults()
	if err := job.Validate(); err != nil {
		return err
	}

	if opts.dryRun {
		printInfo("Dry run: not connecting to %s", job.Addr())
		printLabelStats(labels, len(payload), cached)
		return nil
	}

	logger.Debug("sending", "printer", printer.Name, "addr", job.Addr(), "bytes", len(payload))
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Sending to %s...", describePrinter(printer, job)))
	spinner.Start()
	res, err := runner.Send(ctx, job)
	if err != nil {
		spinner.StopWithError("Print failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Sent to %s in %s", describePrinter(printer, job), res.Duration.Round(time.Millisecond)))
	printLabelStats(labels, res.Bytes, cached)
	return nil
}

func describePrinter(p config.Printer, job transport.Job) string {
	if p.Name == "" || p.Name == p.Host {
		return job.Addr()
	}
	return fmt.Sprintf("%s (%s)", p.Name, job.Addr())
}

func readRaw(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
