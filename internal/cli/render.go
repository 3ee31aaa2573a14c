package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/items"
	"github.com/matzehuels/labelkit/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	labelFlags
	output  string // output file, base path for multiple formats, or "-" for stdout
	formats string // comma-separated output formats
}

// renderCommand creates the render command for turning article files into
// ZPL, an SVG preview, or a JSON summary.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render articles (CSV or JSON) to ZPL, SVG preview or JSON",
		Long: `Render reads an article list and writes the label stream without printing it.

The input is a CSV with a header row (code, name, price, quantity; "," or ";"
separated) or a JSON array of {code, name, price, quantity}. Use "-" to read
from stdin.`,
		Example: `  labelkit render stock.csv
  labelkit render stock.csv -f zpl,svg -o out/stock
  labelkit render items.json --width 60 --height 40 --dpi 300 --qr -o -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), cmd, args[0], &opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", `output file (single format), base path (multiple), or "-" for stdout`)
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): zpl (default), svg, json (comma-separated)")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, cmd *cobra.Command, input string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	articles, err := readArticles(input, opts.inputFormat)
	if err != nil {
		return err
	}
	logger.Debug("loaded articles", "file", input, "count", len(articles))

	popts, err := opts.options(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	popts.Formats = parseFormats(opts.formats)
	if err := popts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	res, err := runner.Render(ctx, items.LineItems(articles), popts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Rendered %d labels", res.Blocks))

	if opts.output == "-" {
		if len(popts.Formats) != 1 {
			return fmt.Errorf("stdout output needs exactly one format, got %v", popts.Formats)
		}
		_, err := c.out.Write(res.Artifacts[popts.Formats[0]])
		return err
	}

	paths := outputPaths(opts.output, input, popts.Formats)
	for _, format := range popts.Formats {
		path := paths[format]
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", format, err)
		}
	}

	printSuccess("Rendered %s", input)
	printLabelStats(res.Blocks, len(res.Artifacts[pipeline.FormatZPL]), res.CacheHit)
	for _, format := range popts.Formats {
		printFile(paths[format])
	}
	return nil
}

// outputPaths maps each format to its file. A single format honors output
// as-is; several formats share a base path and get their own extension.
// Without output the input's base name is used.
func outputPaths(output, input string, formats []string) map[string]string {
	if input == "-" && output == "" {
		input = "labels"
	}
	paths := make(map[string]string, len(formats))
	if len(formats) == 1 && output != "" && filepath.Ext(output) != "" {
		paths[formats[0]] = output
		return paths
	}
	base := basePath(output, input)
	for _, f := range formats {
		paths[f] = base + "." + f
	}
	return paths
}

// basePath derives the base output path. Known format extensions are
// stripped from output; without output the input extension is stripped.
func basePath(output, input string) string {
	if output == "" {
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}
