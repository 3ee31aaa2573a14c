package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/labelkit/pkg/config"
	"github.com/matzehuels/labelkit/pkg/pipeline"
	"github.com/matzehuels/labelkit/pkg/templates"
)

// templatesCommand creates the templates command for saved label layouts.
func (c *CLI) templatesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage saved label layouts",
	}

	cmd.AddCommand(c.templatesListCommand())
	cmd.AddCommand(c.templatesShowCommand())
	cmd.AddCommand(c.templatesSaveCommand())
	cmd.AddCommand(c.templatesDeleteCommand())

	return cmd
}

// withTemplates opens the configured template store for the duration of fn.
func (c *CLI) withTemplates(ctx context.Context, fn func(*config.Config, templates.Store) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	store, err := cfg.Templates.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func (c *CLI) templatesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved templates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withTemplates(cmd.Context(), func(_ *config.Config, store templates.Store) error {
				list, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					printInfo("No templates saved")
					printNextStep("Save one", "labelkit templates save <name> --width 60 --height 40")
					return nil
				}
				rows := make([][]string, len(list))
				for i, t := range list {
					rows[i] = []string{t.ID.String(), t.Name, describeSize(t), fmt.Sprint(t.DPI), yesNo(t.ShowQR)}
				}
				fmt.Fprintln(c.out, renderTable([]string{"ID", "Name", "Size", "DPI", "QR"}, rows))
				return nil
			})
		},
	}
}

func (c *CLI) templatesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t *templates.Template
			err := c.withTemplates(cmd.Context(), func(_ *config.Config, store templates.Store) error {
				id, err := templates.ParseID(args[0])
				if err != nil {
					return err
				}
				t, err = store.Get(cmd.Context(), id)
				return err
			})
			if err != nil {
				return err
			}
			g := t.Geometry
			printKeyValue("Name", t.Name)
			printKeyValue("ID", t.ID.String())
			printKeyValue("Size", describeSize(*t))
			printKeyValue("Margin", fmt.Sprintf("%g mm", g.MarginMM))
			printKeyValue("Barcode", fmt.Sprintf("%g mm", g.BarHeightMM))
			printKeyValue("DPI", fmt.Sprint(t.DPI))
			printKeyValue("QR", yesNo(t.ShowQR))
			printKeyValue("Updated", t.UpdatedAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func (c *CLI) templatesSaveCommand() *cobra.Command {
	var (
		flags labelFlags
		id    string
	)
	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a label layout as a template",
		Long: `Save stores the layout given by the label flags, on top of the [label]
defaults from the config file. Pass --id to update an existing template; the
flags then change only the fields they name.`,
		Example: `  labelkit templates save "Shelf 60x40" --width 60 --height 40 --dpi 300
  labelkit templates save "Shelf 60x40" --id <id> --qr`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withTemplates(ctx, func(cfg *config.Config, store templates.Store) error {
				t := &templates.Template{
					Name:     args[0],
					Geometry: cfg.Label.Geometry,
					DPI:      cfg.Label.DPI,
					ShowQR:   cfg.Label.ShowQR,
				}
				if id != "" {
					tid, err := templates.ParseID(id)
					if err != nil {
						return err
					}
					if t, err = store.Get(ctx, tid); err != nil {
						return err
					}
					t.Name = args[0]
				}
				opts := pipeline.Options{Geometry: t.Geometry, DPI: t.DPI, ShowQR: t.ShowQR}
				flags.apply(cmd, &opts)
				t.Geometry, t.DPI, t.ShowQR = opts.Geometry, opts.DPI, opts.ShowQR
				if err := store.Save(ctx, t); err != nil {
					return err
				}
				printSuccess("Saved template %s", t.Name)
				printDetail("ID: %s", t.ID)
				return nil
			})
		},
	}
	flags.registerLayout(cmd)
	cmd.Flags().StringVar(&id, "id", "", "update the template with this ID")
	return cmd
}

func (c *CLI) templatesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved template",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withTemplates(ctx, func(_ *config.Config, store templates.Store) error {
				id, err := templates.ParseID(args[0])
				if err != nil {
					return err
				}
				if err := store.Delete(ctx, id); err != nil {
					return err
				}
				printSuccess("Deleted template %s", id)
				return nil
			})
		},
	}
}

func describeSize(t templates.Template) string {
	return fmt.Sprintf("%g x %g mm", t.Geometry.WidthMM, t.Geometry.HeightMM)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
