package app

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/config"
)

// cli carries state shared by the commands of one invocation
type cli struct {
	envFiles []string
	cfg      *config.Config
	closeLog io.Closer
}

// NewRootCommand builds the overlay-router command tree. Without a
// subcommand the node is served.
func NewRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "overlay-router",
		Short: "Overlay community router",
		Long: `overlay-router connects communities of members through gateway members.
It keeps a cost-based routing table current by gossiping with neighbouring
gateways and forwards application messages hop by hop.

Configuration comes from the environment, optionally loaded from .env files.`,
		SilenceUsage:       true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
		RunE:               c.runServe,
	}
	root.PersistentFlags().StringSliceVar(&c.envFiles, "env-file", nil, "environment files to load (default .env when present)")

	root.AddCommand(c.newServeCommand())
	root.AddCommand(c.newRoutesCommand())
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if len(c.envFiles) > 0 {
		if err := godotenv.Load(c.envFiles...); err != nil {
			return fmt.Errorf("load env files: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	c.cfg = config.Load()
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	closer, err := logging.InitGlobalLogger(c.cfg.LogLevel, c.cfg.LogFile)
	if err != nil {
		return err
	}
	c.closeLog = closer
	return nil
}

func (c *cli) teardown(*cobra.Command, []string) error {
	logging.MustSync()
	if c.closeLog != nil {
		return c.closeLog.Close()
	}
	return nil
}

func (c *cli) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the overlay node until interrupted",
		Args:  cobra.NoArgs,
		RunE:  c.runServe,
	}
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	return Run(cmd.Context(), c.cfg)
}

func (c *cli) newRoutesCommand() *cobra.Command {
	routes := &cobra.Command{
		Use:   "routes",
		Short: "Inspect and maintain the persisted routing table",
	}

	var recalculate bool
	export := &cobra.Command{
		Use:   "export",
		Short: "Print the routing table held by the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				if _, err := app.Manager.LoadFromStore(ctx); err != nil {
					return err
				}
				if recalculate {
					if _, err := app.Manager.Recalculate(ctx); err != nil {
						return err
					}
				}
				data, err := app.Manager.MarshalTable()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			})
		},
	}
	export.Flags().BoolVar(&recalculate, "recalculate", false, "merge the local topology before printing")

	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Flush the store and recalculate the table from the topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, app *App) error {
				added, err := app.Manager.Rebuild(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "rebuilt routing table with %d entries\n", added)
				return err
			})
		},
	}

	routes.AddCommand(export, rebuild)
	return routes
}

// withApp wires a node without starting it, runs fn and releases the node
func (c *cli) withApp(ctx context.Context, fn func(context.Context, *App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := New(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer app.Cleanup()
	return fn(ctx, app)
}
