package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/polzovatel/web-research-mcp/internal/browser"
	"github.com/polzovatel/web-research-mcp/internal/config"
	"github.com/polzovatel/web-research-mcp/internal/research"
	"github.com/polzovatel/web-research-mcp/internal/server"
	"github.com/polzovatel/web-research-mcp/internal/tools"
)

var version = "dev"

type app struct {
	configPath string
	headless   bool
	cfg        config.Config
}

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("research")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "research",
		Short:         "Browser-backed web research tools over MCP",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default $RESEARCH_CONFIG)")
	root.PersistentFlags().BoolVar(&a.headless, "headless", true, "run the browser without a window")

	root.AddCommand(a.serveCmd(), a.searchCmd(), a.visitCmd(), a.screenshotCmd())
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = a.headless
	}
	a.cfg = cfg
	log.Logger = log.Logger.Level(cfg.Level())
	return nil
}

func (a *app) manager() *research.Manager {
	launcher := browser.NewLauncher(browser.LaunchOptions{
		Headless: a.cfg.Headless,
		Install:  a.cfg.InstallBrowsers,
	})
	sess := browser.NewSession(launcher.Launch, log.With().Str("comp", "browser").Logger())
	return research.NewManager(sess, a.cfg.Research(), log.With().Str("comp", "research").Logger())
}

func (a *app) serveCmd() *cobra.Command {
	var useHTTP bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio or HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			mgr := a.manager()
			defer closeManager(mgr)

			box := tools.New(mgr, log.With().Str("comp", "tools").Logger())
			srv := tools.NewMCPServer(box, mgr, version)

			if useHTTP {
				return server.New(a.cfg.HTTPAddr, srv, mgr, log.With().Str("comp", "http").Logger()).Run(ctx)
			}
			log.Info().Msg("mcp server on stdio")
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useHTTP, "http", false, "serve streamable HTTP on the configured address instead of stdio")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search once and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, tools.SearchTool, map[string]any{"query": args[0]})
		},
	}
}

func (a *app) visitCmd() *cobra.Command {
	var shot bool
	cmd := &cobra.Command{
		Use:   "visit <url>",
		Short: "Visit a page and print its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.invoke(cmd, tools.VisitTool, map[string]any{"url": args[0], "takeScreenshot": shot})
		},
	}
	cmd.Flags().BoolVar(&shot, "screenshot", false, "also capture a screenshot")
	return cmd
}

func (a *app) screenshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screenshot",
		Short: "Capture the current page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.invoke(cmd, tools.ScreenshotTool, nil)
		},
	}
}

// invoke runs one tool against a fresh browser and prints its payload.
// Screenshots survive the run only when a screenshot directory is
// configured.
func (a *app) invoke(cmd *cobra.Command, name string, input map[string]any) error {
	mgr := a.manager()
	if a.cfg.ScreenshotDir != "" {
		defer func() {
			if err := mgr.Release(); err != nil {
				log.Warn().Err(err).Msg("shutdown")
			}
		}()
	} else {
		defer closeManager(mgr)
	}

	box := tools.New(mgr, log.With().Str("comp", "tools").Logger())
	res, err := box.Invoke(cmd.Context(), name, input)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Observation)
	if res.IsError {
		return fmt.Errorf("%s failed: %s", name, res.Kind)
	}
	return nil
}

func closeManager(mgr *research.Manager) {
	if err := mgr.Close(); err != nil {
		log.Warn().Err(err).Msg("shutdown")
	}
}
