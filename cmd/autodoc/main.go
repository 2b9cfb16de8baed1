package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/genai"

	autodoc "github.com/vivaneiona/genkit-autodoc"
)

var (
	logLevel     string
	logJSON      bool
	timeout      time.Duration
	templatesDir string
	browserBin   string
	noSandbox    bool

	logger *slog.Logger
	cfg    autodoc.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "autodoc",
	Short: "Generate documents from structured records without a hand-written mapping",
	Long: `autodoc infers the shape of a record, matches its fields against the
placeholders of every registered template, selects the best template and
renders the result through a pool of headless browser workers.

Configuration is read from AUTODOC_* environment variables; flags override them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = autodoc.LoadConfig()
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if templatesDir != "" {
			cfg.TemplatesDir = templatesDir
		}
		if browserBin != "" {
			cfg.BrowserBin = browserBin
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		opts := &slog.HandlerOptions{Level: level}
		if logJSON {
			logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		}
		slog.SetDefault(logger)
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error (or AUTODOC_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Overall operation timeout")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates-dir", "", "Directory of template descriptors (default: built-in templates)")
	rootCmd.PersistentFlags().StringVar(&browserBin, "browser", "", "Chrome/Chromium binary (default: auto-download)")
	rootCmd.PersistentFlags().BoolVar(&noSandbox, "no-sandbox", false, "Disable the Chrome sandbox (containers)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if code := autodoc.CodeOf(err); code != autodoc.CodeInternal {
			fmt.Fprintf(os.Stderr, "%s: %v\n", code, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		var e *autodoc.Error
		if errors.As(err, &e) && e.Suggestion != "" {
			fmt.Fprintln(os.Stderr, "hint:", e.Suggestion)
		}
		os.Exit(1)
	}
}

// commandContext bounds a command by --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// env holds everything a command built and must release.
type env struct {
	gen      *autodoc.Generator
	registry autodoc.Registry
	pool     *autodoc.Pool
	sink     *autodoc.MemorySink
	closers  []func()
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

type envOptions struct {
	render bool // start a browser pool
	sink   bool // host output in memory instead of inlining it
}

// buildEnv wires registry, record sources, oracle, render pool and sink
// from cfg.
func buildEnv(ctx context.Context, o envOptions) (*env, error) {
	e := &env{}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	e.registry = reg

	opts := append(cfg.Options(), autodoc.WithLogger(logger))

	sources, err := openSources(ctx, e)
	if err != nil {
		return nil, err
	}
	if len(sources) > 0 {
		opts = append(opts, autodoc.WithSources(sources))
	}

	if cfg.APIKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		oracle, err := autodoc.NewGenAIOracle(client, autodoc.OracleConfig{
			Model:      cfg.Model,
			Parameters: map[string]string{"temperature": cfg.Temperature},
			MaxRetries: 1,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, autodoc.WithOracle(oracle))
	} else {
		logger.Debug("GEMINI_API_KEY not set, oracle fallback disabled")
	}

	if o.render {
		browser, err := autodoc.StartRodBrowser(ctx, autodoc.RodConfig{
			Bin:       cfg.BrowserBin,
			NoSandbox: noSandbox,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() { _ = browser.Close() })

		pc := cfg.Pool()
		pc.Logger = logger
		pool, err := autodoc.NewPool(browser.Factory(), pc)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() { _ = pool.Close() })
		e.pool = pool
		opts = append(opts, autodoc.WithPool(pool))
	}

	if o.sink {
		e.sink = autodoc.NewMemorySink(cfg.BaseURL)
		opts = append(opts, autodoc.WithSink(e.sink))
	}

	e.gen = autodoc.NewGenerator(reg, opts...)
	ok = true
	return e, nil
}

func loadRegistry() (autodoc.Registry, error) {
	if cfg.TemplatesDir == "" {
		return autodoc.DefaultRegistry()
	}
	reg, err := autodoc.LoadRegistryFS(os.DirFS(cfg.TemplatesDir), ".")
	if err != nil {
		return nil, fmt.Errorf("loading templates from %s: %w", cfg.TemplatesDir, err)
	}
	return reg, nil
}

// openSources registers every record source configured in the environment.
// Source ids: sqlite, postgres, files, xlsx.
func openSources(ctx context.Context, e *env) (autodoc.Sources, error) {
	sources := autodoc.Sources{}
	if cfg.SQLitePath != "" {
		s, err := autodoc.OpenSQLiteSource(cfg.SQLitePath, cfg.SQLiteTable, cfg.SQLiteKey)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() { _ = s.Close() })
		sources["sqlite"] = s
	}
	if cfg.PostgresDSN != "" {
		s, err := autodoc.OpenPostgresSource(ctx, autodoc.PostgresConfig{
			DSN:       cfg.PostgresDSN,
			Table:     cfg.PostgresTable,
			KeyColumn: cfg.PostgresKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, s.Close)
		sources["postgres"] = s
	}
	if cfg.RecordsDir != "" {
		sources["files"] = autodoc.JSONFileSource{Dir: cfg.RecordsDir}
	}
	if cfg.XLSXPath != "" {
		sources["xlsx"] = autodoc.XLSXSource{Path: cfg.XLSXPath}
	}
	return sources, nil
}

// needsBrowser reports whether format is rendered by the pool.
func needsBrowser(format autodoc.OutputFormat) bool {
	switch format {
	case autodoc.FormatPreview:
		return false
	case "":
		return true
	}
	return format.Valid()
}

func parseFormat(s string) (autodoc.OutputFormat, error) {
	f := autodoc.OutputFormat(strings.ToLower(s))
	if f != "" && !f.Valid() {
		return "", fmt.Errorf("%w: unknown format %q (preview, html, pdf, png)", autodoc.ErrInvalidRequest, s)
	}
	return f, nil
}
