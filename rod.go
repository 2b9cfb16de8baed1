package autodoc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodConfig locates or launches the headless Chrome used for rendering.
type RodConfig struct {
	Bin        string // browser binary; empty lets the launcher find or download one
	ControlURL string // attach to a running browser instead of launching
	NoSandbox  bool
	Logger     *slog.Logger
}

// RodBrowser owns one Chrome process. Each worker it hands out is an
// isolated incognito context with a single page.
type RodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	log      *slog.Logger
}

// StartRodBrowser launches (or attaches to) Chrome and connects to it.
func StartRodBrowser(ctx context.Context, cfg RodConfig) (*RodBrowser, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	b := &RodBrowser{log: log}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(true).NoSandbox(cfg.NoSandbox)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		b.kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = browser.Close()
		b.kill()
		return nil, err
	}
	b.browser = browser
	log.Debug("chrome connected", "control_url", controlURL)
	return b, nil
}

// Factory returns a WorkerFactory backed by this browser.
func (b *RodBrowser) Factory() WorkerFactory {
	return func(ctx context.Context) (Worker, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		incognito, err := b.browser.Incognito()
		if err != nil {
			return nil, fmt.Errorf("incognito context: %w", err)
		}
		page, err := incognito.Page(proto.TargetCreateTarget{})
		if err != nil {
			_ = incognito.Close()
			return nil, fmt.Errorf("new page: %w", err)
		}
		return &rodWorker{context: incognito, page: page, log: b.log}, nil
	}
}

// Close shuts the browser down.
func (b *RodBrowser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.kill()
	return err
}

func (b *RodBrowser) kill() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

type rodWorker struct {
	context *rod.Browser
	page    *rod.Page
	log     *slog.Logger
}

func (w *rodWorker) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	page := w.page.Context(ctx)
	if err := page.SetDocumentContent(req.Markup); err != nil {
		return nil, fmt.Errorf("load markup: %w", err)
	}

	settling := page.Timeout(req.SettleTimeout)
	err := settling.WaitStable(req.MinSettle)
	settling.CancelTimeout()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("wait for content: %w", err)
		}
		w.log.Debug("content did not settle in time, rendering as is", "settle_timeout", req.SettleTimeout)
	}

	switch req.Format {
	case FormatPDF:
		r, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true, PreferCSSPageSize: true})
		if err != nil {
			return nil, fmt.Errorf("print pdf: %w", err)
		}
		return io.ReadAll(r)
	case FormatPNG:
		return page.Screenshot(true, &proto.PageCaptureScreenshot{Format: proto.PageCaptureScreenshotFormatPng})
	case FormatHTML:
		s, err := page.HTML()
		if err != nil {
			return nil, fmt.Errorf("serialize html: %w", err)
		}
		return []byte(s), nil
	}
	return nil, fmt.Errorf("%w: unsupported output format %q", ErrRender, req.Format)
}

func (w *rodWorker) Close() error {
	return errors.Join(w.page.Close(), w.context.Close())
}
