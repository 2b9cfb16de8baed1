//go:build integration

package autodoc

import (
	"os"
	"testing"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run with: go test -tags integration -run Rod ./...
func TestRodPool_Formats(t *testing.T) {
	b, err := StartRodBrowser(t.Context(), RodConfig{
		Bin:       os.Getenv("AUTODOC_BROWSER_BIN"),
		NoSandbox: true,
		Logger:    discardLogger(),
	})
	require.NoError(t, err)
	defer b.Close()

	p, err := NewPool(b.Factory(), PoolConfig{Size: 2, SettleTimeout: 5 * time.Second, MinSettle: 50 * time.Millisecond, Logger: discardLogger()})
	require.NoError(t, err)
	defer p.Close()

	markup := `<html><body><h1>FWO-2024-0523</h1><p>Johnson Residence</p></body></html>`
	for _, f := range []OutputFormat{FormatPDF, FormatPNG, FormatHTML} {
		t.Run(string(f), func(t *testing.T) {
			out, err := p.Render(t.Context(), RenderJob{Markup: markup, Format: f, Deadline: time.Now().Add(30 * time.Second)})
			require.NoError(t, err)
			assert.True(t, mimetype.Detect(out).Is(f.ContentType()), "got %s", mimetype.Detect(out))
		})
	}
	assert.LessOrEqual(t, p.Stats().Created, int64(2))
}
