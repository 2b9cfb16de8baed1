package autodoc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	s := NewMemorySink("https://docs.test/d/")
	s.now = func() time.Time { return now }

	pdf := []byte("%PDF-1.4\n%%EOF\n")
	h, err := s.Put(t.Context(), pdf, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.test/d/"+h.ID, h.URL)
	assert.Equal(t, "application/pdf", h.ContentType)
	assert.Equal(t, len(pdf), h.Size)
	assert.Equal(t, now.Add(time.Hour), h.ExpiresAt)

	_, data, err := s.Get(h.ID)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	_, _, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	now = now.Add(2 * time.Hour)
	_, _, err = s.Get(h.ID)
	assert.ErrorIs(t, err, ErrExpired)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
	_, _, err = s.Get(h.ID)
	assert.ErrorIs(t, err, ErrExpired, "swept documents stay expired")

	_, err = s.Put(t.Context(), pdf, 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestMemorySink_ServeHTTP(t *testing.T) {
	now := time.Now()
	s := NewMemorySink("http://unused")
	s.now = func() time.Time { return now }

	live, err := s.Put(t.Context(), []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), time.Hour)
	require.NoError(t, err)
	stale, err := s.Put(t.Context(), []byte("%PDF-1.4\n%%EOF\n"), time.Minute)
	require.NoError(t, err)
	now = now.Add(30 * time.Minute)

	srv := httptest.NewServer(http.StripPrefix("/documents", s))
	defer srv.Close()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"live", http.MethodGet, "/documents/" + live.ID, http.StatusOK},
		{"head", http.MethodHead, "/documents/" + live.ID, http.StatusOK},
		{"expired", http.MethodGet, "/documents/" + stale.ID, http.StatusGone},
		{"unknown", http.MethodGet, "/documents/does-not-exist", http.StatusNotFound},
		{"post", http.MethodPost, "/documents/" + live.ID, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(t.Context(), tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.name == "live" {
				assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, live.Size, len(body))
			}
		})
	}
}

func TestDataURL(t *testing.T) {
	u := dataURL("application/pdf", []byte("%PDF-1.4"))
	assert.Equal(t, "data:application/pdf;base64,JVBERi0xLjQ=", u)

	ct, data, ok := DecodeDataURL(u)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", ct)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	for _, bad := range []string{"https://x", "data:text/plain,hello", "data:a;base64,!!!"} {
		_, _, ok := DecodeDataURL(bad)
		assert.False(t, ok, bad)
	}
}
