package autodoc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Hosted describes a stored document.
type Hosted struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expiresAt"`
	ContentType string    `json:"contentType"`
	Size        int       `json:"size"`
}

// Sink stores rendered bytes and returns where they can be fetched.
type Sink interface {
	Put(ctx context.Context, data []byte, ttl time.Duration) (Hosted, error)
}

type hostedEntry struct {
	Hosted
	data []byte
}

// MemorySink keeps documents in memory until they expire. Expired ids
// answer ErrExpired until swept; unknown ids answer ErrNotFound.
type MemorySink struct {
	baseURL string
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*hostedEntry
}

// NewMemorySink serves documents under baseURL + "/" + id.
func NewMemorySink(baseURL string) *MemorySink {
	return &MemorySink{
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		entries: map[string]*hostedEntry{},
	}
}

// Put implements Sink.
func (s *MemorySink) Put(ctx context.Context, data []byte, ttl time.Duration) (Hosted, error) {
	if err := ctx.Err(); err != nil {
		return Hosted{}, err
	}
	if ttl <= 0 {
		return Hosted{}, fmt.Errorf("%w: ttl must be positive", ErrInvalidRequest)
	}
	id := uuid.NewString()
	h := Hosted{
		ID:          id,
		URL:         s.baseURL + "/" + id,
		ExpiresAt:   s.now().Add(ttl),
		ContentType: mimetype.Detect(data).String(),
		Size:        len(data),
	}
	s.mu.Lock()
	s.entries[id] = &hostedEntry{Hosted: h, data: append([]byte(nil), data...)}
	s.mu.Unlock()
	return h, nil
}

// Get returns a stored document.
func (s *MemorySink) Get(id string) (Hosted, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Hosted{}, nil, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	if e.data == nil || !s.now().Before(e.ExpiresAt) {
		return e.Hosted, nil, fmt.Errorf("%w: document %s expired at %s", ErrExpired, id, e.ExpiresAt.Format(time.RFC3339))
	}
	return e.Hosted, e.data, nil
}

// Sweep frees the bytes of expired documents and returns how many were
// freed. Swept ids keep answering ErrExpired.
func (s *MemorySink) Sweep() int {
	now := s.now()
	n := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.data != nil && !now.Before(e.ExpiresAt) {
			e.data = nil
			n++
		}
	}
	return n
}

// ServeHTTP serves GET /<id>: 404 for unknown ids, 410 once expired.
func (s *MemorySink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := path.Base(r.URL.Path)
	h, data, err := s.Get(id)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, ErrExpired):
			status = http.StatusGone
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", h.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Expires", h.ExpiresAt.UTC().Format(http.TimeFormat))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(data)
}

// dataURL inlines output when no sink is configured.
func dataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL reverses the inline form produced when no sink is configured.
func DecodeDataURL(s string) (contentType string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", nil, false
	}
	ct, payload, found := strings.Cut(rest, ";base64,")
	if !found {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, false
	}
	return ct, data, true
}
