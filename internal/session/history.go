// Package session keeps the bounded, index-addressable record of one
// research run.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polzovatel/web-research-mcp/internal/fault"
)

const (
	DefaultCapacity        = 100
	DefaultLabel           = "Research Session"
	DefaultScreenshotLabel = "Screenshot Session"
	ScreenshotURIPrefix    = "research://screenshots/"
	SummaryURI             = "research://current/summary"
)

type Kind string

const (
	SearchHit      Kind = "search_hit"
	PageVisit      Kind = "page_visit"
	ScreenshotOnly Kind = "screenshot"
)

// Result is one captured outcome. URL is empty for screenshots of a blank
// page; ScreenshotPath is empty when nothing was captured.
type Result struct {
	Kind           Kind
	URL            string
	Title          string
	Content        string
	Timestamp      time.Time
	ScreenshotPath string
}

// ScreenshotURI is the resource URI of the screenshot stored at index.
func ScreenshotURI(index int) string {
	return fmt.Sprintf("%s%d", ScreenshotURIPrefix, index)
}

// Entry is the summary projection of one Result.
type Entry struct {
	Kind          Kind      `json:"kind"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Timestamp     time.Time `json:"timestamp"`
	ScreenshotRef *int      `json:"screenshotRef,omitempty"`
	ScreenshotURI string    `json:"screenshotUri,omitempty"`
}

// Summary is the JSON view of a session. LastUpdated is null until the
// first result is added.
type Summary struct {
	SessionID   string     `json:"sessionId"`
	Query       string     `json:"query"`
	ResultCount int        `json:"resultCount"`
	LastUpdated *time.Time `json:"lastUpdated"`
	Results     []Entry    `json:"results"`
}

// History is a FIFO-evicting list of Results. Indexes are positions in the
// current list; eviction shifts them, so a reference is only good until
// the next eviction or Reset.
type History struct {
	mu       sync.Mutex
	capacity int
	id       string
	label    string
	results  []Result
	updated  time.Time
	now      func() time.Time
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{capacity: capacity, id: uuid.NewString(), now: time.Now}
}

// Add stores r and returns its index. At capacity the oldest entry is
// evicted first, so the returned index is always Len()-1.
func (h *History) Add(r Result) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.label == "" {
		h.label = DefaultLabel
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = h.now()
	}
	if len(h.results) >= h.capacity {
		n := len(h.results) - h.capacity + 1
		h.results = append(h.results[:0:0], h.results[n:]...)
	}
	h.results = append(h.results, r)
	h.updated = r.Timestamp
	return len(h.results) - 1
}

// SetLabelIfEmpty labels the session unless it already has a label.
func (h *History) SetLabelIfEmpty(label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.label == "" {
		h.label = label
	}
}

func (h *History) Label() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.label
}

func (h *History) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.id
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.results)
}

// Get returns the Result at index.
func (h *History) Get(index int) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 || index >= len(h.results) {
		return Result{}, fmt.Errorf("%w: no result at index %d (have %d)", fault.ErrResourceNotFound, index, len(h.results))
	}
	return h.results[index], nil
}

// ScreenshotPath returns the file of the screenshot stored at index.
func (h *History) ScreenshotPath(index int) (string, error) {
	r, err := h.Get(index)
	if err != nil {
		return "", err
	}
	if r.ScreenshotPath == "" {
		return "", fmt.Errorf("%w: result %d has no screenshot", fault.ErrResourceNotFound, index)
	}
	return r.ScreenshotPath, nil
}

func (h *History) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Summary{
		SessionID:   h.id,
		Query:       h.label,
		ResultCount: len(h.results),
		Results:     make([]Entry, 0, len(h.results)),
	}
	if !h.updated.IsZero() {
		updated := h.updated
		s.LastUpdated = &updated
	}
	for i, r := range h.results {
		e := Entry{Kind: r.Kind, Title: r.Title, URL: r.URL, Timestamp: r.Timestamp}
		if r.ScreenshotPath != "" {
			ref := i
			e.ScreenshotRef = &ref
			e.ScreenshotURI = ScreenshotURI(i)
		}
		s.Results = append(s.Results, e)
	}
	return s
}

// Screenshots returns the indexes of all results carrying a screenshot.
func (h *History) Screenshots() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []int
	for i, r := range h.results {
		if r.ScreenshotPath != "" {
			out = append(out, i)
		}
	}
	return out
}

// Reset drops every result and the label and starts a new generation.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results = nil
	h.label = ""
	h.updated = time.Time{}
	h.id = uuid.NewString()
}
