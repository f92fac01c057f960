package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/web-research-mcp/internal/extract"
	"github.com/polzovatel/web-research-mcp/internal/fault"
	"github.com/polzovatel/web-research-mcp/internal/research"
	"github.com/polzovatel/web-research-mcp/internal/session"
)

type fakeResearcher struct {
	hits      []extract.Hit
	searchErr error
	queries   []string

	visit      research.VisitResult
	visitErr   error
	visitedURL string
	visitShot  bool

	shot    research.ScreenshotResult
	shotErr error

	resets  int
	summary session.Summary
	images  map[int][]byte
}

func (f *fakeResearcher) Search(_ context.Context, query string) ([]extract.Hit, error) {
	f.queries = append(f.queries, query)
	return f.hits, f.searchErr
}

func (f *fakeResearcher) Visit(_ context.Context, url string, takeScreenshot bool) (research.VisitResult, error) {
	f.visitedURL, f.visitShot = url, takeScreenshot
	return f.visit, f.visitErr
}

func (f *fakeResearcher) Screenshot(context.Context) (research.ScreenshotResult, error) {
	return f.shot, f.shotErr
}

func (f *fakeResearcher) Reset() error {
	f.resets++
	return nil
}

func (f *fakeResearcher) Summary() session.Summary { return f.summary }

func (f *fakeResearcher) ScreenshotByIndex(index int) ([]byte, error) {
	if img, ok := f.images[index]; ok {
		return img, nil
	}
	return nil, fmt.Errorf("%w: index %d", fault.ErrResourceNotFound, index)
}

func (f *fakeResearcher) Screenshots() []int {
	var out []int
	for i := range f.images {
		out = append(out, i)
	}
	return out
}

func TestDescribe(t *testing.T) {
	box := New(&fakeResearcher{}, zerolog.Nop())
	var names []string
	for _, tool := range box.Describe() {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema["type"])
	}
	assert.Equal(t, []string{SearchTool, VisitTool, ScreenshotTool, ResetTool}, names)
}

func TestInvoke_Search(t *testing.T) {
	f := &fakeResearcher{hits: []extract.Hit{{Title: "Go", URL: "https://go.dev", Snippet: "The Go language"}}}
	box := New(f, zerolog.Nop())

	res, err := box.Invoke(context.Background(), SearchTool, map[string]any{"query": "golang"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var payload struct {
		Results []extract.Hit `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Observation), &payload))
	assert.Equal(t, f.hits, payload.Results)

	res, err = box.Invoke(context.Background(), SearchTool, map[string]any{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "InvalidInput", res.Kind)
	assert.Equal(t, []string{"golang"}, f.queries)
}

func TestInvoke_NonStringQuery(t *testing.T) {
	f := &fakeResearcher{}
	box := New(f, zerolog.Nop())

	var input map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"query": 42}`), &input))
	res, err := box.Invoke(context.Background(), SearchTool, input)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "InvalidInput", res.Kind)
	assert.Contains(t, res.Observation, "must be string")
	assert.Empty(t, f.queries)
}

func TestInvoke_SearchFailureIsResult(t *testing.T) {
	f := &fakeResearcher{searchErr: fmt.Errorf("search: %w: no search results found", fault.ErrExtraction)}
	res, err := New(f, zerolog.Nop()).Invoke(context.Background(), SearchTool, map[string]any{"query": "x"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "ExtractionFailure", res.Kind)
	assert.Contains(t, res.Observation, "Failed to perform search")
}

func TestInvoke_Visit(t *testing.T) {
	ref := 2
	f := &fakeResearcher{visit: research.VisitResult{
		URL:           "https://example.com",
		Title:         "Example",
		Content:       "# Example",
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		ScreenshotRef: &ref,
		ScreenshotURI: session.ScreenshotURI(2),
	}}
	box := New(f, zerolog.Nop())

	res, err := box.Invoke(context.Background(), VisitTool, map[string]any{"url": "https://example.com", "takeScreenshot": true})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.True(t, f.visitShot)
	assert.Contains(t, res.Observation, `"screenshotRef": 2`)
	assert.Contains(t, res.Observation, `"screenshotUri": "research://screenshots/2"`)

	f.visitErr = fmt.Errorf("%w: ftp://x", fault.ErrInvalidInput)
	res, err = box.Invoke(context.Background(), VisitTool, map[string]any{"url": "ftp://x"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.False(t, f.visitShot)
	assert.Equal(t, "InvalidInput", res.Kind)
}

func TestInvoke_ScreenshotAndReset(t *testing.T) {
	f := &fakeResearcher{shotErr: fault.ErrSizeLimit}
	box := New(f, zerolog.Nop())

	res, err := box.Invoke(context.Background(), ScreenshotTool, nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "SizeLimitExceeded", res.Kind)

	res, err = box.Invoke(context.Background(), ResetTool, nil)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 1, f.resets)
}

func TestInvoke_UnknownTool(t *testing.T) {
	_, err := New(&fakeResearcher{}, zerolog.Nop()).Invoke(context.Background(), "click", nil)
	require.Error(t, err)
}

var testImpl = &mcp.Implementation{Name: "research-test", Version: "0.1.0"}

func mcpSession(t *testing.T, f *fakeResearcher) *mcp.ClientSession {
	t.Helper()
	srv := NewMCPServer(New(f, zerolog.Nop()), f, "test")

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestMCP_ListTools(t *testing.T) {
	cs := mcpSession(t, &fakeResearcher{})
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{SearchTool, VisitTool, ScreenshotTool, ResetTool}, names)
}

func TestMCP_CallTool(t *testing.T) {
	f := &fakeResearcher{visitErr: fmt.Errorf("visit: %w: HTTP 503", fault.ErrNavigation)}
	cs := mcpSession(t, f)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      VisitTool,
		Arguments: map[string]any{"url": "https://down.example"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "Failed to visit page")
	assert.Equal(t, "https://down.example", f.visitedURL)

	res, err = cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      SearchTool,
		Arguments: map[string]any{"query": "weather"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}

func TestMCP_Resources(t *testing.T) {
	f := &fakeResearcher{
		summary: session.Summary{SessionID: "abc", Query: "weather", ResultCount: 1, Results: []session.Entry{{Title: "t"}}},
		images:  map[int][]byte{0: []byte("png")},
	}
	cs := mcpSession(t, f)
	ctx := context.Background()

	res, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: session.SummaryURI})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var sum session.Summary
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &sum))
	assert.Equal(t, "abc", sum.SessionID)
	assert.Equal(t, "weather", sum.Query)

	res, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: session.ScreenshotURI(0)})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, []byte("png"), res.Contents[0].Blob)
	assert.Equal(t, "image/png", res.Contents[0].MIMEType)

	_, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: session.ScreenshotURI(7)})
	require.Error(t, err)
}

func TestFailKeepsInternalKind(t *testing.T) {
	s := New(&fakeResearcher{}, zerolog.Nop()).(*standard)
	res := s.fail("do thing", errors.New("boom"))
	assert.True(t, res.IsError)
	assert.Equal(t, "Internal", res.Kind)
	assert.Equal(t, "Failed to do thing: boom", res.Observation)
}
