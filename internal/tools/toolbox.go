package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-mcp/internal/extract"
	"github.com/polzovatel/web-research-mcp/internal/fault"
	"github.com/polzovatel/web-research-mcp/internal/research"
	"github.com/polzovatel/web-research-mcp/internal/session"
)

const (
	SearchTool     = "search_google"
	VisitTool      = "visit_page"
	ScreenshotTool = "take_screenshot"
	ResetTool      = "reset_session"
)

type Toolbox interface {
	Describe() []Tool
	Invoke(ctx context.Context, name string, input map[string]any) (Result, error)
}

type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// Result is what a tool call hands back to the caller. Failed operations
// are results with IsError set, never Go errors.
type Result struct {
	Observation string
	IsError     bool
	Kind        string
}

// Researcher is the operation surface the tools drive. *research.Manager
// implements it.
type Researcher interface {
	Search(ctx context.Context, query string) ([]extract.Hit, error)
	Visit(ctx context.Context, url string, takeScreenshot bool) (research.VisitResult, error)
	Screenshot(ctx context.Context) (research.ScreenshotResult, error)
	Reset() error
	Summary() session.Summary
	ScreenshotByIndex(index int) ([]byte, error)
	Screenshots() []int
}

type standard struct {
	r      Researcher
	logger zerolog.Logger
	tools  []Tool
}

func New(r Researcher, logger zerolog.Logger) Toolbox {
	return &standard{
		r:      r,
		logger: logger,
		tools: []Tool{
			newTool(SearchTool, "Search Google and return the result titles, URLs and snippets", schema{"query": str("search query")}, []string{"query"}),
			newTool(VisitTool, "Visit a web page and extract its main content as markdown", schema{"url": str("http or https URL to visit"), "takeScreenshot": boolean("also capture a screenshot of the page")}, []string{"url"}),
			newTool(ScreenshotTool, "Take a screenshot of the current page", schema{}, nil),
			newTool(ResetTool, "Clear the research session history and its screenshots", schema{}, nil),
		},
	}
}

func (s *standard) Describe() []Tool {
	return append([]Tool(nil), s.tools...)
}

func (s *standard) Invoke(ctx context.Context, name string, input map[string]any) (Result, error) {
	switch name {
	case SearchTool:
		query, err := requiredString(input, "query")
		if err != nil {
			return s.fail("perform search", fmt.Errorf("%w: %v", fault.ErrInvalidInput, err)), nil
		}
		hits, err := s.r.Search(ctx, query)
		if err != nil {
			return s.fail("perform search", err), nil
		}
		return s.ok(struct {
			Results []extract.Hit `json:"results"`
		}{hits})

	case VisitTool:
		url, err := requiredString(input, "url")
		if err != nil {
			return s.fail("visit page", fmt.Errorf("%w: %v", fault.ErrInvalidInput, err)), nil
		}
		res, err := s.r.Visit(ctx, url, optionalBool(input, "takeScreenshot"))
		if err != nil {
			return s.fail("visit page", err), nil
		}
		return s.ok(res)

	case ScreenshotTool:
		res, err := s.r.Screenshot(ctx)
		if err != nil {
			return s.fail("take screenshot", err), nil
		}
		return s.ok(res)

	case ResetTool:
		if err := s.r.Reset(); err != nil {
			return s.fail("reset session", err), nil
		}
		return Result{Observation: "session reset"}, nil

	default:
		return Result{}, fmt.Errorf("unknown tool %s", name)
	}
}

func (s *standard) ok(v any) (Result, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Result{}, fmt.Errorf("encode result: %w", err)
	}
	return Result{Observation: string(data)}, nil
}

func (s *standard) fail(action string, err error) Result {
	kind := fault.Kind(err)
	s.logger.Warn().Err(err).Str("kind", kind).Msg(action + " failed")
	return Result{
		Observation: fmt.Sprintf("Failed to %s: %v", action, err),
		IsError:     true,
		Kind:        kind,
	}
}

type schema map[string]any

func newTool(name, desc string, props schema, required []string) Tool {
	input := map[string]any{
		"type":       "object",
		"properties": map[string]any(props),
	}
	if len(required) > 0 {
		input["required"] = required
	}
	return Tool{Name: name, Description: desc, InputSchema: input}
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func requiredString(input map[string]any, key string) (string, error) {
	val, ok := input[key]
	if !ok {
		return "", fmt.Errorf("field %s required", key)
	}
	switch v := val.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", fmt.Errorf("field %s empty", key)
		}
		return v, nil
	default:
		return "", fmt.Errorf("field %s must be string", key)
	}
}

func optionalBool(input map[string]any, key string) bool {
	val, ok := input[key]
	if !ok {
		return false
	}
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}
