// Package fault holds the error kinds surfaced by research operations.
package fault

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNavigation       = errors.New("navigation failed")
	ErrHostileContent   = errors.New("hostile content")
	ErrExtraction       = errors.New("extraction failed")
	ErrSizeLimit        = errors.New("size limit exceeded")
	ErrResourceNotFound = errors.New("session resource not found")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidInput, "InvalidInput"},
	{ErrNavigation, "NavigationFailure"},
	{ErrHostileContent, "HostileContent"},
	{ErrExtraction, "ExtractionFailure"},
	{ErrSizeLimit, "SizeLimitExceeded"},
	{ErrResourceNotFound, "SessionResourceNotFound"},
}

// Kind names the error kind carried by err, or "Internal" when err wraps none of them.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
