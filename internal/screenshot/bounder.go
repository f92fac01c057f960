// Package screenshot captures page images under a hard byte cap and
// persists them to a session-scoped directory.
//
// Capture, transport encoding and persistence each re-check the cap on
// their own input; none of them trusts the stage before it.
package screenshot

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-mcp/internal/fault"
)

const (
	DefaultMaxBytes = 5 * 1024 * 1024

	InitialWidth  = 1600
	InitialHeight = 900
	MinDimension  = 800
	MaxDimension  = 1920

	ShrinkFactor      = 0.75
	MaxShrinkAttempts = 3
)

// Capturer is the part of a page the bounder drives.
type Capturer interface {
	SetViewportSize(ctx context.Context, width, height int) error
	Screenshot(ctx context.Context) ([]byte, error)
}

type Bounder struct {
	maxBytes int
	logger   zerolog.Logger
}

func NewBounder(maxBytes int, logger zerolog.Logger) *Bounder {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Bounder{maxBytes: maxBytes, logger: logger}
}

// MaxBytes is the cap every capture is held to.
func (b *Bounder) MaxBytes() int { return b.maxBytes }

// Capture returns a PNG of the current viewport no larger than the cap,
// shrinking the viewport when needed. Attempt n scales the viewport left
// by attempt n-1, so the reduction compounds. It fails with fault.ErrSizeLimit
// rather than return an oversized image.
func (b *Bounder) Capture(ctx context.Context, c Capturer) ([]byte, error) {
	w, h := InitialWidth, InitialHeight
	shot, err := b.shoot(ctx, c, w, h)
	if err != nil {
		return nil, err
	}
	for attempt := 1; len(shot) > b.maxBytes && attempt <= MaxShrinkAttempts; attempt++ {
		w, h = Shrink(w, h, attempt)
		b.logger.Debug().
			Int("bytes", len(shot)).
			Int("attempt", attempt).
			Int("width", w).
			Int("height", h).
			Msg("screenshot over cap, shrinking viewport")
		if shot, err = b.shoot(ctx, c, w, h); err != nil {
			return nil, err
		}
	}
	if len(shot) > b.maxBytes {
		if shot, err = b.shoot(ctx, c, MinDimension, MinDimension); err != nil {
			return nil, err
		}
	}
	if len(shot) > b.maxBytes {
		return nil, fmt.Errorf("%w: screenshot is %d bytes at minimum viewport, cap is %d",
			fault.ErrSizeLimit, len(shot), b.maxBytes)
	}
	return shot, nil
}

func (b *Bounder) shoot(ctx context.Context, c Capturer, width, height int) ([]byte, error) {
	if err := c.SetViewportSize(ctx, width, height); err != nil {
		return nil, fmt.Errorf("set viewport %dx%d: %w", width, height, err)
	}
	shot, err := c.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return shot, nil
}

// Shrink scales a viewport by ShrinkFactor^attempt and clamps each side to
// [MinDimension, MaxDimension].
func Shrink(width, height, attempt int) (int, int) {
	scale := math.Pow(ShrinkFactor, float64(attempt))
	return clamp(int(math.Round(float64(width) * scale))), clamp(int(math.Round(float64(height) * scale)))
}

func clamp(v int) int {
	return max(MinDimension, min(MaxDimension, v))
}
