package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/xharvest/internal/harvest"
)

// DefaultBottomTolerance is how close to the end of the document counts as the bottom
const DefaultBottomTolerance = 100

// Driver scrolls the page through chromedp.
// The ctx passed to its methods must carry a chromedp browser context.
type Driver struct {
	// Increment is the scroll step in pixels; 0 scrolls one viewport height
	Increment int
	Settle    time.Duration
	Tolerance int
}

// NewDriver returns a driver scrolling by increment pixels and waiting settle after each step
func NewDriver(increment int, settle time.Duration, tolerance int) *Driver {
	return &Driver{Increment: increment, Settle: settle, Tolerance: tolerance}
}

// geometry is the scroll state read from the page
type geometry struct {
	ScrollY      float64 `json:"scrollY"`
	InnerHeight  float64 `json:"innerHeight"`
	ScrollHeight float64 `json:"scrollHeight"`
}

func (g geometry) atBottom(tolerance int) bool {
	return g.ScrollY+g.InnerHeight >= g.ScrollHeight-float64(tolerance)
}

const geometryJS = `({
	scrollY: window.scrollY,
	innerHeight: window.innerHeight,
	scrollHeight: document.documentElement.scrollHeight
})`

// scrollExpr returns the JS that advances the page by one increment
func (d *Driver) scrollExpr() string {
	if d.Increment <= 0 {
		return `window.scrollBy(0, window.innerHeight)`
	}
	return fmt.Sprintf(`window.scrollBy(0, %d)`, d.Increment)
}

// Advance implements harvest.ScrollDriver
func (d *Driver) Advance(ctx context.Context) error {
	if err := chromedp.Run(ctx, chromedp.Evaluate(d.scrollExpr(), nil)); err != nil {
		return err
	}
	return harvest.Sleep(ctx, d.Settle)
}

// ScrollTo implements harvest.ScrollDriver
func (d *Driver) ScrollTo(ctx context.Context, y int) error {
	return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(`window.scrollTo(0, %d)`, y), nil))
}

// Height implements harvest.ScrollDriver
func (d *Driver) Height(ctx context.Context) (int, error) {
	g, err := d.geometry(ctx)
	if err != nil {
		return 0, err
	}
	return int(g.ScrollHeight), nil
}

// AtBottom implements harvest.ScrollDriver
func (d *Driver) AtBottom(ctx context.Context) (bool, error) {
	g, err := d.geometry(ctx)
	if err != nil {
		return false, err
	}
	return g.atBottom(d.Tolerance), nil
}

func (d *Driver) geometry(ctx context.Context) (geometry, error) {
	var g geometry
	if err := chromedp.Run(ctx, chromedp.Evaluate(geometryJS, &g)); err != nil {
		return g, fmt.Errorf("failed to read page geometry: %w", err)
	}
	return g, nil
}
