package anpr

import (
	"fmt"
	"sort"
)

// DefaultDelimiter separates fragment texts before sanitizing. Sanitizing
// removes spaces as well, so a space delimiter would give the same text.
const DefaultDelimiter = ""

// Options tune a Consolidator. The zero value reproduces the default
// behaviour.
type Options struct {
	// Delimiter joins fragment texts before sanitizing.
	Delimiter string `json:"delimiter"`

	// SortLeftToRight orders surviving fragments by their leftmost X before
	// merging text. Off by default: fragments are merged in recogniser order.
	SortLeftToRight bool `json:"sort_left_to_right"`

	// MinHeightRatio is the fraction of the reference height a fragment
	// must reach to survive denoising. Values <= 0 mean 1.0.
	MinHeightRatio float64 `json:"min_height_ratio"`
}

// Validate rejects options that would corrupt a reading. The delimiter must
// be "" or " ": anything alphanumeric survives sanitizing and would end up
// in the plate text. MinHeightRatio must lie in [0, 1].
func (o Options) Validate() error {
	if o.Delimiter != "" && o.Delimiter != " " {
		return fmt.Errorf("delimiter must be empty or a single space, got %q", o.Delimiter)
	}
	if o.MinHeightRatio < 0 || o.MinHeightRatio > 1 {
		return fmt.Errorf("min_height_ratio must be between 0 and 1, got %v", o.MinHeightRatio)
	}
	return nil
}

// Consolidator turns a region's fragment list into one reading.
type Consolidator struct {
	opts Options
}

// NewConsolidator creates a Consolidator with the given options.
func NewConsolidator(opts Options) *Consolidator {
	if opts.MinHeightRatio <= 0 {
		opts.MinHeightRatio = 1.0
	}
	return &Consolidator{opts: opts}
}

// Options returns the effective options.
func (c *Consolidator) Options() Options {
	return c.opts
}

// Consolidate returns the reading for a region, or false when the
// recogniser produced no fragments.
//
// A single fragment keeps its own polygon and confidence and only has its
// text sanitized. Two or more fragments are denoised and then merged into a
// bounding rectangle, a joined text and a product confidence.
func (c *Consolidator) Consolidate(fragments []Fragment) (Reading, bool) {
	switch len(fragments) {
	case 0:
		return Reading{}, false
	case 1:
		f := fragments[0]
		return Reading{
			Polygon:    f.Polygon.Clone(),
			Text:       Sanitize(f.Text),
			Confidence: f.Confidence,
		}, true
	}

	kept := DenoiseRatio(fragments, c.opts.MinHeightRatio)
	if c.opts.SortLeftToRight {
		sortLeftToRight(kept)
	}
	return Merge(kept, c.opts.Delimiter), true
}

var defaultConsolidator = NewConsolidator(Options{Delimiter: DefaultDelimiter})

// Consolidate runs the default Consolidator.
func Consolidate(fragments []Fragment) (Reading, bool) {
	return defaultConsolidator.Consolidate(fragments)
}

// sortLeftToRight orders fragments in place by leftmost X, keeping the
// recogniser order for equal positions.
func sortLeftToRight(fragments []Fragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		xi, _, _, _ := fragments[i].Polygon.Extent()
		xj, _, _, _ := fragments[j].Polygon.Extent()
		return xi < xj
	})
}
