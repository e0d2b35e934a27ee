package anpr

// Denoise drops fragments whose height is below the height of the widest
// fragment. It is equivalent to DenoiseRatio(fragments, 1.0).
func Denoise(fragments []Fragment) []Fragment {
	return DenoiseRatio(fragments, 1.0)
}

// DenoiseRatio keeps the fragments whose polygon height is at least ratio
// times the height of the reference fragment, the widest one (the earliest
// on ties). The result is an order-preserving subsequence of the input and
// always contains the reference fragment when the input is non-empty.
//
// A ratio of 1.0 compares absolute heights. Lower ratios tolerate fragments
// that are somewhat shorter than the main text line.
func DenoiseRatio(fragments []Fragment, ratio float64) []Fragment {
	if len(fragments) == 0 {
		return nil
	}

	ref := widestFragment(fragments)
	threshold := ratio * float64(fragments[ref].Polygon.Height())

	kept := make([]Fragment, 0, len(fragments))
	for i, f := range fragments {
		if i == ref || float64(f.Polygon.Height()) >= threshold {
			kept = append(kept, f)
		}
	}
	return kept
}

// widestFragment returns the index of the fragment with the largest
// horizontal extent. Strict comparison keeps the first of equal widths.
func widestFragment(fragments []Fragment) int {
	best, bestWidth := 0, fragments[0].Polygon.Width()
	for i := 1; i < len(fragments); i++ {
		if w := fragments[i].Polygon.Width(); w > bestWidth {
			best, bestWidth = i, w
		}
	}
	return best
}
