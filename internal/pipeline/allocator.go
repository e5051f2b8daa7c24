package pipeline

// Budgets are the configured base percentage shares per stage. They must
// sum to 100.
type Budgets struct {
	Preprocessing int
	Generation    int
	Interpolation int
	Upscaling     int
	Saving        int
}

func DefaultBudgets() Budgets {
	return Budgets{
		Preprocessing: 1,
		Generation:    70,
		Interpolation: 14,
		Upscaling:     14,
		Saving:        1,
	}
}

// Range is the closed-open [Start, End) percentage window assigned to one
// stage for one job.
type Range struct {
	Start int
	End   int
}

func (r Range) Width() int { return r.End - r.Start }

// Ranges holds the five stage windows in pipeline order.
type Ranges struct {
	Preprocessing Range
	Generation    Range
	Interpolation Range
	Upscaling     Range
	Saving        Range
}

// Allocate computes the progress window for each stage. Budgets of skipped
// optional stages collapse to zero width and move to generation, so the
// five windows always partition [0,100].
func Allocate(b Budgets, needsInterpolation, needsUpscaling bool) Ranges {
	interpolation := b.Interpolation
	if !needsInterpolation {
		interpolation = 0
	}
	upscaling := b.Upscaling
	if !needsUpscaling {
		upscaling = 0
	}
	generation := b.Generation + (b.Interpolation - interpolation) + (b.Upscaling - upscaling)

	var ranges Ranges
	cursor := 0
	next := func(width int) Range {
		r := Range{Start: cursor, End: cursor + width}
		cursor = r.End
		return r
	}

	ranges.Preprocessing = next(b.Preprocessing)
	ranges.Generation = next(generation)
	ranges.Interpolation = next(interpolation)
	ranges.Upscaling = next(upscaling)
	ranges.Saving = next(b.Saving)

	return ranges
}
