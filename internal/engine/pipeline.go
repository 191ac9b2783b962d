package engine

import (
	"fmt"

	"osrs-flipper/internal/wiki"
)

// FallbackNote is appended to the diagnostic when quick-flip mode produced
// nothing and the cycle was rebuilt unrestricted.
const FallbackNote = "No quick flips met criteria → showing All mode (temporary)"

// Result is the output of one recompute cycle.
type Result struct {
	Rows            []Row            `json:"rows"`
	Recommendations []Recommendation `json:"recommendations"`
	Considered      int              `json:"considered"`
	Built           int              `json:"built"`
	Mode            Mode             `json:"mode"`
	FallbackApplied bool             `json:"fallback"`
	Diagnostic      string           `json:"diagnostic"`

	// Signals is the classifier state after this cycle.
	Signals SignalBook `json:"-"`
}

// Run executes one full cycle: build, search, filter, rank and shortlist.
// It is a pure function of its inputs; prior is not modified and the
// updated classifier state is returned in Result.Signals.
func Run(snap *wiki.Snapshot, p Params, pins PinSet, prior SignalBook) Result {
	book := prior.Clone()
	built, considered := BuildRows(snap, p, pins, book)
	res := Result{
		Considered: considered,
		Built:      len(built),
		Mode:       p.Mode,
	}
	res.Diagnostic = fmt.Sprintf("Loaded %d ids · Passing filters: %d", considered, len(built))

	if len(built) == 0 && p.Mode == ModeQuickFlip {
		alt := p
		alt.Mode = ModeAll
		book = prior.Clone()
		built, considered = BuildRows(snap, alt, pins, book)
		res.Considered = considered
		res.Built = len(built)
		res.Mode = ModeAll
		res.FallbackApplied = true
		res.Diagnostic = fmt.Sprintf("Loaded %d ids · Passing filters: %d · %s", considered, len(built), FallbackNote)
	}

	rows := FilterBySearch(built, p.Search)
	rows = ApplyPopoverFilters(rows, p.Popover)
	rows = ApplyAdvancedFilters(rows, p.Advanced)
	rows = ApplyQuickControls(rows, p)
	SortRows(rows, p.SortKey)

	res.Rows = rows
	res.Recommendations = Recommend(rows, RecommendationCount)
	res.Signals = book
	return res
}
