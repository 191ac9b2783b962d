package engine

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"osrs-flipper/internal/wiki"
)

var testNow = time.Unix(1_700_000_000, 0)

// testSnapshot has two buildable items (Shark, Raw shark), one below the
// volume threshold, one with a zero price and one id missing from the catalog.
func testSnapshot() *wiki.Snapshot {
	ts := testNow.Unix() - 60
	return &wiki.Snapshot{
		Items: map[int]wiki.Item{
			1: {ID: 1, Name: "Shark", Limit: i64p(500)},
			2: {ID: 2, Name: "Raw shark"},
			3: {ID: 3, Name: "Lobster", Limit: i64p(6000)},
			4: {ID: 4, Name: "Rune bar", Limit: i64p(8000)},
		},
		Latest: map[int]wiki.InstantPrice{
			1: {Low: 1000, High: 1100, LowTime: ts, HighTime: ts},
			2: {Low: 500, High: 505, LowTime: ts, HighTime: ts},
			3: {Low: 200, High: 230, LowTime: ts, HighTime: ts},
			4: {Low: 0, High: 100, LowTime: ts, HighTime: ts},
			5: {Low: 10, High: 20, LowTime: ts, HighTime: ts},
		},
		Hourly: map[int]wiki.IntervalStat{
			1: {HighPriceVolume: i64p(2000)},
			2: {HighPriceVolume: i64p(1500)},
			3: {HighPriceVolume: i64p(500)},
			4: {HighPriceVolume: i64p(9000)},
		},
		FiveMin: map[int]wiki.IntervalStat{
			1: {HighPriceVolume: i64p(200)},
			2: {HighPriceVolume: i64p(150)},
		},
		FetchedAt: testNow,
	}
}

func testParams() Params {
	return Params{
		Cash:            10_000_000,
		AllocPercent:    20,
		ItemCap:         6,
		MinHourlyVolume: 1000,
		MinROI:          3,
		FreshMinutes:    8,
		PriceMode:       PriceStable,
		Mode:            ModeAll,
		SortKey:         SortProfit,
		VolumeWindow:    Window1h,
		Scope:           ScopeAll,
		SignalFilter:    "any",
		Advanced:        DefaultAdvancedFilter(),
		Now:             testNow,
	}
}

func TestBuildRows(t *testing.T) {
	rows, considered := BuildRows(testSnapshot(), testParams(), NewPinSet(), SignalBook{})
	if considered != 4 {
		t.Errorf("considered = %d, want 4", considered)
	}
	if len(rows) != 2 {
		t.Fatalf("built %d rows, want 2", len(rows))
	}

	shark := rows[0]
	if shark.ID != 1 {
		t.Fatalf("first row id = %d, want 1", shark.ID)
	}
	checks := []struct {
		name      string
		got, want int64
	}{
		{"buy", shark.Buy, 1001},
		{"sell", shark.Sell, 1099},
		{"qty", shark.Qty, 500},
		{"profit each", shark.ProfitEach, 76},
		{"profit at qty", shark.ProfitAtQty, 38000},
		{"limit profit", shark.LimitProfit, 39000},
		{"display volume", shark.DisplayVolume, 2000},
		{"fresh", shark.FreshnessSeconds, 60},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if shark.Traders == nil || *shark.Traders != 16 {
		t.Errorf("traders = %v, want 16", shark.Traders)
	}
	if shark.Signal != SignalBuy {
		t.Errorf("signal = %s, want BUY", shark.Signal)
	}
	if shark.Rationale != "stable · fresh · spread ok · high vol · roi ok" {
		t.Errorf("rationale = %q", shark.Rationale)
	}

	raw := rows[1]
	if raw.Signal != SignalDodge {
		t.Errorf("raw shark signal = %s, want DODGE", raw.Signal)
	}
	if raw.Traders != nil {
		t.Errorf("raw shark traders = %d, want nil", *raw.Traders)
	}
	if raw.LimitProfit != 0 {
		t.Errorf("raw shark limit profit = %d, want 0", raw.LimitProfit)
	}
	if raw.ProfitAtQty != 0 {
		t.Errorf("raw shark pq = %d, want 0 for a losing flip", raw.ProfitAtQty)
	}
}

func TestRationaleROIBar(t *testing.T) {
	plan := PricingPlan{ROIPct: 1.5, MarginPct: 5}
	conf := Confidence{FreshnessSeconds: 30}
	act := ActivityMetrics{HourlyVolume: 5000}
	tests := []struct {
		minROI float64
		want   string
	}{
		{0, "roi low"},
		{1, "roi ok"},
		{2, "roi low"},
		{-1, "roi ok"},
	}
	for _, tt := range tests {
		p := testParams()
		p.MinROI = tt.minROI
		got := rationale(plan, conf, act, p)
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("MinROI %v: rationale = %q, want suffix %q", tt.minROI, got, tt.want)
		}
	}
}

func TestBuildRowsZeroCash(t *testing.T) {
	p := testParams()
	p.Cash = 0
	rows, _ := BuildRows(testSnapshot(), p, NewPinSet(), SignalBook{})
	for _, r := range rows {
		if r.Qty != 0 || r.ProfitAtQty != 0 {
			t.Errorf("%s: qty=%d pq=%d, want 0", r.Name, r.Qty, r.ProfitAtQty)
		}
	}
}

func TestBuildRowsModeGates(t *testing.T) {
	tests := []struct {
		mode Mode
		want []int
	}{
		{ModeAll, []int{1, 2}},
		{ModeHighValue, nil},
		{ModeHighMargin, []int{2}},
		{ModeQuickFlip, []int{1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			p := testParams()
			p.Mode = tt.mode
			rows, _ := BuildRows(testSnapshot(), p, NewPinSet(), SignalBook{})
			if got := idsOf(rows); !reflect.DeepEqual(got, append([]int{}, tt.want...)) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildRowsPinnedScope(t *testing.T) {
	p := testParams()
	p.Scope = ScopePinned
	rows, considered := BuildRows(testSnapshot(), p, NewPinSet(2, 99), SignalBook{})
	if considered != 2 {
		t.Errorf("considered = %d, want 2", considered)
	}
	if len(rows) != 1 || rows[0].ID != 2 || !rows[0].Pinned {
		t.Errorf("rows = %+v, want pinned Raw shark only", rows)
	}
}

func TestBuildRowsThinMarginNeverBuy(t *testing.T) {
	p := testParams()
	p.MinROI = -100
	rows, _ := BuildRows(testSnapshot(), p, NewPinSet(), SignalBook{})
	for _, r := range rows {
		if r.MarginPct < 2 && r.Signal == SignalBuy {
			t.Errorf("%s: margin %.2f%% reported BUY", r.Name, r.MarginPct)
		}
		if r.Confidence < 0 || r.Confidence > 1 {
			t.Errorf("%s: confidence %v out of range", r.Name, r.Confidence)
		}
	}
}

func TestRunAppliesFiltersAndRanks(t *testing.T) {
	res := Run(testSnapshot(), testParams(), NewPinSet(), SignalBook{})
	if res.Diagnostic != "Loaded 4 ids · Passing filters: 2" {
		t.Errorf("diagnostic = %q", res.Diagnostic)
	}
	if res.Built != 2 || res.Considered != 4 {
		t.Errorf("built/considered = %d/%d, want 2/4", res.Built, res.Considered)
	}
	if got := idsOf(res.Rows); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("rows = %v, want [1] after min ROI", got)
	}
	if len(res.Recommendations) != 1 || res.Recommendations[0].ID != 1 {
		t.Errorf("recommendations = %+v", res.Recommendations)
	}
	if res.Signals[1].Signal != SignalBuy || res.Signals[2].Signal != SignalDodge {
		t.Errorf("signals = %+v", res.Signals)
	}
}

func TestRunSearch(t *testing.T) {
	p := testParams()
	p.MinROI = -100
	p.Search = "SHARK"
	res := Run(testSnapshot(), p, NewPinSet(), SignalBook{})
	for _, r := range res.Rows {
		if !strings.Contains(strings.ToLower(r.Name), "shark") {
			t.Errorf("row %q does not match search", r.Name)
		}
	}
	if len(res.Rows) != 2 {
		t.Errorf("got %d rows, want 2", len(res.Rows))
	}

	p.Search = "lobster"
	if res := Run(testSnapshot(), p, NewPinSet(), SignalBook{}); len(res.Rows) != 0 {
		t.Errorf("lobster is excluded upstream, got %d rows", len(res.Rows))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	snap := testSnapshot()
	p := testParams()
	first := Run(snap, p, NewPinSet(), SignalBook{})
	second := Run(snap, p, NewPinSet(), first.Signals)
	if !reflect.DeepEqual(first.Rows, second.Rows) {
		t.Errorf("rows differ between cycles:\n%+v\n%+v", first.Rows, second.Rows)
	}
	if !reflect.DeepEqual(first.Signals, second.Signals) {
		t.Errorf("signals differ between cycles")
	}
}

func TestRunDoesNotMutatePrior(t *testing.T) {
	prior := SignalBook{1: {Signal: SignalDodge}, 42: {Signal: SignalHold}}
	res := Run(testSnapshot(), testParams(), NewPinSet(), prior)
	if prior[1].Signal != SignalDodge {
		t.Errorf("prior mutated: %+v", prior[1])
	}
	if res.Signals[42].Signal != SignalHold {
		t.Errorf("untouched entries must carry over, got %+v", res.Signals[42])
	}
}

func TestRunPinnedHysteresisAcrossCycles(t *testing.T) {
	snap := testSnapshot()
	p := testParams()
	pins := NewPinSet(1)
	book := SignalBook{}

	res := Run(snap, p, pins, book)
	if res.Signals[1].Signal != SignalBuy {
		t.Fatalf("cycle 1 signal = %s, want BUY", res.Signals[1].Signal)
	}

	// Narrow the spread so ROI turns negative.
	worse := testSnapshot()
	worse.Latest[1] = wiki.InstantPrice{Low: 1000, High: 1010, LowTime: testNow.Unix() - 60, HighTime: testNow.Unix() - 60}
	p.MinROI = -100

	res = Run(worse, p, pins, res.Signals)
	if len(res.Rows) == 0 || res.Rows[0].Signal != SignalBuy {
		t.Fatalf("cycle 2 should hold BUY, got %+v", res.Rows)
	}
	if res.Rows[0].Proposed != SignalDodge {
		t.Errorf("cycle 2 proposal = %s, want DODGE", res.Rows[0].Proposed)
	}
	res = Run(worse, p, pins, res.Signals)
	if res.Rows[0].Signal != SignalDodge {
		t.Errorf("cycle 3 signal = %s, want DODGE", res.Rows[0].Signal)
	}
}

func TestRunQuickFlipFallback(t *testing.T) {
	snap := testSnapshot()
	snap.FiveMin = nil
	p := testParams()
	p.Mode = ModeQuickFlip

	res := Run(snap, p, NewPinSet(), SignalBook{})
	if !res.FallbackApplied {
		t.Fatal("expected fallback")
	}
	if res.Mode != ModeAll {
		t.Errorf("mode = %s, want all", res.Mode)
	}
	if !strings.HasSuffix(res.Diagnostic, " · "+FallbackNote) {
		t.Errorf("diagnostic = %q", res.Diagnostic)
	}
	if len(res.Rows) != 1 || res.Rows[0].ID != 1 {
		t.Errorf("rows = %v, want [1]", idsOf(res.Rows))
	}
}

func TestRunNoFallbackWhenFiltersEmptyTheSet(t *testing.T) {
	p := testParams()
	p.Mode = ModeQuickFlip
	p.Search = "dragon"
	res := Run(testSnapshot(), p, NewPinSet(), SignalBook{})
	if res.FallbackApplied {
		t.Error("fallback must only trigger on an empty build")
	}
	if len(res.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(res.Rows))
	}
}

func TestRunNilSnapshot(t *testing.T) {
	res := Run(nil, testParams(), NewPinSet(), nil)
	if len(res.Rows) != 0 || res.Considered != 0 {
		t.Errorf("got %+v", res)
	}
}
