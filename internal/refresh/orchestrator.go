// Package refresh owns the live pipeline state and drives recompute cycles.
package refresh

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"osrs-flipper/internal/config"
	"osrs-flipper/internal/db"
	"osrs-flipper/internal/engine"
	"osrs-flipper/internal/logger"
	"osrs-flipper/internal/wiki"
)

// Feed fetches a complete snapshot of the upstream resources.
type Feed interface {
	FetchSnapshot(ctx context.Context) (*wiki.Snapshot, error)
}

// Store persists user parameters, preference blobs and cycle history.
type Store interface {
	LoadConfig() *config.Config
	SaveConfig(cfg *config.Config) error
	LoadPins() engine.PinSet
	SavePins(pins engine.PinSet) error
	LoadSignals() engine.SignalBook
	SaveSignals(book engine.SignalBook) error
	LoadAdvancedFilter() engine.AdvancedFilterConfig
	SaveAdvancedFilter(cfg engine.AdvancedFilterConfig) error
	InsertCycle(r db.CycleRecord) int64
}

// Notifier is told about every completed cycle along with the classifier
// state that preceded it. It is called on its own goroutine.
type Notifier interface {
	Notify(cycleID string, prev engine.SignalBook, res engine.Result) int
}

// Status summarizes the orchestrator for the status endpoint.
type Status struct {
	SnapshotAt  time.Time `json:"snapshot_at"`
	ItemCount   int       `json:"item_count"`
	LastError   string    `json:"last_error,omitempty"`
	LastCycleID string    `json:"last_cycle_id,omitempty"`
	LastCycleAt time.Time `json:"last_cycle_at"`
	Diagnostic  string    `json:"diagnostic"`
	Pinned      int       `json:"pinned"`
	Search      string    `json:"search,omitempty"`
}

// Orchestrator holds the feed cache and every piece of mutable pipeline
// state. Cycles are serialized by mu; readers see whole results only.
type Orchestrator struct {
	feed     Feed
	store    Store
	notifier Notifier
	now      func() time.Time

	snapshot atomic.Pointer[wiki.Snapshot]
	result   atomic.Pointer[engine.Result]

	mu          sync.Mutex
	cfg         config.Config
	pins        engine.PinSet
	signals     engine.SignalBook
	advanced    engine.AdvancedFilterConfig
	popover     engine.PopoverFilters
	search      string
	lastErr     string
	lastCycleID string
	lastCycleAt time.Time
}

// New builds an Orchestrator and restores persisted state from store.
// notifier may be nil.
func New(feed Feed, store Store, notifier Notifier) *Orchestrator {
	o := &Orchestrator{
		feed:     feed,
		store:    store,
		notifier: notifier,
		now:      time.Now,
		cfg:      *store.LoadConfig(),
		pins:     store.LoadPins(),
		signals:  store.LoadSignals(),
		advanced: store.LoadAdvancedFilter(),
	}
	o.result.Store(&engine.Result{})
	return o
}

// Refresh fetches a new snapshot and recomputes. A failed fetch keeps the
// previous snapshot and rows and records the failure as the diagnostic.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	snap, err := o.feed.FetchSnapshot(ctx)
	if err != nil {
		o.mu.Lock()
		o.lastErr = err.Error()
		o.setDiagnostic("Refresh failed: " + err.Error())
		o.mu.Unlock()
		logger.Warn("REFRESH", err.Error())
		return err
	}
	o.snapshot.Store(snap)
	o.mu.Lock()
	o.lastErr = ""
	o.mu.Unlock()
	o.recompute()
	return nil
}

// ParametersChanged runs one cycle over the current snapshot and parameters
// and publishes the result. Every parameter setter leaves recomputation to
// this call. A panic inside the pipeline is reported as the diagnostic and
// the last good rows are kept.
func (o *Orchestrator) ParametersChanged() engine.Result {
	return o.recompute()
}

func (o *Orchestrator) recompute() engine.Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.recomputeLocked()
}

func (o *Orchestrator) recomputeLocked() engine.Result {
	snap := o.snapshot.Load()
	params := o.paramsLocked()
	prev := o.signals
	pins := o.pins

	start := o.now()
	res, err := safeRun(snap, params, pins, prev)
	if err != nil {
		o.lastErr = err.Error()
		o.setDiagnostic("Render fail: " + err.Error())
		logger.Error("REFRESH", err.Error())
		return *o.result.Load()
	}

	o.signals = res.Signals
	o.result.Store(&res)
	if err := o.store.SaveSignals(res.Signals); err != nil {
		log.Printf("[REFRESH] save signals: %v", err)
	}

	if snap == nil {
		return res
	}

	cycleID := uuid.NewString()
	o.lastCycleID = cycleID
	o.lastCycleAt = start
	var top int64
	for _, r := range res.Rows {
		top = max(top, r.ProfitAtQty)
	}
	o.store.InsertCycle(db.CycleRecord{
		CycleID:    cycleID,
		Timestamp:  start.UTC().Format(time.RFC3339),
		Mode:       string(res.Mode),
		Considered: res.Considered,
		Built:      res.Built,
		Count:      len(res.Rows),
		TopProfit:  top,
		DurationMs: o.now().Sub(start).Milliseconds(),
		Fallback:   res.FallbackApplied,
		Diagnostic: res.Diagnostic,
	})
	if o.notifier != nil {
		go o.notifier.Notify(cycleID, prev, res)
	}
	return res
}

// safeRun converts a pipeline panic into an error.
func safeRun(snap *wiki.Snapshot, p engine.Params, pins engine.PinSet, prev engine.SignalBook) (res engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return engine.Run(snap, p, pins, prev), nil
}

// setDiagnostic republishes the current result with a new diagnostic.
// Caller holds mu.
func (o *Orchestrator) setDiagnostic(msg string) {
	cur := *o.result.Load()
	cur.Diagnostic = msg
	o.result.Store(&cur)
}

func (o *Orchestrator) paramsLocked() engine.Params {
	c := o.cfg
	return engine.Params{
		Cash:            c.Cash,
		AllocPercent:    c.AllocPercent,
		ItemCap:         c.ItemCap,
		MinHourlyVolume: c.MinHourlyVolume,
		MinROI:          c.MinROI,
		FreshMinutes:    c.FreshMinutes,
		PriceMode:       engine.PriceMode(c.PriceMode),
		Mode:            engine.Mode(c.Mode),
		SortKey:         engine.SortKey(c.SortKey),
		VolumeWindow:    engine.VolumeWindow(c.VolumeWindow),
		Scope:           engine.Scope(c.Scope),
		SignalFilter:    c.SignalFilter,
		Search:          o.search,
		Popover:         o.popover,
		Advanced:        o.advanced,
		Now:             o.now(),
	}
}

// UpdateConfig applies patch to the user parameters, clamps and persists them.
func (o *Orchestrator) UpdateConfig(patch func(*config.Config)) (config.Config, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next := o.cfg
	patch(&next)
	next.Clamp()
	if err := o.store.SaveConfig(&next); err != nil {
		return o.cfg, fmt.Errorf("save config: %w", err)
	}
	o.cfg = next
	return next, nil
}

// Config returns a copy of the user parameters.
func (o *Orchestrator) Config() config.Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// SetPinned pins or unpins id and persists the pin set.
func (o *Orchestrator) SetPinned(id int, pinned bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setPinnedLocked(id, pinned)
}

// TogglePin flips the pin state of id and reports the new state.
func (o *Orchestrator) TogglePin(id int) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	pinned := !o.pins.Has(id)
	if err := o.setPinnedLocked(id, pinned); err != nil {
		return !pinned, err
	}
	return pinned, nil
}

func (o *Orchestrator) setPinnedLocked(id int, pinned bool) error {
	if o.pins.Has(id) == pinned {
		return nil
	}
	next := make(engine.PinSet, len(o.pins)+1)
	for k := range o.pins {
		next[k] = struct{}{}
	}
	if pinned {
		next[id] = struct{}{}
	} else {
		delete(next, id)
	}
	if err := o.store.SavePins(next); err != nil {
		return fmt.Errorf("save pins: %w", err)
	}
	o.pins = next
	return nil
}

// Pins returns the pinned ids in ascending order.
func (o *Orchestrator) Pins() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pins.IDs()
}

// SetAdvancedFilter merges cfg over the default rule set, then stores and
// persists the result. Criteria missing from cfg keep their default rule.
func (o *Orchestrator) SetAdvancedFilter(cfg engine.AdvancedFilterConfig) error {
	merged := engine.DefaultAdvancedFilter()
	if cfg.Match == engine.MatchAny {
		merged.Match = engine.MatchAny
	}
	for k, v := range cfg.Rules {
		merged.Rules[k] = v
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.store.SaveAdvancedFilter(merged); err != nil {
		return fmt.Errorf("save advanced filter: %w", err)
	}
	o.advanced = merged
	return nil
}

// AdvancedFilter returns the active advanced rule set.
func (o *Orchestrator) AdvancedFilter() engine.AdvancedFilterConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.advanced
}

// SetPopoverFilters replaces the session popover filters.
func (o *Orchestrator) SetPopoverFilters(f engine.PopoverFilters) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.popover = f
}

// SetSearch replaces the search term.
func (o *Orchestrator) SetSearch(term string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.search = term
}

// Result returns the last published result.
func (o *Orchestrator) Result() engine.Result {
	return *o.result.Load()
}

// Snapshot returns the current feed cache, or nil before the first fetch.
func (o *Orchestrator) Snapshot() *wiki.Snapshot {
	return o.snapshot.Load()
}

// Status reports snapshot age, last error and the latest cycle.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{
		LastError:   o.lastErr,
		LastCycleID: o.lastCycleID,
		LastCycleAt: o.lastCycleAt,
		Diagnostic:  o.result.Load().Diagnostic,
		Pinned:      len(o.pins),
		Search:      o.search,
	}
	if snap := o.snapshot.Load(); snap != nil {
		st.SnapshotAt = snap.FetchedAt
		st.ItemCount = len(snap.Items)
	}
	return st
}
