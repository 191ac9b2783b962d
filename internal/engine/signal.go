package engine

// PinHysteresis is the number of consecutive opposing proposals a pinned BUY
// needs before it is allowed to drop to HOLD or DODGE.
const PinHysteresis = 2

// Signal thresholds.
const (
	minSignalROI    = 2.0
	minSignalMargin = 2.0
	buyConfidence   = 0.7
	holdConfidence  = 0.5
)

// ProposeSignal classifies one cycle's metrics without any history.
func ProposeSignal(roi, confidence, marginPct, userMinROI float64) Signal {
	minR := userMinROI
	if minR < minSignalROI {
		minR = minSignalROI
	}
	if roi < minR || marginPct < minSignalMargin {
		return SignalDodge
	}
	if confidence >= buyConfidence && roi >= minR {
		return SignalBuy
	}
	if confidence >= holdConfidence {
		return SignalHold
	}
	return SignalDodge
}

// SignalState is the persisted per-item classifier state.
type SignalState struct {
	Signal   Signal `json:"sig"`
	Confirms int    `json:"confirms"`
}

// SignalBook maps item id to its last reported signal. It is owned by the
// caller and threaded through each cycle; the pipeline never keeps one.
type SignalBook map[int]SignalState

// Clone returns an independent copy.
func (b SignalBook) Clone() SignalBook {
	out := make(SignalBook, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Stabilize records the proposal for id and returns the signal to report.
//
// Unpinned items and items without history take the proposal immediately.
// For pinned items a BUY is kept until PinHysteresis consecutive HOLD/DODGE
// proposals arrive; every other transition applies at once.
func (b SignalBook) Stabilize(id int, proposal Signal, pinned bool) Signal {
	prev, ok := b[id]
	if !pinned || !ok || prev.Signal == "" {
		b[id] = SignalState{Signal: proposal}
		return proposal
	}
	if proposal == prev.Signal {
		b[id] = SignalState{Signal: prev.Signal}
		return prev.Signal
	}
	next := prev.Confirms + 1
	if prev.Signal == SignalBuy && (proposal == SignalHold || proposal == SignalDodge) && next < PinHysteresis {
		b[id] = SignalState{Signal: prev.Signal, Confirms: next}
		return prev.Signal
	}
	b[id] = SignalState{Signal: proposal}
	return proposal
}
