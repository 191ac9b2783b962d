package notify

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"osrs-flipper/internal/db"
	"osrs-flipper/internal/engine"
)

// DefaultCooldown is the minimum time between two alerts for the same item.
const DefaultCooldown = time.Hour

// History records and reads past alert deliveries.
type History interface {
	SaveAlert(a db.AlertRecord) error
	LastAlertTime(itemID int) (time.Time, error)
}

// Alerter notifies when a pinned row enters BUY. A row that was already BUY
// in the previous cycle does not alert again.
type Alerter struct {
	mu       sync.Mutex // serializes Notify so cooldown checks see earlier sends
	sender   Sender
	history  History
	cooldown time.Duration
	now      func() time.Time
}

// NewAlerter returns an Alerter. A nil history disables cooldown tracking.
func NewAlerter(sender Sender, history History, cooldown time.Duration) *Alerter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Alerter{sender: sender, history: history, cooldown: cooldown, now: time.Now}
}

// Transitions returns the pinned rows reporting BUY whose previous signal
// was something else.
func Transitions(prev engine.SignalBook, rows []engine.Row) []engine.Row {
	var out []engine.Row
	for _, r := range rows {
		if !r.Pinned || r.Signal != engine.SignalBuy {
			continue
		}
		if p, ok := prev[r.ID]; ok && p.Signal == engine.SignalBuy {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Notify sends one message per new BUY transition and returns how many were
// delivered. Delivery errors are logged and recorded, never returned.
func (a *Alerter) Notify(cycleID string, prev engine.SignalBook, res engine.Result) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	sent := 0
	for _, r := range Transitions(prev, res.Rows) {
		if a.coolingDown(r.ID) {
			log.Printf("[ALERT] Cooldown active for %s", r.Name)
			continue
		}
		msg := FormatBuyAlert(r)
		rec := db.AlertRecord{
			ItemID:   r.ID,
			ItemName: r.Name,
			Signal:   string(r.Signal),
			ROI:      r.ROI,
			Message:  msg,
			Channel:  a.sender.Channel(),
			CycleID:  cycleID,
			SentAt:   a.now().UTC().Format(time.RFC3339),
		}
		if err := a.sender.Send(msg); err != nil {
			log.Printf("[ALERT] Failed sending alert for %s: %v", r.Name, err)
			rec.Error = err.Error()
		} else {
			sent++
		}
		if a.history != nil {
			if err := a.history.SaveAlert(rec); err != nil {
				log.Printf("[ALERT] Failed recording alert for %s: %v", r.Name, err)
			}
		}
	}
	return sent
}

func (a *Alerter) coolingDown(itemID int) bool {
	if a.history == nil {
		return false
	}
	last, err := a.history.LastAlertTime(itemID)
	if err != nil {
		log.Printf("[ALERT] Error checking last alert time for %d: %v", itemID, err)
		return false
	}
	return !last.IsZero() && a.now().Sub(last) < a.cooldown
}

// FormatBuyAlert renders a MarkdownV2 message for a row entering BUY.
func FormatBuyAlert(r engine.Row) string {
	return fmt.Sprintf("🟢 *BUY* %s\nBuy %s · Sell %s · ROI %s\nQty %s · Profit@Qty %s gp",
		escapeMarkdownV2(r.Name),
		escapeMarkdownV2(humanize.Comma(r.Buy)),
		escapeMarkdownV2(humanize.Comma(r.Sell)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", r.ROI)),
		escapeMarkdownV2(humanize.Comma(r.Qty)),
		escapeMarkdownV2(humanize.Comma(r.ProfitAtQty)),
	)
}
