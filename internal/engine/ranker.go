package engine

import (
	"cmp"
	"slices"
	"strings"
)

// RecommendationCount is the size of the shortlist.
const RecommendationCount = 5

// Shortlist score weights.
const (
	recoProfitWeight  = 0.6
	recoTradersWeight = 0.4
)

func tradersOrZero(r Row) int64 {
	if r.Traders == nil {
		return 0
	}
	return *r.Traders
}

// compareByKey orders two rows of the same pin partition. Negative means a first.
func compareByKey(a, b Row, key SortKey) int {
	switch key {
	case SortROI:
		return cmp.Compare(b.ROI, a.ROI)
	case SortLimitProfit:
		return cmp.Compare(b.LimitProfit, a.LimitProfit)
	case SortVolume:
		return cmp.Compare(b.DisplayVolume, a.DisplayVolume)
	case SortTraders:
		return cmp.Compare(tradersOrZero(b), tradersOrZero(a))
	case SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortSpeed:
		return 0
	default:
		return cmp.Compare(b.ProfitAtQty, a.ProfitAtQty)
	}
}

// SortRows orders rows in place: pinned rows first, then by key. The sort is
// stable so equal rows keep their build order.
func SortRows(rows []Row, key SortKey) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if a.Pinned != b.Pinned {
			if a.Pinned {
				return -1
			}
			return 1
		}
		return compareByKey(a, b, key)
	})
}

// Recommendation is one shortlisted row with its score.
type Recommendation struct {
	Row
	Score float64 `json:"score"`
}

// Recommend scores every row on normalized profit-at-quantity and trader
// estimate and returns the best n. Ties keep input order.
func Recommend(rows []Row, n int) []Recommendation {
	if len(rows) == 0 || n <= 0 {
		return nil
	}
	maxPq, maxTr := int64(1), int64(1)
	for _, r := range rows {
		maxPq = max(maxPq, r.ProfitAtQty)
		maxTr = max(maxTr, tradersOrZero(r))
	}
	scored := make([]Recommendation, len(rows))
	for i, r := range rows {
		scored[i] = Recommendation{
			Row: r,
			Score: recoProfitWeight*float64(r.ProfitAtQty)/float64(maxPq) +
				recoTradersWeight*float64(tradersOrZero(r))/float64(maxTr),
		}
	}
	slices.SortStableFunc(scored, func(a, b Recommendation) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}
