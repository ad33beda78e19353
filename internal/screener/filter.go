// Package screener holds the pure screening pipeline: criteria
// evaluation over a result set and the derived-field sort engine.
package screener

import (
	"github.com/mmamdouhshahin/EGYstock/internal/models"
)

// Evaluate returns the records that satisfy every enabled predicate in
// criteria, preserving input order. Disabled windows are vacuously true.
// It never fails: records with unusable numeric fields simply fail the
// predicate that inspects them.
func Evaluate(records []models.StockRecord, criteria models.ScreeningCriteria, membership map[string]struct{}) []models.StockRecord {
	filtered := make([]models.StockRecord, 0, len(records))
	for _, record := range records {
		if !passes(record, criteria, membership) {
			continue
		}
		filtered = append(filtered, record)
	}
	return filtered
}

func passes(record models.StockRecord, criteria models.ScreeningCriteria, membership map[string]struct{}) bool {
	if criteria.Window6M.Enabled {
		if record.Change6M < criteria.Window6M.Min || record.Change6M > criteria.Window6M.Max {
			return false
		}
	}

	if criteria.Window1M.Enabled && !passes1M(record.Change1M, criteria) {
		return false
	}

	if criteria.Window1W.Enabled {
		if record.Change1W < criteria.Window1W.Min || record.Change1W > criteria.Window1W.Max {
			return false
		}
	}

	if criteria.UndervaluedOnly {
		if record.FairValue <= 0 || record.FairValue <= record.CurrentPrice {
			return false
		}
	}

	if criteria.WatchlistOnly {
		if _, ok := membership[record.Symbol]; !ok {
			return false
		}
	}

	return true
}

// passes1M implements the asymmetric 1-month window. Relative mode is a
// one-sided floor and ignores Max. Absolute mode is an OR over both
// bounds: a strong gain above Min or a strong loss below Max counts, so
// the window catches large moves in either direction rather than a range.
func passes1M(change float64, criteria models.ScreeningCriteria) bool {
	if criteria.UseAbsolute1M {
		return change >= criteria.Window1M.Min || change <= criteria.Window1M.Max
	}
	return change >= criteria.Window1M.Min
}
