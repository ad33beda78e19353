package screener

import (
	"math"
	"sort"
	"strings"

	"github.com/mmamdouhshahin/EGYstock/internal/models"
)

// Sortable column keys. KeyUpside is synthetic: the fractional gap
// between fair value and current price.
const (
	KeySymbol       = "symbol"
	KeyName         = "name"
	KeySector       = "sector"
	KeyCurrentPrice = "currentPrice"
	KeyChange6M     = "change6m"
	KeyChange1M     = "change1m"
	KeyChange1W     = "change1w"
	KeyPERatio      = "peRatio"
	KeyFairValue    = "fairValue"
	KeyUpside       = "upside"
)

// Next advances the sort toggle machine for a "sort by key" request.
// A fresh key always starts descending; repeating the key while
// descending flips to ascending; repeating while ascending starts the
// cycle over at descending.
func Next(current *models.SortState, key string) models.SortState {
	if current != nil && current.Key == key && current.Direction == models.SortDesc {
		return models.SortState{Key: key, Direction: models.SortAsc}
	}
	return models.SortState{Key: key, Direction: models.SortDesc}
}

// Apply orders records by the given state, returning a new slice. A nil
// state returns the records unchanged in provider order. The sort is
// stable, so equal values keep their input order.
func Apply(records []models.StockRecord, state *models.SortState) []models.StockRecord {
	sorted := make([]models.StockRecord, len(records))
	copy(sorted, records)
	if state == nil {
		return sorted
	}

	desc := state.Direction == models.SortDesc

	switch state.Key {
	case KeySymbol, KeyName, KeySector:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := stringValue(sorted[i], state.Key), stringValue(sorted[j], state.Key)
			if desc {
				return strings.Compare(a, b) > 0
			}
			return strings.Compare(a, b) < 0
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := numericValue(sorted[i], state.Key), numericValue(sorted[j], state.Key)
			if desc {
				return a > b
			}
			return a < b
		})
	}

	return sorted
}

// Upside is the fractional gap between fair value and current price.
// Records without a usable fair value report ok=false.
func Upside(record models.StockRecord) (float64, bool) {
	if record.FairValue <= 0 || record.CurrentPrice <= 0 {
		return 0, false
	}
	return (record.FairValue - record.CurrentPrice) / record.CurrentPrice, true
}

// numericValue extracts the sort value for a numeric key. Missing
// optional fields count as 0, except upside: records without a fair
// value sort with -Inf so they land at the low end in either direction.
func numericValue(record models.StockRecord, key string) float64 {
	switch key {
	case KeyCurrentPrice:
		return record.CurrentPrice
	case KeyChange6M:
		return record.Change6M
	case KeyChange1M:
		return record.Change1M
	case KeyChange1W:
		return record.Change1W
	case KeyPERatio:
		return record.PERatio
	case KeyFairValue:
		return record.FairValue
	case KeyUpside:
		upside, ok := Upside(record)
		if !ok {
			return math.Inf(-1)
		}
		return upside
	default:
		return 0
	}
}

func stringValue(record models.StockRecord, key string) string {
	switch key {
	case KeySymbol:
		return record.Symbol
	case KeyName:
		return record.Name
	case KeySector:
		return record.Sector
	default:
		return ""
	}
}
