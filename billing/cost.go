/*
cost.go - Per-entry cost calculation

PURPOSE:
  Combines a shift split, the technician-count multiplier, the data
  center's commute time and a rate record into one entry's billable
  hours and cost.

RULES:
  multiplier   = 1 + additionalFTCount (count defaults to 0, so >= 1)
  standardCost = standardHours * standardRate * multiplier
  offStdCost   = offStandardHours * offStandardRate * multiplier
  commuteCost  = (commuteMinutes / 60) * commuteRate * multiplier
  totalHours   = (standardHours + offStandardHours) * multiplier

  Commute time never counts toward totalHours; it contributes to cost
  only. A missing rate zero-fills all three costs but keeps the hours,
  unless the policy is MissingRateFail.

SEE ALSO:
  - shift.go: produces the ShiftSplit input
  - aggregate.go: sums EntryCost values per data center / client
*/
package billing

import "github.com/shopspring/decimal"

// Multiplier returns the duration/cost scaling factor for an entry.
// A negative count is treated as zero; Validate rejects it upstream.
func Multiplier(additionalFTCount int) int {
	if additionalFTCount < 0 {
		additionalFTCount = 0
	}
	return 1 + additionalFTCount
}

// CalculateCost prices one entry. rate may be nil when no pricing exists
// for the entry's (client, country) pair; see MissingRatePolicy.
func CalculateCost(split ShiftSplit, rate *Rate, commuteMinutes, additionalFTCount int) EntryCost {
	mult := decimal.NewFromInt(int64(Multiplier(additionalFTCount)))

	cost := EntryCost{
		TotalHours: split.Total() * float64(Multiplier(additionalFTCount)),
	}

	if rate != nil {
		commuteHours := decimal.NewFromInt(int64(commuteMinutes)).Div(decimal.NewFromInt(60))
		cost.StandardCost = decimal.NewFromFloat(split.StandardHours).Mul(rate.StandardHourlyRate).Mul(mult)
		cost.OffStandardCost = decimal.NewFromFloat(split.OffStandardHours).Mul(rate.OffStandardHourlyRate).Mul(mult)
		cost.CommuteCost = commuteHours.Mul(rate.CommuteHourlyRate).Mul(mult)
	}

	cost.TotalCost = cost.StandardCost.Add(cost.OffStandardCost).Add(cost.CommuteCost)
	return cost
}

// CostEntry splits and prices a full service entry against a rate table.
// It returns a RateNotFoundError only under MissingRateFail; otherwise a
// missing rate yields zero cost with hours intact.
func CostEntry(e ServiceEntry, rates RateTable, policy MissingRatePolicy) (EntryCost, error) {
	split, err := SplitShift(e.EntryTime, e.EndTime)
	if err != nil {
		return EntryCost{}, err
	}

	var rate *Rate
	if r, ok := rates.Lookup(e.ClientID, e.CountryID); ok {
		rate = &r
	} else if policy == MissingRateFail {
		return EntryCost{}, &RateNotFoundError{Key: RateKey{ClientID: e.ClientID, CountryID: e.CountryID}}
	}

	return CalculateCost(split, rate, e.CommuteTimeInMinutes, e.AdditionalFTCount), nil
}
