package capacity

import "slices"

// RunRate is the historical throughput of one RateKey.
// Weight and time are summed across records before dividing so that short runs
// don't dominate the average. Defined is false when the summed run time is not
// positive; KgPerHour is then 0.
type RunRate struct {
	WeightKg  float64 `json:"weight_kg"`
	RunTimeH  float64 `json:"run_time_h"`
	KgPerHour float64 `json:"kg_per_hour"`
	Defined   bool    `json:"defined"`
}

// RateMap holds one RunRate per RateKey.
type RateMap map[RateKey]RunRate

// AggregateRates reduces production records to one run rate per (line, formulation, width).
func AggregateRates(records []ProductionRecord) RateMap {
	rates := make(RateMap)
	for _, rec := range records {
		key := RateKey{Line: rec.Line, Formulation: rec.Formulation, Width: rec.Width}
		rate := rates[key]
		rate.WeightKg += rec.WeightKg
		rate.RunTimeH += rec.RunTimeH
		rates[key] = rate
	}

	for key, rate := range rates {
		if rate.RunTimeH > 0 {
			rate.KgPerHour = rate.WeightKg / rate.RunTimeH
			rate.Defined = true
		}
		rates[key] = rate
	}
	return rates
}

// Keys returns all keys ordered by line, formulation and width.
func (m RateMap) Keys() []RateKey {
	keys := make([]RateKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareRateKey)
	return keys
}

// Undefined returns the keys whose run time summed to zero, in key order.
func (m RateMap) Undefined() []RateKey {
	var keys []RateKey
	for _, key := range m.Keys() {
		if !m[key].Defined {
			keys = append(keys, key)
		}
	}
	return keys
}

// widthsByMix indexes the widths present for each (line, formulation), sorted.
func (m RateMap) widthsByMix() map[MixKey][]Width {
	index := make(map[MixKey][]Width)
	for _, key := range m.Keys() {
		mk := key.Mix()
		index[mk] = append(index[mk], key.Width)
	}
	return index
}
