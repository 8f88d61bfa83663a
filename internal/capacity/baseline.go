package capacity

// BaselineMix is the historical width distribution per (line, formulation):
// the weight produced at each width divided by the group's total weight.
// A group whose total weight is zero maps to an empty distribution.
type BaselineMix map[MixKey]map[Width]float64

// ResolveBaselineMix derives the baseline width mix from production records.
func ResolveBaselineMix(records []ProductionRecord) BaselineMix {
	weights := make(map[MixKey]map[Width]float64)
	totals := make(map[MixKey]float64)
	for _, rec := range records {
		mk := MixKey{Line: rec.Line, Formulation: rec.Formulation}
		byWidth, ok := weights[mk]
		if !ok {
			byWidth = make(map[Width]float64)
			weights[mk] = byWidth
		}
		byWidth[rec.Width] += rec.WeightKg
		totals[mk] += rec.WeightKg
	}

	mix := make(BaselineMix, len(weights))
	for mk, byWidth := range weights {
		fractions := make(map[Width]float64, len(byWidth))
		if total := totals[mk]; total != 0 {
			for width, kg := range byWidth {
				fractions[width] = kg / total
			}
		}
		mix[mk] = fractions
	}
	return mix
}

// Share returns the baseline fraction for key, if the mix has one.
func (m BaselineMix) Share(key RateKey) (float64, bool) {
	fractions, ok := m[key.Mix()]
	if !ok {
		return 0, false
	}
	share, ok := fractions[key.Width]
	return share, ok
}
