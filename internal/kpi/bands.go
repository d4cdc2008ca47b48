package kpi

import "math"

// Classification is the outcome of banding one value.
type Classification struct {
	Tier string
	// Distance is the signed gap between the value and the nearest band
	// boundary, used downstream for visual emphasis. Valid is false for
	// missing values, which carry no tier and no distance.
	Distance float64
	Valid    bool
}

// Classify maps a computed value onto a definition's band configuration.
// Bands are listed worst tier first; the walk selects the first boundary
// the value does not exceed (ascending) or does exceed (descending).
// Comparison is inclusive, so a value sitting exactly on a boundary
// resolves to the stricter tier: boundary values never round in the
// reporter's favor. A value beyond the final boundary takes the final
// band's tier.
//
// A definition with no bands returns *BandConfigError. Load already
// rejects such definitions; this is a defensive re-check.
func Classify(def Definition, v Value) (Classification, error) {
	if len(def.Bands) == 0 {
		return Classification{}, &BandConfigError{KPI: def.ID}
	}
	if !v.Valid {
		return Classification{}, nil
	}

	tier := def.Bands[len(def.Bands)-1].Tier
	for _, band := range def.Bands {
		if def.Direction == Ascending && v.Float <= band.Threshold {
			tier = band.Tier
			break
		}
		if def.Direction == Descending && v.Float >= band.Threshold {
			tier = band.Tier
			break
		}
	}

	return Classification{
		Tier:     tier,
		Distance: signedDistance(def.Bands, v.Float),
		Valid:    true,
	}, nil
}

func signedDistance(bands []Band, v float64) float64 {
	nearest := bands[0].Threshold
	for _, band := range bands[1:] {
		if math.Abs(v-band.Threshold) < math.Abs(v-nearest) {
			nearest = band.Threshold
		}
	}
	return v - nearest
}
