package aggregate

// Policy names the reduction used for a whole-window average price.
type Policy string

const (
	PolicyVolumeWeight Policy = "volume_weight" // Σ(p·v·w) / Σ(v·w)
	PolicyVolume       Policy = "volume"        // Σ(p·v) / Σv
	PolicyMean         Policy = "mean"          // arithmetic mean of daily prices
)

// Policy selects the price reduction from the completeness flags.
func (f Flags) Policy() Policy {
	switch {
	case f.HasVolume && f.HasWeight:
		return PolicyVolumeWeight
	case f.HasVolume:
		return PolicyVolume
	default:
		return PolicyMean
	}
}

// AvgPrice reduces the result to one price. ok is false for an empty result,
// which callers must render as "no data" rather than zero.
func (r Result) AvgPrice() (price float64, ok bool) {
	if r.Empty() {
		return 0, false
	}
	return avgPrice(r.Daily, r.Flags.Policy()), true
}

func avgPrice(daily []GroupedDaily, policy Policy) float64 {
	return divide(priceTerms(daily, policy))
}

// PriceTerms returns the numerator and denominator behind AvgPrice, so that
// several results can be pooled into one figure.
func (r Result) PriceTerms() (num, den float64) {
	return priceTerms(r.Daily, r.Flags.Policy())
}

func priceTerms(daily []GroupedDaily, policy Policy) (num, den float64) {
	switch policy {
	case PolicyVolumeWeight:
		for _, d := range daily {
			num += d.AvgPrice * d.SumVolume * d.AvgAvgWeight
			den += d.SumVolume * d.AvgAvgWeight
		}
	case PolicyVolume:
		for _, d := range daily {
			num += d.AvgPrice * d.SumVolume
			den += d.SumVolume
		}
	default:
		for _, d := range daily {
			num += d.AvgPrice
		}
		den = float64(len(daily))
	}
	return num, den
}

// AvgVolume is the mean daily volume. ok is false when the result is empty or
// carries no volume.
func (r Result) AvgVolume() (volume float64, ok bool) {
	if r.Empty() || !r.Flags.HasVolume {
		return 0, false
	}
	var sum float64
	for _, d := range r.Daily {
		sum += d.SumVolume
	}
	return divide(sum, float64(len(r.Daily))), true
}

// AvgWeight is the volume-weighted mean unit weight. ok is false when the
// result is empty or carries no weight.
func (r Result) AvgWeight() (weight float64, ok bool) {
	if r.Empty() || !r.Flags.HasWeight {
		return 0, false
	}
	var num, den float64
	for _, d := range r.Daily {
		num += d.SumVolume * d.AvgAvgWeight
		den += d.SumVolume
	}
	return divide(num, den), true
}

// AvgSources is the mean number of reporting markets per day.
func (r Result) AvgSources() float64 {
	var sum float64
	for _, d := range r.Daily {
		sum += float64(d.NumOfSource)
	}
	return divide(sum, float64(len(r.Daily)))
}

// WeightedPrice is Σ(p·v·w) / Σ(v·w) over the days regardless of flags. Days
// without volume already carry their source count as volume and weight 1, so
// this weights sparse products by market coverage.
func WeightedPrice(daily []GroupedDaily) float64 {
	return avgPrice(daily, PolicyVolumeWeight)
}

// WeightedWeight is Σ(v·w) / Σv over the days.
func WeightedWeight(daily []GroupedDaily) float64 {
	var num, den float64
	for _, d := range daily {
		num += d.SumVolume * d.AvgAvgWeight
		den += d.SumVolume
	}
	return divide(num, den)
}

// PercentChange compares two period figures. ok is false when last is not
// positive, in which case the figure must be omitted.
func PercentChange(this, last float64) (pct float64, ok bool) {
	if last <= 0 {
		return 0, false
	}
	return (this - last) / last * 100, true
}
