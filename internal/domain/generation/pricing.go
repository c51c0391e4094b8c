package generation

import "math"

// EstimateCost prices one model invocation from the preset's base cost and
// the source image dimensions. Cost scales with whole megapixels: the
// megapixel count is rounded up first, then multiplied, then rounded up
// again, and an image at or under 1 MP always costs exactly baseCost.
// A 1.2 MP image therefore prices the same as a 2 MP one.
func EstimateCost(baseCost int64, widthPx, heightPx int) int64 {
	megapixels := float64(widthPx) * float64(heightPx) / 1_000_000
	scaled := int64(math.Ceil(float64(baseCost) * math.Ceil(megapixels)))
	if scaled < baseCost {
		return baseCost
	}
	return scaled
}

// EstimatePipelineCost prices a multi-step run: each step is priced
// against the submitted input image and one upfront debit covers the
// whole run.
func EstimatePipelineCost(stepBaseCosts []int64, widthPx, heightPx int) int64 {
	var total int64
	for _, base := range stepBaseCosts {
		total += EstimateCost(base, widthPx, heightPx)
	}
	return total
}
