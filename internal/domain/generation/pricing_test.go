package generation

import "testing"

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name     string
		baseCost int64
		width    int
		height   int
		want     int64
	}{
		{"exactly 1 megapixel", 10, 1000, 1000, 10},
		{"small image floors at base cost", 10, 400, 300, 10},
		{"just under 2 megapixels", 10, 1414, 1414, 20},
		{"just over 2 megapixels", 10, 1500, 1400, 30},
		{"1.44 megapixels rounds to 2", 10, 1200, 1200, 20},
		{"exactly 2 megapixels", 10, 2000, 1000, 20},
		{"4 megapixels", 10, 2000, 2000, 40},
		{"base cost 80 under 1 megapixel", 80, 512, 512, 80},
		{"base cost 80 at 1.05 megapixels", 80, 1024, 1024, 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateCost(tt.baseCost, tt.width, tt.height)
			if got != tt.want {
				t.Errorf("EstimateCost(%d, %d, %d) = %d, want %d",
					tt.baseCost, tt.width, tt.height, got, tt.want)
			}
		})
	}
}

func TestEstimateCostMonotonic(t *testing.T) {
	const baseCost = 10
	prev := int64(0)
	for side := 100; side <= 4000; side += 100 {
		cost := EstimateCost(baseCost, side, side)
		if cost < baseCost {
			t.Fatalf("cost %d below base cost at %dx%d", cost, side, side)
		}
		if cost < prev {
			t.Fatalf("cost decreased from %d to %d at %dx%d", prev, cost, side, side)
		}
		prev = cost
	}
}

func TestEstimatePipelineCost(t *testing.T) {
	// each step priced against the same input image
	got := EstimatePipelineCost([]int64{30, 50}, 1200, 1200)
	if got != 160 {
		t.Errorf("EstimatePipelineCost = %d, want 160", got)
	}

	got = EstimatePipelineCost([]int64{30, 50}, 800, 600)
	if got != 80 {
		t.Errorf("EstimatePipelineCost = %d, want 80", got)
	}

	if got := EstimatePipelineCost(nil, 1000, 1000); got != 0 {
		t.Errorf("empty pipeline cost = %d, want 0", got)
	}
}
