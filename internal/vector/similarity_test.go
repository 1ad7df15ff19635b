package vector

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"scaled", []float32{1, 2}, []float32{2, 4}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		got := CosineDistance(tt.a, tt.b)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: CosineDistance = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSquaredL2(t *testing.T) {
	if got := SquaredL2([]float32{0, 0}, []float32{3, 4}); got != 25 {
		t.Errorf("SquaredL2 = %v, want 25", got)
	}
	if !math.IsInf(SquaredL2([]float32{1}, []float32{1, 2}), 1) {
		t.Error("mismatched lengths should be infinitely far")
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(""); err != nil || m != MetricCosine {
		t.Errorf("empty metric: %v, %v", m, err)
	}
	if m, err := ParseMetric("l2"); err != nil || m != MetricL2 {
		t.Errorf("l2 metric: %v, %v", m, err)
	}
	if _, err := ParseMetric("ip"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
