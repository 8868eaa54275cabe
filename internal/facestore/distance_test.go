package facestore

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Encoding
		want float64
	}{
		{
			name: "identical vectors",
			a:    enc(0.5, 0.5, 0.5),
			b:    enc(0.5, 0.5, 0.5),
			want: 0,
		},
		{
			name: "pythagorean triple",
			a:    enc(0, 0),
			b:    enc(3, 4),
			want: 5,
		},
		{
			name: "single axis offset",
			a:    enc(0, 0, 0, 0),
			b:    enc(0.3, 0, 0, 0),
			want: 0.3,
		},
		{
			name: "negative components",
			a:    enc(-1, -1),
			b:    enc(1, 1),
			want: 2 * math.Sqrt2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Distance() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestDistance_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		a, b Encoding
	}{
		{name: "different lengths", a: enc(1, 2), b: enc(1, 2, 3)},
		{name: "both empty", a: enc(), b: enc()},
		{name: "nil against values", a: nil, b: enc(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); !math.IsInf(got, 1) {
				t.Errorf("Distance() = %f, want +Inf", got)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := enc(0.1, 0.9, -0.4, 0.2)
	b := enc(0.8, -0.3, 0.5, 0.0)

	if Distance(a, b) != Distance(b, a) {
		t.Errorf("Distance is not symmetric: %f vs %f", Distance(a, b), Distance(b, a))
	}
}
