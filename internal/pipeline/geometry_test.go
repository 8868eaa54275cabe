package pipeline

import (
	"image"
	"math"
	"testing"
)

func TestBoxIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{
			name: "identical boxes",
			a:    image.Rect(0, 0, 10, 10),
			b:    image.Rect(0, 0, 10, 10),
			want: 1,
		},
		{
			name: "no overlap",
			a:    image.Rect(0, 0, 10, 10),
			b:    image.Rect(20, 20, 30, 30),
			want: 0,
		},
		{
			name: "half overlap",
			a:    image.Rect(0, 0, 10, 10),
			b:    image.Rect(5, 0, 15, 10),
			want: 50.0 / 150.0,
		},
		{
			name: "contained box",
			a:    image.Rect(0, 0, 10, 10),
			b:    image.Rect(2, 2, 8, 8),
			want: 36.0 / 100.0,
		},
		{
			name: "empty box",
			a:    image.Rect(0, 0, 0, 0),
			b:    image.Rect(0, 0, 10, 10),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := boxIoU(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("boxIoU(%v, %v) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMergeOverlapping(t *testing.T) {
	// Two detections on the same face collapse into their union
	boxes := []image.Rectangle{
		image.Rect(100, 100, 200, 200),
		image.Rect(110, 110, 210, 210),
	}

	merged := mergeOverlapping(boxes, 0.4)

	if len(merged) != 1 {
		t.Fatalf("expected 1 merged box, got %d", len(merged))
	}

	want := image.Rect(100, 100, 210, 210)
	if merged[0] != want {
		t.Errorf("expected union %v, got %v", want, merged[0])
	}
}

func TestMergeOverlapping_KeepsDistinctFaces(t *testing.T) {
	boxes := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(300, 0, 400, 100),
	}

	merged := mergeOverlapping(boxes, 0.4)

	if len(merged) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(merged))
	}
}

func TestMergeOverlapping_SlightTouchNotMerged(t *testing.T) {
	// Small overlap stays below the threshold
	boxes := []image.Rectangle{
		image.Rect(0, 0, 100, 100),
		image.Rect(90, 90, 190, 190),
	}

	merged := mergeOverlapping(boxes, 0.4)

	if len(merged) != 2 {
		t.Fatalf("expected 2 boxes for slight overlap, got %d", len(merged))
	}
}

func TestMergeOverlapping_SmallInputsUntouched(t *testing.T) {
	if got := mergeOverlapping(nil, 0.4); got != nil {
		t.Errorf("expected nil passthrough, got %v", got)
	}

	one := []image.Rectangle{image.Rect(0, 0, 10, 10)}
	if got := mergeOverlapping(one, 0.4); len(got) != 1 {
		t.Errorf("expected single box passthrough, got %v", got)
	}
}
