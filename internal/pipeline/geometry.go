package pipeline

import "image"

// boxIoU calculates Intersection over Union between two boxes.
func boxIoU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}

	intersection := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()) + float64(b.Dx()*b.Dy()) - intersection
	if union <= 0 {
		return 0
	}

	return intersection / union
}

// mergeOverlapping collapses boxes that overlap above the IoU threshold into
// their union. Cascade detectors tend to fire several times on one face;
// without merging, one person would be encoded and annotated repeatedly.
func mergeOverlapping(boxes []image.Rectangle, iouThreshold float64) []image.Rectangle {
	if len(boxes) < 2 {
		return boxes
	}

	merged := make([]image.Rectangle, 0, len(boxes))
	used := make([]bool, len(boxes))

	for i := range boxes {
		if used[i] {
			continue
		}
		box := boxes[i]
		for j := i + 1; j < len(boxes); j++ {
			if used[j] {
				continue
			}
			if boxIoU(box, boxes[j]) > iouThreshold {
				box = box.Union(boxes[j])
				used[j] = true
			}
		}
		merged = append(merged, box)
	}

	return merged
}
