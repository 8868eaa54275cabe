package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

const (
	cascadeScaleFactor  = 1.1
	cascadeMinNeighbors = 4
)

// CascadeDetector detects faces with an OpenCV Haar cascade. It is
// detection only; pair it with the dlib or remote encoder.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	minSize    image.Point
}

// NewCascadeDetector loads the cascade XML file, typically
// haarcascade_frontalface_default.xml.
func NewCascadeDetector(cascadePath string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cascadePath) {
		classifier.Close()
		return nil, fmt.Errorf("loading cascade file %s", cascadePath)
	}

	return &CascadeDetector{
		classifier: classifier,
		minSize:    image.Pt(30, 30),
	}, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() {
	d.classifier.Close()
}

// Detect finds face bounding boxes in the image.
func (d *CascadeDetector) Detect(img image.Image) ([]image.Rectangle, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("converting frame: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorRGBToGray)

	boxes := d.classifier.DetectMultiScaleWithParams(
		gray, cascadeScaleFactor, cascadeMinNeighbors, 0, d.minSize, image.Point{})
	return boxes, nil
}
