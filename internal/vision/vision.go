// Package vision provides the face detector and encoder backends. The
// dlib recognizer detects and encodes, the OpenCV cascade detects only
// and the remote encoder offloads encoding to an embedding service.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

const (
	// jpegQuality is used when re-encoding frames for the dlib and
	// remote backends, which both consume JPEG bytes.
	jpegQuality = 90

	// cropMargin widens face crops before encoding so the encoder can
	// re-detect the face inside its crop.
	cropMargin = 0.25
)

// LoadImage reads and decodes an image file from disk.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding image %s: %w", path, err)
	}

	return img, nil
}

// encodeJPEG serializes an image to JPEG bytes.
func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// cropWithMargin extracts the box area widened by the given margin on
// each side, clamped to image bounds. The result is a zero-origin copy.
func cropWithMargin(img image.Image, box image.Rectangle, margin float64) image.Image {
	mx := int(float64(box.Dx()) * margin)
	my := int(float64(box.Dy()) * margin)

	r := image.Rect(
		box.Min.X-mx,
		box.Min.Y-my,
		box.Max.X+mx,
		box.Max.Y+my,
	).Intersect(img.Bounds())

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
