// Package facestore holds the gallery of known faces: training from a
// directory tree, persistence to a single binary file, and nearest-neighbour
// matching over face encodings.
package facestore

import "image"

// EncodingDim is the dimensionality of encodings produced by the dlib ResNet
// face model. Remote encoders may produce other sizes; a store only requires
// that all of its encodings share one dimension.
const EncodingDim = 128

// Encoding is a face descriptor vector. Encodings are compared with
// Euclidean distance; smaller means more similar.
type Encoding []float32

// Clone returns an independent copy of the encoding.
func (e Encoding) Clone() Encoding {
	if e == nil {
		return nil
	}
	out := make(Encoding, len(e))
	copy(out, e)
	return out
}

// Detector finds face bounding boxes in an image.
type Detector interface {
	Detect(img image.Image) ([]image.Rectangle, error)
}

// Encoder computes face encodings for the given boxes. The result is aligned
// with boxes; a nil entry marks a box whose face could not be encoded.
type Encoder interface {
	Encode(img image.Image, boxes []image.Rectangle) ([]Encoding, error)
}

// Match is the result of a nearest-neighbour lookup.
type Match struct {
	Index    int
	Label    string
	Distance float64
}

// Matcher answers nearest-neighbour queries over a face gallery.
// *Store answers exactly, *Index approximately.
type Matcher interface {
	Len() int
	BestMatch(probe Encoding) (Match, bool)
}
