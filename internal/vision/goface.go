package vision

import (
	"fmt"
	"image"

	"github.com/Kagami/go-face"

	"github.com/kozaktomas/facewatch/internal/facestore"
)

// Recognizer wraps the dlib face recognizer. The models directory must
// contain mmod_human_face_detector.dat,
// shape_predictor_5_face_landmarks.dat and
// dlib_face_recognition_resnet_model_v1.dat.
type Recognizer struct {
	rec *face.Recognizer
}

// NewRecognizer loads the dlib models from the given directory.
func NewRecognizer(modelsDir string) (*Recognizer, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("initializing dlib recognizer from %s: %w", modelsDir, err)
	}
	return &Recognizer{rec: rec}, nil
}

// Close releases the dlib models.
func (r *Recognizer) Close() {
	r.rec.Close()
}

// Detect finds face bounding boxes, sorted left to right.
func (r *Recognizer) Detect(img image.Image) ([]image.Rectangle, error) {
	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	faces, err := r.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("detecting faces: %w", err)
	}

	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle
	}
	return boxes, nil
}

// Encode computes a 128-dim descriptor per box by re-recognizing each
// face inside its widened crop. A face the model cannot find again in
// its crop gets a nil slot.
func (r *Recognizer) Encode(img image.Image, boxes []image.Rectangle) ([]facestore.Encoding, error) {
	out := make([]facestore.Encoding, len(boxes))

	for i, box := range boxes {
		crop := cropWithMargin(img, box, cropMargin)
		data, err := encodeJPEG(crop)
		if err != nil {
			return nil, err
		}

		f, err := r.rec.RecognizeSingle(data)
		if err != nil {
			return nil, fmt.Errorf("encoding face %d: %w", i, err)
		}
		if f == nil {
			continue
		}

		enc := make(facestore.Encoding, facestore.EncodingDim)
		copy(enc, f.Descriptor[:])
		out[i] = enc
	}

	return out, nil
}
