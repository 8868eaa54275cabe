package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/facestore"
)

const (
	defaultEmbedTimeout = 30 * time.Second
	embedEndpoint       = "/embed/faces"
)

// RemoteEncoder computes face encodings by posting the frame and its
// face boxes to an embedding service. Useful on hosts without the dlib
// toolchain.
type RemoteEncoder struct {
	baseURL string
	dim     int
	timeout time.Duration
	client  *http.Client
}

// NewRemoteEncoder creates a client for the embedding service at
// baseURL. A dim of 0 means the default 128.
func NewRemoteEncoder(baseURL string, dim int) *RemoteEncoder {
	if dim <= 0 {
		dim = facestore.EncodingDim
	}
	return &RemoteEncoder{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		dim:     dim,
		timeout: defaultEmbedTimeout,
		client:  &http.Client{},
	}
}

// remoteResponse is the embedding server's answer. Encodings align
// with the posted boxes; an empty inner array marks a face the server
// could not encode.
type remoteResponse struct {
	Dim       int         `json:"dim"`
	Encodings [][]float32 `json:"encodings"`
}

// Encode posts the frame with its face boxes and returns the aligned
// encodings. Faces the server could not encode get a nil slot.
func (c *RemoteEncoder) Encode(img image.Image, boxes []image.Rectangle) ([]facestore.Encoding, error) {
	if len(boxes) == 0 {
		return nil, nil
	}

	frame, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	body, err := c.post(ctx, frame, boxes)
	if err != nil {
		return nil, err
	}

	var parsed remoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}

	if len(parsed.Encodings) != len(boxes) {
		return nil, fmt.Errorf("embedding server returned %d encodings for %d faces",
			len(parsed.Encodings), len(boxes))
	}

	out := make([]facestore.Encoding, len(boxes))
	for i, enc := range parsed.Encodings {
		if len(enc) == 0 {
			continue
		}
		if len(enc) != c.dim {
			return nil, fmt.Errorf("embedding server returned %d dims, expected %d",
				len(enc), c.dim)
		}
		out[i] = facestore.Encoding(enc)
	}

	return out, nil
}

func (c *RemoteEncoder) post(ctx context.Context, frame []byte, boxes []image.Rectangle) ([]byte, error) {
	coords := make([][4]int, len(boxes))
	for i, b := range boxes {
		coords[i] = [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	}
	boxesJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("encoding boxes: %w", err)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, fmt.Errorf("writing frame data: %w", err)
	}
	if err := writer.WriteField("boxes", string(boxesJSON)); err != nil {
		return nil, fmt.Errorf("writing boxes field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+embedEndpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
