package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/sightings"
)

var errDatabaseDown = errors.New("database down")

// stubDetector reports fixed boxes for every frame.
type stubDetector struct {
	boxes []image.Rectangle
}

func (d *stubDetector) Detect(img image.Image) ([]image.Rectangle, error) {
	return d.boxes, nil
}

// stubEncoder returns the same encoding for every box.
type stubEncoder struct {
	enc facestore.Encoding
}

func (e *stubEncoder) Encode(img image.Image, boxes []image.Rectangle) ([]facestore.Encoding, error) {
	out := make([]facestore.Encoding, len(boxes))
	for i := range out {
		out[i] = e.enc
	}
	return out, nil
}

// memSightings records queries and returns canned rows.
type memSightings struct {
	rows    []sightings.Sighting
	lastQ   sightings.Query
	listErr error
}

func (m *memSightings) Save(s *sightings.Sighting) error { return nil }

func (m *memSightings) List(q sightings.Query) ([]sightings.Sighting, error) {
	m.lastQ = q
	return m.rows, m.listErr
}

func (m *memSightings) Close() error { return nil }

func testStore(t *testing.T, labels ...string) *facestore.Store {
	t.Helper()
	st := facestore.New()
	for _, label := range labels {
		if err := st.Add(label, facestore.Encoding{0, 0, 0}); err != nil {
			t.Fatalf("failed to seed store: %v", err)
		}
	}
	return st
}

func testServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	if deps.Pipeline == nil {
		deps.Pipeline = pipeline.New(
			&stubDetector{},
			&stubEncoder{enc: facestore.Encoding{0, 0, 0}},
			pipeline.Options{Scale: 1},
		)
	}
	return NewServer(&config.Config{}, 0, "127.0.0.1", deps)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func parseJSONResponse(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, rec.Body.String())
	}
}

func assertStatusCode(t *testing.T, rec *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rec.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, rec.Code, rec.Body.String())
	}
}

func assertJSONError(t *testing.T, rec *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, rec.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

func multipartImageRequest(t *testing.T, path, field string, img image.Image) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if err := png.Encode(fw, img); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// --- /healthz ---

func TestHealth(t *testing.T) {
	srv := testServer(t, Deps{
		Store:   testStore(t, "alice", "alice", "bob"),
		Version: "test",
	})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var body map[string]any
	parseJSONResponse(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "test" {
		t.Errorf("expected version test, got %v", body["version"])
	}
	if body["store_faces"] != float64(3) {
		t.Errorf("expected 3 store faces, got %v", body["store_faces"])
	}
	if body["store_people"] != float64(2) {
		t.Errorf("expected 2 store people, got %v", body["store_people"])
	}
}

func TestHealthNilStore(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var body map[string]any
	parseJSONResponse(t, rec, &body)
	if body["store_faces"] != float64(0) {
		t.Errorf("expected empty store, got %v faces", body["store_faces"])
	}
}

// --- /api/store ---

func TestStoreEndpoint(t *testing.T) {
	srv := testServer(t, Deps{Store: testStore(t, "alice", "alice", "bob")})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/store", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var body struct {
		Faces  int            `json:"faces"`
		People map[string]int `json:"people"`
		Dim    int            `json:"dim"`
	}
	parseJSONResponse(t, rec, &body)
	if body.Faces != 3 {
		t.Errorf("expected 3 faces, got %d", body.Faces)
	}
	if body.Dim != 3 {
		t.Errorf("expected dim 3, got %d", body.Dim)
	}
	if body.People["alice"] != 2 || body.People["bob"] != 1 {
		t.Errorf("unexpected people counts: %v", body.People)
	}
}

// --- /api/store/reload ---

func TestStoreReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.bin")
	if err := testStore(t, "alice", "bob").Save(path); err != nil {
		t.Fatalf("failed to save store: %v", err)
	}

	srv := testServer(t, Deps{Store: facestore.New(), StorePath: path})

	rec := serve(srv, httptest.NewRequest(http.MethodPost, "/api/store/reload", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var body map[string]any
	parseJSONResponse(t, rec, &body)
	if body["faces"] != float64(2) {
		t.Errorf("expected 2 faces after reload, got %v", body["faces"])
	}

	// The swapped store is what later requests see.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]any
	parseJSONResponse(t, rec, &health)
	if health["store_faces"] != float64(2) {
		t.Errorf("expected health to report reloaded store, got %v", health["store_faces"])
	}
}

func TestStoreReloadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.bin")
	if err := os.WriteFile(path, []byte("not a gob envelope"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	srv := testServer(t, Deps{Store: testStore(t, "alice"), StorePath: path})

	rec := serve(srv, httptest.NewRequest(http.MethodPost, "/api/store/reload", nil))
	assertStatusCode(t, rec, http.StatusInternalServerError)

	// The previous store stays active after a failed reload.
	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var health map[string]any
	parseJSONResponse(t, rec, &health)
	if health["store_faces"] != float64(1) {
		t.Errorf("expected old store to survive failed reload, got %v", health["store_faces"])
	}
}

func TestStoreReloadNoPath(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := serve(srv, httptest.NewRequest(http.MethodPost, "/api/store/reload", nil))
	assertStatusCode(t, rec, http.StatusInternalServerError)
	assertJSONError(t, rec, "store path not configured")
}

// --- /api/recognize ---

func TestRecognize(t *testing.T) {
	pipe := pipeline.New(
		&stubDetector{boxes: []image.Rectangle{image.Rect(10, 10, 30, 30)}},
		&stubEncoder{enc: facestore.Encoding{0, 0, 0}},
		pipeline.Options{Scale: 1},
	)
	srv := testServer(t, Deps{Store: testStore(t, "alice"), Pipeline: pipe})

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	rec := serve(srv, multipartImageRequest(t, "/api/recognize", "image", img))
	assertStatusCode(t, rec, http.StatusOK)

	var body recognizeResponse
	parseJSONResponse(t, rec, &body)
	if body.Width != 64 || body.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", body.Width, body.Height)
	}
	if len(body.Faces) != 1 {
		t.Fatalf("expected 1 face, got %d", len(body.Faces))
	}
	face := body.Faces[0]
	if face.Label != "alice" || !face.Known {
		t.Errorf("expected known alice, got %+v", face)
	}
	if face.Confidence != 1 {
		t.Errorf("expected confidence 1 for exact match, got %f", face.Confidence)
	}
}

func TestRecognizeNoFaces(t *testing.T) {
	srv := testServer(t, Deps{Store: testStore(t, "alice")})

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	rec := serve(srv, multipartImageRequest(t, "/api/recognize", "image", img))
	assertStatusCode(t, rec, http.StatusOK)

	if !strings.Contains(rec.Body.String(), `"faces":[]`) {
		t.Errorf("expected empty faces array, got %s", rec.Body.String())
	}
}

func TestRecognizeAnnotated(t *testing.T) {
	pipe := pipeline.New(
		&stubDetector{boxes: []image.Rectangle{image.Rect(10, 10, 30, 30)}},
		&stubEncoder{enc: facestore.Encoding{0, 0, 0}},
		pipeline.Options{Scale: 1},
	)
	srv := testServer(t, Deps{Store: testStore(t, "alice"), Pipeline: pipe})

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	rec := serve(srv, multipartImageRequest(t, "/api/recognize?annotated=1", "image", img))
	assertStatusCode(t, rec, http.StatusOK)

	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", ct)
	}
	decoded, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("response is not a decodable JPEG: %v", err)
	}
	if decoded.Bounds().Dx() != 64 || decoded.Bounds().Dy() != 48 {
		t.Errorf("unexpected annotated frame size: %v", decoded.Bounds())
	}
}

func TestRecognizeMissingImage(t *testing.T) {
	srv := testServer(t, Deps{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/recognize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(srv, req)
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "image file is required")
}

func TestRecognizeBadImage(t *testing.T) {
	srv := testServer(t, Deps{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "frame.png")
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fw.Write([]byte("definitely not an image"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/recognize", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(srv, req)
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "could not decode image")
}

// --- /api/sightings ---

func TestSightings(t *testing.T) {
	store := &memSightings{rows: []sightings.Sighting{
		{UID: "u1", Label: "alice", Confidence: 0.9},
		{UID: "u2", Label: "alice", Confidence: 0.8},
	}}
	srv := testServer(t, Deps{Sightings: store})

	rec := serve(srv, httptest.NewRequest(http.MethodGet,
		"/api/sightings?label=alice&since=2026-03-01T00:00:00Z&limit=10", nil))
	assertStatusCode(t, rec, http.StatusOK)

	var body struct {
		Sightings []sightings.Sighting `json:"sightings"`
		Count     int                  `json:"count"`
	}
	parseJSONResponse(t, rec, &body)
	if body.Count != 2 || len(body.Sightings) != 2 {
		t.Errorf("expected 2 sightings, got count=%d len=%d", body.Count, len(body.Sightings))
	}

	if store.lastQ.Label != "alice" {
		t.Errorf("expected label filter alice, got %q", store.lastQ.Label)
	}
	if store.lastQ.Limit != 10 {
		t.Errorf("expected limit 10, got %d", store.lastQ.Limit)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !store.lastQ.Since.Equal(want) {
		t.Errorf("expected since %v, got %v", want, store.lastQ.Since)
	}
}

func TestSightingsDefaults(t *testing.T) {
	store := &memSightings{}
	srv := testServer(t, Deps{Sightings: store})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/sightings", nil))
	assertStatusCode(t, rec, http.StatusOK)

	if store.lastQ.Limit != 100 {
		t.Errorf("expected default limit 100, got %d", store.lastQ.Limit)
	}
	if !strings.Contains(rec.Body.String(), `"sightings":[]`) {
		t.Errorf("expected empty sightings array, got %s", rec.Body.String())
	}
}

func TestSightingsBadSince(t *testing.T) {
	srv := testServer(t, Deps{Sightings: &memSightings{}})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/sightings?since=yesterday", nil))
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "invalid since, expected RFC 3339")
}

func TestSightingsBadLimit(t *testing.T) {
	srv := testServer(t, Deps{Sightings: &memSightings{}})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/sightings?limit=zero", nil))
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "invalid limit")
}

func TestSightingsListError(t *testing.T) {
	srv := testServer(t, Deps{Sightings: &memSightings{listErr: errDatabaseDown}})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/sightings", nil))
	assertStatusCode(t, rec, http.StatusInternalServerError)
}

func TestSightingsNotConfigured(t *testing.T) {
	srv := testServer(t, Deps{})

	rec := serve(srv, httptest.NewRequest(http.MethodGet, "/api/sightings", nil))
	assertStatusCode(t, rec, http.StatusServiceUnavailable)
	assertJSONError(t, rec, "sightings store not configured")
}
