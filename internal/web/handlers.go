package web

import (
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"net/http"
	"strconv"
	"time"

	// Decoders for uploaded frames in any common format.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/sightings"
)

// annotatedQuality is the JPEG quality of annotated frame responses.
const annotatedQuality = 90

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// handleHealth reports liveness and the size of the current store snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.store.Load()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"store_faces":  st.Len(),
		"store_people": len(st.People()),
	})
}

// handleStore lists the known people with their encoding counts.
func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	st := s.store.Load()
	respondJSON(w, http.StatusOK, map[string]any{
		"faces":  st.Len(),
		"people": st.People(),
		"dim":    st.Dim(),
	})
}

// handleStoreReload reloads the store file and swaps it in. In-flight
// recognitions keep the snapshot they started with.
func (s *Server) handleStoreReload(w http.ResponseWriter, r *http.Request) {
	if s.storePath == "" {
		respondError(w, http.StatusInternalServerError, "store path not configured")
		return
	}

	st, err := facestore.Load(s.storePath)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to reload store: %v", err))
		return
	}

	s.store.Store(st)
	respondJSON(w, http.StatusOK, map[string]any{
		"faces":  st.Len(),
		"people": len(st.People()),
	})
}

type recognizeResponse struct {
	Faces  []pipeline.DetectedFace `json:"faces"`
	Width  int                     `json:"width"`
	Height int                     `json:"height"`
}

// handleRecognize runs one uploaded image through the pipeline. With
// ?annotated=1 the response is the annotated JPEG instead of JSON.
func (s *Server) handleRecognize(w http.ResponseWriter, r *http.Request) {
	if s.pipe == nil {
		respondError(w, http.StatusInternalServerError, "pipeline not configured")
		return
	}

	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not decode image")
		return
	}

	res := s.pipe.Process(img, s.store.Load())

	if r.URL.Query().Get("annotated") == "1" {
		w.Header().Set("Content-Type", "image/jpeg")
		w.WriteHeader(http.StatusOK)
		if err := jpeg.Encode(w, res.Frame, &jpeg.Options{Quality: annotatedQuality}); err != nil {
			log.Printf("failed to encode annotated frame: %v", err)
		}
		return
	}

	faces := res.Faces
	if faces == nil {
		faces = []pipeline.DetectedFace{}
	}
	bounds := res.Frame.Bounds()
	respondJSON(w, http.StatusOK, recognizeResponse{
		Faces:  faces,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	})
}

// handleSightings queries the sightings log, newest first.
func (s *Server) handleSightings(w http.ResponseWriter, r *http.Request) {
	if s.sightings == nil {
		respondError(w, http.StatusServiceUnavailable, "sightings store not configured")
		return
	}

	q := sightings.Query{
		Label: r.URL.Query().Get("label"),
		Limit: constants.DefaultSightingsLimit,
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid since, expected RFC 3339")
			return
		}
		q.Since = t
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n > constants.MaxSightingsLimit {
			n = constants.MaxSightingsLimit
		}
		q.Limit = n
	}

	entries, err := s.sightings.List(q)
	if err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list sightings: %v", err))
		return
	}
	if entries == nil {
		entries = []sightings.Sighting{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"sightings": entries,
		"count":     len(entries),
	})
}
