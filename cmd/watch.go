package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kozaktomas/facewatch/internal/capture"
	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/constants"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/kozaktomas/facewatch/internal/vision"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the webcam and recognize faces live",
	Long: `Watch the webcam stream and recognize faces against the known-face store.

Recognized people are printed as they appear and recorded in the sightings
database, with an optional snapshot of the frame. A cooldown keeps one
person from flooding the log while they sit in front of the camera.

Send SIGHUP to reload the store after retraining, without restarting.

Examples:
  # Watch the default camera with the default store
  facewatch watch

  # A specific camera and a stricter threshold
  facewatch watch --device /dev/video2 --threshold 0.5

  # Fast Haar cascade detection instead of dlib
  facewatch watch --detector cascade --cascade haarcascade_frontalface_default.xml

  # Record unknown visitors too, with snapshots
  facewatch watch --record-unknown --snapshots ./snapshots`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("device", "", "Camera device index or path (defaults to CAMERA_DEVICE)")
	watchCmd.Flags().String("store", "", "Store file to load (defaults to STORE_PATH)")
	watchCmd.Flags().String("models", "", "Directory with the dlib model files (defaults to MODELS_DIR)")
	watchCmd.Flags().Float64("threshold", 0, "Maximum match distance, 0 uses RECOGNITION_THRESHOLD")
	watchCmd.Flags().Float64("scale", 0, "Detection downscale factor in (0, 1], 0 uses RECOGNITION_SCALE")
	watchCmd.Flags().String("detector", "dlib", "Face detector: dlib or cascade")
	watchCmd.Flags().String("cascade", "", "Haar cascade XML for --detector cascade (defaults to CASCADE_PATH)")
	watchCmd.Flags().String("snapshots", "", "Directory for sighting snapshots (defaults to SNAPSHOT_DIR)")
	watchCmd.Flags().Int("cooldown", 0, "Seconds before the same person is recorded again, 0 uses SIGHTINGS_COOLDOWN")
	watchCmd.Flags().Bool("record-unknown", false, "Record sightings of unknown faces too")
	watchCmd.Flags().Int("max-frames", 0, "Stop after this many frames (0 = run until interrupted)")
	watchCmd.Flags().Int("fps-every", constants.DefaultFPSEvery, "Seconds between FPS lines (0 disables)")
}

// buildMatcher picks the lookup structure for the store size. Large stores
// get an HNSW index, optionally persisted; a stale index file is rebuilt.
func buildMatcher(st *facestore.Store, storePath, indexPath string) facestore.Matcher {
	if st.Len() < facestore.IndexThreshold {
		return st
	}

	if indexPath != "" {
		if indexFresh(storePath, indexPath) {
			ix, err := facestore.LoadIndex(st, indexPath)
			if err == nil {
				fmt.Printf("Loaded HNSW index from %s\n", indexPath)
				return ix
			}
			fmt.Printf("Warning: failed to load HNSW index: %v\n", err)
		}
		ix := facestore.NewIndex(st)
		if err := ix.SaveIndex(indexPath); err != nil {
			fmt.Printf("Warning: failed to save HNSW index: %v\n", err)
		} else {
			fmt.Printf("HNSW index built and saved to %s\n", indexPath)
		}
		return ix
	}

	fmt.Printf("Using in-memory HNSW index for %d encodings\n", st.Len())
	return facestore.NewIndex(st)
}

// indexFresh reports whether the index file exists and is at least as new as
// the store file.
func indexFresh(storePath, indexPath string) bool {
	ixInfo, err := os.Stat(indexPath)
	if err != nil {
		return false
	}
	stInfo, err := os.Stat(storePath)
	if err != nil {
		return true
	}
	return !ixInfo.ModTime().Before(stInfo.ModTime())
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	storePath := mustGetString(cmd, "store")
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	modelsDir := mustGetString(cmd, "models")
	if modelsDir == "" {
		modelsDir = cfg.Recognition.ModelsDir
	}
	device := mustGetString(cmd, "device")
	if device == "" {
		device = strconv.Itoa(cfg.Camera.Device)
	}
	threshold := mustGetFloat64(cmd, "threshold")
	if threshold == 0 {
		threshold = cfg.Recognition.Threshold
	}
	scale := mustGetFloat64(cmd, "scale")
	if scale == 0 {
		scale = cfg.Recognition.Scale
	}

	st, err := facestore.Load(storePath)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	if st.Len() == 0 {
		fmt.Printf("Warning: store %s is empty, every face will be Unknown\n", storePath)
	} else {
		fmt.Printf("Loaded %d encodings for %d people from %s\n", st.Len(), len(st.People()), storePath)
	}
	matcher := buildMatcher(st, storePath, cfg.Database.IndexPath)

	detectorKind := mustGetString(cmd, "detector")
	needDlib := detectorKind == "dlib" || cfg.Embedding.URL == ""

	var rec *vision.Recognizer
	if needDlib {
		rec, err = vision.NewRecognizer(modelsDir)
		if err != nil {
			return fmt.Errorf("failed to load face recognizer: %w", err)
		}
		defer rec.Close()
	}

	var det facestore.Detector
	switch detectorKind {
	case "dlib":
		det = rec
	case "cascade":
		cascadePath := mustGetString(cmd, "cascade")
		if cascadePath == "" {
			cascadePath = cfg.Recognition.CascadePath
		}
		cascade, err := vision.NewCascadeDetector(cascadePath)
		if err != nil {
			return fmt.Errorf("failed to load cascade detector: %w", err)
		}
		defer cascade.Close()
		det = cascade
	default:
		return fmt.Errorf("unknown detector %q, expected dlib or cascade", detectorKind)
	}

	var enc facestore.Encoder = rec
	if cfg.Embedding.URL != "" {
		enc = vision.NewRemoteEncoder(cfg.Embedding.URL, cfg.Embedding.Dim)
		fmt.Printf("Using remote encoder at %s\n", cfg.Embedding.URL)
	}

	pipe := pipeline.New(det, enc, pipeline.Options{Threshold: threshold, Scale: scale})

	sightingsStore, err := sightings.Open(cfg.Sightings.Driver, cfg.Sightings.DSN)
	if err != nil {
		return fmt.Errorf("failed to open sightings database: %w", err)
	}
	defer sightingsStore.Close()

	snapshotDir := mustGetString(cmd, "snapshots")
	if snapshotDir == "" {
		snapshotDir = cfg.Store.SnapshotDir
	}
	cooldown := mustGetInt(cmd, "cooldown")
	if cooldown == 0 {
		cooldown = cfg.Sightings.Cooldown
	}
	recorder := sightings.NewRecorder(sightingsStore, sightings.RecorderOptions{
		Cooldown:      time.Duration(cooldown) * time.Second,
		SnapshotDir:   snapshotDir,
		RecordUnknown: mustGetBool(cmd, "record-unknown"),
		Camera:        device,
	})

	cam, err := capture.Open(device, cfg.Camera.Width, cfg.Camera.Height)
	if err != nil {
		return fmt.Errorf("failed to open camera %s: %w", device, err)
	}
	defer cam.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	reloadChan := make(chan os.Signal, 1)
	signal.Notify(reloadChan, syscall.SIGHUP)

	maxFrames := mustGetInt(cmd, "max-frames")
	fpsEvery := mustGetInt(cmd, "fps-every")

	fmt.Printf("Watching camera %s, press Ctrl+C to stop\n", device)

	fps := capture.NewFPSCounter(constants.FPSWindowSeconds * time.Second)
	lastFPSLine := time.Now()
	frames := 0

	for frame := range cam.Stream(ctx) {
		select {
		case <-reloadChan:
			// SIGHUP swaps in a freshly trained store between frames.
			fresh, err := facestore.Load(storePath)
			if err != nil {
				fmt.Printf("Warning: store reload failed: %v\n", err)
			} else {
				matcher = buildMatcher(fresh, storePath, cfg.Database.IndexPath)
				fmt.Printf("Reloaded store: %d encodings for %d people\n",
					fresh.Len(), len(fresh.People()))
			}
		default:
		}

		res := pipe.Process(frame.Image, matcher)
		fps.Tick()
		frames++

		for _, face := range res.Faces {
			if face.Known {
				fmt.Printf("[%s] %s (confidence %.2f)\n",
					frame.At.Format("15:04:05"), face.Label, face.Confidence)
			}
			s, err := recorder.Observe(frame.At, face.Label, face.Confidence, face.Known, res.Frame)
			if s != nil {
				fmt.Printf("Recorded sighting of %s\n", s.Label)
			}
			if err != nil {
				fmt.Printf("Warning: %v\n", err)
			}
		}

		if fpsEvery > 0 && time.Since(lastFPSLine) >= time.Duration(fpsEvery)*time.Second {
			fmt.Printf("%.1f FPS, %d frames processed\n", fps.FPS(), frames)
			lastFPSLine = time.Now()
		}

		if maxFrames > 0 && frames >= maxFrames {
			break
		}
	}

	fmt.Printf("Stopped after %d frames\n", frames)
	return nil
}
