package cmd

import (
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"text/tabwriter"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/vision"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>...",
	Short: "Identify faces in still images",
	Long: `Identify faces in one or more image files against the known-face store.

Examples:
  # Who is in this photo?
  facewatch identify visitors.jpg

  # Several photos, machine-readable output
  facewatch identify a.jpg b.jpg c.jpg --json

  # Write an annotated copy of a single photo
  facewatch identify visitors.jpg --annotate boxed.jpg`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().String("store", "", "Store file to load (defaults to STORE_PATH)")
	identifyCmd.Flags().String("models", "", "Directory with the dlib model files (defaults to MODELS_DIR)")
	identifyCmd.Flags().Float64("threshold", 0, "Maximum match distance, 0 uses RECOGNITION_THRESHOLD")
	identifyCmd.Flags().Float64("scale", 0, "Detection downscale factor in (0, 1], 0 uses RECOGNITION_SCALE")
	identifyCmd.Flags().String("annotate", "", "Write the annotated image to this path (single image only)")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

// identifyOutput is the JSON shape of one identified file.
type identifyOutput struct {
	File  string                  `json:"file"`
	Faces []pipeline.DetectedFace `json:"faces"`
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	storePath := mustGetString(cmd, "store")
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	modelsDir := mustGetString(cmd, "models")
	if modelsDir == "" {
		modelsDir = cfg.Recognition.ModelsDir
	}
	threshold := mustGetFloat64(cmd, "threshold")
	if threshold == 0 {
		threshold = cfg.Recognition.Threshold
	}
	scale := mustGetFloat64(cmd, "scale")
	if scale == 0 {
		scale = cfg.Recognition.Scale
	}
	annotatePath := mustGetString(cmd, "annotate")
	asJSON := mustGetBool(cmd, "json")

	if annotatePath != "" && len(args) != 1 {
		return fmt.Errorf("--annotate works with exactly one image, got %d", len(args))
	}

	st, err := facestore.Load(storePath)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	rec, err := vision.NewRecognizer(modelsDir)
	if err != nil {
		return fmt.Errorf("failed to load face recognizer: %w", err)
	}
	defer rec.Close()

	pipe := pipeline.New(rec, rec, pipeline.Options{Threshold: threshold, Scale: scale})

	var results []identifyOutput
	for _, path := range args {
		img, err := vision.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}

		res := pipe.Process(img, st)
		results = append(results, identifyOutput{File: path, Faces: res.Faces})

		if annotatePath != "" {
			out, err := os.Create(annotatePath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", annotatePath, err)
			}
			if err := jpeg.Encode(out, res.Frame, &jpeg.Options{Quality: 90}); err != nil {
				out.Close()
				return fmt.Errorf("failed to write annotated image: %w", err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("failed to write annotated image: %w", err)
			}
			fmt.Printf("Annotated image written to %s\n", annotatePath)
		}
	}

	if asJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tPERSON\tCONFIDENCE\tBOX")
	for _, r := range results {
		if len(r.Faces) == 0 {
			fmt.Fprintf(w, "%s\t(no faces)\t\t\n", r.File)
			continue
		}
		for _, f := range r.Faces {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t(%d,%d)-(%d,%d)\n",
				r.File, f.Label, f.Confidence,
				f.Box.Min.X, f.Box.Min.Y, f.Box.Max.X, f.Box.Max.Y)
		}
	}
	w.Flush()
	return nil
}
