package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/vision"
	"github.com/spf13/cobra"
)

var trainCmd = &cobra.Command{
	Use:   "train <dir>",
	Short: "Build the known-face store from labeled photo directories",
	Long: `Build the known-face store from a directory tree.

The directory must contain one subdirectory per person, named after that
person, with their photos inside:

  people/
    alice/
      holiday.jpg
      portrait.png
    bob/
      selfie.jpg

Each photo must show exactly one face; photos with none or several faces
are skipped and listed in the report.

Examples:
  # Train from ./people into the default store file
  facewatch train ./people

  # Keep the store somewhere else and restrict extensions
  facewatch train ./people --store /var/lib/facewatch/faces.bin --ext jpg,png

  # See what would be trained without writing the store
  facewatch train ./people --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().String("store", "", "Store file to write (defaults to STORE_PATH)")
	trainCmd.Flags().String("models", "", "Directory with the dlib model files (defaults to MODELS_DIR)")
	trainCmd.Flags().StringSlice("ext", nil, "Image extensions to consider (default jpg,jpeg,png)")
	trainCmd.Flags().Bool("dry-run", false, "Train but do not write the store file")
	trainCmd.Flags().Bool("json", false, "Print the training report as JSON")
}

// trainOutput is the JSON shape of a training report.
type trainOutput struct {
	Trained int                      `json:"trained"`
	People  map[string]int           `json:"people"`
	Skipped []facestore.SkippedImage `json:"skipped"`
	Store   string                   `json:"store,omitempty"`
}

func runTrain(cmd *cobra.Command, args []string) error {
	root := args[0]
	cfg := config.Load()

	storePath := mustGetString(cmd, "store")
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	modelsDir := mustGetString(cmd, "models")
	if modelsDir == "" {
		modelsDir = cfg.Recognition.ModelsDir
	}
	dryRun := mustGetBool(cmd, "dry-run")
	asJSON := mustGetBool(cmd, "json")

	rec, err := vision.NewRecognizer(modelsDir)
	if err != nil {
		return fmt.Errorf("failed to load face recognizer: %w", err)
	}
	defer rec.Close()

	st, report, err := facestore.Train(context.Background(), root, rec, rec, facestore.TrainOptions{
		Extensions: mustGetStringSlice(cmd, "ext"),
		Progress:   !asJSON,
		LoadImage:  vision.LoadImage, // adds bmp and gif support for --ext
	})
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	saved := ""
	if !dryRun {
		if err := st.Save(storePath); err != nil {
			return fmt.Errorf("failed to save store: %w", err)
		}
		saved = storePath
	}

	if asJSON {
		out := trainOutput{
			Trained: report.Trained,
			People:  report.People,
			Skipped: report.Skipped,
			Store:   saved,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	labels := make([]string, 0, len(report.People))
	for label := range report.People {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERSON\tENCODINGS")
	for _, label := range labels {
		fmt.Fprintf(w, "%s\t%d\n", label, report.People[label])
	}
	w.Flush()

	fmt.Printf("\nTrained %d encodings for %d people\n", report.Trained, len(report.People))

	if len(report.Skipped) > 0 {
		fmt.Printf("Skipped %d images:\n", len(report.Skipped))
		for _, s := range report.Skipped {
			fmt.Printf("  %s: %s\n", s.Path, s.Reason)
		}
	}

	if dryRun {
		fmt.Println("Dry run, store not written")
	} else {
		fmt.Printf("Store written to %s\n", saved)
	}
	return nil
}
