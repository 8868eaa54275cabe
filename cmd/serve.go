package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/facestore"
	"github.com/kozaktomas/facewatch/internal/pipeline"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/kozaktomas/facewatch/internal/vision"
	"github.com/kozaktomas/facewatch/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web API server",
	Long: `Start the facewatch web API.

The API exposes recognition over HTTP: upload an image, get the faces
back, optionally annotated. The known-face store can be reloaded without
restarting, and the sightings log is queryable.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on, 0 uses WEB_PORT")
	serveCmd.Flags().String("host", "", "Host to bind to, empty uses WEB_HOST")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	port := mustGetInt(cmd, "port")
	if port == 0 {
		port = cfg.Web.Port
	}
	host := mustGetString(cmd, "host")
	if host == "" {
		host = cfg.Web.Host
	}

	st, err := facestore.Load(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}
	fmt.Printf("Loaded %d encodings for %d people from %s\n",
		st.Len(), len(st.People()), cfg.Store.Path)

	rec, err := vision.NewRecognizer(cfg.Recognition.ModelsDir)
	if err != nil {
		return fmt.Errorf("failed to load face recognizer: %w", err)
	}
	defer rec.Close()

	var enc facestore.Encoder = rec
	if cfg.Embedding.URL != "" {
		enc = vision.NewRemoteEncoder(cfg.Embedding.URL, cfg.Embedding.Dim)
		fmt.Printf("Using remote encoder at %s\n", cfg.Embedding.URL)
	}

	pipe := pipeline.New(rec, enc, pipeline.Options{
		Threshold: cfg.Recognition.Threshold,
		Scale:     cfg.Recognition.Scale,
	})

	var sightingsStore sightings.Store
	if store, err := sightings.Open(cfg.Sightings.Driver, cfg.Sightings.DSN); err != nil {
		fmt.Printf("Warning: sightings database unavailable: %v\n", err)
	} else {
		sightingsStore = store
		defer store.Close()
	}

	server := web.NewServer(cfg, port, host, web.Deps{
		Store:     st,
		StorePath: cfg.Store.Path,
		Pipeline:  pipe,
		Sightings: sightingsStore,
		Version:   Version,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting facewatch API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
