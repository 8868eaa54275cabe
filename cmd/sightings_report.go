package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/report"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/spf13/cobra"
)

var sightingsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a PDF report of recorded sightings",
	Long: `Render a PDF report of recorded sightings: per-person totals and a
per-day timeline. Requires lualatex; without it the LaTeX source is kept
so it can be compiled elsewhere.

Examples:
  # Report on the last 7 days
  facewatch sightings report

  # A month, to a chosen file
  facewatch sightings report --since 720h --output march.pdf`,
	RunE: runSightingsReport,
}

func init() {
	sightingsCmd.AddCommand(sightingsReportCmd)

	sightingsReportCmd.Flags().String("since", "168h", "Window start, a duration like 168h or an RFC 3339 time")
	sightingsReportCmd.Flags().String("output", "report.pdf", "Output PDF path")
	sightingsReportCmd.Flags().String("title", "Sightings report", "Report title")
}

func runSightingsReport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	since, err := parseSince(mustGetString(cmd, "since"))
	if err != nil {
		return err
	}
	if since.IsZero() {
		since = time.Now().Add(-7 * 24 * time.Hour)
	}
	output := mustGetString(cmd, "output")

	store, err := openSightings(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	now := time.Now()
	entries, err := store.List(sightings.Query{Since: since})
	if err != nil {
		return err
	}

	data := report.Build(mustGetString(cmd, "title"), since, now, entries)

	pdf, err := report.Generate(context.Background(), data)
	if errors.Is(err, report.ErrLatexNotFound) {
		texPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".tex"
		tex, rerr := report.RenderTex(data)
		if rerr != nil {
			return rerr
		}
		if werr := os.WriteFile(texPath, tex, 0600); werr != nil {
			return fmt.Errorf("failed to write LaTeX source: %w", werr)
		}
		fmt.Printf("lualatex is not installed; wrote LaTeX source to %s instead\n", texPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	if err := os.WriteFile(output, pdf, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Printf("Report written to %s (%d sightings, %d people)\n",
		output, data.TotalSightings, len(data.People))
	return nil
}
