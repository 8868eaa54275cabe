package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/spf13/cobra"
)

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "Sightings log commands",
	Long:  `Commands for querying and summarizing the log of recognized faces.`,
}

var sightingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sightings, newest first",
	Long: `List recorded sightings, newest first.

Examples:
  # The last 50 sightings
  facewatch sightings list

  # Everyone seen in the last day
  facewatch sightings list --since 24h

  # All sightings of one person
  facewatch sightings list --label alice --limit 0`,
	RunE: runSightingsList,
}

func init() {
	rootCmd.AddCommand(sightingsCmd)
	sightingsCmd.AddCommand(sightingsListCmd)

	sightingsListCmd.Flags().String("label", "", "Show only this person")
	sightingsListCmd.Flags().String("since", "", "Window start, a duration like 24h or an RFC 3339 time")
	sightingsListCmd.Flags().Int("limit", 50, "Maximum rows (0 = no limit)")
	sightingsListCmd.Flags().Bool("json", false, "Output as JSON")
}

// parseSince accepts a duration like 24h or an RFC 3339 timestamp.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q, expected a duration like 24h or an RFC 3339 time", s)
	}
	return t, nil
}

// openSightings opens the configured sightings database.
func openSightings(cfg *config.Config) (sightings.Store, error) {
	store, err := sightings.Open(cfg.Sightings.Driver, cfg.Sightings.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sightings database: %w", err)
	}
	return store, nil
}

func runSightingsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	since, err := parseSince(mustGetString(cmd, "since"))
	if err != nil {
		return err
	}

	store, err := openSightings(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(sightings.Query{
		Label: mustGetString(cmd, "label"),
		Since: since,
		Limit: mustGetInt(cmd, "limit"),
	})
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal sightings: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No sightings recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPERSON\tCONFIDENCE\tCAMERA\tSNAPSHOT")
	for _, s := range entries {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
			s.At.Format("2006-01-02 15:04:05"), s.Label, s.Confidence, s.Camera, s.Snapshot)
	}
	w.Flush()

	fmt.Printf("\n%d sightings\n", len(entries))
	return nil
}
