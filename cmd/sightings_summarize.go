package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/facewatch/internal/ai"
	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/sightings"
	"github.com/spf13/cobra"
)

var sightingsSummarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize recent sightings with an AI model",
	Long: `Ask an AI model for a natural-language digest of recent sightings:
who came by, how often, anything out of the ordinary.

Examples:
  # Summarize the last 24 hours with OpenAI
  facewatch sightings summarize

  # A week, with Gemini
  facewatch sightings summarize --since 168h --provider gemini`,
	RunE: runSightingsSummarize,
}

func init() {
	sightingsCmd.AddCommand(sightingsSummarizeCmd)

	sightingsSummarizeCmd.Flags().String("provider", "openai", "AI provider: openai or gemini")
	sightingsSummarizeCmd.Flags().String("since", "24h", "Window start, a duration like 24h or an RFC 3339 time")
	sightingsSummarizeCmd.Flags().String("model", "", "Model name (defaults to the provider default)")
}

func runSightingsSummarize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	since, err := parseSince(mustGetString(cmd, "since"))
	if err != nil {
		return err
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}

	if model := mustGetString(cmd, "model"); model != "" {
		cfg.OpenAI.Model = model
		cfg.Gemini.Model = model
	}

	var provider ai.Provider
	switch name := mustGetString(cmd, "provider"); name {
	case "openai":
		provider, err = ai.NewOpenAI(cfg)
	case "gemini":
		provider, err = ai.NewGemini(ctx, cfg)
	default:
		return fmt.Errorf("unknown provider %q, expected openai or gemini", name)
	}
	if err != nil {
		return fmt.Errorf("failed to create AI provider: %w", err)
	}

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
	if len(entries) == 0 {
		fmt.Println("No sightings in the window, nothing to summarize")
		return nil
	}

	window := ai.NewWindow(since, now, entries)
	fmt.Printf("Summarizing %d sightings with %s...\n\n", len(entries), provider.Name())

	summary, err := provider.SummarizeSightings(ctx, window)
	if err != nil {
		return fmt.Errorf("failed to summarize sightings: %w", err)
	}

	fmt.Println(summary.Overview)
	if len(summary.PerPerson) > 0 {
		fmt.Println()
		for _, p := range summary.PerPerson {
			fmt.Printf("  %s (%d): %s\n", p.Label, p.Count, p.Note)
		}
	}

	fmt.Printf("\nTokens: %d prompt + %d completion, cost $%.4f\n",
		summary.Usage.PromptTokens, summary.Usage.CompletionTokens, summary.Usage.Cost)
	return nil
}
