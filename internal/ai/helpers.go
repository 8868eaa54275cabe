package ai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kozaktomas/facewatch/internal/sightings"
)

// maxWindowEntries bounds the prompt size. Counts stay complete.
const maxWindowEntries = 200

// NewWindow assembles a summarization window from listed sightings.
func NewWindow(from, to time.Time, entries []sightings.Sighting) SightingsWindow {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Label]++
	}

	capped := entries
	if len(capped) > maxWindowEntries {
		capped = capped[:maxWindowEntries]
	}

	return SightingsWindow{From: from, To: to, Counts: counts, Entries: capped}
}

// buildSummaryContent builds the user message content for sightings
// summarization. This is shared across all AI providers.
func buildSummaryContent(w SightingsWindow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Period: %s to %s\n", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))

	labels := make([]string, 0, len(w.Counts))
	total := 0
	for label, n := range w.Counts {
		labels = append(labels, label)
		total += n
	}
	sort.Strings(labels)

	fmt.Fprintf(&b, "Total sightings: %d\n", total)
	b.WriteString("\nSightings per person:\n")
	for _, label := range labels {
		fmt.Fprintf(&b, "- %s: %d\n", label, w.Counts[label])
	}

	b.WriteString("\nEvents (newest first):\n")
	for i, e := range w.Entries {
		fmt.Fprintf(&b, "%d. %s  %s  confidence %.2f",
			i+1, e.At.Format("2006-01-02 15:04:05"), e.Label, e.Confidence)
		if e.Camera != "" {
			fmt.Fprintf(&b, "  camera %s", e.Camera)
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// stripCodeFences removes a markdown code fence wrapper when a model
// ignores the JSON-only instruction.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// parseSummary decodes a model response into a Summary.
func parseSummary(content string) (*Summary, error) {
	var summary Summary
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
