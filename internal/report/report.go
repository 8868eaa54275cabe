// Package report renders a sightings digest to PDF using lualatex.
package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/kozaktomas/facewatch/internal/sightings"
)

//go:embed templates/report.tex
var templateFS embed.FS

// ErrLatexNotFound means the lualatex binary is not installed.
var ErrLatexNotFound = errors.New("lualatex not found in PATH")

const timeFormat = "2006-01-02 15:04"

// ReportData feeds the report template.
type ReportData struct {
	Title          string
	From           string
	To             string
	TotalSightings int
	People         []PersonRow
	Timeline       []TimelineRow
}

// PersonRow is one person's line in the report table.
type PersonRow struct {
	Label         string
	Count         int
	FirstSeen     string
	LastSeen      string
	AvgConfidence float64
}

// TimelineRow is the sighting count of one day.
type TimelineRow struct {
	Day   string
	Count int
}

// Build aggregates sightings into report rows. People are ordered by
// sighting count, the timeline by day.
func Build(title string, from, to time.Time, entries []sightings.Sighting) ReportData {
	type agg struct {
		count int
		first time.Time
		last  time.Time
		conf  float64
	}
	people := make(map[string]*agg)
	days := make(map[string]int)

	for _, e := range entries {
		a, ok := people[e.Label]
		if !ok {
			a = &agg{first: e.At, last: e.At}
			people[e.Label] = a
		}
		a.count++
		a.conf += e.Confidence
		if e.At.Before(a.first) {
			a.first = e.At
		}
		if e.At.After(a.last) {
			a.last = e.At
		}
		days[e.At.Format("2006-01-02")]++
	}

	data := ReportData{
		Title:          title,
		From:           from.Format(timeFormat),
		To:             to.Format(timeFormat),
		TotalSightings: len(entries),
	}

	for label, a := range people {
		data.People = append(data.People, PersonRow{
			Label:         label,
			Count:         a.count,
			FirstSeen:     a.first.Format(timeFormat),
			LastSeen:      a.last.Format(timeFormat),
			AvgConfidence: a.conf / float64(a.count),
		})
	}
	sort.Slice(data.People, func(i, j int) bool {
		if data.People[i].Count != data.People[j].Count {
			return data.People[i].Count > data.People[j].Count
		}
		return data.People[i].Label < data.People[j].Label
	})

	for day, n := range days {
		data.Timeline = append(data.Timeline, TimelineRow{Day: day, Count: n})
	}
	sort.Slice(data.Timeline, func(i, j int) bool {
		return data.Timeline[i].Day < data.Timeline[j].Day
	})

	return data
}

// latexEscape escapes special LaTeX characters in user text.
func latexEscape(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\textbackslash{}`,
		`{`, `\{`,
		`}`, `\}`,
		`%`, `\%`,
		`&`, `\&`,
		`#`, `\#`,
		`$`, `\$`,
		`_`, `\_`,
		`^`, `\textasciicircum{}`,
		`~`, `\textasciitilde{}`,
	)
	return replacer.Replace(s)
}

// RenderTex renders the report template to LaTeX source.
func RenderTex(data ReportData) ([]byte, error) {
	funcMap := template.FuncMap{
		"latexEscape": latexEscape,
		"mulFloat":    func(a, b float64) float64 { return a * b },
	}
	tmpl, err := template.New("report.tex").Funcs(funcMap).ParseFS(templateFS, "templates/report.tex")
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders the report and compiles it to PDF.
func Generate(ctx context.Context, data ReportData) ([]byte, error) {
	if _, err := exec.LookPath("lualatex"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLatexNotFound, err)
	}

	texData, err := RenderTex(data)
	if err != nil {
		return nil, err
	}

	tmpDir, err := os.MkdirTemp("", "facewatch-report-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	texPath := filepath.Join(tmpDir, "report.tex")
	if err := os.WriteFile(texPath, texData, 0600); err != nil {
		return nil, fmt.Errorf("failed to write tex file: %w", err)
	}

	// Run lualatex twice, the second pass resolves longtable widths
	for pass := range 2 {
		cmd := exec.CommandContext(ctx, "lualatex",
			"-interaction=nonstopmode",
			"-output-directory="+tmpDir,
			texPath,
		)
		cmd.Dir = tmpDir
		output, err := cmd.CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("lualatex pass %d failed: %w\n%s", pass+1, err, string(output))
		}
	}

	pdfData, err := os.ReadFile(filepath.Join(tmpDir, "report.pdf"))
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	return pdfData, nil
}
