package history

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/quickpen-app/quickpen/pkg/models"
)

// ExportFilename builds the download name for an export artifact, e.g.
// QuickPen_Export_2024-03-01T09-30-00.txt.
func ExportFilename(ext string, now time.Time) string {
	return fmt.Sprintf("QuickPen_Export_%s.%s", now.Format("2006-01-02T15-04-05"), ext)
}

// exportMeta aggregates the header/summary figures shared by both export
// formats. Sprints are returned sorted ascending by completion time.
type exportMeta struct {
	sprints    []*models.Sprint
	totalWords int
	totalSecs  int
	tags       []string
}

func buildMeta(records []*models.Sprint) exportMeta {
	sorted := make([]*models.Sprint, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
	})

	m := exportMeta{sprints: sorted, tags: UniqueTags(sorted)}
	for _, s := range sorted {
		m.totalWords += s.WordCount
		m.totalSecs += s.EffectiveDuration()
	}
	return m
}

func (m exportMeta) dateRange() string {
	if len(m.sprints) == 0 {
		return "-"
	}
	first := m.sprints[0].CompletedAt.Format("2006-01-02")
	last := m.sprints[len(m.sprints)-1].CompletedAt.Format("2006-01-02")
	return first + " - " + last
}

func (m exportMeta) tagList() string {
	if len(m.tags) == 0 {
		return "None"
	}
	return strings.Join(m.tags, ", ")
}

// ExportText writes the selected sprints as a flat UTF-8 text report:
// a metadata header followed by each sprint's content in ascending
// completion order, separated by blank lines.
func ExportText(w io.Writer, records []*models.Sprint, now time.Time) error {
	m := buildMeta(records)

	header := fmt.Sprintf(
		"QuickPen Sprint Export\nGenerated: %s\nSprints: %d\nDate range: %s\nTotal words: %d\nTotal time: %s\nTags: %s\n",
		now.Format(time.RFC3339),
		len(m.sprints),
		m.dateRange(),
		m.totalWords,
		models.FormatDuration(m.totalSecs),
		m.tagList(),
	)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	for _, s := range m.sprints {
		if _, err := fmt.Fprintf(w, "\n%s\n", s.Content); err != nil {
			return err
		}
	}
	return nil
}
