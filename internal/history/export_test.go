package history

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickpen-app/quickpen/pkg/models"
)

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "QuickPen_Export_2024-03-01T09-30-00.txt", ExportFilename("txt", now))
	assert.Equal(t, "QuickPen_Export_2024-03-01T09-30-00.pdf", ExportFilename("pdf", now))
}

func TestExportTextHeader(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	records := []*models.Sprint{
		testSprint(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), "second day writing", "fiction"),
		testSprint(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), "first day writing", "essay"),
	}
	records[0].WordCount = 3
	records[1].WordCount = 3

	var buf bytes.Buffer
	require.NoError(t, ExportText(&buf, records, now))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "QuickPen Sprint Export\n"))
	assert.Contains(t, out, "Sprints: 2\n")
	assert.Contains(t, out, "Date range: 2024-03-01 - 2024-03-02\n")
	assert.Contains(t, out, "Total words: 6\n")
	assert.Contains(t, out, "Total time: 10:00\n")
	assert.Contains(t, out, "Tags: essay, fiction\n")
}

func TestExportTextContentsAscending(t *testing.T) {
	now := time.Now()
	records := []*models.Sprint{
		testSprint(time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), "newer content"),
		testSprint(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), "older content"),
	}

	var buf bytes.Buffer
	require.NoError(t, ExportText(&buf, records, now))
	out := buf.String()

	older := strings.Index(out, "older content")
	newer := strings.Index(out, "newer content")
	require.GreaterOrEqual(t, older, 0)
	require.GreaterOrEqual(t, newer, 0)
	assert.Less(t, older, newer)
}

func TestExportTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportText(&buf, nil, time.Now()))
	out := buf.String()

	assert.Contains(t, out, "Sprints: 0\n")
	assert.Contains(t, out, "Date range: -\n")
	assert.Contains(t, out, "Tags: None\n")
}

func TestExportPDFProducesDocument(t *testing.T) {
	records := []*models.Sprint{
		testSprint(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), "pdf body text", "fiction"),
	}

	var buf bytes.Buffer
	require.NoError(t, ExportPDF(&buf, records, time.Now()))

	// A valid PDF starts with the %PDF magic.
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Greater(t, buf.Len(), 500)
}

func TestExportPDFEmptySelection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ExportPDF(&buf, nil, time.Now()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}
