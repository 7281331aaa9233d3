package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:    "Schedule T1",
		Subtitle: "2024-07-01 to 2024-07-07",
		Headers:  []string{"Date", "Start", "End", "Purpose"},
		Rows: [][]string{
			{"2024-07-01", "10:00", "11:00", "Math, 8A"},
			{"2024-07-01", "11:00", "12:00", "Science"},
		},
		Widths: []float64{2, 1, 1, 4},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Date,Start,End,Purpose\n2024-07-01,10:00,11:00,\"Math, 8A\"\n2024-07-01,11:00,12:00,Science\n", string(out))
}

func TestCSVExporterRejectsRaggedRows(t *testing.T) {
	data := sampleDataset()
	data.Rows = append(data.Rows, []string{"only one"})
	_, err := NewCSVExporter().Render(data)
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := sampleDataset()
	for i := 0; i < 60; i++ {
		data.Rows = append(data.Rows, []string{"2024-07-02", "07:00", "08:00", "Assembly"})
	}
	out, err := NewPDFExporter().Render(data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterWidthMismatch(t *testing.T) {
	data := sampleDataset()
	data.Widths = []float64{1}
	_, err := NewPDFExporter().Render(data)
	assert.Error(t, err)
}

func TestColumnWidthsWeighted(t *testing.T) {
	widths := columnWidths(Dataset{Headers: []string{"a", "b"}, Widths: []float64{1, 3}}, 200)
	assert.InDelta(t, 50, widths[0], 0.001)
	assert.InDelta(t, 150, widths[1], 0.001)
}
