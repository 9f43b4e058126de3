package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"ID", "Name", "Created At"},
		Rows: []map[string]string{
			{"ID": "o1", "Name": "Anna", "Created At": "2026-09-01T10:00:00Z"},
			{"ID": "o2", "Name": "Bob", "Created At": "2026-09-02T11:30:00Z"},
		},
		MinWidths: map[string]float64{"Created At": 20},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"ID", "Name", "Created At"}, records[0])
	assert.Equal(t, []string{"o1", "Anna", "2026-09-01T10:00:00Z"}, records[1])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestExcelExporterRender(t *testing.T) {
	payload, err := NewExcelExporter().Render(sampleDataset(), "Orders")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "Orders", f.GetSheetName(0))

	header, err := f.GetCellValue("Orders", "A1")
	require.NoError(t, err)
	assert.Equal(t, "ID", header)

	name, err := f.GetCellValue("Orders", "B3")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	// column C honors the configured minimum even though values exceed it
	width, err := f.GetColWidth("Orders", "C")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, width, 20.0)
}

func TestExcelExporterColumnBroaderThanMinimum(t *testing.T) {
	data := sampleDataset()
	data.Rows[0]["Name"] = "An exceptionally long customer name"

	payload, err := NewExcelExporter().Render(data, "Orders")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close()

	width, err := f.GetColWidth("Orders", "B")
	require.NoError(t, err)
	assert.Greater(t, width, float64(len("Name")+2))
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleDataset(), "Orders")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "Orders")
	require.Error(t, err)
}
