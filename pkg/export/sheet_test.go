package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCSV(t *testing.T) {
	sheet := Sheet{
		Columns: []string{"Student", "Date", "Status"},
		Rows: [][]string{
			{"Mia", "2024-05-01", "present"},
			{"Leo", "2024-05-01", "absent"},
		},
	}

	out, err := RenderCSV(sheet)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 3)
	assert.Equal(t, "Student,Date,Status", lines[0])
	assert.Contains(t, lines[1], "Mia")
}

func TestRenderCSVRequiresColumns(t *testing.T) {
	_, err := RenderCSV(Sheet{})
	require.Error(t, err)
}

func TestRenderPDF(t *testing.T) {
	sheet := Sheet{
		Title:   "Asistencia Grupo Arcoiris",
		Columns: []string{"Student", "Status"},
		Rows:    [][]string{{"Mia", "present"}},
	}

	out, err := RenderPDF(sheet)
	require.NoError(t, err)
	assert.True(t, len(out) > 0)
	assert.Equal(t, "%PDF", string(out[:4]))
}
