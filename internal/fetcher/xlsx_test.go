package fetcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeTestWorkbook(t *testing.T) string {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Services")
	require.NoError(t, err)

	for _, cells := range [][]string{
		{"Name", "Address", "Phone"},
		{"Community Kitchen", "85 Queen St", "613-555-0100"},
		{"Youth Shelter", "234 Brock St", ""},
	} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}

	path := filepath.Join(t.TempDir(), "services.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeTestWorkbook(t)

	header, rows, err := ReadXLSX(path, XLSXOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Address", "Phone"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Community Kitchen", "85 Queen St", "613-555-0100"}, rows[0])
}

func TestReadXLSXBySheetName(t *testing.T) {
	path := writeTestWorkbook(t)

	_, _, err := ReadXLSX(path, XLSXOptions{SheetName: "Services"})
	require.NoError(t, err)

	_, _, err = ReadXLSX(path, XLSXOptions{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Missing" not found`)
}

func TestReadXLSXSheetIndexOutOfRange(t *testing.T) {
	path := writeTestWorkbook(t)

	_, _, err := ReadXLSX(path, XLSXOptions{SheetIndex: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
