package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseXLSX renders each sheet as a markdown-style pipe table. The text
// and markdown renderings are the same for spreadsheets.
func parseXLSX(path string) (string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", "", fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var out strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString("## " + sheet + "\n\n")
		for _, row := range rows {
			out.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
	}

	if out.Len() == 0 {
		return "", "", fmt.Errorf("no data found in XLSX")
	}

	content := strings.TrimSpace(out.String())
	return content, content, nil
}
