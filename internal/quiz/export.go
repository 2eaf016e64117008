package quiz

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"docquiz/internal/models"
)

// ExportFileName is the download name of the CSV export.
const ExportFileName = "generated_quiz.csv"

// ExportHeader is the first CSV row.
var ExportHeader = []string{
	"No", "Question", "Option 1", "Option 2", "Option 3", "Option 4", "Answer", "Explanation",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes one row per item, numbered from 1, with the options
// spread over four columns. Missing options are left blank and options
// past the fourth are dropped. The output starts with a UTF-8 byte order
// mark so spreadsheet programs pick the right encoding.
func WriteCSV(w io.Writer, items []models.QuizItem) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, it := range items {
		row := make([]string, 0, len(ExportHeader))
		row = append(row, strconv.Itoa(i+1), it.Question)
		for o := range models.OptionCount {
			row = append(row, it.Option(o))
		}
		row = append(row, it.Answer, it.Explanation)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
