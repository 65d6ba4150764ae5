package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docqa/internal/doctree"
)

// csvBatchSize is the number of data rows grouped under one heading.
const csvBatchSize = 20

// CSVParser handles CSV files. Rows are grouped into batches, each under a
// "Rows a-b" heading, with every row rendered as "header: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	title := titleFor(filename)
	if len(records) == 0 {
		return doctree.NewStructured(title, nil), nil
	}

	headers := records[0]
	rows := records[1:]
	var paras []doctree.Paragraph
	for i := 0; i < len(rows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(rows))
		// Line numbers are 1-indexed and skip the header row.
		paras = append(paras, doctree.Paragraph{
			Style: headingStyle(1),
			Text:  fmt.Sprintf("Rows %d-%d", i+2, end+1),
		})
		for _, row := range rows[i:end] {
			paras = append(paras, doctree.Paragraph{Style: bodyStyle, Text: csvRow(headers, row)})
		}
	}
	return doctree.NewStructured(title, paras), nil
}

func csvRow(headers, row []string) string {
	cells := make([]string, len(row))
	for j, cell := range row {
		if j < len(headers) && headers[j] != "" {
			cells[j] = headers[j] + ": " + cell
		} else {
			cells[j] = cell
		}
	}
	return strings.Join(cells, ", ")
}
