package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
)

// Format is resolved once from the file name at upload acceptance and passed
// explicitly; no repeated extension matching downstream.
type Format string

const (
	FormatDelimited   Format = "delimited"
	FormatSpreadsheet Format = "spreadsheet"
)

// requiredFields is the schema width: account number, amount, currency.
const requiredFields = 3

// FormatFromFilename resolves the parse format from the file extension and
// doubles as the upload allow-list.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatDelimited, nil
	case ".xlsx", ".xls":
		return FormatSpreadsheet, nil
	default:
		return "", domain.ErrInvalidFileType
	}
}

// RowReader yields parsed rows one at a time, io.EOF at the end. Readers are
// single forward passes over the source bytes and are not restartable.
type RowReader interface {
	Next() (domain.BatchRow, error)
}

// New builds a reader for the already-resolved format. Rows with fewer than
// the required fields are skipped silently (tolerates trailing blank lines);
// a field that fails to parse as a decimal aborts the entire read.
func New(format Format, r io.Reader) (RowReader, error) {
	switch format {
	case FormatDelimited:
		return newDelimitedReader(r), nil
	case FormatSpreadsheet:
		return newSpreadsheetReader(r)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

type delimitedReader struct {
	csv *csv.Reader
}

func newDelimitedReader(r io.Reader) *delimitedReader {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1
	return &delimitedReader{csv: cr}
}

func (d *delimitedReader) Next() (domain.BatchRow, error) {
	for {
		record, err := d.csv.Read()
		if err == io.EOF {
			return domain.BatchRow{}, io.EOF
		}
		if err != nil {
			return domain.BatchRow{}, fmt.Errorf("read delimited row: %w", err)
		}

		// Short rows are not failures, just skipped.
		if len(record) < requiredFields {
			continue
		}

		return buildRow(record)
	}
}

type spreadsheetReader struct {
	rows [][]string
	pos  int
}

// newSpreadsheetReader reads the first sheet only; the first row is always a
// header and is skipped.
func newSpreadsheetReader(r io.Reader) (*spreadsheetReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	reader := &spreadsheetReader{rows: rows}
	if len(rows) > 0 {
		reader.pos = 1
	}
	return reader, nil
}

func (s *spreadsheetReader) Next() (domain.BatchRow, error) {
	for s.pos < len(s.rows) {
		record := s.rows[s.pos]
		s.pos++

		if missingRequiredCell(record) {
			continue
		}

		return buildRow(record)
	}
	return domain.BatchRow{}, io.EOF
}

func missingRequiredCell(record []string) bool {
	if len(record) < requiredFields {
		return true
	}
	for i := 0; i < requiredFields; i++ {
		if strings.TrimSpace(record[i]) == "" {
			return true
		}
	}
	return false
}

func buildRow(record []string) (domain.BatchRow, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(record[1]))
	if err != nil {
		return domain.BatchRow{}, fmt.Errorf("%w: amount %q: %v", domain.ErrMalformedRow, record[1], err)
	}

	row := domain.BatchRow{
		AccountNumber: strings.TrimSpace(record[0]),
		Amount:        amount,
		Currency:      strings.TrimSpace(record[2]),
	}
	if len(record) > requiredFields {
		row.Remarks = strings.TrimSpace(record[3])
	}
	return row, nil
}
