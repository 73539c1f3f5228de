package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/xuri/excelize/v2"
)

// Format identifies a ledger export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format string, defaulting to CSV when empty
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// FileName builds the download file name for a channel's ledger export
func FileName(channelCode string, format Format, at time.Time) string {
	return fmt.Sprintf("ledger-%s-%s.%s", channelCode, at.Format("20060102"), format)
}

var ledgerHeader = []string{
	"Date", "Type", "Reference", "Description", "Amount", "Running Balance", "Status", "Statement",
}

// WriteCSV streams ledger rows as CSV
func WriteCSV(w io.Writer, rows []appbilling.LedgerExportRow) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ledgerHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02 15:04:05"),
			row.Type,
			row.ReferenceID,
			row.Description,
			row.Amount.StringFixed(2),
			row.RunningBalance.StringFixed(2),
			row.Status,
			row.StatementID,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// BuildXLSX renders ledger rows as a single-sheet workbook
func BuildXLSX(channelCode string, rows []appbilling.LedgerExportRow) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "Ledger"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", fmt.Sprintf("Channel ledger: %s", channelCode))
	for col, title := range ledgerHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 2)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, title)
	}

	for i, row := range rows {
		r := i + 3
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", r), row.Date.Format("2006-01-02 15:04:05"))
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", r), row.Type)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.ReferenceID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", r), row.Description)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", r), row.Amount.InexactFloat64())
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", r), row.RunningBalance.InexactFloat64())
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", r), row.Status)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", r), row.StatementID)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
