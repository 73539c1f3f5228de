package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	appbilling "github.com/partnerbill/backend/internal/application/billing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []appbilling.LedgerExportRow {
	day := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return []appbilling.LedgerExportRow{
		{
			Date:           day,
			Type:           "RECEIVABLE",
			ReferenceID:    "ORD-1001",
			Description:    "Order ORD-1001",
			Amount:         decimal.NewFromInt(250),
			RunningBalance: decimal.NewFromInt(250),
			Status:         "UNPAID",
		},
		{
			Date:           day.Add(48 * time.Hour),
			Type:           "PAYMENT",
			ReferenceID:    "PAY-77",
			Description:    "Bank transfer",
			Amount:         decimal.NewFromInt(-100),
			RunningBalance: decimal.NewFromInt(150),
			Status:         "SETTLED",
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	format, err = ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	format, err = ParseFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = ParseFormat("pdf")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "ledger-ACME-20260203.csv", FileName("ACME", FormatCSV, at))
	assert.Equal(t, "ledger-ACME-20260203.xlsx", FileName("ACME", FormatXLSX, at))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, ledgerHeader, records[0])
	assert.Equal(t, "RECEIVABLE", records[1][1])
	assert.Equal(t, "250.00", records[1][4])
	assert.Equal(t, "-100.00", records[2][4])
	assert.Equal(t, "150.00", records[2][5])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestBuildXLSX(t *testing.T) {
	data, err := BuildXLSX("ACME", sampleRows())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue("Ledger", "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "ACME")

	header, err := f.GetCellValue("Ledger", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Type", header)

	refCell, err := f.GetCellValue("Ledger", "C4")
	require.NoError(t, err)
	assert.Equal(t, "PAY-77", refCell)
}
