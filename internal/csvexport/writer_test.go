package csvexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxatlas/internal/domain"
)

func exportCalculation(t *testing.T, breakdown []domain.BreakdownLine) domain.TaxCalculation {
	t.Helper()
	var raw json.RawMessage
	if breakdown != nil {
		b, err := json.Marshal(breakdown)
		require.NoError(t, err)
		raw = b
	}
	return domain.TaxCalculation{
		CalculationID:    "calc_" + uuid.NewString(),
		CalculableType:   domain.CalculableInvoiceLine,
		CalculableID:     uuid.New(),
		ClientID:         uuid.New(),
		ServiceType:      "voip",
		TaxCategory:      "telecom",
		BaseAmount:       decimal.NewFromInt(100),
		TotalTax:         decimal.NewFromFloat(7.10),
		FinalAmount:      decimal.NewFromFloat(107.10),
		EffectiveRate:    decimal.NewFromFloat(0.071),
		ResolutionMethod: domain.ResolutionExact,
		ResolutionScore:  decimal.NewFromInt(1),
		Status:           domain.CalculationPending,
		NeedsReview:      false,
		AsOfDate:         time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:        time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC),
		Breakdown:        raw,
	}
}

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	w.Flush()

	rows := readRows(t, &buf)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 23)
	assert.Equal(t, "Calculation ID", rows[0][0])
	assert.Equal(t, "Jurisdiction Code", rows[0][10])
	assert.Equal(t, "Created At", rows[0][22])
}

func TestWriteCalculations_OneRowPerBreakdownLine(t *testing.T) {
	calc := exportCalculation(t, []domain.BreakdownLine{
		{
			JurisdictionCode: "IL",
			TaxName:          "IL State Sales Tax",
			RateApplied:      decimal.NewFromFloat(0.05),
			TaxableBase:      decimal.NewFromInt(100),
			TaxAmount:        decimal.NewFromInt(5),
		},
		{
			JurisdictionCode: "SPR",
			TaxName:          "Springfield Utility Tax",
			RateApplied:      decimal.NewFromFloat(0.02),
			TaxableBase:      decimal.NewFromInt(105),
			TaxAmount:        decimal.NewFromFloat(2.10),
			IsCompound:       true,
		},
	})

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteCalculations([]domain.TaxCalculation{calc}))
	w.Flush()
	require.NoError(t, w.Error())

	rows := readRows(t, &buf)
	require.Len(t, rows, 2)

	// Metadata repeats on every row so each line stands alone.
	for _, row := range rows {
		assert.Equal(t, calc.CalculationID, row[0])
		assert.Equal(t, "pending", row[1])
		assert.Equal(t, "2026-04-01", row[7])
		assert.Equal(t, "100.00", row[17])
		assert.Equal(t, "7.10", row[18])
		assert.Equal(t, "107.10", row[19])
		assert.Equal(t, "No", row[21])
	}
	assert.Equal(t, "IL", rows[0][10])
	assert.Equal(t, "5.00", rows[0][14])
	assert.Equal(t, "No", rows[0][15])
	assert.Equal(t, "SPR", rows[1][10])
	assert.Equal(t, "2.10", rows[1][14])
	assert.Equal(t, "Yes", rows[1][15])
	assert.Equal(t, "105.00", rows[1][13])
}

func TestWriteCalculations_EmptyBreakdownGetsMetadataRow(t *testing.T) {
	calc := exportCalculation(t, nil)
	calc.ResolutionMethod = domain.ResolutionUnresolved
	calc.NeedsReview = true

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteCalculations([]domain.TaxCalculation{calc}))
	w.Flush()

	rows := readRows(t, &buf)
	require.Len(t, rows, 1)
	assert.Equal(t, "unresolved", rows[0][8])
	assert.Equal(t, "", rows[0][10])
	assert.Equal(t, "Yes", rows[0][21])
}

func TestWriteCalculations_MalformedBreakdownFallsBack(t *testing.T) {
	calc := exportCalculation(t, nil)
	calc.Breakdown = json.RawMessage(`{broken`)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteCalculations([]domain.TaxCalculation{calc}))
	w.Flush()

	rows := readRows(t, &buf)
	require.Len(t, rows, 1)
	assert.Equal(t, calc.CalculationID, rows[0][0])
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "calculations", SanitizeFilename("calculations"))
	assert.Equal(t, "tax_report_Q2", SanitizeFilename("tax report: Q2!"))
	assert.Equal(t, "a_b", SanitizeFilename("__a///b__"))

	long := SanitizeFilename(string(bytes.Repeat([]byte("x"), 150)))
	assert.Len(t, long, 100)
}

func TestBuildFilename(t *testing.T) {
	name := BuildFilename("calculations")
	assert.Equal(t, fmt.Sprintf("calculations_%s.csv", time.Now().Format("2006-01-02")), name)
}
