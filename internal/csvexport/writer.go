package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"taxatlas/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the CSV header row. One row per breakdown line; the
// calculation metadata repeats so each row is self-contained for audit.
var columns = []string{
	"Calculation ID",
	"Status",
	"Calculable Type",
	"Calculable ID",
	"Client ID",
	"Service Type",
	"Tax Category",
	"As Of Date",
	"Resolution Method",
	"Resolution Confidence",
	"Jurisdiction Code",
	"Tax Name",
	"Rate Applied",
	"Taxable Base",
	"Tax Amount",
	"Is Compound",
	"Exempted Amount",
	"Base Amount",
	"Total Tax",
	"Final Amount",
	"Effective Rate",
	"Needs Review",
	"Created At",
}

// Writer wraps csv.Writer for exporting calculations as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteCalculations converts a batch of calculations to CSV rows and writes
// them, one row per breakdown line. Calculations whose breakdown cannot be
// decoded, or with an empty breakdown, still get a single metadata row.
func (w *Writer) WriteCalculations(calcs []domain.TaxCalculation) error {
	for i := range calcs {
		rows := calculationToRows(&calcs[i])
		for _, row := range rows {
			if err := w.csv.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func calculationToRows(calc *domain.TaxCalculation) [][]string {
	base := make([]string, len(columns))
	base[0] = calc.CalculationID
	base[1] = string(calc.Status)
	base[2] = string(calc.CalculableType)
	base[3] = calc.CalculableID.String()
	base[4] = calc.ClientID.String()
	base[5] = calc.ServiceType
	base[6] = calc.TaxCategory
	base[7] = calc.AsOfDate.Format("2006-01-02")
	base[8] = string(calc.ResolutionMethod)
	base[9] = calc.ResolutionScore.StringFixed(2)
	base[17] = calc.BaseAmount.StringFixed(2)
	base[18] = calc.TotalTax.StringFixed(2)
	base[19] = calc.FinalAmount.StringFixed(2)
	base[20] = calc.EffectiveRate.StringFixed(6)
	base[21] = formatBool(calc.NeedsReview)
	base[22] = calc.CreatedAt.Format(time.RFC3339)

	lines, err := calc.DecodeBreakdown()
	if err != nil || len(lines) == 0 {
		return [][]string{base}
	}

	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		row := make([]string, len(columns))
		copy(row, base)
		row[10] = line.JurisdictionCode
		row[11] = line.TaxName
		row[12] = line.RateApplied.String()
		row[13] = line.TaxableBase.StringFixed(2)
		row[14] = line.TaxAmount.StringFixed(2)
		row[15] = formatBool(line.IsCompound)
		row[16] = line.ExemptedAmount.StringFixed(2)
		rows = append(rows, row)
	}
	return rows
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_prefix}_{YYYY-MM-DD}.csv
func BuildFilename(prefix string) string {
	sanitized := SanitizeFilename(prefix)
	date := time.Now().Format("2006-01-02")
	return fmt.Sprintf("%s_%s.csv", sanitized, date)
}
