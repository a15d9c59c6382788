// Command seedranges converts a jurisdiction reference workbook into SQL
// seed files. Reads the Jurisdictions, AddressRanges, and TaxRates sheets,
// validates the hierarchy and range invariants, and emits batched INSERTs.
// Usage: go run ./cmd/seedranges [workbook.xlsx]
// Output: db/seeds/jurisdictions.sql
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"taxatlas/internal/domain"
)

const batchSize = 500

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	xlsxPath := "jurisdiction_reference.xlsx"
	if len(os.Args) > 1 {
		xlsxPath = os.Args[1]
	}
	outPath := "db/seeds/jurisdictions.sql"

	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	jurisdictions, idsByCode, err := parseJurisdictions(f)
	if err != nil {
		return fmt.Errorf("parse Jurisdictions sheet: %w", err)
	}
	if err := domain.ValidateHierarchy(jurisdictions); err != nil {
		return fmt.Errorf("hierarchy validation: %w", err)
	}
	log.Printf("Jurisdictions sheet: %d entries", len(jurisdictions))

	ranges, err := parseAddressRanges(f, idsByCode)
	if err != nil {
		return fmt.Errorf("parse AddressRanges sheet: %w", err)
	}
	log.Printf("AddressRanges sheet: %d entries", len(ranges))

	rateRows, err := parseTaxRates(f, idsByCode)
	if err != nil {
		return fmt.Errorf("parse TaxRates sheet: %w", err)
	}
	log.Printf("TaxRates sheet: %d entries", len(rateRows))

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	fmt.Fprintln(out, "-- Jurisdiction reference seed data generated from workbook.")
	fmt.Fprintf(out, "-- %d jurisdictions, %d address ranges, %d rates in batches of %d.\n",
		len(jurisdictions), len(ranges), len(rateRows), batchSize)
	fmt.Fprintln(out, "BEGIN;")
	fmt.Fprintln(out)

	writeJurisdictionInserts(out, jurisdictions)
	writeRangeInserts(out, ranges)
	writeRateInserts(out, rateRows)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "COMMIT;")

	log.Printf("Generated seed SQL in %s", outPath)
	return nil
}

// parseJurisdictions reads the Jurisdictions sheet.
// Columns: A=code, B=name, C=type, D=state_code, E=parent_code.
// Header on row 1, data from row 2.
func parseJurisdictions(f *excelize.File) ([]domain.Jurisdiction, map[string]uuid.UUID, error) {
	rows, err := f.GetRows("Jurisdictions")
	if err != nil {
		return nil, nil, err
	}

	idsByCode := make(map[string]uuid.UUID)
	parentCodes := make(map[string]string)
	var out []domain.Jurisdiction

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 4 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		code := strings.TrimSpace(row[0])
		if _, dup := idsByCode[code]; dup {
			return nil, nil, fmt.Errorf("row %d: duplicate jurisdiction code %q", i+1, code)
		}
		j := domain.Jurisdiction{
			ID:        uuid.New(),
			Code:      code,
			Name:      strings.TrimSpace(row[1]),
			Type:      domain.JurisdictionType(strings.ToLower(strings.TrimSpace(row[2]))),
			StateCode: strings.ToUpper(strings.TrimSpace(row[3])),
		}
		idsByCode[code] = j.ID
		if len(row) > 4 && strings.TrimSpace(row[4]) != "" {
			parentCodes[code] = strings.TrimSpace(row[4])
		}
		out = append(out, j)
	}

	// Second pass: resolve parent codes to the generated ids.
	for i := range out {
		pc, has := parentCodes[out[i].Code]
		if !has {
			continue
		}
		pid, ok := idsByCode[pc]
		if !ok {
			return nil, nil, fmt.Errorf("jurisdiction %q references unknown parent %q", out[i].Code, pc)
		}
		out[i].ParentID = &pid
	}
	return out, idsByCode, nil
}

// parseAddressRanges reads the AddressRanges sheet.
// Columns: A=state, B=county_code, C=pre_dir, D=street_name, E=suffix,
// F=post_dir, G=from, H=to, I=parity, J=zip, K=zip4,
// L..O=state/county/city/transit jurisdiction codes, P=special codes (comma
// separated), Q=source_id.
func parseAddressRanges(f *excelize.File, idsByCode map[string]uuid.UUID) ([]domain.AddressRange, error) {
	rows, err := f.GetRows("AddressRanges")
	if err != nil {
		return nil, err
	}

	var out []domain.AddressRange
	now := time.Now().UTC()

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 10 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		from, err := strconv.Atoi(strings.TrimSpace(row[6]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid address_from: %w", i+1, err)
		}
		to, err := strconv.Atoi(strings.TrimSpace(row[7]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid address_to: %w", i+1, err)
		}
		if from > to {
			return nil, fmt.Errorf("row %d: %w", i+1, domain.ErrInvalidAddressRange)
		}

		r := domain.AddressRange{
			ID:              uuid.New(),
			StateCode:       strings.ToUpper(strings.TrimSpace(row[0])),
			CountyCode:      strings.TrimSpace(row[1]),
			PreDirectional:  strings.ToUpper(strings.TrimSpace(row[2])),
			StreetName:      strings.ToUpper(strings.TrimSpace(row[3])),
			StreetSuffix:    strings.ToUpper(strings.TrimSpace(row[4])),
			PostDirectional: strings.ToUpper(strings.TrimSpace(row[5])),
			AddressFrom:     from,
			AddressTo:       to,
			Parity:          domain.RangeParity(strings.ToLower(strings.TrimSpace(row[8]))),
			Zip:             strings.TrimSpace(row[9]),
			ImportedAt:      now,
		}
		if r.Parity == "" {
			r.Parity = domain.ParityBoth
		}
		if len(row) > 10 {
			r.ZipPlus4 = strings.TrimSpace(row[10])
		}
		for colIdx, dst := range map[int]**uuid.UUID{
			11: &r.StateJurID, 12: &r.CountyJurID, 13: &r.CityJurID, 14: &r.TransitJurID,
		} {
			if len(row) <= colIdx || strings.TrimSpace(row[colIdx]) == "" {
				continue
			}
			code := strings.TrimSpace(row[colIdx])
			id, ok := idsByCode[code]
			if !ok {
				return nil, fmt.Errorf("row %d: unknown jurisdiction code %q", i+1, code)
			}
			*dst = &id
		}
		if len(row) > 15 && strings.TrimSpace(row[15]) != "" {
			for _, code := range strings.Split(row[15], ",") {
				code = strings.TrimSpace(code)
				id, ok := idsByCode[code]
				if !ok {
					return nil, fmt.Errorf("row %d: unknown special district code %q", i+1, code)
				}
				r.SpecialJurIDs = append(r.SpecialJurIDs, id)
			}
		}
		if len(row) > 16 {
			r.SourceID = strings.TrimSpace(row[16])
		}
		out = append(out, r)
	}
	return out, nil
}

type rateRow struct {
	jurisdictionID uuid.UUID
	taxCategory    string
	serviceType    string
	taxType        string
	taxName        string
	rateType       string
	percentageRate string
	isCompound     bool
	priority       int
	effectiveDate  string
	expiryDate     string
}

// parseTaxRates reads the TaxRates sheet.
// Columns: A=jurisdiction_code, B=tax_category, C=service_type, D=tax_type,
// E=tax_name, F=rate_type, G=percentage_rate, H=is_compound, I=priority,
// J=effective_date, K=expiry_date.
func parseTaxRates(f *excelize.File, idsByCode map[string]uuid.UUID) ([]rateRow, error) {
	rows, err := f.GetRows("TaxRates")
	if err != nil {
		return nil, err
	}

	var out []rateRow
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) < 10 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		code := strings.TrimSpace(row[0])
		id, ok := idsByCode[code]
		if !ok {
			return nil, fmt.Errorf("row %d: unknown jurisdiction code %q", i+1, code)
		}
		priority, err := strconv.Atoi(strings.TrimSpace(row[8]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid priority: %w", i+1, err)
		}
		r := rateRow{
			jurisdictionID: id,
			taxCategory:    strings.TrimSpace(row[1]),
			serviceType:    strings.TrimSpace(row[2]),
			taxType:        strings.TrimSpace(row[3]),
			taxName:        strings.TrimSpace(row[4]),
			rateType:       strings.ToLower(strings.TrimSpace(row[5])),
			percentageRate: strings.TrimSpace(row[6]),
			isCompound:     strings.EqualFold(strings.TrimSpace(row[7]), "yes"),
			priority:       priority,
			effectiveDate:  strings.TrimSpace(row[9]),
		}
		if len(row) > 10 {
			r.expiryDate = strings.TrimSpace(row[10])
		}
		out = append(out, r)
	}
	return out, nil
}

func writeJurisdictionInserts(out *os.File, jurisdictions []domain.Jurisdiction) {
	for i := 0; i < len(jurisdictions); i += batchSize {
		end := min(i+batchSize, len(jurisdictions))
		fmt.Fprintln(out, "INSERT INTO jurisdictions (id, code, name, jurisdiction_type, state_code, parent_id) VALUES")
		for j := i; j < end; j++ {
			r := jurisdictions[j]
			fmt.Fprintf(out, "('%s', %s, %s, %s, %s, %s)%s\n",
				r.ID, quote(r.Code), quote(r.Name), quote(string(r.Type)), quote(r.StateCode),
				quoteUUID(r.ParentID), terminator(j, end))
		}
		fmt.Fprintln(out)
	}
}

func writeRangeInserts(out *os.File, ranges []domain.AddressRange) {
	for i := 0; i < len(ranges); i += batchSize {
		end := min(i+batchSize, len(ranges))
		fmt.Fprintln(out, "INSERT INTO address_ranges (id, state_code, county_code, pre_directional, street_name, street_suffix, post_directional, address_from, address_to, parity, zip, zip_plus4, state_jurisdiction_id, county_jurisdiction_id, city_jurisdiction_id, transit_jurisdiction_id, special_jurisdiction_ids, source_id, imported_at) VALUES")
		for j := i; j < end; j++ {
			r := ranges[j]
			special := "[]"
			if len(r.SpecialJurIDs) > 0 {
				parts := make([]string, len(r.SpecialJurIDs))
				for k, id := range r.SpecialJurIDs {
					parts[k] = fmt.Sprintf("%q", id.String())
				}
				special = "[" + strings.Join(parts, ",") + "]"
			}
			fmt.Fprintf(out, "('%s', %s, %s, %s, %s, %s, %s, %d, %d, %s, %s, %s, %s, %s, %s, %s, %s, %s, '%s')%s\n",
				r.ID, quote(r.StateCode), quote(r.CountyCode), quote(r.PreDirectional),
				quote(r.StreetName), quote(r.StreetSuffix), quote(r.PostDirectional),
				r.AddressFrom, r.AddressTo, quote(string(r.Parity)), quote(r.Zip), quote(r.ZipPlus4),
				quoteUUID(r.StateJurID), quoteUUID(r.CountyJurID), quoteUUID(r.CityJurID),
				quoteUUID(r.TransitJurID), quote(special), quote(r.SourceID),
				r.ImportedAt.Format(time.RFC3339), terminator(j, end))
		}
		fmt.Fprintln(out)
	}
}

func writeRateInserts(out *os.File, rateRows []rateRow) {
	for i := 0; i < len(rateRows); i += batchSize {
		end := min(i+batchSize, len(rateRows))
		fmt.Fprintln(out, "INSERT INTO tax_rates (id, jurisdiction_id, tax_category, service_type, tax_type, tax_name, rate_type, percentage_rate, is_compound, priority, effective_date, expiry_date) VALUES")
		for j := i; j < end; j++ {
			r := rateRows[j]
			expiry := "NULL"
			if r.expiryDate != "" {
				expiry = quote(r.expiryDate)
			}
			fmt.Fprintf(out, "('%s', '%s', %s, %s, %s, %s, %s, %s, %t, %d, %s, %s)%s\n",
				uuid.New(), r.jurisdictionID, quote(r.taxCategory), quote(r.serviceType),
				quote(r.taxType), quote(r.taxName), quote(r.rateType), r.percentageRate,
				r.isCompound, r.priority, quote(r.effectiveDate), expiry, terminator(j, end))
		}
		fmt.Fprintln(out)
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteUUID(id *uuid.UUID) string {
	if id == nil {
		return "NULL"
	}
	return "'" + id.String() + "'"
}

func terminator(j, end int) string {
	if j == end-1 {
		return ";"
	}
	return ","
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
