package address

import (
	"regexp"
	"strconv"
	"strings"

	"taxatlas/internal/domain"
)

// NormalizedAddress is a service address reduced to the token shape used by
// address range records.
type NormalizedAddress struct {
	StateCode       string
	City            string
	Zip             string
	ZipPlus4        string
	HouseNumber     int
	PreDirectional  string
	StreetName      string
	StreetSuffix    string
	PostDirectional string
}

// directionals maps spelled-out and abbreviated directionals to the
// canonical form used on imported ranges.
var directionals = map[string]string{
	"N": "N", "NORTH": "N",
	"S": "S", "SOUTH": "S",
	"E": "E", "EAST": "E",
	"W": "W", "WEST": "W",
	"NE": "NE", "NORTHEAST": "NE",
	"NW": "NW", "NORTHWEST": "NW",
	"SE": "SE", "SOUTHEAST": "SE",
	"SW": "SW", "SOUTHWEST": "SW",
}

// suffixes maps common street suffix spellings to USPS-style abbreviations.
var suffixes = map[string]string{
	"ST": "ST", "STREET": "ST",
	"AVE": "AVE", "AV": "AVE", "AVENUE": "AVE",
	"BLVD": "BLVD", "BOULEVARD": "BLVD",
	"DR": "DR", "DRIVE": "DR",
	"LN": "LN", "LANE": "LN",
	"RD": "RD", "ROAD": "RD",
	"CT": "CT", "COURT": "CT",
	"CIR": "CIR", "CIRCLE": "CIR",
	"PL": "PL", "PLACE": "PL",
	"PKWY": "PKWY", "PARKWAY": "PKWY",
	"HWY": "HWY", "HIGHWAY": "HWY",
	"TER": "TER", "TERRACE": "TER",
	"TRL": "TRL", "TRAIL": "TRL",
	"WAY": "WAY",
	"LOOP": "LOOP",
}

// unit designators are stripped along with everything after them.
var unitRe = regexp.MustCompile(`\b(APT|APARTMENT|STE|SUITE|UNIT|BLDG|BUILDING|FL|FLOOR|RM|ROOM|#)\b.*$`)

var zipRe = regexp.MustCompile(`^(\d{5})(?:-(\d{4}))?$`)

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize converts a raw service address into the canonical token shape.
// Missing state, zip, or street (including a missing house number) is a
// hard validation error; everything else degrades downstream.
func Normalize(addr domain.ServiceAddress) (*NormalizedAddress, error) {
	state := strings.ToUpper(strings.TrimSpace(addr.StateCode))
	street := clean(addr.Street)
	zip := strings.TrimSpace(addr.Zip)
	if state == "" || street == "" || zip == "" {
		return nil, domain.ErrMissingAddressField
	}

	m := zipRe.FindStringSubmatch(zip)
	if m == nil {
		return nil, domain.ErrMissingAddressField
	}
	out := &NormalizedAddress{
		StateCode: state,
		City:      clean(addr.City),
		Zip:       m[1],
		ZipPlus4:  m[2],
	}
	if out.ZipPlus4 == "" {
		out.ZipPlus4 = strings.TrimSpace(addr.ZipPlus4)
	}

	street = unitRe.ReplaceAllString(street, "")
	tokens := strings.Fields(street)
	if len(tokens) < 2 {
		return nil, domain.ErrMissingAddressField
	}

	number, err := strconv.Atoi(strings.TrimRight(tokens[0], "ABCD"))
	if err != nil || number <= 0 {
		return nil, domain.ErrMissingAddressField
	}
	out.HouseNumber = number
	tokens = tokens[1:]

	if len(tokens) > 1 {
		if d, ok := directionals[tokens[0]]; ok {
			out.PreDirectional = d
			tokens = tokens[1:]
		}
	}
	if len(tokens) > 1 {
		if d, ok := directionals[tokens[len(tokens)-1]]; ok {
			out.PostDirectional = d
			tokens = tokens[:len(tokens)-1]
		}
	}
	if len(tokens) > 1 {
		if s, ok := suffixes[tokens[len(tokens)-1]]; ok {
			out.StreetSuffix = s
			tokens = tokens[:len(tokens)-1]
		}
	}
	out.StreetName = strings.Join(tokens, " ")
	if out.StreetName == "" {
		return nil, domain.ErrMissingAddressField
	}
	return out, nil
}

func clean(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", " ")
	return spaceRe.ReplaceAllString(s, " ")
}
