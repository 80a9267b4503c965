package register

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// isoCountryCodes is the ISO 3166-1 alpha-2 assignment list. Kept static so
// the country catalog never depends on a network fetch.
var isoCountryCodes = []string{
	"AD", "AE", "AF", "AG", "AI", "AL", "AM", "AO", "AR", "AT",
	"AU", "AW", "AZ", "BA", "BB", "BD", "BE", "BF", "BG", "BH",
	"BI", "BJ", "BM", "BN", "BO", "BR", "BS", "BT", "BW", "BY",
	"BZ", "CA", "CD", "CF", "CG", "CH", "CI", "CL", "CM", "CN",
	"CO", "CR", "CU", "CV", "CY", "CZ", "DE", "DJ", "DK", "DM",
	"DO", "DZ", "EC", "EE", "EG", "ER", "ES", "ET", "FI", "FJ",
	"FM", "FR", "GA", "GB", "GD", "GE", "GH", "GM", "GN", "GQ",
	"GR", "GT", "GW", "GY", "HN", "HR", "HT", "HU", "ID", "IE",
	"IL", "IN", "IQ", "IR", "IS", "IT", "JM", "JO", "JP", "KE",
	"KG", "KH", "KI", "KM", "KN", "KP", "KR", "KW", "KZ", "LA",
	"LB", "LC", "LI", "LK", "LR", "LS", "LT", "LU", "LV", "LY",
	"MA", "MC", "MD", "ME", "MG", "MH", "MK", "ML", "MM", "MN",
	"MR", "MT", "MU", "MV", "MW", "MX", "MY", "MZ", "NA", "NE",
	"NG", "NI", "NL", "NO", "NP", "NR", "NZ", "OM", "PA", "PE",
	"PG", "PH", "PK", "PL", "PT", "PW", "PY", "QA", "RO", "RS",
	"RU", "RW", "SA", "SB", "SC", "SD", "SE", "SG", "SI", "SK",
	"SL", "SM", "SN", "SO", "SR", "SS", "ST", "SV", "SY", "SZ",
	"TD", "TG", "TH", "TJ", "TL", "TM", "TN", "TO", "TR", "TT",
	"TV", "TW", "TZ", "UA", "UG", "US", "UY", "UZ", "VC", "VE",
	"VN", "VU", "WS", "YE", "ZA", "ZM", "ZW",
}

// Country is one selectable entry in the location step.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Countries returns the country catalog with names localized for the given
// language tag, sorted by display name. When exclude is a non-empty ISO code,
// that country is omitted; the registration flow uses this to build the
// international list without the home country.
func Countries(tag language.Tag, exclude string) ([]Country, error) {
	namer := display.Regions(tag)
	exclude = strings.ToUpper(exclude)

	out := make([]Country, 0, len(isoCountryCodes))
	for _, code := range isoCountryCodes {
		if code == exclude {
			continue
		}
		region, err := language.ParseRegion(code)
		if err != nil {
			return nil, fmt.Errorf("parse region %s: %w", code, err)
		}
		name := namer.Name(region)
		if name == "" {
			name = code
		}
		out = append(out, Country{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CountryTable renders the catalog as the code-to-name map the location step
// consumes.
func CountryTable(tag language.Tag, exclude string) (map[string]string, error) {
	list, err := Countries(tag, exclude)
	if err != nil {
		return nil, err
	}
	table := make(map[string]string, len(list))
	for _, c := range list {
		table[c.Code] = c.Name
	}
	return table, nil
}

// ValidCountryCode reports whether code is a known ISO 3166-1 alpha-2
// assignment from the catalog.
func ValidCountryCode(code string) bool {
	code = strings.ToUpper(code)
	for _, c := range isoCountryCodes {
		if c == code {
			return true
		}
	}
	return false
}
