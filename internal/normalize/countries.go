package normalize

import "strings"

// countryCodes maps IAEA country names to ISO 3166-1 alpha-2 codes.
var countryCodes = map[string]string{
	"ARGENTINA":                   "AR",
	"ARMENIA":                     "AM",
	"AUSTRIA":                     "AT",
	"BANGLADESH":                  "BD",
	"BELARUS":                     "BY",
	"BELGIUM":                     "BE",
	"BRAZIL":                      "BR",
	"BULGARIA":                    "BG",
	"CANADA":                      "CA",
	"CHINA":                       "CN",
	"CZECH REPUBLIC":              "CZ",
	"EGYPT":                       "EG",
	"FINLAND":                     "FI",
	"FRANCE":                      "FR",
	"GERMANY":                     "DE",
	"HUNGARY":                     "HU",
	"INDIA":                       "IN",
	"INDONESIA":                   "ID",
	"IRAN, ISLAMIC REPUBLIC OF":   "IR",
	"ITALY":                       "IT",
	"JAPAN":                       "JP",
	"JORDAN":                      "JO",
	"KAZAKHSTAN":                  "KZ",
	"KOREA, REPUBLIC OF":          "KR",
	"LITHUANIA":                   "LT",
	"MEXICO":                      "MX",
	"NETHERLANDS, KINGDOM OF THE": "NL",
	"PAKISTAN":                    "PK",
	"PHILIPPINES":                 "PH",
	"POLAND":                      "PL",
	"ROMANIA":                     "RO",
	"RUSSIA":                      "RU",
	"SAUDI ARABIA":                "SA",
	"SLOVAKIA":                    "SK",
	"SLOVENIA":                    "SI",
	"SOUTH AFRICA":                "ZA",
	"SPAIN":                       "ES",
	"SWEDEN":                      "SE",
	"SWITZERLAND":                 "CH",
	"TAIWAN, CHINA":               "TW",
	"TURKEY":                      "TR",
	"UKRAINE":                     "UA",
	"UNITED ARAB EMIRATES":        "AE",
	"UNITED KINGDOM":              "GB",
	"UNITED STATES OF AMERICA":    "US",
	"UZBEKISTAN":                  "UZ",
	"VIETNAM":                     "VN",
}

// CountryCode returns the ISO 3166-1 alpha-2 code for an IAEA country name,
// or "" when the country is not in the table.
func CountryCode(country string) string {
	return countryCodes[strings.ToUpper(strings.TrimSpace(country))]
}
