package schema

import "strings"

// Canonical pollutant names.
const (
	PM25 = "PM2.5"
	NOx  = "NOx"
	CO2  = "CO2"
	GHG  = "GWP_100_AR5_GHG"
)

var pollutantAliases = map[string]string{
	"pm2.5":            PM25,
	"pm2_5":            PM25,
	"pm25":             PM25,
	"pm 2.5":           PM25,
	"nox":              NOx,
	"no_x":             NOx,
	"nitrogen oxides":  NOx,
	"co2":              CO2,
	"carbon dioxide":   CO2,
	"gwp_100_ar5_ghg":  GHG,
	"ghg":              GHG,
	"greenhouse gas":   GHG,
	"greenhouse gases": GHG,
}

// PollutantUnits lists the reporting unit of each canonical pollutant.
var PollutantUnits = map[string]string{
	PM25: "tonnes/year",
	NOx:  "tonnes/year",
	CO2:  "tonnes/year",
	GHG:  "tonnes CO2 equivalent/year",
}

// NormalizePollutant maps known aliases to their canonical name. Unknown
// names are returned trimmed but otherwise unchanged.
func NormalizePollutant(raw string) string {
	s := strings.TrimSpace(raw)
	if canon, ok := pollutantAliases[strings.ToLower(s)]; ok {
		return canon
	}
	return s
}

// SamePollutant compares two pollutant names after canonicalization.
func SamePollutant(a, b string) bool {
	return strings.EqualFold(NormalizePollutant(a), NormalizePollutant(b))
}
