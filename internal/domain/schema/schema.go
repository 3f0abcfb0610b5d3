// Package schema turns loose upstream rows into normalized records.
package schema

import (
	"strings"

	"github.com/okian/cevs/internal/domain/country"
	"github.com/okian/cevs/internal/domain/model"
)

// Default countries for sources that describe a single nation.
const (
	PermitsCountry   = "indonesia"
	EmissionsCountry = "united_states"
)

// RenewableIndicator names the regional series holding the renewable energy share in percent.
const RenewableIndicator = "renewable_share"

// RegistryName is the provenance label of the permit registry.
const RegistryName = "PTSP MENLHK"

// Active permit statuses, compared after lowercasing.
var activeStatuses = map[string]bool{
	"aktif":     true,
	"active":    true,
	"berlaku":   true,
	"valid":     true,
	"approved":  true,
	"disetujui": true,
	"terbit":    true,
}

// IsActiveStatus reports whether a permit status counts as in force.
func IsActiveStatus(status string) bool {
	return activeStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// RowParser converts one row; ok is false when required fields are missing.
type RowParser func(row model.RawRow, countries country.Resolver) (rec model.Record, ok bool)

var parsers = map[model.SourceID]RowParser{
	model.SourcePermits:        parsePermit,
	model.SourceEmissions:      parseEmission,
	model.SourceCertifications: parseCertification,
	model.SourceRegional:       parseIndicator,
	model.SourceGridded:        parseGridded,
}

// Parse converts rows into records in arrival order and reports how many
// rows were dropped. A payload with no usable rows is an empty result.
func Parse(source model.SourceID, rows []model.RawRow, countries country.Resolver) ([]model.Record, int, error) {
	p, ok := parsers[source]
	if !ok {
		return nil, 0, model.InvalidInput("source", "unknown source "+string(source))
	}
	if countries == nil {
		countries = country.Pure
	}
	out := make([]model.Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if row == nil {
			skipped++
			continue
		}
		rec, ok := p(row, countries)
		if !ok {
			skipped++
			continue
		}
		rec.Source = source
		rec.Seq = len(out)
		out = append(out, rec)
	}
	return out, skipped, nil
}

func countryOr(countries country.Resolver, raw, def string) string {
	if raw == "" {
		return def
	}
	return countries.Normalize(raw)
}

func parsePermit(row model.RawRow, countries country.Resolver) (model.Record, bool) {
	company := pick(row, "nama_perusahaan", "perusahaan", "nama", "pemohon", "company_name")
	if company == "" {
		return model.Record{}, false
	}
	validFrom := pick(row, "tanggal_berlaku", "berlaku", "valid_date", "tanggal")
	return model.Record{
		Entity:  company,
		Country: countryOr(countries, pick(row, "country", "negara"), PermitsCountry),
		Year:    pickYear(row, "tanggal_berlaku", "berlaku", "valid_date", "tanggal", "year", "tahun"),
		Value:   1,
		Unit:    "permit",
		Attributes: attrs(
			"address", pick(row, "alamat", "address", "lokasi"),
			"service_type", pick(row, "jenis_layanan", "layanan", "service_type", "jenis"),
			"decree_number", pick(row, "nomor_sk", "no_sk", "sk_number", "nomor"),
			"valid_from", validFrom,
			"activity", pick(row, "judul_kegiatan", "kegiatan", "activity", "judul"),
			"status", pick(row, "status", "keaktifan"),
			"registry", RegistryName,
		),
	}, true
}

func parseEmission(row model.RawRow, countries country.Resolver) (model.Record, bool) {
	facility := pick(row, "facility_name", "plant_name", "facility", "company_name")
	value, ok := pickFloat(row, "emissions", "value", "amount")
	if facility == "" || !ok {
		return model.Record{}, false
	}
	unit := pick(row, "unit", "units")
	if unit == "" {
		unit = "tons"
	}
	return model.Record{
		Entity:    facility,
		Country:   countryOr(countries, pick(row, "country"), EmissionsCountry),
		Year:      pickYear(row, "year", "reporting_year"),
		Pollutant: NormalizePollutant(pick(row, "pollutant", "gas")),
		Value:     value,
		Unit:      unit,
		Attributes: attrs(
			"state", strings.ToUpper(pick(row, "state", "state_code")),
			"county", pick(row, "county"),
			"plant_id", pick(row, "plant_id", "facility_id"),
		),
	}, true
}

func parseCertification(row model.RawRow, countries country.Resolver) (model.Record, bool) {
	company := pick(row, "company", "company_name", "organization", "name")
	if company == "" {
		return model.Record{}, false
	}
	cert := pick(row, "certificate", "standard")
	if cert == "" {
		cert = "ISO 14001"
	}
	validUntil := pick(row, "valid_until", "expiry", "expires")
	return model.Record{
		Entity:  company,
		Country: countries.Normalize(pick(row, "country", "country_code")),
		Year:    pickYear(row, "valid_until", "expiry", "expires"),
		Value:   1,
		Unit:    "certificate",
		Attributes: attrs(
			"certificate", cert,
			"valid_until", validUntil,
		),
	}, true
}

func parseIndicator(row model.RawRow, countries country.Resolver) (model.Record, bool) {
	raw := pick(row, "country", "country_code")
	value, ok := pickFloat(row, "value", "obs_value", "share")
	if raw == "" || !ok {
		return model.Record{}, false
	}
	indicator := pick(row, "indicator", "indicator_code")
	if indicator == "" {
		indicator = "GHG"
	}
	return model.Record{
		Country:    countries.Normalize(raw),
		Year:       pickYear(row, "year", "time_period"),
		Pollutant:  indicator,
		Value:      value,
		Unit:       pick(row, "unit"),
		Attributes: attrs("indicator", indicator),
	}, true
}

func parseGridded(row model.RawRow, countries country.Resolver) (model.Record, bool) {
	raw := pick(row, "country", "UC_country")
	pollutant := NormalizePollutant(pick(row, "pollutant"))
	value, ok := pickFloat(row, "value", "emissions")
	year := pickYear(row, "year")
	if raw == "" || pollutant == "" || !ok || year == 0 {
		return model.Record{}, false
	}
	unit := pick(row, "unit")
	if unit == "" {
		unit = "tonnes/year"
	}
	return model.Record{
		Entity:     pick(row, "urban_centre", "UC_NM_MN"),
		Country:    countries.Normalize(raw),
		Year:       year,
		Pollutant:  pollutant,
		Value:      value,
		Unit:       unit,
		Attributes: attrs("sector", pick(row, "sector")),
	}, true
}
