package source

import (
	"context"

	"github.com/okian/cevs/internal/domain/model"
)

// SampleSource serves a fixed set of rows, used when no upstream URL is
// configured. Params are ignored; the filter engine narrows the result.
type SampleSource struct {
	*BaseConnector
	rows []model.RawRow
}

// NewSampleSource returns the built-in rows for id.
func NewSampleSource(id model.SourceID) *SampleSource {
	return &SampleSource{BaseConnector: NewBaseConnector(id, 0, 1), rows: SampleRows(id)}
}

// NewStaticSource serves rows for id.
func NewStaticSource(id model.SourceID, rows []model.RawRow) *SampleSource {
	return &SampleSource{BaseConnector: NewBaseConnector(id, 0, 1), rows: rows}
}

func (s *SampleSource) Fetch(ctx context.Context, _ model.Params) ([]model.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, model.NewSourceError(s.id, model.ErrorTimeout, err)
	}
	out := make([]model.RawRow, len(s.rows))
	for i, r := range s.rows {
		cp := make(model.RawRow, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out[i] = cp
	}
	return out, nil
}

// SampleRows returns the demonstration rows of a source.
func SampleRows(id model.SourceID) []model.RawRow {
	switch id {
	case model.SourcePermits:
		return []model.RawRow{
			{"nama_perusahaan": "PT Hijau Lestari", "alamat": "Jl. Gatot Subroto, Jakarta", "jenis_layanan": "Persetujuan Lingkungan",
				"nomor_sk": "SK.101/MENLHK/2024", "tanggal_berlaku": "2024-02-12", "judul_kegiatan": "Pembangunan PLTS Atap", "status": "Aktif"},
			{"nama_perusahaan": "Sustain PT", "alamat": "Kawasan Industri Cikarang", "jenis_layanan": "AMDAL",
				"nomor_sk": "SK.214/MENLHK/2023", "tanggal_berlaku": "2023-07-03", "judul_kegiatan": "Pabrik Daur Ulang", "status": "Aktif"},
			{"nama_perusahaan": "PT Batu Bara Sentosa", "alamat": "Samarinda, Kalimantan Timur", "jenis_layanan": "UKL-UPL",
				"nomor_sk": "SK.077/MENLHK/2021", "tanggal_berlaku": "2021-11-30", "judul_kegiatan": "Pertambangan Batubara", "status": "Dicabut"},
		}
	case model.SourceEmissions:
		return []model.RawRow{
			{"facility_name": "Sample Coal Plant A", "plant_id": "PLT1001", "state": "TX", "county": "Harris",
				"year": 2023, "pollutant": "CO2", "emissions": 1234567.89, "unit": "tons"},
			{"facility_name": "Sample Gas Plant B", "plant_id": "PLT2002", "state": "CA", "county": "Los Angeles",
				"year": 2023, "pollutant": "CO2", "emissions": 234567.0, "unit": "tons"},
		}
	case model.SourceCertifications:
		return []model.RawRow{
			{"company": "Green Energy Co", "country": "US", "certificate": "ISO 14001", "valid_until": "2026-12-31"},
			{"company": "Eco Manufacturing GmbH", "country": "DE", "certificate": "ISO 14001", "valid_until": "2025-08-01"},
			{"company": "Sustain PT", "country": "ID", "certificate": "ISO 14001", "valid_until": "2027-01-15"},
		}
	case model.SourceRegional:
		return []model.RawRow{
			{"country": "SE", "indicator": "GHG", "year": 2023, "value": 123.4, "unit": "MtCO2e"},
			{"country": "DE", "indicator": "GHG", "year": 2023, "value": 456.7, "unit": "MtCO2e"},
			{"country": "PL", "indicator": "GHG", "year": 2023, "value": 210.2, "unit": "MtCO2e"},
			{"country": "SE", "indicator": "renewable_share", "year": 2021, "value": 62.6, "unit": "%"},
			{"country": "DE", "indicator": "renewable_share", "year": 2021, "value": 19.2, "unit": "%"},
			{"country": "PL", "indicator": "renewable_share", "year": 2021, "value": 15.6, "unit": "%"},
			{"country": "DE", "indicator": "total_n", "year": 2019, "value": 118.0, "unit": "kt"},
			{"country": "DE", "indicator": "total_n", "year": 2020, "value": 112.5, "unit": "kt"},
			{"country": "DE", "indicator": "total_n", "year": 2021, "value": 109.1, "unit": "kt"},
			{"country": "PL", "indicator": "total_n", "year": 2019, "value": 95.2, "unit": "kt"},
			{"country": "PL", "indicator": "total_n", "year": 2021, "value": 99.8, "unit": "kt"},
		}
	case model.SourceGridded:
		return []model.RawRow{
			{"UC_country": "Indonesia", "pollutant": "PM2.5", "year": 2018, "value": 41200.0},
			{"UC_country": "Indonesia", "pollutant": "PM2.5", "year": 2020, "value": 43950.0},
			{"UC_country": "Indonesia", "pollutant": "PM2.5", "year": 2022, "value": 46310.0},
			{"UC_country": "Germany", "pollutant": "PM2.5", "year": 2018, "value": 9800.0},
			{"UC_country": "Germany", "pollutant": "PM2.5", "year": 2020, "value": 9100.0},
			{"UC_country": "Germany", "pollutant": "PM2.5", "year": 2022, "value": 8700.0},
			{"UC_country": "United States", "pollutant": "PM2.5", "year": 2018, "value": 30500.0},
			{"UC_country": "United States", "pollutant": "PM2.5", "year": 2020, "value": 29800.0},
			{"UC_country": "United States", "pollutant": "PM2.5", "year": 2022, "value": 29950.0},
			{"UC_country": "Germany", "pollutant": "NOx", "year": 2020, "value": 51000.0},
			{"UC_country": "Germany", "pollutant": "NOx", "year": 2022, "value": 47600.0},
		}
	}
	return nil
}
