package filter

import (
	"sort"
	"strconv"

	"github.com/okian/cevs/internal/domain/model"
)

// Summary counts records along the common dimensions.
type Summary struct {
	Total       int            `json:"total"`
	ValueTotal  float64        `json:"value_total"`
	ByCountry   map[string]int `json:"by_country"`
	ByYear      map[string]int `json:"by_year"`
	ByPollutant map[string]int `json:"by_pollutant,omitempty"`
	ByAttribute map[string]int `json:"by_attribute,omitempty"`
	Attribute   string         `json:"attribute,omitempty"`
	Years       []int          `json:"years"`
}

// Summarize aggregates records. attribute optionally names one attribute
// to count by, e.g. "status" for permits or "state" for emissions.
func Summarize(records []model.Record, attribute string) Summary {
	s := Summary{
		Total:       len(records),
		ByCountry:   map[string]int{},
		ByYear:      map[string]int{},
		ByPollutant: map[string]int{},
		Attribute:   attribute,
		Years:       []int{},
	}
	if attribute != "" {
		s.ByAttribute = map[string]int{}
	}
	seenYears := map[int]bool{}
	for _, r := range records {
		s.ValueTotal += r.Value
		if r.Country != "" {
			s.ByCountry[r.Country]++
		}
		if r.Year != 0 {
			s.ByYear[strconv.Itoa(r.Year)]++
			if !seenYears[r.Year] {
				seenYears[r.Year] = true
				s.Years = append(s.Years, r.Year)
			}
		}
		if r.Pollutant != "" {
			s.ByPollutant[r.Pollutant]++
		}
		if attribute != "" {
			if v := r.Attr(attribute); v != "" {
				s.ByAttribute[v]++
			}
		}
	}
	sort.Ints(s.Years)
	return s
}
