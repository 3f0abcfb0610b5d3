// Package model contains domain models passed between layers.
package model

// Record is a normalized row from one source.
//
// Country, when set, is always a canonical country key. Year is zero when the
// source row carries no year. Records stored in the cache are shared
// snapshots; callers must treat them, including Attributes, as read-only.
type Record struct {
	Source     SourceID          `json:"source"`
	Seq        int               `json:"-"` // arrival order within the fetched snapshot
	Entity     string            `json:"entity,omitempty"`
	Country    string            `json:"country"`
	Year       int               `json:"year,omitempty"`
	Pollutant  string            `json:"pollutant,omitempty"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Attr returns the named attribute or "".
func (r Record) Attr(name string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[name]
}

// Fields flattens the record into a field name to scalar mapping. Attributes
// never override the normalized fields.
func (r Record) Fields() map[string]any {
	out := map[string]any{
		"source":  string(r.Source),
		"country": r.Country,
		"value":   r.Value,
		"unit":    r.Unit,
	}
	if r.Entity != "" {
		out["entity"] = r.Entity
	}
	if r.Year != 0 {
		out["year"] = r.Year
	}
	if r.Pollutant != "" {
		out["pollutant"] = r.Pollutant
	}
	for k, v := range r.Attributes {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return out
}

// Point is one (year, value) sample of a time series.
type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Trend summarizes the direction of a pollutant series for a country.
type Trend struct {
	Country   string  `json:"country"`
	Pollutant string  `json:"pollutant"`
	Source    string  `json:"source"`
	Series    []Point `json:"series"`
	Years     []int   `json:"years"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	Slope     float64 `json:"slope"`
	Increase  bool    `json:"increase"`
	Window    int     `json:"window"`
	Stale     bool    `json:"stale,omitempty"`
}

// Usable reports whether the trend was computed from at least two points.
func (t Trend) Usable() bool {
	return len(t.Years) >= 2
}
