// Package model contains domain models passed between layers.
package model

import "time"

// ScoreComponent is one signed contribution to a composite score.
type ScoreComponent struct {
	Name   string   `json:"name"`
	Value  float64  `json:"value"`
	Source SourceID `json:"source"`
}

// CompositeScore is the bounded CEVS result for one entity.
//
// ClampedTotal is always RawTotal clamped to [0, 100]. SourcesUsed only lists
// sources that contributed at least one component.
type CompositeScore struct {
	Entity             string           `json:"company"`
	CountryHint        string           `json:"country,omitempty"`
	Country            string           `json:"country_key,omitempty"`
	Base               float64          `json:"base"`
	RawTotal           float64          `json:"raw_total"`
	ClampedTotal       float64          `json:"clamped_total"`
	Score              float64          `json:"score"`
	Components         []ScoreComponent `json:"components"`
	SourcesUsed        []SourceID       `json:"sources_used"`
	SourcesUnavailable []SourceID       `json:"sources_unavailable,omitempty"`
	PollutionSource    string           `json:"pollution_trend_source,omitempty"`
	ComputedAt         time.Time        `json:"computed_at"`
}

// Component returns the named component and whether it is present.
func (c CompositeScore) Component(name string) (ScoreComponent, bool) {
	for _, comp := range c.Components {
		if comp.Name == name {
			return comp, true
		}
	}
	return ScoreComponent{}, false
}

// UsedSource reports whether src contributed to the score.
func (c CompositeScore) UsedSource(src SourceID) bool {
	for _, s := range c.SourcesUsed {
		if s == src {
			return true
		}
	}
	return false
}
