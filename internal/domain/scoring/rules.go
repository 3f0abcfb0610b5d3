package scoring

import (
	"math"
	"strings"

	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/schema"
)

// Component names, in reporting order.
const (
	ComponentCertification = "iso_bonus"
	ComponentEmissions     = "epa_penalty"
	ComponentPollution     = "pollution_penalty"
	ComponentRenewables    = "renewables_bonus"
	ComponentPolicy        = "policy_bonus"
)

// Weights holds every scoring constant. Deviations are linear in the
// relative distance from a reference and capped symmetrically.
type Weights struct {
	Base float64

	// A matching certification adds CertificationBonus.
	CertificationBonus float64

	// Mean matching emissions m give -EmissionsWeight*(m-ref)/ref, capped.
	EmissionsReference float64
	EmissionsWeight    float64
	EmissionsCap       float64

	// A relative trend change r gives -PollutionWeight*r, capped.
	PollutionWeight float64
	PollutionCap    float64

	// The latest renewable share s gives RenewablesWeight*(s-target)/target, capped.
	RenewablesTarget float64
	RenewablesWeight float64
	RenewablesCap    float64

	// An active permit adds PolicyBonus; permits that are all inactive subtract PolicyPenalty.
	PolicyBonus   float64
	PolicyPenalty float64
}

// DefaultWeights returns the stock constants.
func DefaultWeights() Weights {
	return Weights{
		Base:               50,
		CertificationBonus: 30,
		EmissionsReference: 1_000_000,
		EmissionsWeight:    30,
		EmissionsCap:       30,
		PollutionWeight:    15,
		PollutionCap:       15,
		RenewablesTarget:   20,
		RenewablesWeight:   20,
		RenewablesCap:      20,
		PolicyBonus:        5,
		PolicyPenalty:      5,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func capped(v, limit float64) float64 {
	limit = math.Abs(limit)
	return clamp(v, -limit, limit)
}

func certificationRule(w Weights, recs []model.Record) (model.ScoreComponent, bool) {
	if len(recs) == 0 {
		return model.ScoreComponent{}, false
	}
	return model.ScoreComponent{Name: ComponentCertification, Value: w.CertificationBonus, Source: model.SourceCertifications}, true
}

func emissionsRule(w Weights, recs []model.Record) (model.ScoreComponent, bool) {
	if len(recs) == 0 || w.EmissionsReference <= 0 {
		return model.ScoreComponent{}, false
	}
	sum := 0.0
	for _, r := range recs {
		sum += r.Value
	}
	mean := sum / float64(len(recs))
	dev := (mean - w.EmissionsReference) / w.EmissionsReference
	return model.ScoreComponent{
		Name:   ComponentEmissions,
		Value:  capped(-w.EmissionsWeight*dev, w.EmissionsCap),
		Source: model.SourceEmissions,
	}, true
}

func pollutionRule(w Weights, t model.Trend, source model.SourceID) (model.ScoreComponent, bool) {
	if !t.Usable() || t.First == 0 {
		return model.ScoreComponent{}, false
	}
	r := t.Slope / math.Abs(t.First)
	return model.ScoreComponent{
		Name:   ComponentPollution,
		Value:  capped(-w.PollutionWeight*r, w.PollutionCap),
		Source: source,
	}, true
}

func renewablesRule(w Weights, recs []model.Record) (model.ScoreComponent, bool) {
	if w.RenewablesTarget <= 0 {
		return model.ScoreComponent{}, false
	}
	var latest *model.Record
	for i := range recs {
		r := &recs[i]
		if !strings.EqualFold(r.Pollutant, schema.RenewableIndicator) {
			continue
		}
		if latest == nil || r.Year > latest.Year {
			latest = r
		}
	}
	if latest == nil {
		return model.ScoreComponent{}, false
	}
	dev := (latest.Value - w.RenewablesTarget) / w.RenewablesTarget
	return model.ScoreComponent{
		Name:   ComponentRenewables,
		Value:  capped(w.RenewablesWeight*dev, w.RenewablesCap),
		Source: model.SourceRegional,
	}, true
}

func policyRule(w Weights, recs []model.Record) (model.ScoreComponent, bool) {
	if len(recs) == 0 {
		return model.ScoreComponent{}, false
	}
	value := -w.PolicyPenalty
	for _, r := range recs {
		if schema.IsActiveStatus(r.Attr("status")) {
			value = w.PolicyBonus
			break
		}
	}
	return model.ScoreComponent{Name: ComponentPolicy, Value: value, Source: model.SourcePermits}, true
}
