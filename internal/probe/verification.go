package probe

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/okian/cevs/internal/domain/model"
	"github.com/okian/cevs/internal/domain/types"
)

// verifyEnvelope checks the shape of one answer against its status code.
func verifyEnvelope(path string, code int, env envelope) error {
	if env.RequestID == "" {
		return fmt.Errorf("%s: missing request_id", path)
	}
	if env.RetrievedAt.IsZero() {
		return fmt.Errorf("%s: missing retrieved_at", path)
	}

	if code == http.StatusOK {
		if env.Status != types.StatusSuccess {
			return fmt.Errorf("%s: status %q on 200", path, env.Status)
		}
		if env.Pagination != nil {
			return verifyPagination(path, *env.Pagination)
		}
		return nil
	}

	if env.Status != types.StatusError || env.Error == nil {
		return fmt.Errorf("%s: %d without an error body", path, code)
	}
	if env.Error.Code == "" || env.Error.Message == "" {
		return fmt.Errorf("%s: incomplete error body", path)
	}
	return nil
}

func verifyPagination(path string, p types.Pagination) error {
	if p.Page < 1 || p.Limit < 1 {
		return fmt.Errorf("%s: page %d limit %d", path, p.Page, p.Limit)
	}
	want := 0
	if p.Total > 0 {
		want = (p.Total + p.Limit - 1) / p.Limit
	}
	if p.TotalPages != want {
		return fmt.Errorf("%s: total_pages %d, want %d", path, p.TotalPages, want)
	}
	if p.HasPrev != (p.Page > 1) || p.HasNext != (p.Page < p.TotalPages) {
		return fmt.Errorf("%s: has_prev/has_next inconsistent with page %d of %d", path, p.Page, p.TotalPages)
	}
	return nil
}

// verifyScore checks the composite score arithmetic.
func verifyScore(path string, data json.RawMessage) (model.CompositeScore, error) {
	var s model.CompositeScore
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("%s: undecodable score: %w", path, err)
	}
	if s.Score < 0 || s.Score > 100 {
		return s, fmt.Errorf("%s: score %.2f out of range", path, s.Score)
	}
	sum := s.Base
	for _, c := range s.Components {
		sum += c.Value
	}
	if math.Abs(sum-s.RawTotal) > 0.01 {
		return s, fmt.Errorf("%s: components sum to %.2f, raw_total %.2f", path, sum, s.RawTotal)
	}
	return s, nil
}

// compareScores checks that two answers built from the same sources agree.
func compareScores(company string, a, b model.CompositeScore) error {
	if len(a.SourcesUsed) != len(b.SourcesUsed) {
		return nil
	}
	if math.Abs(a.Score-b.Score) > 0.01 {
		return fmt.Errorf("score for %s changed between calls: %.2f then %.2f", company, a.Score, b.Score)
	}
	return nil
}
