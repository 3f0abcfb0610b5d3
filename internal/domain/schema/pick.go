package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/okian/cevs/internal/domain/model"
)

// pick returns the first non-empty value among keys as a trimmed string.
// Exact keys are tried before a case-insensitive scan.
func pick(row model.RawRow, keys ...string) string {
	for _, k := range keys {
		if s, ok := scalar(row[k]); ok {
			return s
		}
	}
	for _, k := range keys {
		for rk, v := range row {
			if strings.EqualFold(rk, k) {
				if s, ok := scalar(v); ok {
					return s
				}
			}
		}
	}
	return ""
}

func scalar(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// pickFloat parses the first numeric value among keys. Thousands
// separators are tolerated. NaN and infinities are rejected.
func pickFloat(row model.RawRow, keys ...string) (float64, bool) {
	s := pick(row, keys...)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// pickYear parses a year from a plain number or the leading digits of a date.
func pickYear(row model.RawRow, keys ...string) int {
	s := pick(row, keys...)
	if len(s) < 4 {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return validYear(int(f))
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0
	}
	return validYear(y)
}

func validYear(y int) int {
	if y < 1800 || y > 2200 {
		return 0
	}
	return y
}

func attrs(pairs ...string) map[string]string {
	out := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			out[pairs[i]] = pairs[i+1]
		}
	}
	return out
}
