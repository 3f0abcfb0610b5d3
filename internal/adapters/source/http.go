package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/cevs/internal/domain/model"
)

const (
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 64 << 20
	userAgent      = "cevs-aggregator/1.0"
)

// Payload formats understood by HTTPSource.
const (
	FormatAuto = "auto"
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// HTTPSource fetches a JSON or CSV document over HTTP. Request params are
// sent as the query string.
type HTTPSource struct {
	*BaseConnector
	endpoint string
	format   string
	client   *http.Client
	headers  http.Header
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithFormat forces json or csv decoding instead of detection.
func WithFormat(format string) HTTPOption {
	return func(s *HTTPSource) {
		if format != "" {
			s.format = strings.ToLower(format)
		}
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSource) { s.headers.Add(key, value) }
}

// NewHTTPSource creates an HTTP fetcher for id at endpoint.
func NewHTTPSource(conn *BaseConnector, endpoint string, opts ...HTTPOption) (*HTTPSource, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q", model.ErrInvalidInput, endpoint)
	}
	s := &HTTPSource{
		BaseConnector: conn,
		endpoint:      endpoint,
		format:        FormatAuto,
		client:        &http.Client{Timeout: defaultTimeout},
		headers:       http.Header{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Fetch performs one GET. Non-2xx answers are outages, undecodable bodies
// are bad data.
func (s *HTTPSource) Fetch(ctx context.Context, params model.Params) ([]model.RawRow, error) {
	if err := s.Wait(ctx); err != nil {
		return nil, err
	}

	u, _ := url.Parse(s.endpoint)
	q := u.Query()
	for _, k := range params.Names() {
		q.Set(k, params[k])
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, model.NewSourceError(s.id, model.ErrorInternal, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/csv;q=0.9, */*;q=0.5")
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, model.NewSourceError(s.id, model.ErrorTimeout, err)
		}
		return nil, model.NewSourceError(s.id, model.ErrorOutage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, model.NewSourceError(s.id, model.ErrorOutage, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, model.NewSourceError(s.id, model.ErrorOutage, err)
	}
	rows, err := Decode(body, s.detect(resp.Header.Get("Content-Type"), body))
	if err != nil {
		return nil, model.NewSourceError(s.id, model.ErrorBadData, err)
	}
	return rows, nil
}

func (s *HTTPSource) detect(contentType string, body []byte) string {
	if s.format != FormatAuto {
		return s.format
	}
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "csv"):
		return FormatCSV
	}
	trimmed := bytes.TrimLeft(body, " \t\r\n\ufeff")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// Decode parses a JSON list, a JSON object holding a list under data,
// results or items, or a CSV document with a header row.
func Decode(body []byte, format string) ([]model.RawRow, error) {
	switch format {
	case FormatJSON:
		return decodeJSON(body)
	case FormatCSV:
		return decodeCSV(body)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func decodeJSON(body []byte) ([]model.RawRow, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	var list []any
	switch t := doc.(type) {
	case []any:
		list = t
	case map[string]any:
		for _, k := range []string{"data", "results", "items", "records"} {
			if l, ok := t[k].([]any); ok {
				list = l
				break
			}
		}
		if list == nil {
			return nil, errors.New("json object without a row list")
		}
	default:
		return nil, errors.New("unexpected json shape")
	}

	rows := make([]model.RawRow, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, model.RawRow(m))
		}
	}
	return rows, nil
}

func decodeCSV(body []byte) ([]model.RawRow, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(body, []byte("\ufeff"))))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return []model.RawRow{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []model.RawRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		row := model.RawRow{}
		empty := true
		for i, v := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				empty = false
			}
			row[header[i]] = v
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	if rows == nil {
		rows = []model.RawRow{}
	}
	return rows, nil
}
