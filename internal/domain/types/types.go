// Package types contains the response envelope shared by every query path
package types

import (
	"time"

	"github.com/google/uuid"
)

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Pagination describes the page carried by an envelope
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// ErrorBody is the error section of a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Envelope wraps every response
type Envelope struct {
	Status      string         `json:"status"`
	Data        any            `json:"data,omitempty"`
	Error       *ErrorBody     `json:"error,omitempty"`
	Pagination  *Pagination    `json:"pagination,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
	Stale       bool           `json:"stale"`
	FetchedAt   *time.Time     `json:"fetched_at,omitempty"`
	RetrievedAt time.Time      `json:"retrieved_at"`
	RequestID   string         `json:"request_id"`
}

// Meta carries the optional fields of a successful envelope.
type Meta struct {
	Filters   map[string]any
	Stale     bool
	FetchedAt time.Time
	RequestID string
}

// Success wraps data.
func Success(data any, meta Meta) Envelope {
	env := Envelope{
		Status:      StatusSuccess,
		Data:        data,
		Filters:     meta.Filters,
		Stale:       meta.Stale,
		RetrievedAt: time.Now().UTC(),
		RequestID:   requestID(meta.RequestID),
	}
	if !meta.FetchedAt.IsZero() {
		t := meta.FetchedAt.UTC()
		env.FetchedAt = &t
	}
	return env
}

// Paginated wraps one page of data.
func Paginated(data any, p Pagination, meta Meta) Envelope {
	env := Success(data, meta)
	env.Pagination = &p
	return env
}

// Failure wraps an error. The message is shown to clients as is.
func Failure(code, message, reqID string) Envelope {
	return Envelope{
		Status:      StatusError,
		Error:       &ErrorBody{Code: code, Message: message},
		RetrievedAt: time.Now().UTC(),
		RequestID:   requestID(reqID),
	}
}

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.NewString()
}

func requestID(id string) string {
	if id != "" {
		return id
	}
	return NewRequestID()
}

// NewPagination derives page metadata from a total count.
func NewPagination(page, limit, total int) Pagination {
	if limit < 1 {
		limit = 1
	}
	if page < 1 {
		page = 1
	}
	pages := (total + limit - 1) / limit
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}
