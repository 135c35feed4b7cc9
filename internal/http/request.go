package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finsight/internal/core"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	roleAdmin      = "admin"

	maxBodyBytes = 1 << 20
)

// requester reads the caller identity set by the gateway.
func requester(r *http.Request) (core.Requester, bool) {
	id := strings.TrimSpace(r.Header.Get(headerUserID))
	if id == "" {
		return core.Requester{}, false
	}
	return core.Requester{
		UserID: id,
		Admin:  strings.EqualFold(strings.TrimSpace(r.Header.Get(headerUserRole)), roleAdmin),
	}, true
}

// targetUser is the userId query parameter, defaulting to the caller.
func targetUser(r *http.Request, req core.Requester) string {
	if u := strings.TrimSpace(r.URL.Query().Get("userId")); u != "" {
		return u
	}
	return req.UserID
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return core.Validationf("request body is required")
		case errors.As(err, &maxErr):
			return core.Validationf("request body exceeds %d bytes", maxErr.Limit)
		default:
			return core.Validationf("invalid JSON body: %v", err)
		}
	}
	if dec.More() {
		return core.Validationf("request body must contain a single JSON object")
	}
	return nil
}

// Amount is a money value in currency units, sent as a JSON number or as
// a numeric string ("12.50" or "12,50"). Parse errors are kept so the
// handler can name the field.
type Amount struct {
	Money core.Money
	err   error
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	a.Money, a.err = core.ParseAmount(strings.Trim(string(b), `"`))
	return nil
}

// amount validates a decoded Amount.
func amount(field string, a *Amount) (core.Money, error) {
	if a == nil {
		return core.Money{}, core.Validationf("%s is required", field)
	}
	if a.err != nil {
		return core.Money{}, core.Validationf("%s: %v", field, a.err)
	}
	return a.Money, nil
}

// Timestamp accepts RFC 3339 timestamps and plain dates. A plain date is
// midnight UTC.
type Timestamp struct {
	time.Time
	DateOnly bool
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func parseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return Timestamp{Time: d.UTC(), DateOnly: true}, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return Timestamp{Time: ts.UTC()}, nil
}

func (t *Timestamp) ptr() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

// dateRange reads from/to query parameters. A plain-date "to" covers the
// whole day. Defaults are the start of the current month and now.
func dateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := now

	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return time.Time{}, time.Time{}, core.Validationf("from: %v", err)
		}
		from = ts.Time
	}
	if v := q.Get("to"); v != "" {
		ts, err := parseTimestamp(v)
		if err != nil {
			return time.Time{}, time.Time{}, core.Validationf("to: %v", err)
		}
		to = ts.Time
		if ts.DateOnly {
			to = to.Add(24*time.Hour - time.Second)
		}
	}
	return from, to, nil
}
