package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"absensi/internal/attendance"
	"absensi/internal/model"
)

// Supabase talks to a hosted table through its PostgREST endpoint.
type Supabase struct {
	endpoint string
	key      string
	HTTP     *http.Client
}

// APIError is a non-2xx PostgREST response.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// NewSupabase creates a client for table at baseURL (the project URL).
func NewSupabase(baseURL, key, table string, timeout time.Duration) *Supabase {
	return &Supabase{
		endpoint: strings.TrimRight(baseURL, "/") + "/rest/v1/" + url.PathEscape(table),
		key:      key,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// row is the wire shape; id may be a number or a string depending on the
// table's column type.
type row struct {
	ID        flexID `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"nama"`
	Timestamp string `json:"waktu"`
	Status    string `json:"status"`
}

type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexID(b)
	return nil
}

func (r row) record() model.Record {
	return model.Record{ID: string(r.ID), UserID: r.UserID, Name: r.Name, Timestamp: r.Timestamp, Status: r.Status}
}

// Select returns rows matching f ordered by waktu descending.
func (s *Supabase) Select(ctx context.Context, f model.Filter) ([]model.Record, error) {
	q := filterQuery(f)
	q.Set("select", "*")
	q.Set("order", "waktu.desc")

	var rows []row
	if _, err := s.do(ctx, http.MethodGet, q, nil, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// Count asks for an exact count and reads it from Content-Range.
func (s *Supabase) Count(ctx context.Context, f model.Filter) (int, error) {
	q := filterQuery(f)
	q.Set("select", "id")
	hdr, err := s.do(ctx, http.MethodHead, q, map[string]string{"Prefer": "count=exact"}, nil, nil)
	if err != nil {
		return 0, err
	}
	return parseContentRange(hdr.Get("Content-Range"))
}

// UserIDs loads the full user_id column.
func (s *Supabase) UserIDs(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("select", "user_id")
	var rows []struct {
		UserID string `json:"user_id"`
	}
	if _, err := s.do(ctx, http.MethodGet, q, nil, nil, &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

// Insert posts rec and returns the representation the server stored.
// A unique violation reported by the table maps to ErrAlreadyAttended.
func (s *Supabase) Insert(ctx context.Context, rec model.Record) ([]model.Record, error) {
	body, err := json.Marshal(map[string]string{
		"user_id": rec.UserID,
		"nama":    rec.Name,
		"waktu":   rec.Timestamp,
		"status":  rec.Status,
	})
	if err != nil {
		return nil, err
	}

	var rows []row
	_, err = s.do(ctx, http.MethodPost, nil, map[string]string{"Prefer": "return=representation"}, body, &rows)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s", attendance.ErrAlreadyAttended, apiErr.Message)
		}
		return nil, err
	}
	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// Ping checks the table endpoint answers.
func (s *Supabase) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	_, err := s.do(ctx, http.MethodHead, q, nil, nil, nil)
	return err
}

func (s *Supabase) do(ctx context.Context, method string, q url.Values, headers map[string]string, body []byte, out any) (http.Header, error) {
	u := s.endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		raw, _ := io.ReadAll(resp.Body)
		if len(raw) > 0 && json.Unmarshal(raw, apiErr) != nil {
			apiErr.Message = string(raw)
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	if out != nil && method != http.MethodHead {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode supabase response: %w", err)
		}
	}
	return resp.Header, nil
}

// filterQuery renders f as PostgREST operators.
func filterQuery(f model.Filter) url.Values {
	q := url.Values{}
	if f.UserID != "" {
		q.Add("user_id", "eq."+f.UserID)
	}
	if f.From != "" {
		q.Add("waktu", "gte."+f.From)
	}
	if f.To != "" {
		q.Add("waktu", "lte."+f.To)
	}
	return q
}

// parseContentRange reads the total from "0-24/25" or "*/0".
func parseContentRange(v string) (int, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 || i == len(v)-1 {
		return 0, fmt.Errorf("supabase: no count in Content-Range %q", v)
	}
	n, err := strconv.Atoi(v[i+1:])
	if err != nil {
		return 0, fmt.Errorf("supabase: bad count in Content-Range %q: %w", v, err)
	}
	return n, nil
}
