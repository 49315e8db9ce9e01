package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"absensi/internal/attendance"
	"absensi/internal/model"
)

// Memory is an in-process table for local runs and tests.
type Memory struct {
	mu          sync.Mutex
	rows        []model.Record
	dailyUnique bool
}

// NewMemory creates an empty table. With dailyUnique it rejects a second row
// for the same user and date, like the Postgres unique index.
func NewMemory(dailyUnique bool) *Memory {
	return &Memory{dailyUnique: dailyUnique}
}

func matches(r model.Record, f model.Filter) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.From != "" && r.Timestamp < f.From {
		return false
	}
	if f.To != "" && r.Timestamp > f.To {
		return false
	}
	return true
}

func (m *Memory) Select(_ context.Context, f model.Filter) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Record{}
	for _, r := range m.rows {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (m *Memory) Count(_ context.Context, f model.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if matches(r, f) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) UserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rows))
	for _, r := range m.rows {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

func (m *Memory) Insert(_ context.Context, rec model.Record) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dailyUnique {
		for _, r := range m.rows {
			if r.UserID == rec.UserID && sameDay(r.Timestamp, rec.Timestamp) {
				return nil, attendance.ErrAlreadyAttended
			}
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.rows = append(m.rows, rec)
	return []model.Record{rec}, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func sameDay(a, b string) bool {
	return len(a) >= 10 && len(b) >= 10 && a[:10] == b[:10]
}
