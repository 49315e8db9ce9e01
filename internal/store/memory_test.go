package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/attendance"
	"absensi/internal/model"
)

func seed(t *testing.T, m *Memory, rows ...model.Record) {
	t.Helper()
	for _, r := range rows {
		_, err := m.Insert(context.Background(), r)
		require.NoError(t, err)
	}
}

func TestMemorySelectOrdersNewestFirst(t *testing.T) {
	m := NewMemory(false)
	seed(t, m,
		model.Record{UserID: "a", Timestamp: "2024-03-10 08:00:00"},
		model.Record{UserID: "b", Timestamp: "2024-03-11 07:00:00"},
		model.Record{UserID: "a", Timestamp: "2024-03-12 09:00:00"},
	)

	all, err := m.Select(context.Background(), model.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-03-12 09:00:00", all[0].Timestamp)
	assert.Equal(t, "2024-03-11 07:00:00", all[1].Timestamp)
	assert.Equal(t, "2024-03-10 08:00:00", all[2].Timestamp)
	for _, r := range all {
		assert.NotEmpty(t, r.ID)
	}

	mine, err := m.Select(context.Background(), model.Filter{UserID: "a"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "2024-03-12 09:00:00", mine[0].Timestamp)
	assert.Equal(t, "2024-03-10 08:00:00", mine[1].Timestamp)
}

func TestMemoryCountInclusiveRange(t *testing.T) {
	m := NewMemory(false)
	seed(t, m,
		model.Record{UserID: "a", Timestamp: "2024-03-10 00:00:00"},
		model.Record{UserID: "b", Timestamp: "2024-03-10 23:59:59"},
		model.Record{UserID: "c", Timestamp: "2024-03-11 00:00:00"},
	)

	n, err := m.Count(context.Background(), model.Filter{From: "2024-03-10 00:00:00", To: "2024-03-10 23:59:59"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := m.UserIDs(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestMemoryDailyUnique(t *testing.T) {
	m := NewMemory(true)
	seed(t, m, model.Record{UserID: "a", Timestamp: "2024-03-10 08:00:00"})

	_, err := m.Insert(context.Background(), model.Record{UserID: "a", Timestamp: "2024-03-10 17:00:00"})
	assert.ErrorIs(t, err, attendance.ErrAlreadyAttended)

	_, err = m.Insert(context.Background(), model.Record{UserID: "a", Timestamp: "2024-03-11 08:00:00"})
	assert.NoError(t, err)
	_, err = m.Insert(context.Background(), model.Record{UserID: "b", Timestamp: "2024-03-10 08:00:00"})
	assert.NoError(t, err)
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(model.Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = whereClause(model.Filter{UserID: "u1"})
	assert.Equal(t, " WHERE user_id = $1", where)
	assert.Equal(t, []any{"u1"}, args)

	where, args = whereClause(model.Filter{UserID: "u1", From: "2024-03-10 00:00:00", To: "2024-03-10 23:59:59"})
	assert.Equal(t, " WHERE user_id = $1 AND waktu >= $2 AND waktu <= $3", where)
	assert.Equal(t, []any{"u1", "2024-03-10 00:00:00", "2024-03-10 23:59:59"}, args)

	where, args = whereClause(model.Filter{From: "a", To: "b"})
	assert.Equal(t, " WHERE waktu >= $1 AND waktu <= $2", where)
	assert.Len(t, args, 2)
}

func TestGuardKey(t *testing.T) {
	assert.Equal(t, "absensi:hadir:2024-03-10:EMP-1", guardKey("2024-03-10", "EMP-1"))
}

// Repository implementations must satisfy the service's interface.
var (
	_ attendance.Repository = (*Memory)(nil)
	_ attendance.Repository = (*Postgres)(nil)
	_ attendance.Repository = (*Supabase)(nil)
	_ attendance.Guard      = (*Redis)(nil)
)
