package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"absensi/internal/model"
)

var (
	// ErrNotSaved means the store accepted the insert but returned no rows.
	ErrNotSaved = errors.New("attendance not saved")
	// ErrAlreadyAttended is returned by stores that enforce one row per user per day.
	ErrAlreadyAttended = errors.New("already attended today")
)

// User-facing messages.
const (
	MsgMissingID   = "❌ Parameter ID tidak ditemukan. Pastikan QR code valid."
	MsgAlready     = "⚠️ Kamu sudah melakukan absensi hari ini."
	MsgSuccess     = "✅ Absensi Berhasil"
	MsgNotSaved    = "❌ Gagal menyimpan absensi. Silakan coba lagi."
	MsgSaveFailed  = "❌ Error sistem: Gagal menyimpan absensi. Silakan hubungi admin."
	MsgCheckFailed = "❌ Error sistem: Gagal memeriksa absensi. Silakan hubungi admin."
)

// Repository is the table the service reads and writes.
// Select returns rows ordered by timestamp, newest first.
type Repository interface {
	Select(ctx context.Context, f model.Filter) ([]model.Record, error)
	Count(ctx context.Context, f model.Filter) (int, error)
	UserIDs(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, rec model.Record) ([]model.Record, error)
}

// Guard atomically claims a (user, day) slot so concurrent marks cannot both insert.
type Guard interface {
	Claim(ctx context.Context, userID, day string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID, day string) error
}

// CheckPolicy decides what a failed duplicate check means.
type CheckPolicy int

const (
	// FailOpen treats a failed check as "not attended yet".
	FailOpen CheckPolicy = iota
	// FailClosed aborts the mark with an error state.
	FailClosed
)

// State is the per-request outcome rendered to the scanner.
type State string

const (
	StateError   State = "error"
	StateAlready State = "already"
	StateSuccess State = "success"
)

// Outcome carries everything the attendance page shows.
type Outcome struct {
	Status  State         `json:"status"`
	Message string        `json:"message"`
	UserID  string        `json:"user_id,omitempty"`
	Waktu   string        `json:"waktu,omitempty"`
	Tanggal string        `json:"tanggal,omitempty"`
	Jam     string        `json:"jam,omitempty"`
	Record  *model.Record `json:"record,omitempty"`
}

// Stats are the aggregate counts shown on /stats.
type Stats struct {
	Total       int `json:"total_absensi"`
	Today       int `json:"absensi_hari_ini"`
	UniqueUsers int `json:"unique_users"`
}

// Options configures a Service. Zero values get defaults.
type Options struct {
	Location *time.Location
	Policy   CheckPolicy
	Guard    Guard
	Logger   logrus.FieldLogger
	Now      func() time.Time
}

// Service coordinates daily attendance checks and inserts.
type Service struct {
	repo   Repository
	loc    *time.Location
	policy CheckPolicy
	guard  Guard
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewService creates a service backed by a repository.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:   repo,
		loc:    opts.Location,
		policy: opts.Policy,
		guard:  opts.Guard,
		log:    opts.Logger,
		now:    opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location is the timezone day boundaries are computed in.
func (s *Service) Location() *time.Location { return s.loc }

// HasAttendedToday reports whether userID has a record inside today's window.
// Under FailOpen a query error is logged and reported as false.
func (s *Service) HasAttendedToday(ctx context.Context, userID string) (bool, error) {
	return s.attendedOn(ctx, userID, s.now())
}

func (s *Service) attendedOn(ctx context.Context, userID string, now time.Time) (bool, error) {
	start, end := DayBounds(now, s.loc)
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "day_start": start})

	rows, err := s.repo.Select(ctx, model.Filter{UserID: userID, From: start, To: end})
	if err != nil {
		checkFailures.Inc()
		if s.policy == FailOpen {
			log.WithError(err).Warn("attendance check failed, treating as not attended")
			return false, nil
		}
		log.WithError(err).Error("attendance check failed")
		return false, fmt.Errorf("check attendance: %w", err)
	}
	log.WithField("found", len(rows)).Debug("attendance check")
	return len(rows) > 0, nil
}

// RecordAttendance inserts a present record for userID at the current local time.
func (s *Service) RecordAttendance(ctx context.Context, userID string) (*model.Record, error) {
	return s.record(ctx, userID, s.now())
}

func (s *Service) record(ctx context.Context, userID string, now time.Time) (*model.Record, error) {
	rec := model.Record{
		UserID:    userID,
		Name:      userID,
		Timestamp: formatTimestamp(now, s.loc),
		Status:    model.StatusPresent,
	}
	rows, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotSaved
	}
	return &rows[0], nil
}

// Mark runs the full scan flow for a raw id from the query string.
func (s *Service) Mark(ctx context.Context, rawID string) Outcome {
	out := s.mark(ctx, rawID)
	marks.WithLabelValues(string(out.Status)).Inc()
	return out
}

func (s *Service) mark(ctx context.Context, rawID string) Outcome {
	userID := strings.TrimSpace(rawID)
	if userID == "" {
		return Outcome{Status: StateError, Message: MsgMissingID}
	}
	log := s.log.WithField("user_id", userID)
	log.Info("attendance attempt")

	now := s.now()
	already := Outcome{Status: StateAlready, Message: MsgAlready, UserID: userID}

	attended, err := s.attendedOn(ctx, userID, now)
	if err != nil {
		return Outcome{Status: StateError, Message: MsgCheckFailed, UserID: userID}
	}
	if attended {
		return already
	}

	day := now.In(s.loc).Format(dateLayout)
	claimed := false
	if s.guard != nil {
		ok, err := s.guard.Claim(ctx, userID, day, endOfDay(now, s.loc).Sub(now))
		switch {
		case err != nil && s.policy == FailClosed:
			log.WithError(err).Error("daily guard claim failed")
			return Outcome{Status: StateError, Message: MsgCheckFailed, UserID: userID}
		case err != nil:
			log.WithError(err).Warn("daily guard claim failed, continuing without it")
		case !ok:
			guardRejections.Inc()
			return already
		default:
			claimed = true
		}
	}

	rec, err := s.record(ctx, userID, now)
	if err != nil {
		if claimed && !errors.Is(err, ErrAlreadyAttended) {
			if rerr := s.guard.Release(ctx, userID, day); rerr != nil {
				log.WithError(rerr).Warn("daily guard release failed")
			}
		}
		switch {
		case errors.Is(err, ErrAlreadyAttended):
			log.Info("insert rejected by daily uniqueness")
			return already
		case errors.Is(err, ErrNotSaved):
			log.Error("attendance insert returned no rows")
			return Outcome{Status: StateError, Message: MsgNotSaved}
		default:
			log.WithError(err).Error("attendance insert failed")
			return Outcome{Status: StateError, Message: MsgSaveFailed}
		}
	}

	local := now.In(s.loc)
	log.WithField("waktu", rec.Timestamp).Info("attendance saved")
	return Outcome{
		Status:  StateSuccess,
		Message: MsgSuccess,
		UserID:  userID,
		Waktu:   local.Format(model.TimestampLayout),
		Tanggal: local.Format(tanggalLayout),
		Jam:     local.Format(jamLayout),
		Record:  rec,
	}
}

// List returns every record, newest first.
func (s *Service) List(ctx context.Context) ([]model.Record, error) {
	return s.repo.Select(ctx, model.Filter{})
}

// ListByUser returns userID's records, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Record, error) {
	return s.repo.Select(ctx, model.Filter{UserID: userID})
}

// Stats computes the total, today's and distinct-user counts.
// Distinct users are counted over the full user_id column in memory.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx, model.Filter{})
	if err != nil {
		return Stats{}, fmt.Errorf("count all: %w", err)
	}

	start, end := DayBounds(s.now(), s.loc)
	today, err := s.repo.Count(ctx, model.Filter{From: start, To: end})
	if err != nil {
		return Stats{}, fmt.Errorf("count today: %w", err)
	}

	ids, err := s.repo.UserIDs(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load user ids: %w", err)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	return Stats{Total: total, Today: today, UniqueUsers: len(seen)}, nil
}
