package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"absensi/internal/attendance"
	"absensi/internal/model"
	"absensi/internal/session"
)

// Listing and stats failure messages.
const (
	MsgListFailed  = "Gagal mengambil data dari database"
	MsgStatsFailed = "Gagal mengambil statistik"
)

// MsgUserListFailed names the user whose records could not be loaded.
func MsgUserListFailed(userID string) string {
	return "Gagal mengambil data untuk user " + userID
}

// Pinger is a dependency /healthz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports liveness of an optional dependency.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Options wires optional collaborators into the handler.
type Options struct {
	Sessions *session.Manager
	DB       Pinger
	Redis    HealthChecker
	Logger   logrus.FieldLogger
}

type Handler struct {
	svc      *attendance.Service
	sessions *session.Manager
	db       Pinger
	redis    HealthChecker
	log      logrus.FieldLogger
}

func New(svc *attendance.Service, opts Options) *Handler {
	h := &Handler{
		svc:      svc,
		sessions: opts.Sessions,
		db:       opts.DB,
		redis:    opts.Redis,
		log:      opts.Logger,
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	return h
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := gin.H{"status": "ok"}

	dbHealthy := true
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.log.WithError(err).Warn("health: database unreachable")
			dbHealthy = false
		}
	}
	resp["db"] = dbHealthy
	if !dbHealthy {
		status = http.StatusServiceUnavailable
	}

	if h.redis != nil {
		redisHealthy := h.redis.Healthy(ctx)
		resp["redis"] = redisHealthy
		if !redisHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		resp["status"] = "degraded"
	}
	c.JSON(status, resp)
}

// ---------- Mark Attendance ----------

// Home forwards QR links that point at the site root to /absen.
func (h *Handler) Home(c *gin.Context) {
	target := "/absen"
	if q := c.Request.URL.RawQuery; q != "" {
		target += "?" + q
	}
	c.Redirect(http.StatusFound, target)
}

// Absen marks attendance for the `id` query parameter.
func (h *Handler) Absen(c *gin.Context) {
	out := h.svc.Mark(c.Request.Context(), c.Query("id"))

	code := http.StatusOK
	switch out.Status {
	case attendance.StateError:
		code = http.StatusInternalServerError
		if out.Message == attendance.MsgMissingID {
			code = http.StatusBadRequest
		}
	case attendance.StateSuccess, attendance.StateAlready:
		if h.sessions != nil {
			if err := h.sessions.Remember(c, out.UserID); err != nil {
				h.log.WithError(err).Warn("session cookie not set")
			}
		}
	}

	data := gin.H{"status": out.Status, "message": out.Message}
	if out.UserID != "" {
		data["user_id"] = out.UserID
	}
	if out.Status == attendance.StateSuccess {
		data["waktu"] = out.Waktu
		data["tanggal"] = out.Tanggal
		data["jam"] = out.Jam
	}
	if last := session.LastUserID(c); last != "" {
		data["last_user_id"] = last
	}
	render(c, code, "absen.html", data)
}

// ---------- Rekap ----------

// Rekap lists every record, newest first.
func (h *Handler) Rekap(c *gin.Context) {
	h.log.Debug("fetching all attendance records")
	records, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("list attendance failed")
		render(c, http.StatusInternalServerError, "rekap.html", gin.H{
			"records": []model.Record{},
			"error":   MsgListFailed,
		})
		return
	}
	h.log.WithField("count", len(records)).Debug("attendance records retrieved")
	render(c, http.StatusOK, "rekap.html", gin.H{"records": nonNil(records)})
}

// RekapUser lists one user's records, newest first.
func (h *Handler) RekapUser(c *gin.Context) {
	userID := c.Param("user_id")
	log := h.log.WithField("user_id", userID)

	records, err := h.svc.ListByUser(c.Request.Context(), userID)
	if err != nil {
		log.WithError(err).Error("list user attendance failed")
		render(c, http.StatusInternalServerError, "rekap.html", gin.H{
			"records":     []model.Record{},
			"user_filter": userID,
			"error":       MsgUserListFailed(userID),
		})
		return
	}
	log.WithField("count", len(records)).Debug("user attendance records retrieved")
	render(c, http.StatusOK, "rekap.html", gin.H{
		"records":     nonNil(records),
		"user_filter": userID,
	})
}

// ---------- Stats ----------

func (h *Handler) Stats(c *gin.Context) {
	st, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		h.log.WithError(err).Error("stats failed")
		render(c, http.StatusInternalServerError, "rekap.html", gin.H{
			"records": []model.Record{},
			"error":   MsgStatsFailed,
		})
		return
	}
	render(c, http.StatusOK, "rekap.html", gin.H{
		"records":    []model.Record{},
		"stats":      st,
		"show_stats": true,
	})
}

// render writes data as JSON when the client asks for it, HTML otherwise.
func render(c *gin.Context, code int, name string, data gin.H) {
	if c.Query("format") == "json" {
		c.JSON(code, data)
		return
	}
	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		c.JSON(code, data)
	default:
		c.HTML(code, name, data)
	}
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}
