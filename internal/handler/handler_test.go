package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"absensi/internal/attendance"
	"absensi/internal/model"
	"absensi/internal/session"
	"absensi/internal/store"
)

var errDown = errors.New("database down")

type brokenRepo struct{}

func (brokenRepo) Select(context.Context, model.Filter) ([]model.Record, error) { return nil, errDown }
func (brokenRepo) Count(context.Context, model.Filter) (int, error)             { return 0, errDown }
func (brokenRepo) UserIDs(context.Context) ([]string, error)                    { return nil, errDown }
func (brokenRepo) Insert(context.Context, model.Record) ([]model.Record, error) {
	return nil, errDown
}
func (brokenRepo) Ping(context.Context) error { return errDown }

type staticHealth bool

func (s staticHealth) Healthy(context.Context) bool { return bool(s) }

func newTestRouter(t *testing.T, repo attendance.Repository, opts Options) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	loc, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, loc)

	svc := attendance.NewService(repo, attendance.Options{
		Location: loc,
		Now:      func() time.Time { return now },
	})
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager("test-secret", time.Hour, false)
	}
	r, err := New(svc, opts).Router(RouterOptions{})
	require.NoError(t, err)
	return r
}

func get(r *gin.Engine, path string, accept string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAbsenFirstScanRendersSuccess(t *testing.T) {
	r := newTestRouter(t, store.NewMemory(false), Options{})

	w := get(r, "/absen?id=EMP001", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), attendance.MsgSuccess)
	assert.Contains(t, w.Body.String(), "10 March 2024")
	assert.Contains(t, w.Body.String(), "08:00:00")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie set")
}

func TestAbsenSecondScanIsAlready(t *testing.T) {
	r := newTestRouter(t, store.NewMemory(false), Options{})

	get(r, "/absen?id=EMP001", "")
	w := get(r, "/absen?id=EMP001", "application/json")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "already", body["status"])
	assert.Equal(t, attendance.MsgAlready, body["message"])
	assert.Equal(t, "EMP001", body["user_id"])
	assert.NotContains(t, body, "jam")
}

func TestAbsenMissingIDIsBadRequest(t *testing.T) {
	r := newTestRouter(t, store.NewMemory(false), Options{})

	w := get(r, "/absen?format=json", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, attendance.MsgMissingID, body["message"])
}

func TestAbsenErrorPageShowsLastUser(t *testing.T) {
	r := newTestRouter(t, store.NewMemory(false), Options{})

	first := get(r, "/absen?id=EMP007", "")
	var cookie *http.Cookie
	for _, c := range first.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	w := get(r, "/absen", "application/json", cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMP007", decode(t, w)["last_user_id"])
}

func TestAbsenStorageFailureIsServerError(t *testing.T) {
	r := newTestRouter(t, brokenRepo{}, Options{})

	// Fail-open: the check error is ignored and the insert fails.
	w := get(r, "/absen?id=EMP001", "application/json")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, attendance.MsgSaveFailed, decode(t, w)["message"])
}

func TestHomeRedirectsWithQuery(t *testing.T) {
	r := newTestRouter(t, store.NewMemory(false), Options{})

	w := get(r, "/?id=EMP001", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/absen?id=EMP001", w.Header().Get("Location"))

	w = get(r, "/", "")
	assert.Equal(t, "/absen", w.Header().Get("Location"))
}

func TestRekapListsNewestFirst(t *testing.T) {
	mem := store.NewMemory(false)
	ctx := context.Background()
	for _, rec := range []model.Record{
		{UserID: "A", Name: "A", Timestamp: "2024-03-09 07:00:00", Status: model.StatusPresent},
		{UserID: "B", Name: "B", Timestamp: "2024-03-10 07:30:00", Status: model.StatusPresent},
		{UserID: "A", Name: "A", Timestamp: "2024-03-10 07:45:00", Status: model.StatusPresent},
	} {
		_, err := mem.Insert(ctx, rec)
		require.NoError(t, err)
	}
	r := newTestRouter(t, mem, Options{})

	var all struct {
		Records []model.Record `json:"records"`
	}
	w := get(r, "/rekap", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all.Records, 3)
	assert.Equal(t, "2024-03-10 07:45:00", all.Records[0].Timestamp)
	assert.Equal(t, "2024-03-09 07:00:00", all.Records[2].Timestamp)

	var mine struct {
		Records    []model.Record `json:"records"`
		UserFilter string         `json:"user_filter"`
	}
	w = get(r, "/rekap/A?format=json", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	assert.Equal(t, "A", mine.UserFilter)
	require.Len(t, mine.Records, 2)
	for _, rec := range mine.Records {
		assert.Equal(t, "A", rec.UserID)
	}

	w = get(r, "/rekap/A", "")
	assert.Contains(t, w.Body.String(), "2024-03-10 07:45:00")
}

func TestRekapEmptyShowsPlaceholder(t *testing.T) {
	r := newTestRouter(t, store.NewMemory(false), Options{})

	w := get(r, "/rekap", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Belum ada data absensi.")

	w = get(r, "/rekap", "application/json")
	assert.JSONEq(t, `{"records":[]}`, w.Body.String())
}

func TestRekapFailureShowsError(t *testing.T) {
	r := newTestRouter(t, brokenRepo{}, Options{})

	w := get(r, "/rekap", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), MsgListFailed)

	w = get(r, "/rekap/EMP001", "application/json")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MsgUserListFailed("EMP001"), decode(t, w)["error"])

	w = get(r, "/stats", "application/json")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, MsgStatsFailed, decode(t, w)["error"])
}

func TestStatsCounts(t *testing.T) {
	mem := store.NewMemory(false)
	ctx := context.Background()
	for _, rec := range []model.Record{
		{UserID: "A", Timestamp: "2024-03-09 07:00:00", Status: model.StatusPresent},
		{UserID: "A", Timestamp: "2024-03-10 07:00:00", Status: model.StatusPresent},
		{UserID: "B", Timestamp: "2024-03-10 09:00:00", Status: model.StatusPresent},
	} {
		_, err := mem.Insert(ctx, rec)
		require.NoError(t, err)
	}
	r := newTestRouter(t, mem, Options{})

	var body struct {
		Stats     attendance.Stats `json:"stats"`
		ShowStats bool             `json:"show_stats"`
	}
	w := get(r, "/stats", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.ShowStats)
	assert.Equal(t, attendance.Stats{Total: 3, Today: 2, UniqueUsers: 2}, body.Stats)

	w = get(r, "/stats", "")
	assert.NotContains(t, w.Body.String(), "Belum ada data absensi.")
}

func TestHealthz(t *testing.T) {
	mem := store.NewMemory(false)

	r := newTestRouter(t, mem, Options{DB: mem})
	w := get(r, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","db":true}`, w.Body.String())

	r = newTestRouter(t, mem, Options{DB: brokenRepo{}, Redis: staticHealth(true)})
	w = get(r, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","db":false,"redis":true}`, w.Body.String())
}

func TestRekapUserWithSlashInID(t *testing.T) {
	mem := store.NewMemory(false)
	_, err := mem.Insert(context.Background(), model.Record{
		UserID: "kelas/7A+01", Name: "kelas/7A+01", Timestamp: "2024-03-10 07:00:00", Status: model.StatusPresent,
	})
	require.NoError(t, err)
	r := newTestRouter(t, mem, Options{})

	w := get(r, "/rekap", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/rekap/kelas%2F7A%2B01"`)

	var body struct {
		Records    []model.Record `json:"records"`
		UserFilter string         `json:"user_filter"`
	}
	w = get(r, "/rekap/kelas%2F7A%2B01", "application/json")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "kelas/7A+01", body.UserFilter)
	require.Len(t, body.Records, 1)
}
