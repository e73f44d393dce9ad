package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/verdalabs/wellspring/internal/common"
	"github.com/verdalabs/wellspring/internal/logging"
	"github.com/verdalabs/wellspring/internal/server/auth"
	"github.com/verdalabs/wellspring/internal/server/models"
	"github.com/verdalabs/wellspring/internal/server/services"
)

const testSecret = "test-secret"

type fakeSyncAPI struct {
	push      func(ctx context.Context, userID string, req *models.SyncPushRequest) (*models.SyncPushResponse, error)
	pull      func(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error)
	status    func(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error)
	conflicts func(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error)
	resolve   func(ctx context.Context, userID string, res *models.SyncConflictResolution) error
	reset     func(ctx context.Context, userID, deviceID string) error
}

func (f *fakeSyncAPI) Push(ctx context.Context, userID string, req *models.SyncPushRequest) (*models.SyncPushResponse, error) {
	return f.push(ctx, userID, req)
}

func (f *fakeSyncAPI) Pull(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error) {
	return f.pull(ctx, userID, lastSyncAt)
}

func (f *fakeSyncAPI) Status(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error) {
	return f.status(ctx, userID, deviceID)
}

func (f *fakeSyncAPI) Conflicts(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error) {
	return f.conflicts(ctx, userID, deviceID)
}

func (f *fakeSyncAPI) Resolve(ctx context.Context, userID string, res *models.SyncConflictResolution) error {
	return f.resolve(ctx, userID, res)
}

func (f *fakeSyncAPI) Reset(ctx context.Context, userID, deviceID string) error {
	return f.reset(ctx, userID, deviceID)
}

type fakeAuthAPI struct {
	register func(ctx context.Context, email, password string) (*models.User, error)
	login    func(ctx context.Context, email, password string) (*services.TokenPair, error)
	refresh  func(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

func (f *fakeAuthAPI) Register(ctx context.Context, email, password string) (*models.User, error) {
	return f.register(ctx, email, password)
}

func (f *fakeAuthAPI) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	return f.login(ctx, email, password)
}

func (f *fakeAuthAPI) RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
	return f.refresh(ctx, refreshToken)
}

type fakeFeedAPI struct {
	analyses func(ctx context.Context, userID string) ([]models.DailyAnalysis, error)
	podcasts func(ctx context.Context, userID string) ([]models.Podcast, error)
}

func (f *fakeFeedAPI) RecentAnalyses(ctx context.Context, userID string) ([]models.DailyAnalysis, error) {
	return f.analyses(ctx, userID)
}

func (f *fakeFeedAPI) RecentPodcasts(ctx context.Context, userID string) ([]models.Podcast, error) {
	return f.podcasts(ctx, userID)
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestRouter(sync SyncAPI, authAPI AuthAPI, feeds FeedAPI) http.Handler {
	return NewRouter(sync, authAPI, feeds, nil, []byte(testSecret), testLogger()).Routes()
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return "Bearer " + token
}

func doRequest(t *testing.T, h http.Handler, method, target, body, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- auth middleware ---

func TestSyncRoutes_RequireBearerToken(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/status?device_id=d1", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/sync/status?device_id=d1", "", "Bearer bogus")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for a bad token", rec.Code)
	}
}

func TestAuthenticate_PassesUserIDToService(t *testing.T) {
	var gotUserID string
	sync := &fakeSyncAPI{
		status: func(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error) {
			gotUserID = userID
			return &models.SyncStatus{DeviceID: deviceID}, nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/status?device_id=d1", "", bearerToken(t, "u42"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotUserID != "u42" {
		t.Errorf("service saw user %q, want u42", gotUserID)
	}
}

// --- sync handlers ---

func TestHandlePush(t *testing.T) {
	sync := &fakeSyncAPI{
		push: func(ctx context.Context, userID string, req *models.SyncPushRequest) (*models.SyncPushResponse, error) {
			if req.DeviceID != "d1" || len(req.Entries) != 1 {
				t.Errorf("unexpected request: %+v", req)
			}
			return &models.SyncPushResponse{
				SyncedCount:     1,
				FailedEntries:   []models.FailedEntry{},
				ServerTimestamp: time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	body := `{"device_id":"d1","entries":[{"entry_type":"mood","local_id":"l1","action":"create","data":{"mood_score":7}}]}`
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/push", body, bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp models.SyncPushResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if resp.SyncedCount != 1 {
		t.Errorf("synced_count = %d, want 1", resp.SyncedCount)
	}
}

func TestHandlePush_MissingDeviceID(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/push", `{"entries":[]}`, bearerToken(t, "u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePush_InvalidJSON(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/push", `{not json`, bearerToken(t, "u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlePull_ParsesCheckpoint(t *testing.T) {
	var gotSince *time.Time
	sync := &fakeSyncAPI{
		pull: func(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error) {
			gotSince = lastSyncAt
			return &models.SyncPullResponse{Entries: []models.SyncPullEntry{}}, nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/pull?last_sync_at=2026-03-15T10%3A00%3A00Z", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	want := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	if gotSince == nil || !gotSince.Equal(want) {
		t.Errorf("checkpoint = %v, want %v", gotSince, want)
	}
}

func TestHandlePull_NoCheckpointMeansFullResync(t *testing.T) {
	var called bool
	sync := &fakeSyncAPI{
		pull: func(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error) {
			called = true
			if lastSyncAt != nil {
				t.Errorf("checkpoint should be nil, got %v", lastSyncAt)
			}
			return &models.SyncPullResponse{}, nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/pull", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("status = %d, called = %v", rec.Code, called)
	}
}

func TestHandlePull_AcceptsDeviceID(t *testing.T) {
	sync := &fakeSyncAPI{
		pull: func(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error) {
			return &models.SyncPullResponse{}, nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/pull?device_id=d1", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandlePull_BadCheckpoint(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/pull?last_sync_at=yesterday", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleStatus_RequiresDeviceID(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/status", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleConflicts_EmptyListNotNull(t *testing.T) {
	sync := &fakeSyncAPI{
		conflicts: func(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error) {
			return nil, nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/sync/conflicts?device_id=d1", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHandleResolve(t *testing.T) {
	var gotRes *models.SyncConflictResolution
	sync := &fakeSyncAPI{
		resolve: func(ctx context.Context, userID string, res *models.SyncConflictResolution) error {
			gotRes = res
			return nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	body := `{"conflict_id":"c1","resolution":"keep_local"}`
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/resolve", body, bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gotRes.ConflictID != "c1" || gotRes.Resolution != models.ResolutionKeepLocal {
		t.Errorf("unexpected resolution: %+v", gotRes)
	}
	if !strings.Contains(rec.Body.String(), "resolved") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleResolve_ValidationErrorIs400(t *testing.T) {
	sync := &fakeSyncAPI{
		resolve: func(ctx context.Context, userID string, res *models.SyncConflictResolution) error {
			return common.ErrorValidation
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	body := `{"conflict_id":"c1","resolution":"coin_flip"}`
	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/resolve", body, bearerToken(t, "u1"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleReset(t *testing.T) {
	var gotDevice string
	sync := &fakeSyncAPI{
		reset: func(ctx context.Context, userID, deviceID string) error {
			gotDevice = deviceID
			return nil
		},
	}
	h := newTestRouter(sync, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/sync/reset?device_id=d1", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotDevice != "d1" {
		t.Errorf("device = %q, want d1", gotDevice)
	}
	if !strings.Contains(rec.Body.String(), "sync reset") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

// --- auth handlers ---

func TestHandleRegister(t *testing.T) {
	authAPI := &fakeAuthAPI{
		register: func(ctx context.Context, email, password string) (*models.User, error) {
			return &models.User{ID: "u1", Email: email}, nil
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, authAPI, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/register", `{"email":"amy@example.com","password":"s3cret"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRegister_Duplicate(t *testing.T) {
	authAPI := &fakeAuthAPI{
		register: func(ctx context.Context, email, password string) (*models.User, error) {
			return nil, common.ErrorAlreadyExists
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, authAPI, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/register", `{"email":"amy@example.com","password":"s3cret"}`, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestHandleRegister_MissingFields(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/register", `{"email":"amy@example.com"}`, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleLogin(t *testing.T) {
	authAPI := &fakeAuthAPI{
		login: func(ctx context.Context, email, password string) (*services.TokenPair, error) {
			return &services.TokenPair{AccessToken: "acc", RefreshToken: "ref"}, nil
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, authAPI, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/login", `{"email":"amy@example.com","password":"s3cret"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp tokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response json: %v", err)
	}
	if resp.AccessToken != "acc" || resp.RefreshToken != "ref" {
		t.Errorf("unexpected tokens: %+v", resp)
	}
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	authAPI := &fakeAuthAPI{
		login: func(ctx context.Context, email, password string) (*services.TokenPair, error) {
			return nil, common.ErrorUnauthorized
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, authAPI, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/login", `{"email":"amy@example.com","password":"nope"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleRefresh(t *testing.T) {
	authAPI := &fakeAuthAPI{
		refresh: func(ctx context.Context, refreshToken string) (*services.TokenPair, error) {
			if refreshToken != "old" {
				t.Errorf("refresh token = %q, want old", refreshToken)
			}
			return &services.TokenPair{AccessToken: "acc2", RefreshToken: "ref2"}, nil
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, authAPI, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"old"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

// --- feeds / health ---

func TestHandlePodcasts(t *testing.T) {
	feeds := &fakeFeedAPI{
		podcasts: func(ctx context.Context, userID string) ([]models.Podcast, error) {
			return []models.Podcast{{ID: "p1", Title: "weekly recap", AudioURL: "https://signed.example.com/p1"}}, nil
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, feeds)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/podcasts", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "weekly recap") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandleAnalyses_EmptyListNotNull(t *testing.T) {
	feeds := &fakeFeedAPI{
		analyses: func(ctx context.Context, userID string) ([]models.DailyAnalysis, error) {
			return nil, nil
		},
	}
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, feeds)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/analysis/recent", "", bearerToken(t, "u1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want []", got)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(&fakeSyncAPI{}, &fakeAuthAPI{}, &fakeFeedAPI{})

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing X-Request-ID header")
	}
}
