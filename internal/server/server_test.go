package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"modmixx/internal/config"
	"modmixx/internal/models"
	"modmixx/internal/moderation"
	"modmixx/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type staticScanner struct {
	result moderation.ScanResult
}

func (s staticScanner) Scan(context.Context, []byte) moderation.ScanResult { return s.result }

type staticScorer struct {
	score float64
}

func (s staticScorer) Score(context.Context, string) (float64, error) { return s.score, nil }

type testRig struct {
	app    *fiber.App
	server *Server
	db     *gorm.DB
	store  *testutil.ObjectStoreStub
}

// newTestRig stands up the full route surface over an in-memory database with
// stubbed external backends.
func newTestRig(t *testing.T) *testRig {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Profile{}, &models.Track{}, &models.Comment{}))

	cfg := &config.Config{
		JWTSecret:        "test_secret",
		MaxAudioUploadMB: 50,
		MaxImageUploadMB: 10,
	}

	store := testutil.NewObjectStoreStub()
	s := NewServerWithDeps(cfg, db, nil, store,
		staticScanner{result: moderation.ScanResult{Allowed: true, Labels: models.ModerationLabels{}}},
		staticScorer{score: 0.1})

	app := fiber.New()
	s.SetupRoutes(app)

	return &testRig{app: app, server: s, db: db, store: store}
}

// seedUser inserts a user with a profile and returns the user plus a valid
// bearer token for them.
func (r *testRig) seedUser(t *testing.T, username string, admin bool) (*models.User, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("SecurePass12!@"), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &models.User{
		Email:    username + "@example.com",
		Password: string(hashed),
		IsAdmin:  admin,
		Profile:  models.Profile{Username: username},
	}
	require.NoError(t, r.db.Create(user).Error)

	token, err := r.server.generateToken(user.ID, username)
	require.NoError(t, err)
	return user, token
}

func (r *testRig) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// uploadTrack posts a multipart track upload and returns the response.
func (r *testRig) uploadTrack(t *testing.T, token, title string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", title))
	require.NoError(t, w.WriteField("description", "late night session"))

	part, err := w.CreateFormFile("audio", "take1.mp3")
	require.NoError(t, err)
	_, err = part.Write([]byte("ID3 fake audio bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestRoutesRequireAuth(t *testing.T) {
	rig := newTestRig(t)

	for _, path := range []string{"/api/tracks", "/api/profiles/me", "/api/admin/moderation"} {
		resp := rig.request(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		_ = resp.Body.Close()
	}
}

func TestAuthRejectsForeignIssuer(t *testing.T) {
	rig := newTestRig(t)
	_, token := rig.seedUser(t, "issuercheck", false)

	// A token signed with another secret must not pass.
	other := &Server{config: &config.Config{JWTSecret: "other_secret"}}
	badToken, err := other.generateToken(1, "issuercheck")
	require.NoError(t, err)

	resp := rig.request(t, http.MethodGet, "/api/tracks", badToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/tracks", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestUploadAndFetchTrack(t *testing.T) {
	rig := newTestRig(t)
	_, token := rig.seedUser(t, "uploader", false)

	resp := rig.uploadTrack(t, token, "First Demo")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "First Demo", created["title"])
	assert.Equal(t, "first-demo", created["slug"])
	assert.NotEmpty(t, created["audio_url"])

	resp = rig.request(t, http.MethodGet, "/api/tracks/first-demo", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fetched := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "uploader", fetched["username"])

	// The feed lists the new track for any member.
	_, viewerToken := rig.seedUser(t, "listener", false)
	resp = rig.request(t, http.MethodGet, "/api/tracks", viewerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	feed := decodeJSON[[]map[string]any](t, resp)
	require.Len(t, feed, 1)
	assert.Equal(t, "first-demo", feed[0]["slug"])
}

func TestUploadTrackRequiresAudio(t *testing.T) {
	rig := newTestRig(t)
	_, token := rig.seedUser(t, "noaudio", false)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "No Audio"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := rig.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestDeleteTrackMasksOwnership(t *testing.T) {
	rig := newTestRig(t)
	_, ownerToken := rig.seedUser(t, "trackowner", false)
	_, strangerToken := rig.seedUser(t, "stranger", false)

	resp := rig.uploadTrack(t, ownerToken, "Keep Out")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	// A non-owner gets 404, not 403: the route doesn't reveal whose track it is.
	resp = rig.request(t, http.MethodDelete, "/api/tracks/keep-out", strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodDelete, "/api/tracks/keep-out", ownerToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/tracks/keep-out", ownerToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestCommentThread(t *testing.T) {
	rig := newTestRig(t)
	_, token := rig.seedUser(t, "commenter", false)

	resp := rig.uploadTrack(t, token, "Talk About It")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodPost, "/api/tracks/talk-about-it/comments", token,
		map[string]any{"content": "love the bassline"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON[map[string]any](t, resp)
	parentID := uint(created["id"].(float64))

	resp = rig.request(t, http.MethodPost, "/api/tracks/talk-about-it/comments", token,
		map[string]any{"content": "thanks!", "parent_id": parentID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/tracks/talk-about-it/comments", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	thread := decodeJSON[[]map[string]any](t, resp)
	require.Len(t, thread, 1)
	replies := thread[0]["replies"].([]any)
	assert.Len(t, replies, 1)
}

func TestCommentHoneypot(t *testing.T) {
	rig := newTestRig(t)
	_, token := rig.seedUser(t, "honeypotter", false)

	resp := rig.uploadTrack(t, token, "Bait")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodPost, "/api/tracks/bait/comments", token,
		map[string]any{"content": "buy followers now", "website": "https://spam.example"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/tracks/bait/comments", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	thread := decodeJSON[[]map[string]any](t, resp)
	assert.Empty(t, thread)
}

func TestProfileUpdateAndView(t *testing.T) {
	rig := newTestRig(t)
	_, token := rig.seedUser(t, "profowner", false)
	_, viewerToken := rig.seedUser(t, "profviewer", false)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("username", "profowner"))
	require.NoError(t, w.WriteField("display_name", "Prof Owner"))
	require.NoError(t, w.WriteField("bio", "making beats since 2019"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/profiles/me", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := rig.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "Prof Owner", updated["display_name"])

	resp = rig.request(t, http.MethodGet, "/api/profiles/profowner", viewerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	viewed := decodeJSON[map[string]any](t, resp)
	assert.Equal(t, "making beats since 2019", viewed["bio"])
	// Moderation state is owner-only.
	assert.NotContains(t, viewed, "moderation_status")
}

func TestAdminRoutesGated(t *testing.T) {
	rig := newTestRig(t)
	_, memberToken := rig.seedUser(t, "member", false)
	_, adminToken := rig.seedUser(t, "moderator", true)

	resp := rig.request(t, http.MethodGet, "/api/admin/moderation", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodGet, "/api/admin/moderation", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAdminRescan(t *testing.T) {
	rig := newTestRig(t)
	_, uploaderToken := rig.seedUser(t, "rescanme", false)
	_, adminToken := rig.seedUser(t, "rescanner", true)

	// Upload artwork so the rescan has something to look at.
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("title", "Scan Me"))
	audio, err := w.CreateFormFile("audio", "scanme.mp3")
	require.NoError(t, err)
	_, err = audio.Write([]byte("fake audio"))
	require.NoError(t, err)
	art, err := w.CreateFormFile("artwork", "cover.png")
	require.NoError(t, err)
	_, err = art.Write([]byte("fake png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tracks", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+uploaderToken)
	resp, err := rig.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	_ = resp.Body.Close()

	resp = rig.request(t, http.MethodPost, "/api/admin/moderation/rescan", adminToken,
		map[string]string{"target": "tracks"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeJSON[map[string]map[string]int](t, resp)
	assert.Equal(t, 1, result["tracks"]["scanned"])
	assert.Equal(t, 1, result["tracks"]["approved"])

	resp = rig.request(t, http.MethodPost, "/api/admin/moderation/rescan", adminToken,
		map[string]string{"target": "nonsense"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestReadinessWithoutRedis(t *testing.T) {
	rig := newTestRig(t)

	resp := rig.request(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON[map[string]any](t, resp)
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "unavailable", checks["redis"])
	assert.Equal(t, "healthy", checks["database"])
}
