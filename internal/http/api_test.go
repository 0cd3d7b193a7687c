package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-cloud/internal/auth"
	"video-cloud/internal/domain"
	"video-cloud/internal/repository"
	"video-cloud/internal/repository/sqldb"
	"video-cloud/internal/service"
	"video-cloud/internal/storage"
)

type fakeStorage struct {
	uploads []storage.UploadInput
	err     error
}

func (f *fakeStorage) Upload(ctx context.Context, in storage.UploadInput) (storage.Object, error) {
	if f.err != nil {
		return storage.Object{}, f.err
	}
	body, _ := io.ReadAll(in.Body)
	in.Body = bytes.NewReader(body)
	f.uploads = append(f.uploads, in)
	key := "uploads/" + in.Folder + "/" + in.FileName
	return storage.Object{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

type testServer struct {
	router  *gin.Engine
	issuer  *auth.Issuer
	users   service.UserService
	videos  repository.VideoRepository
	storage *fakeStorage
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T, opts ...sqldb.Option) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conns, err := sqldb.NewConnCache(filepath.Join(t.TempDir(), "videos.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	issuer, err := auth.NewIssuer(auth.Config{Secret: "test-secret"})
	require.NoError(t, err)

	videoRepo := sqldb.NewVideoRepository(conns)
	users := service.NewUserService(sqldb.NewUserRepository(conns))
	store := &fakeStorage{}

	router := gin.New()
	NewHandler(service.NewVideoService(videoRepo), users, issuer, store, quietLogger()).RegisterRoutes(router)

	return &testServer{router: router, issuer: issuer, users: users, videos: videoRepo, storage: store}
}

func (s *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T) string {
	t.Helper()
	token, _, err := s.issuer.Issue(domain.Identity{ID: "user-1", Email: "ada@example.com"})
	require.NoError(t, err)
	return token
}

func jsonRequest(method, target, body, token string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decodeVideos(t *testing.T, rec *httptest.ResponseRecorder) []VideoResponse {
	t.Helper()
	var resp VideoListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Videos)
	return resp.Videos
}

func videoTitles(videos []VideoResponse) []string {
	out := make([]string, len(videos))
	for i := range videos {
		out[i] = videos[i].Title
	}
	return out
}

func (s *testServer) seed(t *testing.T, title string, private bool, createdAt time.Time) {
	t.Helper()
	require.NoError(t, s.videos.Create(context.Background(), &domain.Video{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  title + " description",
		VideoURL:     "https://cdn.example.com/" + title + ".mp4",
		ThumbnailURL: "https://cdn.example.com/" + title + ".jpg",
		Private:      private,
		CreatedAt:    createdAt,
	}))
}

func TestListVideosEmpty(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"videos":[]}`, rec.Body.String())
}

func TestListVideosVisibility(t *testing.T) {
	srv := newTestServer(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv.seed(t, "A", false, base)
	srv.seed(t, "B", true, base.Add(time.Minute))

	anon := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	require.Equal(t, http.StatusOK, anon.Code)
	videos := decodeVideos(t, anon)
	assert.Equal(t, []string{"A"}, videoTitles(videos))
	assert.False(t, videos[0].Private)
	assert.Equal(t, "2024-05-01T12:00:00.000Z", videos[0].CreatedAt)

	authed := srv.do(t, jsonRequest(http.MethodGet, "/api/videos", "", srv.token(t)))
	require.Equal(t, http.StatusOK, authed.Code)
	assert.Equal(t, []string{"B", "A"}, videoTitles(decodeVideos(t, authed)))

	expired := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	expired.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "tampered"})
	assert.Equal(t, []string{"A"}, videoTitles(decodeVideos(t, srv.do(t, expired))))
}

func TestListVideosReportsDatabaseFailure(t *testing.T) {
	srv := newTestServer(t, sqldb.WithOpener(func(ctx context.Context, dsn string) (*sql.DB, error) {
		return nil, errors.New("connection refused")
	}))

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch videos"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "refused")
}

func TestCreateVideoRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	bodies := []string{
		``,
		`{}`,
		`not json`,
		`{"title":"A","description":"d","videoUrl":"v","thumbnailUrl":"t"}`,
	}
	for _, body := range bodies {
		rec := srv.do(t, jsonRequest(http.MethodPost, "/api/videos", body, ""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, body)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
	}
}

func TestCreateVideoValidation(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t)
	full := map[string]any{
		"title":        "A",
		"description":  "d",
		"videoUrl":     "https://cdn.example.com/a.mp4",
		"thumbnailUrl": "https://cdn.example.com/a.jpg",
	}

	for field := range full {
		t.Run("missing "+field, func(t *testing.T) {
			body := map[string]any{}
			for k, v := range full {
				if k != field {
					body[k] = v
				}
			}
			raw, err := json.Marshal(body)
			require.NoError(t, err)

			rec := srv.do(t, jsonRequest(http.MethodPost, "/api/videos", string(raw), token))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Missing required fields"}`, rec.Body.String())
		})
	}

	malformed := map[string]string{
		"truncated json":  `{"title":`,
		"wrong type":      `{"title":5,"description":"d","videoUrl":"v","thumbnailUrl":"t"}`,
		"private as text": `{"title":"A","description":"d","videoUrl":"v","thumbnailUrl":"t","private":"yes"}`,
	}
	for name, body := range malformed {
		t.Run(name, func(t *testing.T) {
			rec := srv.do(t, jsonRequest(http.MethodPost, "/api/videos", body, token))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"Invalid request body"}`, rec.Body.String())
		})
	}
}

func TestCreateVideo(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t)

	rec := srv.do(t, jsonRequest(http.MethodPost, "/api/videos",
		`{"title":"A","description":"d","videoUrl":"https://cdn.example.com/a.mp4","thumbnailUrl":"https://cdn.example.com/a.jpg"}`, token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created VideoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "A", created.Title)
	assert.False(t, created.Private)
	_, err := time.Parse(time.RFC3339, created.CreatedAt)
	assert.NoError(t, err)

	rec = srv.do(t, jsonRequest(http.MethodPost, "/api/videos",
		`{"title":"B","description":"d","videoUrl":"v","thumbnailUrl":"t","private":true}`, token))
	require.Equal(t, http.StatusOK, rec.Code)

	anon := decodeVideos(t, srv.do(t, httptest.NewRequest(http.MethodGet, "/api/videos", nil)))
	assert.Equal(t, []string{"A"}, videoTitles(anon))
	assert.Equal(t, created.ID, anon[0].ID)

	authed := decodeVideos(t, srv.do(t, jsonRequest(http.MethodGet, "/api/videos", "", token)))
	assert.ElementsMatch(t, []string{"A", "B"}, videoTitles(authed))
}

func TestRegisterAndSignIn(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"ada@example.com","password":"correct horse"}`, ""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = srv.do(t, jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"ada@example.com","password":"correct horse"}`, ""))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, jsonRequest(http.MethodPost, "/api/auth/register", `{"email":"bob@example.com","password":"short"}`, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Run("json success", func(t *testing.T) {
		rec := srv.do(t, jsonRequest(http.MethodPost, "/api/auth/signin", `{"email":"ada@example.com","password":"correct horse"}`, ""))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			User  domain.Identity `json:"user"`
			Token string          `json:"token"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ada@example.com", body.User.Email)
		claims, err := srv.issuer.Parse(body.Token)
		require.NoError(t, err)
		assert.Equal(t, body.User.ID, claims.ID)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, auth.CookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, 30*24*60*60, cookies[0].MaxAge)
	})

	failures := map[string]string{
		"wrong password": `{"email":"ada@example.com","password":"battery staple"}`,
		"unknown email":  `{"email":"ghost@example.com","password":"correct horse"}`,
		"missing fields": `{"email":"ada@example.com"}`,
	}
	for name, body := range failures {
		t.Run("json "+name, func(t *testing.T) {
			rec := srv.do(t, jsonRequest(http.MethodPost, "/api/auth/signin", body, ""))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"CredentialsSignin"}`, rec.Body.String())
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSignInForm(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.users.Register(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	rec := srv.do(t, formRequest("/api/auth/signin", url.Values{
		"email": {"ada@example.com"}, "password": {"nope nope"},
	}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=CredentialsSignin", rec.Header().Get("Location"))

	rec = srv.do(t, formRequest("/api/auth/signin", url.Values{
		"email": {"ghost@example.com"}, "password": {"correct horse"},
	}))
	assert.Equal(t, "/login?error=CredentialsSignin", rec.Header().Get("Location"))

	rec = srv.do(t, formRequest("/api/auth/signin", url.Values{
		"email": {"ada@example.com"}, "password": {"correct horse"}, "callbackUrl": {"/upload"},
	}))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/upload", rec.Header().Get("Location"))
	require.Len(t, rec.Result().Cookies(), 1)

	rec = srv.do(t, formRequest("/api/auth/signin", url.Values{
		"email": {"ada@example.com"}, "password": {"correct horse"}, "callbackUrl": {"//evil.example.com"},
	}))
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestSessionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ada, err := srv.users.Register(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	rec := srv.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	token, _, err := srv.issuer.Issue(*ada)
	require.NoError(t, err)
	rec = srv.do(t, jsonRequest(http.MethodGet, "/api/auth/session", "", token))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.User)
	assert.Equal(t, *ada, *resp.User)
	assert.NotEmpty(t, resp.Expires)

	rec = srv.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/signout", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionEndpointDropsUnknownUser(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: srv.token(t)})
	rec := srv.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func multipartUpload(t *testing.T, folder, name, content, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if folder != "" {
		require.NoError(t, w.WriteField("folder", folder))
	}
	if name != "" {
		part, err := w.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestUploadMedia(t *testing.T) {
	srv := newTestServer(t)
	token := srv.token(t)

	rec := srv.do(t, multipartUpload(t, "videos", "clip.mp4", "bytes", ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, multipartUpload(t, "videos", "", "", token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"File is required"}`, rec.Body.String())

	rec = srv.do(t, multipartUpload(t, "secrets", "clip.mp4", "bytes", token))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, multipartUpload(t, "thumbnails", "cover.jpg", "jpeg bytes", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"url":"https://cdn.example.com/uploads/thumbnails/cover.jpg","key":"uploads/thumbnails/cover.jpg"}`, rec.Body.String())
	require.Len(t, srv.storage.uploads, 1)
	assert.Equal(t, "thumbnails", srv.storage.uploads[0].Folder)

	srv.storage.err = errors.New("bucket gone")
	rec = srv.do(t, multipartUpload(t, "videos", "clip.mp4", "bytes", token))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to upload file"}`, rec.Body.String())
}

func TestUploadMediaWithoutStorage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer, err := auth.NewIssuer(auth.Config{Secret: "test-secret"})
	require.NoError(t, err)
	router := gin.New()
	NewHandler(nil, nil, issuer, nil, quietLogger()).RegisterRoutes(router)

	token, _, err := issuer.Issue(domain.Identity{ID: "user-1"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, multipartUpload(t, "videos", "clip.mp4", "bytes", token))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/videos", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	rec := srv.do(t, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
