package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/main-feed/backend/internal/feed"
	"github.com/emilythestrangee/main-feed/backend/internal/ingest"
	"github.com/emilythestrangee/main-feed/backend/internal/middleware"
	"github.com/emilythestrangee/main-feed/backend/internal/upstream"
)

// =============================================================================
// Test Setup
// =============================================================================

var signingKey = []byte("handler-test-key")

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	gifBytes = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04")
)

func init() {
	gin.SetMode(gin.TestMode)
}

// collaborator is a fake upstream service that counts the calls it receives.
type collaborator struct {
	srv   *httptest.Server
	calls atomic.Int32
}

func newCollaborator(t *testing.T, handler http.HandlerFunc) *collaborator {
	t.Helper()
	c := &collaborator{}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(c.srv.Close)
	return c
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}
}

type fixture struct {
	posts    *collaborator
	comments *collaborator
	storage  *collaborator
	router   *gin.Engine
}

func newFixture(t *testing.T, posts, comments, storage http.HandlerFunc) *fixture {
	t.Helper()
	f := &fixture{
		posts:    newCollaborator(t, posts),
		comments: newCollaborator(t, comments),
		storage:  newCollaborator(t, storage),
	}

	client := upstream.NewHTTPClient(5 * time.Second)
	postService := upstream.NewPostService(f.posts.srv.URL, client, nil)
	commentService := upstream.NewCommentService(f.comments.srv.URL, client, nil)
	storageService := upstream.NewStorageService(f.storage.srv.URL, client, nil)

	h := NewHandler(
		feed.NewAggregator(postService, commentService),
		ingest.NewPipeline(nil, storageService, postService, 1024),
	)

	verifier := middleware.NewVerifier(signingKey)
	r := gin.New()
	r.Use(middleware.RequestLogger(nil))
	r.GET("/", Root)
	r.GET("/main_feed", middleware.Auth(verifier, "feed:read", nil), h.Feed.GetMainFeed)
	r.POST("/user_post", middleware.Auth(verifier, "post:write", nil), h.Post.CreateUserPost)
	f.router = r
	return f
}

func (f *fixture) upstreamCalls() int32 {
	return f.posts.calls.Load() + f.comments.calls.Load() + f.storage.calls.Load()
}

func token(t *testing.T, scope string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "tester",
		"scope": scope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(signingKey)
	require.NoError(t, err)
	return s
}

func (f *fixture) get(t *testing.T, path, tok string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if tok != "" {
		req.Header.Set(middleware.TokenHeader, tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type formFile struct {
	name string
	data []byte
}

func (f *fixture) postForm(t *testing.T, tok string, fields map[string]string, file *formFile) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("image", file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/user_post", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if tok != "" {
		req.Header.Set(middleware.TokenHeader, tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

const (
	onePost        = `[{"pid": 1, "title": "Hello", "content": "World", "writter_uni": "ab1234"}]`
	oneCommentTree = `{
		"comment1": [{"id": 10, "post_id": 1, "content": "Nice", "writter_uni": "u1", "likes": 0}],
		"comment2": [{"id": 100, "comment1_id": 10, "content": "Thanks", "writter_uni": "u2", "likes": 1}]
	}`
)

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out["error"]
}

// =============================================================================
// Root
// =============================================================================

func TestRoot(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `[]`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	w := f.get(t, "/", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "Welcome to the main feed service!"}`, w.Body.String())
}

// =============================================================================
// Main Feed
// =============================================================================

func TestGetMainFeed_NoTokenMakesNoUpstreamCalls(t *testing.T) {
	f := newFixture(t, jsonHandler(200, onePost), jsonHandler(200, oneCommentTree), jsonHandler(200, `{}`))

	w := f.get(t, "/main_feed", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.ReasonMissing, errorBody(t, w))
	assert.Zero(t, f.upstreamCalls())
}

func TestGetMainFeed_WrongScope(t *testing.T) {
	f := newFixture(t, jsonHandler(200, onePost), jsonHandler(200, oneCommentTree), jsonHandler(200, `{}`))

	w := f.get(t, "/main_feed", token(t, "post:write"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.upstreamCalls())
}

func TestGetMainFeed_AttachesCommentTree(t *testing.T) {
	f := newFixture(t, jsonHandler(200, onePost), jsonHandler(200, oneCommentTree), jsonHandler(200, `{}`))

	w := f.get(t, "/main_feed", token(t, "feed:read"))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"items": [{
			"pid": 1,
			"title": "Hello",
			"content": "World",
			"writer_uni": "ab1234",
			"comments": [{
				"id": 10, "post_id": 1, "content": "Nice", "writer_uni": "u1", "likes": 0,
				"replies": [{"id": 100, "comment1_id": 10, "content": "Thanks", "writer_uni": "u2", "likes": 1}]
			}]
		}],
		"total": 1,
		"page": 1,
		"size": 50,
		"pages": 1
	}`, w.Body.String())
	assert.Equal(t, int32(1), f.posts.calls.Load())
	assert.Equal(t, int32(1), f.comments.calls.Load())
	assert.Len(t, w.Header().Get(middleware.RequestIDHeader), middleware.RequestIDLength)
}

func TestGetMainFeed_Pagination(t *testing.T) {
	posts := `[{"pid": 1, "title": "a"}, {"pid": 2, "title": "b"}, {"pid": 3, "title": "c"}]`
	f := newFixture(t, jsonHandler(200, posts), jsonHandler(200, `{"comment1": [], "comment2": []}`), jsonHandler(200, `{}`))

	w := f.get(t, "/main_feed?page=2&size=2", token(t, "feed:read"))

	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []map[string]any `json:"items"`
		Total int              `json:"total"`
		Pages int              `json:"pages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, float64(3), page.Items[0]["pid"])
	assert.Equal(t, []any{}, page.Items[0]["comments"])
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
}

func TestGetMainFeed_InvalidPage(t *testing.T) {
	f := newFixture(t, jsonHandler(200, onePost), jsonHandler(200, oneCommentTree), jsonHandler(200, `{}`))

	for _, query := range []string{"page=0", "page=abc", "size=0", "size=101"} {
		t.Run(query, func(t *testing.T) {
			w := f.get(t, "/main_feed?"+query, token(t, "feed:read"))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Zero(t, f.upstreamCalls())
}

func TestGetMainFeed_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name       string
		posts      http.HandlerFunc
		comments   http.HandlerFunc
		wantStatus int
		wantError  string
	}{
		{
			name:       "comment service down",
			posts:      jsonHandler(200, onePost),
			comments:   jsonHandler(http.StatusServiceUnavailable, `{}`),
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "Error fetching comments.",
		},
		{
			name:       "post service not found",
			posts:      jsonHandler(http.StatusNotFound, `{}`),
			comments:   jsonHandler(200, oneCommentTree),
			wantStatus: http.StatusNotFound,
			wantError:  "Error fetching posts.",
		},
		{
			name:       "malformed comments",
			posts:      jsonHandler(200, onePost),
			comments:   jsonHandler(200, `{"comment1": [{"id": 10}]}`),
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.posts, tt.comments, jsonHandler(200, `{}`))

			w := f.get(t, "/main_feed", token(t, "feed:read"))

			assert.Equal(t, tt.wantStatus, w.Code)
			msg := errorBody(t, w)
			assert.NotEmpty(t, msg)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, msg)
			}
			assert.NotContains(t, w.Body.String(), "items")
		})
	}
}

// =============================================================================
// User Post
// =============================================================================

func TestCreateUserPost_WithImage(t *testing.T) {
	var persisted map[string]any
	f := newFixture(t,
		func(w http.ResponseWriter, r *http.Request) {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&persisted))
			jsonHandler(http.StatusCreated, `{"pid": 7, "title": "Hi"}`)(w, r)
		},
		jsonHandler(200, `{}`),
		jsonHandler(200, `{"image_key": "images/cat.png"}`),
	)

	w := f.postForm(t, token(t, "post:write"),
		map[string]string{"title": "Hi", "content": "There"},
		&formFile{name: "cat.png", data: pngBytes})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"message": "Post created successfully",
		"image_object_key": "images/cat.png",
		"post_data": {"pid": 7, "title": "Hi"}
	}`, w.Body.String())
	assert.Equal(t, "images/cat.png", persisted["image_object_name"])
	assert.Equal(t, "There", persisted["content"])
}

func TestCreateUserPost_WithoutImage(t *testing.T) {
	f := newFixture(t, jsonHandler(http.StatusOK, `{"pid": 8}`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	w := f.postForm(t, token(t, "post:write"), map[string]string{"title": "Hi", "content": "There"}, nil)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Zero(t, f.storage.calls.Load())
	assert.Equal(t, int32(1), f.posts.calls.Load())

	var result map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Nil(t, result["image_object_key"])
}

func TestCreateUserPost_RejectsGIF(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{}`), jsonHandler(200, `{}`), jsonHandler(200, `{"image_key": "k"}`))

	w := f.postForm(t, token(t, "post:write"),
		map[string]string{"title": "Hi", "content": "There"},
		&formFile{name: "cat.gif", data: gifBytes})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.storage.calls.Load())
	assert.Zero(t, f.posts.calls.Load())
}

func TestCreateUserPost_OversizedImage(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{}`), jsonHandler(200, `{}`), jsonHandler(200, `{"image_key": "k"}`))
	big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)

	w := f.postForm(t, token(t, "post:write"),
		map[string]string{"title": "Hi", "content": "There"},
		&formFile{name: "big.png", data: big})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.upstreamCalls())
}

func TestCreateUserPost_StorageFailureSkipsPersist(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{"pid": 1}`), jsonHandler(200, `{}`), jsonHandler(http.StatusInternalServerError, `{}`))

	w := f.postForm(t, token(t, "post:write"),
		map[string]string{"title": "Hi", "content": "There"},
		&formFile{name: "cat.png", data: pngBytes})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, int32(1), f.storage.calls.Load())
	assert.Zero(t, f.posts.calls.Load())
}

func TestCreateUserPost_MissingFields(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{}`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	w := f.postForm(t, token(t, "post:write"), map[string]string{"title": "Hi"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.upstreamCalls())
}

func TestCreateUserPost_RequiresPostScope(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{}`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	w := f.postForm(t, token(t, "feed:read"), map[string]string{"title": "Hi", "content": "There"}, nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.upstreamCalls())
}

func TestCreateUserPost_MissingFieldsMessage(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{}`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	w := f.postForm(t, token(t, "post:write"), map[string]string{"content": "There"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title and content are required", errorBody(t, w))
}

func TestCreateUserPost_MalformedMultipart(t *testing.T) {
	f := newFixture(t, jsonHandler(200, `{}`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	req := httptest.NewRequest(http.MethodPost, "/user_post", bytes.NewBufferString("--wrong\r\nnot a part"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=expected")
	req.Header.Set(middleware.TokenHeader, token(t, "post:write"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid form submission", errorBody(t, w))
	assert.Zero(t, f.upstreamCalls())
}

func TestCreateUserPost_LogsSubject(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(middleware.NewContextHandler(slog.NewJSONHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := newFixture(t, jsonHandler(http.StatusOK, `{"pid": 8}`), jsonHandler(200, `{}`), jsonHandler(200, `{}`))

	w := f.postForm(t, token(t, "post:write"), map[string]string{"title": "Hi", "content": "There"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "user post created" {
			found = true
			assert.Equal(t, "tester", rec["subject"])
			assert.Equal(t, w.Header().Get(middleware.RequestIDHeader), rec["request_id"])
		}
	}
	assert.True(t, found)
}

func TestGetMainFeed_NullCanonicalWriterKeepsAuthor(t *testing.T) {
	f := newFixture(t,
		jsonHandler(200, `[{"pid": 1, "writer_uni": null, "writter_uni": "ab12"}]`),
		jsonHandler(200, `{"comment1": [], "comment2": []}`),
		jsonHandler(200, `{}`))

	w := f.get(t, "/main_feed", token(t, "feed:read"))

	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "ab12", page.Items[0]["writer_uni"])
	assert.NotContains(t, page.Items[0], "writter_uni")
}

func TestGetMainFeed_UpstreamAuthFailureIsBadGateway(t *testing.T) {
	f := newFixture(t, jsonHandler(http.StatusUnauthorized, `{}`), jsonHandler(200, oneCommentTree), jsonHandler(200, `{}`))

	w := f.get(t, "/main_feed", token(t, "feed:read"))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Error fetching posts.", errorBody(t, w))
}
