package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/nukta-be/internal/api/handlers"
	"github.com/isdelr/nukta-be/internal/auth"
	"github.com/isdelr/nukta-be/internal/database"
	"github.com/isdelr/nukta-be/internal/media"
	"github.com/isdelr/nukta-be/internal/services"
	"github.com/isdelr/nukta-be/internal/store"
	"github.com/isdelr/nukta-be/internal/summarizer"
	ws "github.com/isdelr/nukta-be/internal/websocket"
)

const testOrigin = "http://localhost:5173"

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type envelopeBody struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []string        `json:"errors"`
	Stack   string          `json:"stack"`
}

type testServer struct {
	*httptest.Server
	files *media.DiskStore
}

func newTestServer(t *testing.T, production bool) *testServer {
	return newTestServerWithHub(t, production, nil)
}

func newTestServerWithHub(t *testing.T, production bool, hub *ws.Hub) *testServer {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatal(err)
	}
	st := store.NewSQLStore(db)
	t.Cleanup(func() { st.Close(context.Background()) })

	files, err := media.NewDiskStore(t.TempDir(), "/uploads", 1024)
	if err != nil {
		t.Fatal(err)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"summary_text":"Short."}]`))
	}))
	t.Cleanup(upstream.Close)

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	router := NewRouter(Dependencies{
		Users:           services.NewUserService(st, issuer),
		Posts:           services.NewPostService(st, st, files, publisherFor(hub)),
		Summarizer:      summarizer.New(st, upstream.URL, "key", 5*time.Second),
		Hub:             hub,
		AllowedOrigin:   testOrigin,
		Production:      production,
		TokenTTL:        time.Hour,
		UploadDir:       files.Dir(),
		UploadURLPrefix: "/uploads",
		Uploads:         handlers.UploadLimits{MaxSize: 1024, TooLargeMessage: files.TooLargeMessage()},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, files: files}
}

func (s *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, envelopeBody) {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env envelopeBody
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("%s %s: invalid JSON %q", method, path, raw)
		}
	}
	return resp, env
}

func (s *testServer) signup(t *testing.T, name, email string) string {
	t.Helper()
	body := `{"name":"` + name + `","email":"` + email + `","password":"password123"}`
	resp, env := s.do(t, http.MethodPost, "/api/auth/signup", "", strings.NewReader(body), "application/json")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, body %+v", resp.StatusCode, env)
	}
	var data struct {
		Token string `json:"token"`
	}
	json.Unmarshal(env.Data, &data)
	if data.Token == "" {
		t.Fatal("signup returned no token")
	}
	return data.Token
}

func multipartBody(t *testing.T, fields map[string]string, image []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if image != nil {
		fw, err := mw.CreateFormFile("featuredImage", "cover.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(image)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

type postData struct {
	Post struct {
		Slug          string `json:"slug"`
		Title         string `json:"title"`
		Content       string `json:"content"`
		FeaturedImage string `json:"featuredImage"`
		Status        string `json:"status"`
		Author        *struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"author"`
	} `json:"post"`
}

func TestPostLifecycleEndToEnd(t *testing.T) {
	s := newTestServer(t, false)
	token := s.signup(t, "Alice", "alice@example.com")

	body, ct := multipartBody(t, map[string]string{
		"title": "Hello", "slug": "hello-world", "content": "<p>Hi there</p>",
	}, pngBytes)
	resp, env := s.do(t, http.MethodPost, "/api/posts", token, body, ct)
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("create status = %d, body %+v", resp.StatusCode, env)
	}
	var created postData
	json.Unmarshal(env.Data, &created)
	if created.Post.FeaturedImage == "" {
		t.Fatal("created post has no featured image")
	}

	resp, env = s.do(t, http.MethodGet, "/api/posts/hello-world", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var fetched postData
	json.Unmarshal(env.Data, &fetched)
	if fetched.Post.Title != "Hello" || fetched.Post.Content != "<p>Hi there</p>" {
		t.Errorf("fetched post = %+v", fetched.Post)
	}
	if fetched.Post.Author == nil || fetched.Post.Author.Email != "alice@example.com" {
		t.Errorf("author = %+v", fetched.Post.Author)
	}

	imgResp, err := http.Get(s.URL + created.Post.FeaturedImage)
	if err != nil {
		t.Fatal(err)
	}
	imgResp.Body.Close()
	if imgResp.StatusCode != http.StatusOK {
		t.Errorf("static image status = %d", imgResp.StatusCode)
	}

	resp, env = s.do(t, http.MethodGet, "/api/posts?status=active", "", nil, "")
	var list struct {
		Total int `json:"total"`
	}
	json.Unmarshal(env.Data, &list)
	if resp.StatusCode != http.StatusOK || list.Total != 1 {
		t.Errorf("list status = %d, total = %d", resp.StatusCode, list.Total)
	}

	resp, env = s.do(t, http.MethodGet, "/api/posts/hello-world/summarize", "", nil, "")
	var sum struct {
		Summary   string `json:"summary"`
		PostTitle string `json:"postTitle"`
	}
	json.Unmarshal(env.Data, &sum)
	if resp.StatusCode != http.StatusOK || sum.Summary != "Short." || sum.PostTitle != "Hello" {
		t.Errorf("summarize status = %d, data = %+v", resp.StatusCode, sum)
	}

	resp, _ = s.do(t, http.MethodDelete, "/api/posts/hello-world", token, nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, env = s.do(t, http.MethodGet, "/api/posts/hello-world", "", nil, "")
	if resp.StatusCode != http.StatusNotFound || env.Success || env.Message != "Post not found" {
		t.Errorf("get after delete = %d %+v", resp.StatusCode, env)
	}

	files, _ := s.files.List(context.Background())
	if len(files) != 0 {
		t.Errorf("media left after delete: %+v", files)
	}
}

func TestAuthorizationRules(t *testing.T) {
	s := newTestServer(t, false)
	alice := s.signup(t, "Alice", "alice@example.com")
	bob := s.signup(t, "Bob", "bob@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "A", "slug": "alices", "content": "c"}, nil)
	if resp, env := s.do(t, http.MethodPost, "/api/posts", alice, body, ct); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d %+v", resp.StatusCode, env)
	}

	body, ct = multipartBody(t, map[string]string{"title": "A", "slug": "x", "content": "c"}, nil)
	if resp, _ := s.do(t, http.MethodPost, "/api/posts", "", body, ct); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous create status = %d, want 401", resp.StatusCode)
	}

	body, ct = multipartBody(t, map[string]string{"title": "Hijacked"}, nil)
	if resp, _ := s.do(t, http.MethodPut, "/api/posts/alices", bob, body, ct); resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign update status = %d, want 403", resp.StatusCode)
	}
	if resp, _ := s.do(t, http.MethodDelete, "/api/posts/alices", bob, nil, ""); resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign delete status = %d, want 403", resp.StatusCode)
	}
	if resp, _ := s.do(t, http.MethodDelete, "/api/posts/alices", "", nil, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous delete status = %d, want 401", resp.StatusCode)
	}
	if resp, _ := s.do(t, http.MethodDelete, "/api/posts/alices", "forged.token.value", nil, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("forged token delete status = %d, want 401", resp.StatusCode)
	}

	body, ct = multipartBody(t, map[string]string{"title": "B", "slug": "alices", "content": "c"}, nil)
	if resp, _ := s.do(t, http.MethodPost, "/api/posts", bob, body, ct); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate slug status = %d, want 409", resp.StatusCode)
	}

	resp, env := s.do(t, http.MethodGet, "/api/posts/user/my-posts", bob, nil, "")
	var mine struct {
		Total int `json:"total"`
	}
	json.Unmarshal(env.Data, &mine)
	if resp.StatusCode != http.StatusOK || mine.Total != 0 {
		t.Errorf("bob's posts = %d, total %d", resp.StatusCode, mine.Total)
	}
}

func TestSessionEndpoints(t *testing.T) {
	s := newTestServer(t, false)
	s.signup(t, "Alice", "alice@example.com")

	body := `{"email":"alice@example.com","password":"password123"}`
	resp, env := s.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(body), "application/json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d %+v", resp.StatusCode, env)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value == "" {
		t.Fatalf("session cookie = %+v", cookie)
	}

	req, _ := http.NewRequest(http.MethodGet, s.URL+"/api/auth/me", nil)
	req.AddCookie(cookie)
	meResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		t.Errorf("me with cookie status = %d", meResp.StatusCode)
	}

	resp, env = s.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`), "application/json")
	if resp.StatusCode != http.StatusUnauthorized || env.Message != "Invalid email or password" {
		t.Errorf("bad login = %d %+v", resp.StatusCode, env)
	}

	resp, _ = s.do(t, http.MethodPost, "/api/auth/signup", "", strings.NewReader(`{"name":"A","email":"alice@example.com","password":"password123"}`), "application/json")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", resp.StatusCode)
	}
}

func TestUploadRejections(t *testing.T) {
	s := newTestServer(t, false)
	token := s.signup(t, "Alice", "alice@example.com")

	body, ct := multipartBody(t, map[string]string{"title": "A", "slug": "a", "content": "c"}, []byte("not an image at all"))
	resp, env := s.do(t, http.MethodPost, "/api/posts", token, body, ct)
	if resp.StatusCode != http.StatusBadRequest || !strings.HasPrefix(env.Message, "Invalid file type") {
		t.Errorf("bad type = %d %+v", resp.StatusCode, env)
	}

	big := append(append([]byte{}, pngBytes...), make([]byte, 2048)...)
	body, ct = multipartBody(t, map[string]string{"title": "A", "slug": "a", "content": "c"}, big)
	resp, env = s.do(t, http.MethodPost, "/api/posts", token, body, ct)
	if resp.StatusCode != http.StatusBadRequest || env.Message != "File size too large. Maximum size is 1KB." {
		t.Errorf("too large = %d %+v", resp.StatusCode, env)
	}

	if resp, _ := s.do(t, http.MethodGet, "/api/posts/a", "", nil, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("rejected upload still created the post: %d", resp.StatusCode)
	}
}

func TestErrorEnvelope(t *testing.T) {
	dev := newTestServer(t, false)
	resp, env := dev.do(t, http.MethodGet, "/api/nothing-here", "", nil, "")
	if resp.StatusCode != http.StatusNotFound || env.Message != "Route /api/nothing-here not found" {
		t.Errorf("unknown route = %d %+v", resp.StatusCode, env)
	}
	if env.Stack == "" {
		t.Error("development response lacks stack")
	}

	prod := newTestServer(t, true)
	_, env = prod.do(t, http.MethodGet, "/api/posts/missing", "", nil, "")
	if env.Stack != "" {
		t.Errorf("production response leaked stack %q", env.Stack)
	}

	resp, _ = prod.do(t, http.MethodGet, "/health", "", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	s := newTestServer(t, false)
	for origin, allowed := range map[string]bool{testOrigin: true, "http://evil.example": false} {
		req, _ := http.NewRequest(http.MethodOptions, s.URL+"/api/posts", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		got := resp.Header.Get("Access-Control-Allow-Origin") == origin
		if got != allowed {
			t.Errorf("origin %s allowed = %v, want %v", origin, got, allowed)
		}
		if allowed && resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("credentials not allowed for configured origin")
		}
	}
}

func publisherFor(hub *ws.Hub) services.Publisher {
	if hub == nil {
		return nil
	}
	return hub
}

func TestFeedReceivesPostEvents(t *testing.T) {
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	s := newTestServerWithHub(t, false, hub)
	token := s.signup(t, "Alice", "alice@example.com")

	header := http.Header{"Origin": []string{testOrigin}}
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/api/feed/ws", header)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// The hub registers the client asynchronously; publish until it shows up.
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	received := make(chan ws.Message, 1)
	go func() {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	}()

	for i := 0; ; i++ {
		slug := "feed-" + string(rune('a'+i))
		body, ct := multipartBody(t, map[string]string{"title": "Feed", "slug": slug, "content": "c"}, nil)
		if resp, env := s.do(t, http.MethodPost, "/api/posts", token, body, ct); resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d %+v", resp.StatusCode, env)
		}
		select {
		case msg := <-received:
			if msg.Action != "post.created" {
				t.Errorf("Action = %q, want post.created", msg.Action)
			}
			return
		case <-time.After(100 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("no feed event received")
		}
	}
}

func TestFeedRejectsForeignOrigin(t *testing.T) {
	hub := ws.NewHub()
	go hub.Run()
	defer hub.Stop()

	s := newTestServerWithHub(t, false, hub)
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/api/feed/ws", header)
	if err == nil {
		t.Fatal("Dial() from foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v, want 403", resp)
	}
}
