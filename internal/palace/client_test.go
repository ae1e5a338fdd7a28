package palace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != DefaultAPIBase {
		t.Fatalf("url = %q, want %q", u.String(), DefaultAPIBase)
	}

	u, err = parseBaseURL("palace.example.com/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "https" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestClient_GenerateScene(t *testing.T) {
	t.Parallel()

	var got map[string]any
	var auth string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v2/generate_scene" {
			http.NotFound(w, r)
			return
		}
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"session_id":"abc123","objects":[{"uid":"1"}]}`)
	}).WithToken(" jwt ")

	scene, err := client.GenerateScene(context.Background(), SceneRequest{
		Theme:    "castle",
		Cards:    []map[string]string{{"uid": "1"}},
		DeckName: "Geo",
	})
	if err != nil {
		t.Fatalf("GenerateScene returned error: %v", err)
	}
	if scene.SessionID != "abc123" || !scene.HasObjects() {
		t.Fatalf("scene = %+v", scene)
	}
	if auth != "Bearer jwt" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got["theme"] != "castle" || got["deck_name"] != "Geo" {
		t.Fatalf("request body = %v", got)
	}
	if _, ok := got["session_id"]; ok {
		t.Fatalf("empty session_id was sent")
	}
}

func TestClient_GenerateSceneUsesRequestedSession(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"objects":[]}`)
	})
	scene, err := client.GenerateScene(context.Background(), SceneRequest{Theme: "t", SessionID: "1a2b3c4d"})
	if err != nil {
		t.Fatalf("GenerateScene returned error: %v", err)
	}
	if scene.SessionID != "1a2b3c4d" || scene.HasObjects() {
		t.Fatalf("scene = %+v", scene)
	}

	if _, err := client.GenerateScene(context.Background(), SceneRequest{Theme: "t"}); err == nil {
		t.Fatal("GenerateScene without any session id returned nil error")
	}
}

func TestClient_UploadMedia(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for name, body := range map[string]string{"a.png": "PNG", "b.mp3": "ID3"} {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	received := map[string]string{}
	var coupon string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload_media/s1" {
			http.NotFound(w, r)
			return
		}
		coupon = r.Header.Get("X-Coupon-Token")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, fh := range r.MultipartForm.File["files"] {
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			_ = f.Close()
			received[fh.Filename] = string(data)
		}
		_, _ = io.WriteString(w, "{}")
	}).WithCoupon("FREE")

	if err := client.UploadMedia(context.Background(), "s1", paths); err != nil {
		t.Fatalf("UploadMedia returned error: %v", err)
	}
	if received["a.png"] != "PNG" || received["b.mp3"] != "ID3" {
		t.Fatalf("received = %v", received)
	}
	if coupon != "FREE" {
		t.Fatalf("coupon = %q", coupon)
	}
	if err := client.UploadMedia(context.Background(), "s1", nil); err != nil {
		t.Fatalf("UploadMedia with no files returned error: %v", err)
	}
	if err := client.UploadMedia(context.Background(), "s1", []string{filepath.Join(dir, "missing")}); err == nil {
		t.Fatal("UploadMedia with missing file returned nil error")
	}
}

func TestClient_StatusAndAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/status/done":
			_, _ = io.WriteString(w, `{"status":"Scene COMPLETE"}`)
		case "/v2/status/blank":
			_, _ = io.WriteString(w, `{}`)
		default:
			http.Error(w, "no such session", http.StatusNotFound)
		}
	})

	st, err := client.Status(context.Background(), "done")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !st.Complete() {
		t.Fatalf("Complete() = false for %q", st.Status)
	}
	st, err = client.Status(context.Background(), "blank")
	if err != nil || st.Status != "pending" || st.Complete() {
		t.Fatalf("Status = %+v, %v", st, err)
	}

	_, err = client.Status(context.Background(), "gone")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Status error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || !strings.Contains(apiErr.Error(), "no such session") {
		t.Fatalf("APIError = %+v", apiErr)
	}
}

func TestClient_SessionIDEscapedOnce(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]string{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.URL.EscapedPath()
		mu.Unlock()
		_, _ = io.WriteString(w, `{"status":"pending"}`)
	})

	ids := []string{"a b", "x/y", "50%"}
	for _, id := range ids {
		if _, err := client.Status(context.Background(), id); err != nil {
			t.Fatalf("Status(%q) returned error: %v", id, err)
		}
		if err := client.UploadMedia(context.Background(), id, []string{writeTemp(t, "f.png", "PNG")}); err != nil {
			t.Fatalf("UploadMedia(%q) returned error: %v", id, err)
		}
	}

	tests := []struct {
		path    string
		escaped string
	}{
		{"/v2/status/a b", "/v2/status/a%20b"},
		{"/upload_media/a b", "/upload_media/a%20b"},
		{"/v2/status/x/y", "/v2/status/x%2Fy"},
		{"/upload_media/x/y", "/upload_media/x%2Fy"},
		{"/v2/status/50%", "/v2/status/50%25"},
		{"/upload_media/50%", "/upload_media/50%25"},
	}
	mu.Lock()
	defer mu.Unlock()
	for _, tt := range tests {
		got, ok := seen[tt.path]
		if !ok {
			t.Fatalf("server never saw %q; saw %v", tt.path, seen)
		}
		if got != tt.escaped {
			t.Fatalf("escaped path for %q = %q, want %q", tt.path, got, tt.escaped)
		}
	}
}

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestClient_GenerateViewer(t *testing.T) {
	t.Parallel()

	var layout map[string]json.RawMessage
	var withURL atomic.Bool
	withURL.Store(true)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&layout)
		if withURL.Load() {
			_, _ = io.WriteString(w, `{"url":"https://cdn.example/v.html"}`)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})

	got, err := client.GenerateViewer(context.Background(), "s9", json.RawMessage(`{"objects":[]}`))
	if err != nil {
		t.Fatalf("GenerateViewer returned error: %v", err)
	}
	if got != "https://cdn.example/v.html" {
		t.Fatalf("url = %q", got)
	}
	if string(layout["layout"]) != `{"objects":[]}` {
		t.Fatalf("layout = %s", layout["layout"])
	}

	withURL.Store(false)
	got, err = client.GenerateViewer(context.Background(), "s9", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("GenerateViewer returned error: %v", err)
	}
	if want := client.BaseURL() + "/viewer/s9/cranky_viewer.html"; got != want {
		t.Fatalf("url = %q, want %q", got, want)
	}
}

func TestFrontURLs(t *testing.T) {
	if got := DashboardURL("", ""); got != "https://cranky.app/" {
		t.Fatalf("DashboardURL = %q", got)
	}
	if got := DashboardURL("http://localhost:3000/", "a b"); got != "http://localhost:3000/?token=a+b" {
		t.Fatalf("DashboardURL = %q", got)
	}
	if got := LoginURL(""); got != "https://cranky.app/login?from_anki=true" {
		t.Fatalf("LoginURL = %q", got)
	}
}
