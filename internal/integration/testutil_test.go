package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pkt.systems/fileclassifier"
	"pkt.systems/fileclassifier/schema"
)

type testServer struct {
	srv      fileclassifier.Server
	url      string
	stateDir string
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func requireLong(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell", "chrome"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("chrome not found in PATH")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func startServer(t *testing.T, cfg fileclassifier.ServerConfig) *testServer {
	t.Helper()
	if cfg.StateDir == "" {
		cfg.StateDir = t.TempDir()
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:0"
	}
	srv, err := fileclassifier.New(context.Background(), cfg, fileclassifier.ServerDeps{})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	ts := &testServer{srv: srv, url: strings.TrimSuffix(srv.URL(), "/"), stateDir: cfg.StateDir}
	t.Cleanup(func() { ts.stop(t) })
	return ts
}

func (ts *testServer) stop(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.srv.Stop(ctx); err != nil {
		t.Fatalf("stop server: %v", err)
	}
}

func (ts *testServer) call(t *testing.T, method, path string, body any, out any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.url+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	if out != nil && env.Success {
		if err := json.Unmarshal(env.Data, out); err != nil {
			t.Fatalf("decode data %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode, env
}

func (ts *testServer) mustCall(t *testing.T, method, path string, body any, out any) {
	t.Helper()
	status, env := ts.call(t, method, path, body, out)
	if status != http.StatusOK || !env.Success {
		t.Fatalf("%s %s: status=%d error=%q", method, path, status, env.Error)
	}
}

func (ts *testServer) state(t *testing.T) schema.Session {
	t.Helper()
	var session schema.Session
	ts.mustCall(t, http.MethodGet, "/api/state", nil, &session)
	return session
}

func classifyBody(index, category int) map[string]int {
	return map[string]int{"itemIndex": index, "category": category}
}

func itemPath(index int) string {
	return fmt.Sprintf("/api/item?index=%d", index)
}
