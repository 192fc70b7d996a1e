package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/emberhq/embersync/internal/addr"
	"github.com/emberhq/embersync/internal/locsync"
	"github.com/emberhq/embersync/internal/program"
	"github.com/emberhq/embersync/internal/testutil/testlog"
)

func newTestAdmin(t *testing.T) (*Admin, *Server, *program.Session, *locsync.State) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	session := program.NewSession()
	state := locsync.NewState()
	svc := locsync.NewService(session, state, nil, nil)
	srv := New(Config{ListenAddr: "127.0.0.1:0"}, svc)
	admin := NewAdmin("embersync-admin-test", "127.0.0.1:0", srv, session, state, nil)
	admin.RegisterRoutes()
	return admin, srv, session, state
}

func adminGET(t *testing.T, admin *Admin, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	admin.HTTPRouter().ServeHTTP(rec, req)

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return rec.Code, body
}

func TestAdminHealth(t *testing.T) {
	testlog.Start(t)

	admin, _, _, _ := newTestAdmin(t)
	code, body := adminGET(t, admin, "/health")
	if code != http.StatusOK {
		t.Fatalf("health status code: %d", code)
	}
	if body["status"] != "ok" {
		t.Fatalf("health body: %v", body)
	}
	if body["service"] != "embersync-admin-test" {
		t.Fatalf("health service id: %v", body["service"])
	}
}

func TestAdminReadyTracksListenerPhase(t *testing.T) {
	testlog.Start(t)

	admin, srv, _, _ := newTestAdmin(t)

	_, body := adminGET(t, admin, "/ready")
	if ready, _ := body["ready"].(bool); ready {
		t.Fatalf("stopped listener must not report ready")
	}

	if err := srv.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	_, body = adminGET(t, admin, "/ready")
	if ready, _ := body["ready"].(bool); !ready {
		t.Fatalf("listening server must report ready: %v", body)
	}
}

func TestAdminStatusSnapshot(t *testing.T) {
	testlog.Start(t)

	admin, _, session, state := newTestAdmin(t)

	_, body := adminGET(t, admin, "/status")
	if body["phase"] != string(PhaseStopped) {
		t.Fatalf("status phase: %v", body["phase"])
	}
	if _, ok := body["program"]; ok {
		t.Fatalf("no program should be reported before activation: %v", body)
	}
	if _, ok := body["last_address"]; ok {
		t.Fatalf("no last_address should be reported before a sync: %v", body)
	}

	session.Replace(program.Program{Name: "crackme", ImageBase: 0x00400000, Width: addr.Width64})
	state.Set(0x0050115e)

	_, body = adminGET(t, admin, "/status")
	prog, ok := body["program"].(map[string]any)
	if !ok {
		t.Fatalf("status missing program block: %v", body)
	}
	if prog["name"] != "crackme" || prog["image_base"] != "0x00400000" {
		t.Fatalf("unexpected program block: %v", prog)
	}
	if body["last_address"] != "0x0050115e" {
		t.Fatalf("unexpected last_address: %v", body["last_address"])
	}
}

func TestAdminMetricsEndpoint(t *testing.T) {
	testlog.Start(t)

	admin, _, _, _ := newTestAdmin(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	admin.HTTPRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status code: %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("metrics body empty")
	}
}
