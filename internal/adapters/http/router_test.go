package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Callbox/internal/adapters/ice"
	"github.com/dkeye/Callbox/internal/adapters/signal"
	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/app/orch"
	"github.com/dkeye/Callbox/internal/config"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/core/mocks"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/mock/gomock"
)

func newServer(t *testing.T, creds core.CredentialProvider) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{Mode: "test", StaticPath: t.TempDir(), Secret: "test-secret"}
	o := orch.New(app.NewRegistry(), app.NewCandidateBuffer(8), creds)
	hub := signal.NewHub(signal.Options{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r := SetupRouter(ctx, cfg, Deps{Orch: o, Hub: hub, Creds: creds})
	srv := httptest.NewServer(NewHandler(r, cfg))
	t.Cleanup(func() {
		cancel()
		srv.Close()
		o.Close()
	})
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s: status %d, want %d (%s)", url, resp.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("decode %s: %v", body, err)
		}
	}
}

func stunOnly() core.CredentialProvider {
	return ice.NewStaticProvider([]webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}}, "")
}

func TestRouter_RegisterOverWebSocketShowsInUsers(t *testing.T) {
	srv := newServer(t, stunOnly())

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/one2one", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"id":"register","name":"alice"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var reg struct {
		ID               string                 `json:"id"`
		Response         string                 `json:"response"`
		ICEConfiguration *core.IceConfiguration `json:"iceConfiguration"`
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.ID != "registerResponse" || reg.Response != "accepted" {
		t.Fatalf("register: %s", data)
	}
	if reg.ICEConfiguration == nil || len(reg.ICEConfiguration.ICEServers) != 1 {
		t.Fatalf("ice configuration: %s", data)
	}

	var users []struct {
		Name  string `json:"name"`
		State string `json:"state"`
	}
	getJSON(t, srv.URL+"/api/users", http.StatusOK, &users)
	if len(users) != 1 || users[0].Name != "alice" || users[0].State != "registered" {
		t.Fatalf("users: %+v", users)
	}

	var health map[string]any
	getJSON(t, srv.URL+"/api/health", http.StatusOK, &health)
	if health["status"] != "ok" || health["users"] != float64(1) {
		t.Fatalf("health: %v", health)
	}
}

func TestRouter_ICE(t *testing.T) {
	srv := newServer(t, stunOnly())

	getJSON(t, srv.URL+"/api/ice", http.StatusBadRequest, nil)

	var cfg core.IceConfiguration
	getJSON(t, srv.URL+"/api/ice?username=bob", http.StatusOK, &cfg)
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URLs[0] != "stun:stun.l.google.com:19302" {
		t.Fatalf("ice: %+v", cfg)
	}
}

func TestRouter_ICEProviderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	creds := mocks.NewMockCredentialProvider(ctrl)
	creds.EXPECT().Credentials(gomock.Any(), "bob").Return(core.IceConfiguration{}, errors.New("upstream down"))

	srv := newServer(t, creds)
	var body map[string]string
	getJSON(t, srv.URL+"/api/ice?username=bob", http.StatusBadGateway, &body)
	if body["error"] != "upstream down" {
		t.Fatalf("error body: %v", body)
	}
}

func TestRouter_ClientToken(t *testing.T) {
	srv := newServer(t, stunOnly())

	resp, err := http.Get(srv.URL + "/api/whoami")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var token string
	for _, c := range resp.Cookies() {
		if c.Name == "ct" {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatalf("no ct cookie set")
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["client_token"] != token {
		t.Fatalf("whoami %q, cookie %q", body["client_token"], token)
	}
}

func TestRouter_MirrorDisabled(t *testing.T) {
	srv := newServer(t, stunOnly())
	resp, err := http.Get(srv.URL + "/magicmirror")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}
