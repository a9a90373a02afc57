package ice

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"testing"
	"time"

	"github.com/dkeye/Callbox/internal/config"
	"github.com/pion/webrtc/v4"
)

func TestTurnREST_DeterministicWithFixedTime(t *testing.T) {
	p, err := NewTurnRESTProvider(TurnRESTConfig{
		SharedSecret:   "shared-secret",
		TTL:            time.Hour,
		UsernamePrefix: "callbox",
		Servers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.example.com:3478"}},
			{URLs: []string{"turn:turn.example.com:3478?transport=udp"}},
		},
		TransportPolicy: "all",
		Now:             func() time.Time { return time.Unix(1_700_000_000, 0).UTC() },
	})
	if err != nil {
		t.Fatalf("NewTurnRESTProvider: %v", err)
	}

	cfg, err := p.Credentials(context.Background(), "al:ice")
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if cfg.ICETransportPolicy != "all" || len(cfg.ICEServers) != 2 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.ICEServers[0].Username != "" || cfg.ICEServers[0].Credential != nil {
		t.Fatalf("stun server got credentials: %+v", cfg.ICEServers[0])
	}

	wantUsername := "1700003600:callbox:al_ice"
	turn := cfg.ICEServers[1]
	if turn.Username != wantUsername {
		t.Fatalf("Username: got %q, want %q", turn.Username, wantUsername)
	}
	mac := hmac.New(sha1.New, []byte("shared-secret"))
	_, _ = mac.Write([]byte(wantUsername))
	wantCred := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if cred, ok := turn.Credential.(string); !ok || cred != wantCred {
		t.Fatalf("Credential: got %#v, want %q", turn.Credential, wantCred)
	}
}

func TestTurnREST_DoesNotMutateConfiguredServers(t *testing.T) {
	servers := []webrtc.ICEServer{{URLs: []string{"turns:turn.example.com:5349"}}}
	p, err := NewTurnRESTProvider(TurnRESTConfig{SharedSecret: "s", TTL: time.Minute, UsernamePrefix: "p", Servers: servers})
	if err != nil {
		t.Fatalf("NewTurnRESTProvider: %v", err)
	}
	if _, err := p.Credentials(context.Background(), "bob"); err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if servers[0].Username != "" {
		t.Fatalf("configured servers mutated: %+v", servers[0])
	}
}

func TestTurnREST_ConfigErrors(t *testing.T) {
	cases := map[string]TurnRESTConfig{
		"no secret":    {TTL: time.Minute, UsernamePrefix: "p"},
		"short ttl":    {SharedSecret: "s", UsernamePrefix: "p"},
		"no prefix":    {SharedSecret: "s", TTL: time.Minute},
		"colon prefix": {SharedSecret: "s", TTL: time.Minute, UsernamePrefix: "a:b"},
	}
	for name, cfg := range cases {
		if _, err := NewTurnRESTProvider(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestNewProvider_Static(t *testing.T) {
	cfg := &config.Config{
		Credentials: config.CredentialsConfig{Provider: config.ProviderStatic, TransportPolicy: "all"},
		ICEServers: []config.ICEServer{
			{URLs: []string{"stun:stun.example.com:3478"}},
			{URLs: nil},
			{URLs: []string{"turn:turn.example.com:3478"}, Username: "u", Credential: "c"},
		},
	}
	p, err := NewProvider(cfg, http.DefaultClient)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	got, err := p.Credentials(context.Background(), "anyone")
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if len(got.ICEServers) != 2 || got.ICEServers[1].Username != "u" || got.ICETransportPolicy != "all" {
		t.Fatalf("unexpected: %+v", got)
	}

	cfg.Credentials.Provider = "nope"
	if _, err := NewProvider(cfg, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
