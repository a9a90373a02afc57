package ice

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/pion/webrtc/v4"
)

// TurnRESTProvider mints coturn compatible TURN REST credentials:
//
//	username   = <unix_expiry>:<prefix>:<participant>
//	credential = base64(hmac_sha1(shared_secret, username))
type TurnRESTProvider struct {
	secret  []byte
	ttl     time.Duration
	prefix  string
	servers []webrtc.ICEServer
	policy  string
	now     func() time.Time
}

type TurnRESTConfig struct {
	SharedSecret    string
	TTL             time.Duration
	UsernamePrefix  string
	Servers         []webrtc.ICEServer
	TransportPolicy string
	Now             func() time.Time
}

func NewTurnRESTProvider(cfg TurnRESTConfig) (*TurnRESTProvider, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTL < time.Second {
		return nil, errors.New("TTL must be at least 1s")
	}
	if cfg.UsernamePrefix == "" {
		return nil, errors.New("UsernamePrefix is required")
	}
	if strings.Contains(cfg.UsernamePrefix, ":") {
		return nil, errors.New("UsernamePrefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TurnRESTProvider{
		secret:  []byte(cfg.SharedSecret),
		ttl:     cfg.TTL,
		prefix:  cfg.UsernamePrefix,
		servers: cfg.Servers,
		policy:  cfg.TransportPolicy,
		now:     cfg.Now,
	}, nil
}

func (p *TurnRESTProvider) Credentials(_ context.Context, name string) (core.IceConfiguration, error) {
	if name == "" {
		return core.IceConfiguration{}, fmt.Errorf("%w: empty participant name", app.ErrCredentialProvider)
	}
	// ':' separates the username fields.
	name = strings.ReplaceAll(name, ":", "_")
	expiry := p.now().UTC().Add(p.ttl).Unix()
	username := fmt.Sprintf("%d:%s:%s", expiry, p.prefix, name)
	credential := signUsername(p.secret, username)

	return core.IceConfiguration{
		ICEServers:         withCredentials(p.servers, username, credential),
		ICETransportPolicy: p.policy,
	}, nil
}

func signUsername(secret []byte, username string) string {
	mac := hmac.New(sha1.New, secret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// withCredentials copies servers, filling credentials only on TURN entries.
func withCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(servers))
	for i, s := range servers {
		out[i] = s
		out[i].URLs = append([]string(nil), s.URLs...)
		if hasTURNURL(s) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func hasTURNURL(s webrtc.ICEServer) bool {
	for _, u := range s.URLs {
		u = strings.ToLower(strings.TrimSpace(u))
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}
