// Package ice implements the credential providers handed to registered
// participants.
package ice

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dkeye/Callbox/internal/config"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/pion/webrtc/v4"
)

// NewProvider picks the provider named by cfg.Credentials.Provider.
func NewProvider(cfg *config.Config, client *http.Client) (core.CredentialProvider, error) {
	servers := ServersFromConfig(cfg.ICEServers)
	c := cfg.Credentials
	switch c.Provider {
	case config.ProviderStunner:
		return NewStunnerProvider(c.Stunner, c.TransportPolicy, client), nil
	case config.ProviderTurnREST:
		return NewTurnRESTProvider(TurnRESTConfig{
			SharedSecret:    c.TurnREST.Secret,
			TTL:             c.TurnREST.TTL,
			UsernamePrefix:  c.TurnREST.Prefix,
			Servers:         servers,
			TransportPolicy: c.TransportPolicy,
		})
	case config.ProviderStatic:
		return NewStaticProvider(servers, c.TransportPolicy), nil
	}
	return nil, fmt.Errorf("unknown credentials provider %q", c.Provider)
}

func ServersFromConfig(in []config.ICEServer) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(in))
	for _, s := range in {
		if len(s.URLs) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: append([]string(nil), s.URLs...)}
		if s.Username != "" {
			server.Username = s.Username
		}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		out = append(out, server)
	}
	return out
}

// StaticProvider hands every participant the same configured servers.
type StaticProvider struct {
	cfg core.IceConfiguration
}

func NewStaticProvider(servers []webrtc.ICEServer, policy string) *StaticProvider {
	return &StaticProvider{cfg: core.IceConfiguration{ICEServers: servers, ICETransportPolicy: policy}}
}

func (p *StaticProvider) Credentials(_ context.Context, _ string) (core.IceConfiguration, error) {
	out := p.cfg
	out.ICEServers = append([]webrtc.ICEServer(nil), p.cfg.ICEServers...)
	return out, nil
}
