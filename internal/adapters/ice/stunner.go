package ice

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/config"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const maxAuthResponse = 64 << 10

// StunnerProvider asks the STUNner authentication service for short lived
// TURN credentials.
type StunnerProvider struct {
	cfg    config.StunnerConfig
	policy string
	client *http.Client
}

func NewStunnerProvider(cfg config.StunnerConfig, policy string, client *http.Client) *StunnerProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if policy == "" {
		policy = "relay"
	}
	return &StunnerProvider{cfg: cfg, policy: policy, client: client}
}

func (p *StunnerProvider) endpoint(name string) string {
	q := url.Values{}
	q.Set("service", "turn")
	q.Set("username", name)
	q.Set("iceTransportPolicy", p.policy)
	if p.cfg.Namespace != "" {
		q.Set("namespace", p.cfg.Namespace)
	}
	if p.cfg.Gateway != "" {
		q.Set("gateway", p.cfg.Gateway)
	}
	if p.cfg.Listener != "" {
		q.Set("listener", p.cfg.Listener)
	}
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(p.cfg.Addr, strconv.Itoa(p.cfg.Port)),
		Path:     "/ice",
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (p *StunnerProvider) Credentials(ctx context.Context, name string) (core.IceConfiguration, error) {
	endpoint := p.endpoint(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.IceConfiguration{}, fmt.Errorf("%w: %v", app.ErrCredentialProvider, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return core.IceConfiguration{}, fmt.Errorf("%w: querying %s: %v", app.ErrCredentialProvider, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthResponse))
	if err != nil {
		return core.IceConfiguration{}, fmt.Errorf("%w: reading response: %v", app.ErrCredentialProvider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return core.IceConfiguration{}, fmt.Errorf("%w: %s returned %s", app.ErrCredentialProvider, endpoint, resp.Status)
	}

	var cfg core.IceConfiguration
	if err := json.Unmarshal(body, &cfg); err != nil {
		return core.IceConfiguration{}, fmt.Errorf("%w: decoding response: %v", app.ErrCredentialProvider, err)
	}
	log.Debug().Str("module", "ice").Str("name", name).Int("ice_servers", len(cfg.ICEServers)).Msg("stunner credentials")
	return cfg, nil
}
