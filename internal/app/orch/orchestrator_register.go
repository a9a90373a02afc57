package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/dkeye/Callbox/internal/domain"
	"github.com/dkeye/Callbox/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Register binds name to the session and requests ICE credentials in the
// background. The registerResponse is sent once the provider answers.
func (o *Orchestrator) Register(sid core.SessionID, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.session(sid)
	if !ok {
		return app.ErrUnknownPeer
	}
	if s.State != domain.StateUnregistered {
		_ = o.send(s, protocol.RegisterRejected("already registered as "+s.Name))
		return app.ErrInvalidState
	}
	if err := o.Registry.Register(s, name); err != nil {
		_ = o.send(s, protocol.RegisterRejected(registerReason(name, err)))
		return err
	}
	s.State = domain.StateRegistered
	o.fetchCredentials(sid, s.Name)
	return nil
}

func registerReason(name string, err error) string {
	switch {
	case errors.Is(err, app.ErrNameTaken):
		return "User " + name + " is already registered"
	case errors.Is(err, app.ErrInvalidState):
		return "already registered"
	}
	return err.Error()
}

// fetchCredentials must be called with o.mu held.
func (o *Orchestrator) fetchCredentials(sid core.SessionID, name string) {
	o.workers.Go(func() {
		ctx, cancel := context.WithTimeout(o.ctx, o.credTimeout)
		defer cancel()
		cfg, err := o.Creds.Credentials(ctx, name)

		o.mu.Lock()
		defer o.mu.Unlock()
		s, ok := o.session(sid)
		if !ok || s.Name != name {
			log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("credentials for a gone session")
			return
		}
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("sid", string(sid)).Str("name", name).Msg("credential provider")
			o.stopLocked(s)
			o.Registry.Unregister(sid)
			o.Candidates.Clear(sid)
			s.ResetCall()
			_ = o.send(s, protocol.RegisterRejected(fmt.Sprintf("%v: %v", app.ErrCredentialProvider, err)))
			return
		}
		_ = o.send(s, protocol.RegisterAccepted(cfg))
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("name", name).Int("ice_servers", len(cfg.ICEServers)).Msg("register accepted")
	})
}
