package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Callbox/internal/adapters/http"
	"github.com/dkeye/Callbox/internal/adapters/ice"
	"github.com/dkeye/Callbox/internal/adapters/rtc"
	wssignal "github.com/dkeye/Callbox/internal/adapters/signal"
	"github.com/dkeye/Callbox/internal/app"
	"github.com/dkeye/Callbox/internal/app/mirror"
	"github.com/dkeye/Callbox/internal/app/orch"
	"github.com/dkeye/Callbox/internal/config"
)

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setLogLevel(cfg.LogLevel)
	cfg.OnChange(func(next *config.Config) {
		setLogLevel(next.LogLevel)
	})

	creds, err := ice.NewProvider(cfg, &http.Client{Timeout: cfg.Credentials.Timeout})
	if err != nil {
		log.Fatal().Err(err).Msg("credential provider")
	}
	rateAction, err := app.ParseAction(cfg.Signal.RateLimitAction)
	if err != nil {
		log.Fatal().Err(err).Msg("rate limit action")
	}
	policy := app.SimplePolicy{RateLimited: rateAction}

	o := orch.New(
		app.NewRegistry(),
		app.NewCandidateBuffer(cfg.Signal.MaxBufferedCandidates),
		creds,
		orch.WithRingTimeout(cfg.Signal.RingTimeout),
		orch.WithCredentialTimeout(cfg.Credentials.Timeout),
		orch.WithPolicy(policy),
	)
	hub := wssignal.NewHub(wssignal.OptionsFromConfig(cfg), policy)

	deps := router.Deps{Orch: o, Hub: hub, Creds: creds}
	if cfg.Mirror.Enabled {
		factory, err := rtc.NewMirrorFactory(rtc.MirrorOptions{
			ICEServers:  ice.ServersFromConfig(cfg.ICEServers),
			PLIInterval: cfg.Mirror.PLIInterval,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("mirror factory")
		}
		deps.Mirror = mirror.NewService(factory, app.NewCandidateBuffer(cfg.Signal.MaxBufferedCandidates))
	}

	r := router.SetupRouter(ctx, cfg, deps)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router.NewHandler(r, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Bool("tls", cfg.TLS.Enabled()).Msg("Callbox server started")
		var err error
		if cfg.TLS.Enabled() {
			err = srv.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		// hijacked WebSocket connections are not closed by Shutdown
		hub.CloseAll()
		o.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}
