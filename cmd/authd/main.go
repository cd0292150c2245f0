// Command authd boots the auth-role Listener: the handshake, rate-limited
// credential-format check, and realm-list handoff (spec.md §4.6 "auth"
// role). It owns no persistent storage — that is worldd's concern.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"nexuscore/internal/config"
	"nexuscore/internal/connrole"
	"nexuscore/internal/crypto"
	"nexuscore/internal/dispatch"
	"nexuscore/internal/gameconn"
	"nexuscore/internal/handlers"
	"nexuscore/internal/listener"
	"nexuscore/internal/logging"
	"nexuscore/internal/ratelimit"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the YAML config document")
	envPath := flag.String("env", ".env", "path to the optional .env secrets overlay")
	dev := flag.Bool("dev", false, "use human-readable development logging")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		log.Fatalf("authd: config: %v", err)
	}

	logger, err := logging.New(*dev)
	if err != nil {
		log.Fatalf("authd: logger: %v", err)
	}
	defer logger.Sync()

	limiter := ratelimit.New()
	stopSweep := limiter.StartSweeper(ratelimit.DefaultSweepInterval, int64(cfg.RateLimit.WindowMs))
	defer stopSweep()

	reg := dispatch.New()
	handlers.RegisterDefaults(reg, handlers.Deps{
		Limiter:      limiter,
		AuthWindowMs: int64(cfg.RateLimit.WindowMs),
		AuthLimit:    cfg.RateLimit.Limit,
		KeySource:    crypto.StaticKeySource{AuthKey: []byte("authd-bootstrap-key")},
	})

	hs := gameconn.Handshake{
		AuthVersion:  cfg.Auth.AuthVersion,
		RealmID:      cfg.Auth.RealmID,
		RealmGroupID: cfg.Auth.RealmGroupID,
		AuthMessage:  authMessageOrDefault(cfg.Auth.AuthMessage),
	}

	l, err := listener.Start(listener.Config{
		Name:      "authd",
		Host:      cfg.Auth.Host,
		Port:      cfg.Auth.Port,
		Role:      connrole.Auth,
		Registry:  reg,
		Handshake: hs,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("listener start failed", zap.Error(err))
	}

	logger.Info("authd listening", zap.Int("port", l.PortOf()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("authd shutting down")
	l.Stop()
}

func authMessageOrDefault(v uint32) uint32 {
	if v == 0 {
		return gameconn.DefaultAuthMessage
	}
	return v
}
