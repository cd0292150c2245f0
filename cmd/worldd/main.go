// Command worldd boots the world-role Listener: gameplay connections that
// carry the quest persistence scheduler (spec.md §4.8) through to a MySQL
// QuestPersistence adapter.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"nexuscore/internal/config"
	"nexuscore/internal/connrole"
	"nexuscore/internal/crypto"
	"nexuscore/internal/dispatch"
	"nexuscore/internal/gameconn"
	"nexuscore/internal/handlers"
	"nexuscore/internal/listener"
	"nexuscore/internal/logging"
	"nexuscore/internal/persistence/mysql"
	"nexuscore/internal/ratelimit"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to the YAML config document")
	envPath := flag.String("env", ".env", "path to the optional .env secrets overlay")
	dev := flag.Bool("dev", false, "use human-readable development logging")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		log.Fatalf("worldd: config: %v", err)
	}

	logger, err := logging.New(*dev)
	if err != nil {
		log.Fatalf("worldd: logger: %v", err)
	}
	defer logger.Sync()

	store, err := mysql.Open(mysql.Config{
		Host:     cfg.Persistence.MySQLHost,
		Port:     cfg.Persistence.MySQLPort,
		User:     cfg.Persistence.MySQLUser,
		Password: cfg.MySQLPassword,
		DBName:   cfg.Persistence.MySQLDatabase,
	})
	if err != nil {
		logger.Fatal("quest store open failed", zap.Error(err))
	}
	defer store.Close()

	limiter := ratelimit.New()
	stopSweep := limiter.StartSweeper(ratelimit.DefaultSweepInterval, int64(cfg.RateLimit.WindowMs))
	defer stopSweep()

	reg := dispatch.New()
	handlers.RegisterDefaults(reg, handlers.Deps{
		Limiter:      limiter,
		AuthWindowMs: int64(cfg.RateLimit.WindowMs),
		AuthLimit:    cfg.RateLimit.Limit,
		KeySource:    crypto.StaticKeySource{WorldKey: []byte("worldd-bootstrap-key")},
	})

	hs := gameconn.Handshake{
		AuthVersion:  cfg.World.AuthVersion,
		RealmID:      cfg.World.RealmID,
		RealmGroupID: cfg.World.RealmGroupID,
		AuthMessage:  authMessageOrDefault(cfg.World.AuthMessage),
	}

	interval := time.Duration(cfg.Persistence.IntervalSeconds) * time.Second

	l, err := listener.Start(listener.Config{
		Name:        "worldd",
		Host:        cfg.World.Host,
		Port:        cfg.World.Port,
		Role:        connrole.World,
		Registry:    reg,
		Handshake:   hs,
		Persistence: store,
		Interval:    interval,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("listener start failed", zap.Error(err))
	}

	logger.Info("worldd listening", zap.Int("port", l.PortOf()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("worldd shutting down")
	l.Stop()
}

func authMessageOrDefault(v uint32) uint32 {
	if v == 0 {
		return gameconn.DefaultAuthMessage
	}
	return v
}
