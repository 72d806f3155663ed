// Command certindex serves the certificate inventory dashboard API.
//
// It periodically fetches the certificate index from the upstream
// authority over mTLS, normalizes it into the canonical collection,
// and exposes listing, stats, export and treated-marker endpoints.
//
// Usage:
//
//	certindex -config config.yaml
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/houzhh15/certindex/certs"
	"github.com/houzhh15/certindex/config"
	"github.com/houzhh15/certindex/logging"
	"github.com/houzhh15/certindex/server"
	"github.com/houzhh15/certindex/treated"
	"github.com/houzhh15/certindex/upstream"
)

var (
	configPath = flag.String("config", "config.yaml", "Configuration file (yaml or json)")
	addr       = flag.String("addr", "", "Listen address override")
)

func main() {
	flag.Parse()

	cfg, err := config.NewLoader().Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	var audit logging.AuditLogger
	if cfg.Logging.AuditFile != "" {
		fileAudit, err := logging.NewFileAuditLogger(cfg.Logging.AuditFile, logger)
		if err != nil {
			logger.Fatal("Failed to open audit log", "path", cfg.Logging.AuditFile, "error", err)
		}
		defer fileAudit.Close()
		audit = fileAudit
	}

	tlsConfig, err := upstream.LoadClientTLSConfig(&upstream.TLSConfig{
		CertFile:           cfg.Upstream.CertFile,
		KeyFile:            cfg.Upstream.KeyFile,
		CAFile:             cfg.Upstream.CAFile,
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
	})
	if err != nil {
		logger.Fatal("Failed to load client TLS configuration", "error", err)
	}

	checkCredential(cfg, clientLeaf(tlsConfig), logger)

	client := upstream.NewClient(&upstream.Config{
		URL:           cfg.Upstream.URL,
		TLSConfig:     tlsConfig,
		Timeout:       cfg.Upstream.Timeout,
		RetryAttempts: cfg.Upstream.RetryAttempts,
		RetryInterval: cfg.Upstream.RetryInterval,
		Logger:        logger,
	})

	db, err := gorm.Open(sqlite.Open(cfg.Storage.Path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		logger.Fatal("Failed to open marker database", "path", cfg.Storage.Path, "error", err)
	}
	store, err := treated.NewDBStore(db)
	if err != nil {
		logger.Fatal("Failed to initialize marker store", "error", err)
	}

	inventory := server.NewInventory()

	refresh := func(ctx context.Context, trigger string) error {
		result, err := client.FetchOrFallback(ctx)
		if err != nil {
			server.RecordRefreshFailure()
			if audit != nil {
				audit.LogRefresh(ctx, &logging.RefreshEvent{
					Timestamp: time.Now().UTC(),
					Trigger:   trigger,
					Error:     err.Error(),
				})
			}
			return fmt.Errorf("refresh inventory: %w", err)
		}

		collection := certs.NormalizeAll(result.Records, certs.NormalizeOptions{
			Now:           time.Now().UTC(),
			ThresholdDays: cfg.Upstream.ExpiryThreshold,
		})
		inventory.Replace(collection, result.Source, result.FetchedAt)
		server.UpdateInventoryMetrics(certs.ComputeStats(collection), result.Degraded())

		logger.Info("Inventory refreshed",
			"trigger", trigger,
			"source", result.Source,
			"certificates", len(collection))
		if audit != nil {
			audit.LogRefresh(ctx, &logging.RefreshEvent{
				Timestamp: time.Now().UTC(),
				Source:    result.Source,
				Count:     len(collection),
				Trigger:   trigger,
			})
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := refresh(ctx, "startup"); err != nil {
		// A parse error here means the upstream contract is broken;
		// the server still starts so /health shows the empty state.
		logger.Error("Initial inventory refresh failed", "error", err)
	}

	go refreshLoop(ctx, cfg.Upstream.RefreshInterval, refresh, logger)

	srv := server.New(
		&server.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			AuthToken:    cfg.Auth.Token,
			BasicUser:    cfg.Auth.BasicUser,
			BasicPass:    cfg.Auth.BasicPass,
		},
		inventory, store, refresh, logger, audit,
	)
	if err := srv.StartAsync(); err != nil {
		logger.Fatal("Failed to start server", "error", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "error", err)
		os.Exit(1)
	}
}

// refreshLoop re-fetches the inventory on a fixed interval until the
// context is cancelled. A failed cycle keeps the previous snapshot.
func refreshLoop(ctx context.Context, interval time.Duration, refresh server.RefreshFunc, logger logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx, "interval"); err != nil {
				logger.Warn("Scheduled inventory refresh failed", "error", err)
			}
		}
	}
}

// clientLeaf extracts our client leaf certificate from the TLS
// configuration, nil when no client certificate is configured.
func clientLeaf(tlsConfig *tls.Config) *x509.Certificate {
	if tlsConfig == nil || len(tlsConfig.Certificates) == 0 {
		return nil
	}
	raw := tlsConfig.Certificates[0]
	if len(raw.Certificate) == 0 {
		return nil
	}
	leaf, err := x509.ParseCertificate(raw.Certificate[0])
	if err != nil {
		return nil
	}
	return leaf
}

// checkCredential warns at startup when our own client certificate is
// close to expiry or revoked; the upstream will reject us at the TLS
// layer once it is.
func checkCredential(cfg *config.Config, leaf *x509.Certificate, logger logging.Logger) {
	if leaf == nil {
		return
	}

	checker := upstream.NewCredentialChecker(&upstream.CredentialCheckerConfig{
		CheckOCSP: cfg.Upstream.CheckOCSP,
	})
	if err := checker.Check(leaf); err != nil {
		logger.Warn("Client credential check failed", "error", err)
		return
	}
	if checker.ExpiresWithin(leaf, 30) {
		logger.Warn("Client certificate expires within 30 days",
			"not_after", leaf.NotAfter.Format(time.RFC3339))
	}
}
