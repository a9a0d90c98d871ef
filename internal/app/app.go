// Package app wires configuration into the stores and services shared by the
// server and the admin CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/Skotchmaster/pharmacy/internal/config"
	"github.com/Skotchmaster/pharmacy/internal/metrics"
	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/mykafka"
	"github.com/Skotchmaster/pharmacy/internal/repo"
	"github.com/Skotchmaster/pharmacy/internal/search"
	"github.com/Skotchmaster/pharmacy/internal/service"
	pkgdb "github.com/Skotchmaster/pharmacy/pkg/db"
	"github.com/Skotchmaster/pharmacy/pkg/tokens"
)

type App struct {
	Config    config.Config
	DB        *gorm.DB
	Repo      *repo.GormRepo
	Issuer    *tokens.Issuer
	Auth      *service.AuthService
	Inventory *service.InventoryService

	producer *mykafka.Producer
}

// Build opens the database, migrates it and connects the optional Kafka and
// Elasticsearch collaborators. Optional collaborators that fail to connect
// are logged and left out.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	iss, err := tokens.NewIssuer(tokens.IssuerConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		ResetSecret:   cfg.PasswordResetSecret,
		ResetTTL:      cfg.PasswordResetTTL,
	})
	if err != nil {
		return nil, err
	}

	db, err := pkgdb.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := models.Migrate(db); err != nil {
		_ = pkgdb.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a := &App{Config: cfg, DB: db, Repo: repo.New(db), Issuer: iss}

	var events mykafka.Publisher = mykafka.Nop{}
	if cfg.KafkaEnabled() {
		p, err := mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Warn("kafka_disabled", "error", err)
		} else {
			a.producer = p
			events = p
		}
	}

	var index service.Indexer
	if cfg.SearchEnabled() {
		es, err := search.NewClient(ctx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Warn("search_disabled", "error", err)
		} else {
			index = &search.MedicineIndex{ES: es, Index: cfg.ESMedicineIndex}
		}
	}

	rec := metrics.Recorder{}
	a.Auth = &service.AuthService{
		Users:     a.Repo,
		Tokens:    a.Repo,
		Issuer:    iss,
		Events:    events,
		UserTopic: cfg.KafkaUserTopic,
		ResetURL:  cfg.PasswordResetURL,
		Metrics:   rec,
	}
	a.Inventory = &service.InventoryService{
		Repo:    a.Repo,
		Events:  events,
		Topic:   cfg.KafkaInventoryTopic,
		Metrics: rec,
	}
	if index != nil {
		a.Inventory.Index = index
	}
	return a, nil
}

func (a *App) Ready(ctx context.Context) error {
	return pkgdb.Ping(ctx, a.DB)
}

func (a *App) Close() error {
	var firstErr error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			firstErr = err
		}
	}
	if err := pkgdb.Close(a.DB); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
