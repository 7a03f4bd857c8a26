package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerclerk/clerk/internal/core/services"
	"github.com/ledgerclerk/clerk/internal/platform/config"
	"github.com/ledgerclerk/clerk/internal/repositories/database/pgsql"
	"github.com/ledgerclerk/clerk/internal/rules"
	"github.com/ledgerclerk/clerk/internal/upstream"
	"github.com/ledgerclerk/clerk/internal/upstream/plaid"
	"github.com/ledgerclerk/clerk/internal/utils/money"
	"github.com/ledgerclerk/clerk/pkg/database"
)

// app holds the wired object graph every subcommand runs against.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	pool   *pgxpool.Pool
	repos  *pgsql.Repositories
	client *plaid.Client

	syncService   *services.SyncService
	linkService   *services.LinkService
	ledgerService *services.LedgerService
	engine        *rules.Engine
}

// newApp loads configuration, applies migrations, and wires the services.
// Callers own the returned app and must Close it.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	norm, err := money.NewNormalizer(cfg.DefaultCurrency)
	if err != nil {
		pool.Close()
		return nil, err
	}

	engine, err := rules.Load(cfg.RuleFiles)
	if err != nil {
		pool.Close()
		return nil, err
	}

	client := plaid.New(plaid.Config{
		ClientID:    cfg.PlaidClientID,
		Secret:      cfg.PlaidSecret,
		Environment: cfg.PlaidEnv,
		ClientName:  cfg.PlaidClientName,
	})

	repos := pgsql.NewRepositories(pool)
	sources := func(accessToken string) services.TransactionSource {
		return upstream.NewSource(client, accessToken, upstream.WithPageSize(cfg.SyncPageSize))
	}

	return &app{
		cfg:           cfg,
		logger:        logger,
		pool:          pool,
		repos:         repos,
		client:        client,
		engine:        engine,
		syncService:   services.NewSyncService(client, sources, repos.Links, repos.Accounts, repos.Transactions, norm, logger),
		linkService:   services.NewLinkService(client, repos.Links, repos.Accounts, repos.Institutions, logger),
		ledgerService: services.NewLedgerService(repos.Transactions, engine),
	}, nil
}

func (a *app) Close() {
	a.pool.Close()
}
