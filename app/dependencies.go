package app

import (
	"context"
	"fmt"

	"github.com/ryanvade/infra-demo-lnl/authn"
	"github.com/ryanvade/infra-demo-lnl/config"
	"github.com/ryanvade/infra-demo-lnl/jwks"
	"github.com/ryanvade/infra-demo-lnl/middleware"
	"github.com/ryanvade/infra-demo-lnl/repositories"
	"github.com/ryanvade/infra-demo-lnl/repositories/sqldb"
	"github.com/ryanvade/infra-demo-lnl/services/todo"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *sqldb.DB
	Logger *zap.Logger

	RepoFactory *sqldb.RepositoryFactory

	// Repositories
	Todos     repositories.TodoRepository
	TxManager repositories.TransactionManager

	// Auth
	JWKSClient     *jwks.Client
	Authenticator  *authn.JWKSAuthenticator
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	TodoService *todo.Service
}

// NewDependencies creates and wires up all application dependencies.
// The authority's key set is fetched before anything else; startup fails
// when it cannot be retrieved.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initAuth(); err != nil {
		return nil, fmt.Errorf("failed to initialize authentication: %w", err)
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initRepositories()
	deps.initServices()

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initAuth builds the authenticator and primes it with the authority's key set
func (d *Dependencies) initAuth() error {
	authority := d.Config.Authority

	endpoint, err := jwks.Endpoint(authority.URL)
	if err != nil {
		return err
	}

	d.JWKSClient = jwks.NewClient(jwks.Config{Timeout: authority.FetchTimeout}, d.Logger)

	verifier := authn.NewVerifier(authn.VerifierConfig{
		Leeway:   authority.Leeway,
		Issuer:   authority.Issuer,
		Audience: authority.Audience,
	})

	d.Authenticator = authn.NewJWKSAuthenticator(d.JWKSClient, verifier, authn.Config{
		Endpoint:           endpoint,
		CacheTTL:           authority.CacheTTL,
		MinRefreshInterval: authority.MinRefreshInterval,
		FetchTimeout:       authority.FetchTimeout,
	}, d.Logger)

	set, err := d.JWKSClient.FetchBlocking(endpoint)
	if err != nil {
		return fmt.Errorf("failed to fetch signing keys from %s: %w", endpoint, err)
	}
	d.Authenticator.Seed(set)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authenticator, d.Logger)

	d.Logger.Info("authenticator initialized",
		zap.String("jwks_uri", endpoint),
		zap.Int("keys", len(set.Keys)),
		zap.Duration("cache_ttl", authority.CacheTTL))
	return nil
}

// initDatabase opens the connection pool and applies migrations
func (d *Dependencies) initDatabase(ctx context.Context) error {
	factory, err := sqldb.NewRepositoryFactory(ctx, d.Config, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	return nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	repos := d.RepoFactory.NewRepositories()

	d.Todos = repos.Todos
	d.TxManager = d.RepoFactory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
}

func (d *Dependencies) initServices() {
	d.TodoService = todo.NewService(d.Todos, d.TxManager, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
