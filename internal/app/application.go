// Package app ties the marketplace services together and manages their
// lifecycle.
package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/auth"
	"github.com/appstack-labs/marketplace/internal/blobstore"
	"github.com/appstack-labs/marketplace/internal/config"
	"github.com/appstack-labs/marketplace/internal/services/accounts"
	catalogsvc "github.com/appstack-labs/marketplace/internal/services/catalog"
	downloadsvc "github.com/appstack-labs/marketplace/internal/services/downloads"
	listingsvc "github.com/appstack-labs/marketplace/internal/services/listings"
	reviewsvc "github.com/appstack-labs/marketplace/internal/services/reviews"
	"github.com/appstack-labs/marketplace/internal/storage"
	"github.com/appstack-labs/marketplace/internal/storage/memory"
	"github.com/appstack-labs/marketplace/internal/system"
)

// Stores encapsulates persistence dependencies. Nil stores default to a
// shared in-memory implementation.
type Stores struct {
	Accounts   storage.AccountStore
	Listings   storage.ListingStore
	Categories storage.CategoryStore
	Reviews    storage.ReviewStore
	Downloads  storage.DownloadStore
}

// Application wires the domain services and their background workers.
type Application struct {
	manager *system.Manager
	log     *logrus.Logger

	Stores  Stores
	Tokens  *auth.TokenIssuer
	Objects blobstore.ObjectStore

	Accounts  *accounts.Service
	Listings  *listingsvc.Service
	Catalog   *catalogsvc.Service
	Reviews   *reviewsvc.Service
	Downloads *downloadsvc.Service
	Sweeper   *listingsvc.Sweeper
}

// New builds a fully initialised application with the provided stores
// and object store. A nil ObjectStore defaults to the in-memory fake.
func New(cfg config.Config, stores Stores, objects blobstore.ObjectStore, log *logrus.Logger) *Application {
	if log == nil {
		log = logrus.New()
	}

	mem := memory.New()
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Listings == nil {
		stores.Listings = mem
	}
	if stores.Categories == nil {
		stores.Categories = mem
	}
	if stores.Reviews == nil {
		stores.Reviews = mem
	}
	if stores.Downloads == nil {
		stores.Downloads = mem
	}
	if objects == nil {
		objects = blobstore.NewMemoryStore()
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	manager := system.NewManager(log)

	app := &Application{
		manager: manager,
		log:     log,
		Stores:  stores,
		Tokens:  tokens,
		Objects: objects,

		Accounts:  accounts.New(stores.Accounts, tokens, objects, cfg.UploadURLTTL, log),
		Listings:  listingsvc.New(stores.Listings, stores.Categories, objects, cfg.UploadURLTTL, cfg.ReviewDelay, log),
		Catalog:   catalogsvc.New(stores.Listings, stores.Categories, stores.Accounts, stores.Downloads, log),
		Reviews:   reviewsvc.New(stores.Reviews, stores.Listings, stores.Downloads, log),
		Downloads: downloadsvc.New(stores.Downloads, stores.Listings, log),
	}

	app.Sweeper = listingsvc.NewSweeper(stores.Listings, cfg.ReviewSweepInterval, log)
	manager.Register(app.Sweeper)

	return app
}

// Start brings the background workers up.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop shuts the background workers down.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
