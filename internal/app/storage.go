package app

import (
	"context"
	"fmt"

	"overlay-router/internal/common/logging"
	"overlay-router/internal/common/retry"
	"overlay-router/internal/store"

	// backends register themselves with the store registry
	_ "overlay-router/internal/store/postgres"
	_ "overlay-router/internal/store/redisstore"
	_ "overlay-router/internal/store/sqlite"
)

func (app *App) initializeStore(ctx context.Context) error {
	cfg := store.Config{
		Kind:         app.Config.RoutingStore,
		DatabasePath: app.Config.DatabasePath,
		PostgresDSN:  app.Config.PostgresDSN,
		Redis:        app.RedisClient,
		Logger:       app.base,
	}

	var backend store.Backend
	err := retry.Do(ctx, app.Config.ConnectRetry(), func(ctx context.Context) error {
		var err error
		backend, err = store.Open(ctx, cfg)
		return err
	})
	if err != nil {
		return fmt.Errorf("open routing store: %w", err)
	}

	app.Store = backend
	app.Logger.Info("Routing store opened", logging.String("kind", backend.Name()))
	return nil
}
