package app

import (
	"context"
	"fmt"

	"overlay-router/internal/common/logging"
	"overlay-router/internal/common/retry"
	"overlay-router/internal/redis"
)

func (app *App) initializeRedis(ctx context.Context) error {
	if !app.Config.NeedsRedis() {
		app.Logger.Debug("Redis: not needed by the routing store or rebuild lock")
		return nil
	}

	var client *redis.Client
	err := retry.Do(ctx, app.Config.ConnectRetry(), func(ctx context.Context) error {
		var err error
		client, err = redis.NewClient(ctx, app.Config.Redis())
		if err != nil {
			app.Logger.Warn("Redis: connection attempt failed", logging.Err(err))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}

	app.RedisClient = client
	app.Logger.Info("Redis: Connected", logging.String("address", client.Address()))
	return nil
}
