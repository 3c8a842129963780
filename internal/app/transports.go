package app

import (
	"fmt"

	"overlay-router/internal/common/errors"
	"overlay-router/internal/common/logging"
	"overlay-router/internal/transport"
	"overlay-router/internal/transport/amqp"
	httptransport "overlay-router/internal/transport/http"
	"overlay-router/internal/transport/memory"
)

func (app *App) initializeTransports() error {
	transports := make([]transport.Transport, 0, len(app.Config.Transports))

	for _, name := range app.Config.Transports {
		switch name {
		case httptransport.Name:
			t, err := httptransport.New(app.Config.HTTP(), app.base)
			if err != nil {
				return err
			}
			transports = append(transports, t)

		case amqp.Name:
			transports = append(transports, amqp.New(app.Config.AMQP(), app.base))

		case memory.Name:
			if app.network == nil {
				app.network = memory.NewNetwork()
			}
			transports = append(transports, app.network.Transport(app.Config.MemberID, app.base))

		default:
			return errors.ConfigError(fmt.Sprintf("unknown transport %q", name))
		}
	}

	registry, err := transport.NewRegistry(transports...)
	if err != nil {
		return err
	}

	app.Transports = registry
	app.Logger.Info("Transports configured", logging.Strings("transports", app.Config.Transports))
	return nil
}
