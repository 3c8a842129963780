package app

import (
	"github.com/gorilla/mux"
	"overlay-router/internal/server"
)

// RunServer builds the admin server; the caller starts it
func (app *App) RunServer() *server.Server {
	router := mux.NewRouter()
	app.SetupRoutes(router)
	return server.New(router, app.Config.AdminListenAddress, app.base)
}
