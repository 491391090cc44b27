package apihandlers

import (
	"munin/internal/app"
)

// APIHandler carries the application instance the HTTP handlers work
// against. Handlers reach the job queue and the run ledger through it.
type APIHandler struct {
	App *app.App
}

func NewAPIHandler(app *app.App) *APIHandler {
	return &APIHandler{App: app}
}
