package handlers

import (
	"net/http"
	"net/http/httptest"

	"github.com/pocketbase/pocketbase/core"
)

// newTestRequestEvent wraps req and rec in a RequestEvent for calling a
// handler directly, without the router. Path values must be set on req.
func newTestRequestEvent(app core.App, req *http.Request, rec *httptest.ResponseRecorder) *core.RequestEvent {
	e := &core.RequestEvent{}
	e.App = app
	e.Request = req
	e.Response = rec
	return e
}

// withAuth marks the request event as coming from the user with id.
func withAuth(e *core.RequestEvent, id string) *core.RequestEvent {
	user := core.NewRecord(core.NewBaseCollection("users"))
	user.Id = id
	e.Auth = user
	return e
}
