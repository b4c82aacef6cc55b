package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/duduk-dev/duduk/pkg/router"
)

// RequestIDLocal is the locals key RequestID stores the id under.
const RequestIDLocal = "requestId"

// RequestID creates route middleware that exposes a request id to
// loaders and handlers as locals[RequestIDLocal]. The id assigned by the
// HTTP layer's request id middleware is reused when present; otherwise a
// random UUID is generated.
func RequestID() router.Middleware {
	return func(p router.MiddlewareParams) (http.ResponseWriter, error) {
		id := chimw.GetReqID(p.Event.Request.Context())
		if id == "" {
			id = uuid.NewString()
		}
		p.Event.Locals[RequestIDLocal] = id
		return p.Resolve(p.Event)
	}
}
