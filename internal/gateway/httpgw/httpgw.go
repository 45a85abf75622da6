// Package httpgw exposes the dispatcher over HTTP with a RunPod-compatible
// envelope: POST /run for the asynchronous variant, POST /runsync for the
// synchronous one.
package httpgw

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/dispatch"
	"github.com/go-chi/chi/v5"
)

const contentTypeJSON = "application/json"

// Gateway serves the HTTP surface of the service.
type Gateway struct {
	dispatcher *dispatch.Dispatcher
	log        *logger.Logger
}

// New creates an HTTP gateway.
func New(dispatcher *dispatch.Dispatcher, log *logger.Logger) *Gateway {
	return &Gateway{
		dispatcher: dispatcher,
		log:        log,
	}
}

// Router builds the chi router for the gateway. Job-level failures are
// reported as structured 200 responses with an error field; HTTP status codes
// are reserved for transport-level problems like an undecodable body.
func (g *Gateway) Router() *chi.Mux {
	router := chi.NewRouter()

	router.Post("/run", g.handleRun)
	router.Post("/runsync", g.handleRunSync)
	router.Get("/health", g.handleHealth)

	return router
}

func (g *Gateway) handleRun(w http.ResponseWriter, r *http.Request) {
	env, ok := g.decode(w, r)
	if !ok {
		return
	}

	resp := g.dispatcher.Handle(r.Context(), dispatch.Parse(env))
	g.writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleRunSync(w http.ResponseWriter, r *http.Request) {
	env, ok := g.decode(w, r)
	if !ok {
		return
	}

	resp := g.dispatcher.HandleSync(r.Context(), dispatch.Parse(env))
	g.writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	g.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) decode(w http.ResponseWriter, r *http.Request) (dispatch.Envelope, bool) {
	var env dispatch.Envelope

	err := json.NewDecoder(r.Body).Decode(&env)
	if err != nil {
		g.writeJSON(w, http.StatusBadRequest, dispatch.Response{
			Error: fmt.Sprintf("failed to decode request body: %v", err),
		})

		return dispatch.Envelope{}, false
	}

	return env, true
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		g.log.Error("Failed to encode response: %v", err)
	}
}
