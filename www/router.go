package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"gasflow/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	h.ensureDefaultAdmin(eng.DB())

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealth)

		r.Get("/stations", h.apiListStations)
		r.Get("/stations/{id}/queue", h.apiStationQueue)
		r.Get("/drivers", h.apiListDrivers)
		r.Get("/drivers/{id}/window", h.apiDriverWindow)
		r.Get("/drivers/{id}/trips", h.apiDriverTrips)

		// Queue
		r.Post("/tokens/request", h.apiRequestToken)
		r.Get("/tokens/waiting", h.apiWaitingTokens)
		r.Get("/tokens/current", h.apiCurrentToken)
		r.Post("/tokens/{id}/cancel", h.apiCancelToken)

		// Demand requests
		r.Post("/requests", h.apiCreateRequest)
		r.Get("/requests", h.apiListRequests)
		r.Get("/requests/{id}", h.apiGetRequest)
		r.Post("/requests/{id}/accept", h.apiAcceptAssignment)
		r.Post("/requests/{id}/decline", h.apiDeclineAssignment)

		// Trips
		r.Get("/trips/active", h.apiActiveTrips)
		r.Get("/trips/{publicID}", h.apiGetTrip)
		r.Get("/trips/{publicID}/events", h.apiTripEvents)
		r.Get("/trips/{publicID}/step", h.apiComputeStep)
		r.Post("/trips/{publicID}/advance", h.apiAdvanceStep)
		r.Post("/trips/{publicID}/origin-arrival", h.apiOriginArrival)
		r.Post("/trips/{publicID}/transfer/begin", h.apiTransferBegin)
		r.Post("/trips/{publicID}/transfer/readings", h.apiTransferReadings)
		r.Post("/trips/{publicID}/transfer/confirm", h.apiTransferConfirm)
		r.Post("/trips/{publicID}/transfer/evidence", h.apiTransferEvidence)
		r.Post("/trips/{publicID}/depart", h.apiDepart)
		r.Post("/trips/{publicID}/arrive", h.apiArrive)
		r.Post("/trips/{publicID}/complete", h.apiComplete)
		r.Post("/trips/{publicID}/meta", h.apiSetMeta)

		// Operator actions
		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/requests/{id}/approve", h.apiApproveRequest)
			r.Post("/requests/{id}/reject", h.apiRejectRequest)
			r.Post("/requests/{id}/cancel", h.apiCancelRequest)
			r.Post("/requests/{id}/offer", h.apiOfferAssignment)
			r.Post("/allocate", h.apiManualAllocate)
			r.Post("/trips/{publicID}/cancel", h.apiCancelTrip)
			r.Get("/audit", h.apiAuditLog)
			r.Post("/stations", h.apiCreateStation)
			r.Post("/drivers", h.apiCreateDriver)
			r.Post("/vehicles", h.apiCreateVehicle)
			r.Post("/windows", h.apiCreateWindow)
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}
