package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) tripFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	publicID := chi.URLParam(r, "publicID")
	t, err := h.engine.Trips().GetByPublicID(publicID)
	if err != nil {
		h.serviceError(w, err)
		return 0, false
	}
	return t.ID, true
}

func (h *Handlers) apiActiveTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.engine.Trips().ListActive()
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, trips)
}

func (h *Handlers) apiGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := h.engine.Trips().GetByPublicID(chi.URLParam(r, "publicID"))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, t)
}

func (h *Handlers) apiTripEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	events, err := h.engine.Trips().Events(id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, events)
}

func (h *Handlers) apiComputeStep(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	step, err := h.engine.Trips().ComputeStep(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]int{"step": step})
}

func (h *Handlers) apiAdvanceStep(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Step int `json:"step"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	advanced, err := h.engine.Trips().AdvanceStep(r.Context(), id, req.Step)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]bool{"advanced": advanced})
}

func (h *Handlers) apiOriginArrival(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	if err := h.engine.Trips().ConfirmOriginArrival(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiTransferBegin(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind          string  `json:"kind"`
		MeterStart    float64 `json:"meter_start"`
		PressureStart float64 `json:"pressure_start"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	var ev any
	var err error
	switch req.Kind {
	case "loading":
		ev, err = h.engine.Trips().BeginLoading(r.Context(), id, req.MeterStart, req.PressureStart)
	case "unloading":
		ev, err = h.engine.Trips().BeginUnloading(r.Context(), id, req.MeterStart, req.PressureStart)
	default:
		h.jsonError(w, "kind must be loading or unloading", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, ev)
}

func (h *Handlers) apiTransferReadings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind        string  `json:"kind"`
		MeterEnd    float64 `json:"meter_end"`
		PressureEnd float64 `json:"pressure_end"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Trips().RecordReadings(r.Context(), id, req.Kind, req.MeterEnd, req.PressureEnd); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiTransferConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind  string `json:"kind"`
		Actor string `json:"actor"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Trips().Confirm(r.Context(), id, req.Kind, req.Actor); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiTransferEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Kind string `json:"kind"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Trips().AttachEvidence(r.Context(), id, req.Kind); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiDepart(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	if err := h.engine.Trips().Depart(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiArrive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	if err := h.engine.Trips().Arrive(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) apiComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	if err := h.engine.Trips().Complete(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "completed"})
}

func (h *Handlers) apiCancelTrip(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Trips().Cancel(r.Context(), id, req.Reason); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "cancelled"})
}

func (h *Handlers) apiSetMeta(w http.ResponseWriter, r *http.Request) {
	id, ok := h.tripFromURL(w, r)
	if !ok {
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Trips().SetMeta(r.Context(), id, req.Key, req.Value); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
