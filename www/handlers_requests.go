package www

import (
	"net/http"
	"strconv"
)

func (h *Handlers) apiCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StationID  int64   `json:"station_id"`
		QuantityKg float64 `json:"quantity_kg"`
		Priority   string  `json:"priority"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.StationID <= 0 || req.QuantityKg <= 0 {
		h.jsonError(w, "station_id and quantity_kg are required", http.StatusBadRequest)
		return
	}
	created, err := h.engine.Queue().CreateRequest(r.Context(), req.StationID, req.QuantityKg, req.Priority)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, created)
}

func (h *Handlers) apiListRequests(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	if stationID, err := strconv.ParseInt(r.URL.Query().Get("station_id"), 10, 64); err == nil && stationID > 0 {
		requests, err := h.engine.DB().ListRequestsByStation(stationID, limit)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		h.jsonOK(w, requests)
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		status = "pending"
	}
	requests, err := h.engine.DB().ListRequestsByStatus(status, limit)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, requests)
}

func (h *Handlers) apiGetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	req, err := h.engine.DB().GetDemandRequest(id)
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, req)
}

func (h *Handlers) apiApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	trip, err := h.engine.Queue().ApproveRequest(r.Context(), id, h.getUsername(r))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	resp := map[string]any{"status": "approved"}
	if trip != nil {
		resp["trip"] = trip
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) apiRejectRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Queue().RejectRequest(r.Context(), id, req.Reason, h.getUsername(r)); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "rejected"})
}

func (h *Handlers) apiCancelRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Queue().CancelRequest(r.Context(), id, h.getUsername(r)); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "cancelled"})
}

func (h *Handlers) apiOfferAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		DriverID int64 `json:"driver_id"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.DriverID <= 0 {
		h.jsonError(w, "driver_id is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.Queue().OfferAssignment(r.Context(), id, req.DriverID, h.getUsername(r)); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "offered"})
}

func (h *Handlers) apiAcceptAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		DriverID int64 `json:"driver_id"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	trip, err := h.engine.Queue().AcceptAssignment(r.Context(), id, req.DriverID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, trip)
}

func (h *Handlers) apiDeclineAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		DriverID int64 `json:"driver_id"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if err := h.engine.Queue().DeclineAssignment(r.Context(), id, req.DriverID); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "declined"})
}
