package www

import (
	"net/http"
	"strconv"
)

func (h *Handlers) apiRequestToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID  int64 `json:"driver_id"`
		VehicleID int64 `json:"vehicle_id"`
		StationID int64 `json:"station_id"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.DriverID <= 0 || req.VehicleID <= 0 || req.StationID <= 0 {
		h.jsonError(w, "driver_id, vehicle_id and station_id are required", http.StatusBadRequest)
		return
	}
	token, trip, err := h.engine.Queue().RequestToken(r.Context(), req.DriverID, req.VehicleID, req.StationID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	resp := map[string]any{"token": token}
	if trip != nil {
		resp["trip"] = trip
	}
	h.jsonOK(w, resp)
}

func (h *Handlers) apiWaitingTokens(w http.ResponseWriter, r *http.Request) {
	stationID, err := strconv.ParseInt(r.URL.Query().Get("station_id"), 10, 64)
	if err != nil || stationID <= 0 {
		h.jsonError(w, "station_id is required", http.StatusBadRequest)
		return
	}
	tokens, err := h.engine.Queue().WaitingTokens(stationID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, tokens)
}

func (h *Handlers) apiCurrentToken(w http.ResponseWriter, r *http.Request) {
	driverID, err := strconv.ParseInt(r.URL.Query().Get("driver_id"), 10, 64)
	if err != nil || driverID <= 0 {
		h.jsonError(w, "driver_id is required", http.StatusBadRequest)
		return
	}
	token, err := h.engine.Queue().CurrentToken(driverID)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if token == nil {
		h.jsonError(w, "no waiting token", http.StatusNotFound)
		return
	}
	h.jsonOK(w, token)
}

func (h *Handlers) apiCancelToken(w http.ResponseWriter, r *http.Request) {
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
	if err := h.engine.Queue().CancelToken(r.Context(), id, req.Reason); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "cancelled"})
}

// apiManualAllocate binds a specific waiting token to a specific approved
// request, bypassing queue order. Operator only; the action is audited
// under the operator's username.
func (h *Handlers) apiManualAllocate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TokenID   int64 `json:"token_id"`
		RequestID int64 `json:"request_id"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.TokenID <= 0 || req.RequestID <= 0 {
		h.jsonError(w, "token_id and request_id are required", http.StatusBadRequest)
		return
	}
	trip, err := h.engine.Queue().Allocate(r.Context(), req.TokenID, req.RequestID, h.getUsername(r))
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, trip)
}

func (h *Handlers) apiStationQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	board, err := h.engine.QueueState().Board(r.Context(), id)
	if err != nil {
		h.jsonError(w, "not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, board)
}
