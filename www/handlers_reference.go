package www

import (
	"net/http"
	"strconv"
	"time"

	"gasflow/store"
)

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "ok",
		"messaging": h.engine.MsgClient() != nil && h.engine.MsgClient().IsConnected(),
		"sse":       h.eventHub.ClientCount(),
	}
	h.jsonOK(w, status)
}

func (h *Handlers) apiListStations(w http.ResponseWriter, r *http.Request) {
	if kind := r.URL.Query().Get("kind"); kind != "" {
		stations, err := h.engine.DB().ListStationsByKind(kind)
		if err != nil {
			h.serviceError(w, err)
			return
		}
		h.jsonOK(w, stations)
		return
	}
	stations, err := h.engine.DB().ListStations()
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, stations)
}

func (h *Handlers) apiCreateStation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Kind     string `json:"kind"`
		ParentID *int64 `json:"parent_id"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Code == "" || (req.Kind != store.StationOrigin && req.Kind != store.StationDestination) {
		h.jsonError(w, "code and a valid kind are required", http.StatusBadRequest)
		return
	}
	if req.Kind == store.StationDestination && req.ParentID == nil {
		h.jsonError(w, "destination stations need a parent_id", http.StatusBadRequest)
		return
	}
	s := &store.Station{Code: req.Code, Name: req.Name, Kind: req.Kind, ParentID: req.ParentID, Enabled: true}
	if err := h.engine.DB().CreateStation(s); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, s)
}

func (h *Handlers) apiListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.engine.DB().ListDrivers()
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, drivers)
}

func (h *Handlers) apiCreateDriver(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		h.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	d := &store.Driver{Name: req.Name, Phone: req.Phone, Enabled: true}
	if err := h.engine.DB().CreateDriver(d); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, d)
}

func (h *Handlers) apiCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlateNo    string  `json:"plate_no"`
		CapacityKg float64 `json:"capacity_kg"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.PlateNo == "" {
		h.jsonError(w, "plate_no is required", http.StatusBadRequest)
		return
	}
	v := &store.Vehicle{PlateNo: req.PlateNo, CapacityKg: req.CapacityKg, Enabled: true}
	if err := h.engine.DB().CreateVehicle(v); err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, v)
}

func (h *Handlers) apiCreateWindow(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DriverID  int64     `json:"driver_id"`
		VehicleID int64     `json:"vehicle_id"`
		StationID int64     `json:"station_id"`
		StartsAt  time.Time `json:"starts_at"`
		EndsAt    time.Time `json:"ends_at"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.DriverID <= 0 || req.VehicleID <= 0 || req.StationID <= 0 || !req.EndsAt.After(req.StartsAt) {
		h.jsonError(w, "driver_id, vehicle_id, station_id and a valid time range are required", http.StatusBadRequest)
		return
	}
	win := &store.WorkWindow{
		DriverID:  req.DriverID,
		VehicleID: req.VehicleID,
		StationID: req.StationID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Approved:  true,
	}
	if err := h.engine.DB().CreateWorkWindow(win); err != nil {
		h.serviceError(w, err)
		return
	}
	h.engine.Shifts().Invalidate(r.Context(), req.DriverID)
	h.jsonOK(w, win)
}

func (h *Handlers) apiDriverWindow(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	win, err := h.engine.Shifts().ActiveWindow(r.Context(), id, time.Now())
	if err != nil {
		h.serviceError(w, err)
		return
	}
	if win == nil {
		h.jsonError(w, "no active window", http.StatusNotFound)
		return
	}
	h.jsonOK(w, win)
}

func (h *Handlers) apiDriverTrips(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	trips, err := h.engine.Trips().ListByDriver(id, limit)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, trips)
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.engine.DB().ListAuditLog(limit)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.jsonOK(w, entries)
}
