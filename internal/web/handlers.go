package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/kipmarine/kipdash/internal/dashboard"
)

// Handlers serves the dashboard API.
type Handlers struct {
	store   *dashboard.Store
	actions *dashboard.WidgetActionBus
	static  *dashboard.StaticFlag
	nav     *Navigator
}

// NewHandlers creates the API handlers.
func NewHandlers(store *dashboard.Store, actions *dashboard.WidgetActionBus, static *dashboard.StaticFlag, nav *Navigator) *Handlers {
	return &Handlers{store: store, actions: actions, static: static, nav: nav}
}

// CollectionResponse is returned by GET /api/dashboards.
type CollectionResponse struct {
	Dashboards []dashboard.Dashboard `json:"dashboards"`
	Active     int                   `json:"active"`
}

// DashboardRequest is the body of create, update and duplicate requests.
type DashboardRequest struct {
	Name          string             `json:"name"`
	Icon          string             `json:"icon"`
	Configuration []dashboard.Widget `json:"configuration"`
}

// ActiveRequest is the body of PUT /api/active and the response of GET.
type ActiveRequest struct {
	Active int `json:"active"`
}

// StaticRequest is the body of PUT /api/layout/static and the response of
// GET.
type StaticRequest struct {
	IsStatic bool `json:"isStatic"`
}

// UpdateSignals is the client state patched over the /updates stream.
type UpdateSignals struct {
	Route           string                     `json:"route"`
	ActiveDashboard int                        `json:"activeDashboard"`
	MaxDashboard    int                        `json:"maxDashboard"`
	Dashboards      []dashboard.Info           `json:"dashboards"`
	IsStatic        bool                       `json:"isStatic"`
	WidgetAction    *dashboard.WidgetOperation `json:"widgetAction"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Dashboards ---

// ListDashboards returns the collection and the active index.
func (h *Handlers) ListDashboards(w http.ResponseWriter, _ *http.Request) {
	st := h.store.Snapshot()
	writeJSON(w, http.StatusOK, CollectionResponse{Dashboards: st.Dashboards, Active: st.Active})
}

// GetDashboard returns one dashboard.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	ds := h.store.Dashboards()
	if index >= len(ds) {
		writeError(w, &dashboard.IndexError{Op: "get", Index: index, Len: len(ds)})
		return
	}
	writeJSON(w, http.StatusOK, ds[index])
}

// CreateDashboard appends a dashboard.
func (h *Handlers) CreateDashboard(w http.ResponseWriter, r *http.Request) {
	var req DashboardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Configuration == nil {
		req.Configuration = []dashboard.Widget{}
	}
	d := h.store.Add(req.Name, req.Configuration, req.Icon)
	writeJSON(w, http.StatusCreated, d)
}

// UpdateDashboard renames a dashboard.
func (h *Handlers) UpdateDashboard(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req DashboardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	info, err := h.store.Update(index, req.Name, req.Icon)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// DeleteDashboard removes a dashboard.
func (h *Handlers) DeleteDashboard(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateDashboard copies a dashboard under a new name.
func (h *Handlers) DuplicateDashboard(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req DashboardRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.store.Duplicate(index, req.Name, req.Icon)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// UpdateConfiguration replaces the widget list of a dashboard.
func (h *Handlers) UpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var cfg []dashboard.Widget
	if !decodeJSON(w, r, &cfg) {
		return
	}
	if err := h.store.UpdateConfiguration(index, cfg); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Active dashboard ---

// GetActive returns the active index.
func (h *Handlers) GetActive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ActiveRequest{Active: h.store.ActiveIndex()})
}

// SetActive moves the cursor.
func (h *Handlers) SetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.store.SetActiveDashboard(req.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ActiveRequest{Active: h.store.ActiveIndex()})
}

// NextActive moves the cursor forward.
func (h *Handlers) NextActive(w http.ResponseWriter, _ *http.Request) {
	h.store.NextDashboard()
	writeJSON(w, http.StatusOK, ActiveRequest{Active: h.store.ActiveIndex()})
}

// PreviousActive moves the cursor back.
func (h *Handlers) PreviousActive(w http.ResponseWriter, _ *http.Request) {
	h.store.PreviousDashboard()
	writeJSON(w, http.StatusOK, ActiveRequest{Active: h.store.ActiveIndex()})
}

// --- Navigation ---

// NavigateTo navigates to the dashboard in the URL.
func (h *Handlers) NavigateTo(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	if err := h.store.NavigateTo(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// NavigateActive navigates to the active dashboard.
func (h *Handlers) NavigateActive(w http.ResponseWriter, _ *http.Request) {
	h.store.NavigateToActive()
	w.WriteHeader(http.StatusAccepted)
}

// NavigateNext navigates to the dashboard after the active one.
func (h *Handlers) NavigateNext(w http.ResponseWriter, _ *http.Request) {
	h.store.NavigateToNextDashboard()
	w.WriteHeader(http.StatusAccepted)
}

// NavigatePrevious navigates to the dashboard before the active one.
func (h *Handlers) NavigatePrevious(w http.ResponseWriter, _ *http.Request) {
	h.store.NavigateToPreviousDashboard()
	w.WriteHeader(http.StatusAccepted)
}

// --- Widgets and layout ---

// RequestWidgetDelete publishes a widget delete request.
func (h *Handlers) RequestWidgetDelete(w http.ResponseWriter, r *http.Request) {
	h.actions.RequestDelete(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusAccepted, h.actions.Last())
}

// RequestWidgetDuplicate publishes a widget duplicate request.
func (h *Handlers) RequestWidgetDuplicate(w http.ResponseWriter, r *http.Request) {
	h.actions.RequestDuplicate(chi.URLParam(r, "id"))
	writeJSON(w, http.StatusAccepted, h.actions.Last())
}

// GetStatic returns the layout lock.
func (h *Handlers) GetStatic(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StaticRequest{IsStatic: h.static.IsStatic()})
}

// SetStatic sets the layout lock.
func (h *Handlers) SetStatic(w http.ResponseWriter, r *http.Request) {
	var req StaticRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.static.Set(req.IsStatic)
	writeJSON(w, http.StatusOK, StaticRequest{IsStatic: h.static.IsStatic()})
}

// ToggleStatic flips the layout lock.
func (h *Handlers) ToggleStatic(w http.ResponseWriter, _ *http.Request) {
	h.static.Toggle()
	writeJSON(w, http.StatusOK, StaticRequest{IsStatic: h.static.IsStatic()})
}

// --- Live updates ---

// Updates is the long-lived SSE endpoint. It patches the full client state
// once on connect and again whenever the route, the collection, the cursor,
// the layout lock or the widget action changes.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	route := h.nav.Route().Notify()
	defer h.nav.Route().Unnotify(route)
	active := h.store.ActiveView().Notify()
	defer h.store.ActiveView().Unnotify(active)
	dashboards := h.store.DashboardsView().Notify()
	defer h.store.DashboardsView().Unnotify(dashboards)
	static := h.static.View().Notify()
	defer h.static.View().Unnotify(static)
	action := h.actions.View().Notify()
	defer h.actions.View().Unnotify(action)

	send := func() {
		if err := sse.MarshalAndPatchSignals(h.signals()); err != nil {
			_ = sse.ConsoleError(err)
		}
	}
	send()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-route:
		case <-active:
		case <-dashboards:
		case <-static:
		case <-action:
		}
		send()
	}
}

func (h *Handlers) signals() UpdateSignals {
	infos := h.store.Infos()
	return UpdateSignals{
		Route:           h.nav.Route().Get(),
		ActiveDashboard: h.store.ActiveIndex(),
		MaxDashboard:    len(infos) - 1,
		Dashboards:      infos,
		IsStatic:        h.static.IsStatic(),
		WidgetAction:    h.actions.Last(),
	}
}

// --- Helpers ---

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid dashboard index " + strconv.Quote(raw)})
		return 0, false
	}
	return i, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, dashboard.ErrOutOfRange) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
