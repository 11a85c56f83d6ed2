// Package httpapi exposes the guard engine's explicit trigger RPCs over a
// small HTTP control surface: site CRUD, session start/stop, whitelist
// grants, navigation events, and diagnostics.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nomad06/brain-defender/internal/guard/common/clock"
	"github.com/Nomad06/brain-defender/internal/guard/common/log"
	"github.com/Nomad06/brain-defender/internal/guard/common/utils"
	"github.com/Nomad06/brain-defender/internal/guard/domain"
	"github.com/Nomad06/brain-defender/internal/guard/services/engine"
)

// SiteStore is the slice of the storage collaborator the API mutates. Every
// successful write fires the store's change callback, which triggers a
// rebuild.
type SiteStore interface {
	ListSites() ([]domain.Site, error)
	GetSite(host string) (domain.Site, error)
	PutSite(site domain.Site) error
	DeleteSite(host string) error
	PutWhitelistEntry(e domain.TempWhitelistEntry) error
}

// API carries the handler dependencies.
type API struct {
	engine *engine.Engine
	store  SiteStore
	clock  clock.Clock
	logger log.Logger
}

// New constructs the API.
func New(eng *engine.Engine, store SiteStore, clk clock.Clock, logger log.Logger) *API {
	return &API{engine: eng, store: store, clock: clk, logger: logger}
}

// Router builds the chi route tree.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Get("/sites", a.handleListSites)
		r.Post("/sites", a.handleAddSite)
		r.Put("/sites/{host}", a.handleUpdateSite)
		r.Delete("/sites/{host}", a.handleDeleteSite)
		r.Post("/whitelist", a.handleWhitelist)
		r.Post("/session/start", a.handleSessionStart)
		r.Post("/session/stop", a.handleSessionStop)
		r.Post("/events/visit", a.handleVisit)
		r.Post("/events/time", a.handleTime)
		r.Post("/rebuild", a.handleRebuild)
	})
	r.Get("/blocked", a.handleLanding)
	return r
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := a.engine.Status()
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, status)
}

func (a *API) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := a.store.ListSites()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if sites == nil {
		sites = []domain.Site{}
	}
	a.writeJSON(w, http.StatusOK, sites)
}

type sitePayload struct {
	Host             string                   `json:"host"`
	Category         string                   `json:"category"`
	Schedule         *domain.Schedule         `json:"schedule"`
	ConditionalRules []domain.ConditionalRule `json:"conditional_rules"`
}

func (a *API) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var payload sitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("decode payload: %w", err)))
		return
	}
	host, err := utils.NormalizeHost(payload.Host)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	site, err := domain.NewSite(host, payload.Category, a.clock.Now())
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	site.Schedule = payload.Schedule
	if payload.ConditionalRules != nil {
		site.ConditionalRules = payload.ConditionalRules
	}
	if err := site.Validate(); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	if err := a.store.PutSite(site); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, site)
}

func (a *API) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	host, err := utils.NormalizeHost(chi.URLParam(r, "host"))
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	site, err := a.store.GetSite(host)
	if err != nil {
		a.writeError(w, err)
		return
	}
	var payload sitePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("decode payload: %w", err)))
		return
	}
	if payload.Category != "" {
		site.Category = payload.Category
	}
	site.Schedule = payload.Schedule
	if payload.ConditionalRules != nil {
		site.ConditionalRules = payload.ConditionalRules
	}
	if err := site.Validate(); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	if err := a.store.PutSite(site); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, site)
}

func (a *API) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	host, err := utils.NormalizeHost(chi.URLParam(r, "host"))
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	if err := a.store.DeleteSite(host); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type whitelistPayload struct {
	Host    string `json:"host"`
	Minutes int    `json:"minutes"`
	Reason  string `json:"reason"`
}

func (a *API) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var payload whitelistPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("decode payload: %w", err)))
		return
	}
	if payload.Minutes <= 0 {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("minutes must be positive")))
		return
	}
	host, err := utils.NormalizeHost(payload.Host)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(err))
		return
	}
	entry := domain.TempWhitelistEntry{
		Host:   host,
		Until:  a.clock.Now().Add(time.Duration(payload.Minutes) * time.Minute),
		Reason: payload.Reason,
	}
	if err := a.store.PutWhitelistEntry(entry); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, entry)
}

type sessionPayload struct {
	Hosts   []string `json:"hosts"`
	Minutes int      `json:"minutes"`
}

func (a *API) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var payload sessionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("decode payload: %w", err)))
		return
	}
	if len(payload.Hosts) == 0 {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("hosts must not be empty")))
		return
	}
	if payload.Minutes <= 0 {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("minutes must be positive")))
		return
	}
	session, err := a.engine.StartSession(r.Context(), payload.Hosts, time.Duration(payload.Minutes)*time.Minute)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, session)
}

func (a *API) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.StopSession(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type visitPayload struct {
	URL string `json:"url"`
	Tab string `json:"tab"`
}

func (a *API) handleVisit(w http.ResponseWriter, r *http.Request) {
	var payload visitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("decode payload: %w", err)))
		return
	}
	result, err := a.engine.CheckNavigation(r.Context(), payload.URL, payload.Tab)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, result)
}

type timePayload struct {
	Host    string `json:"host"`
	Minutes int    `json:"minutes"`
}

func (a *API) handleTime(w http.ResponseWriter, r *http.Request) {
	var payload timePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("decode payload: %w", err)))
		return
	}
	if payload.Minutes <= 0 {
		a.writeJSON(w, http.StatusBadRequest, errBody(fmt.Errorf("minutes must be positive")))
		return
	}
	if err := a.engine.RecordTime(r.Context(), payload.Host, payload.Minutes); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.Rebuild(r.Context()); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleLanding(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if from == "" {
		fmt.Fprintln(w, "This site is blocked right now.")
		return
	}
	fmt.Fprintf(w, "This site is blocked right now: %s\n", from)
}

func errBody(err error) map[string]string {
	return map[string]string{"error": err.Error()}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn(map[string]any{"error": err}, "Failed to encode response")
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.writeJSON(w, http.StatusNotFound, errBody(err))
	case errors.Is(err, domain.ErrOversizedList):
		a.writeJSON(w, http.StatusRequestEntityTooLarge, errBody(err))
	case errors.Is(err, domain.ErrCapacity):
		a.writeJSON(w, http.StatusInsufficientStorage, errBody(err))
	case errors.Is(err, domain.ErrAlreadyRunning):
		a.writeJSON(w, http.StatusAccepted, errBody(err))
	default:
		a.logger.Error(map[string]any{"error": err}, "Request failed")
		a.writeJSON(w, http.StatusInternalServerError, errBody(err))
	}
}
