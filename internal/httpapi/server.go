// Package httpapi serves the settings screen over a local JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"x-wireless/internal/settings"
	"x-wireless/internal/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type API struct {
	screen   *settings.Screen
	stateMgr *state.Manager
}

func New(screen *settings.Screen, stateMgr *state.Manager) *API {
	return &API{screen: screen, stateMgr: stateMgr}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", a.health)
	r.Route("/api", func(api chi.Router) {
		api.Get("/screen", a.getScreen)
		api.Post("/resume", a.resume)
		api.Post("/pause", a.pause)
		api.Post("/preferences/{key}/click", a.click)
		api.Put("/preferences/{key}/checked", a.setChecked)
		api.Post("/ecm/result", a.ecmResult)
	})
	return r
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) getScreen(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.screen.View())
}

func (a *API) resume(w http.ResponseWriter, _ *http.Request) {
	a.screen.Resume()
	writeJSON(w, http.StatusOK, a.screen.View())
}

func (a *API) pause(w http.ResponseWriter, _ *http.Request) {
	a.screen.Pause()
	writeJSON(w, http.StatusOK, a.screen.View())
}

func (a *API) click(w http.ResponseWriter, r *http.Request) {
	handled := a.screen.Click(chi.URLParam(r, "key"))
	writeJSON(w, http.StatusOK, map[string]any{"handled": handled})
}

type checkedInput struct {
	Checked *bool `json:"checked"`
}

func (a *API) setChecked(w http.ResponseWriter, r *http.Request) {
	var payload checkedInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Checked == nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Body must be {\"checked\": bool}")
		return
	}
	handled, err := a.screen.SetChecked(chi.URLParam(r, "key"), *payload.Checked)
	if err != nil {
		switch {
		case errors.Is(err, settings.ErrUnknownPreference):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, settings.ErrNotCheckable):
			writeError(w, http.StatusConflict, "not_checkable", err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "set_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"handled": handled})
}

type ecmResultInput struct {
	RequestCode int  `json:"request_code"`
	ExitECM     bool `json:"exit_ecm"`
}

func (a *API) ecmResult(w http.ResponseWriter, r *http.Request) {
	var payload ecmResultInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	if payload.ExitECM {
		a.stateMgr.Update(func(st *state.State) {
			st.EmergencyCallbackMode = false
		})
	}
	if err := a.screen.ActivityResult(payload.RequestCode, payload.ExitECM); err != nil {
		writeError(w, http.StatusInternalServerError, "toggle_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.screen.View())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error":   code,
		"message": message,
	})
}

// RunServer starts and gracefully stops the HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Printf("HTTP API listening on %s", server.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
