package server

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	stockwatch "github.com/eugener/stockwatch/internal"
	"github.com/eugener/stockwatch/internal/tracker"
)

type trackerResponse struct {
	Name     string                 `json:"name"`
	State    string                 `json:"state"`
	Pending  int                    `json:"pending"`
	LastDrop *stockwatch.DropResult `json:"last_drop,omitempty"`
}

type listResponse struct {
	Data []trackerResponse `json:"data"`
}

type acceptedResponse struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (s *server) describe(t *tracker.Tracker) trackerResponse {
	resp := trackerResponse{
		Name:    t.Name(),
		State:   t.State().String(),
		Pending: t.Pending(),
	}
	if s.deps.Recent != nil {
		resp.LastDrop = s.deps.Recent.Last(t.Name())
	}
	return resp
}

func (s *server) handleListTrackers(w http.ResponseWriter, _ *http.Request) {
	list := s.deps.Trackers.List()
	out := listResponse{Data: make([]trackerResponse, 0, len(list))}
	for _, t := range list {
		out.Data = append(out.Data, s.describe(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleGetTracker(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Trackers.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.describe(t))
}

// handleRequestCheck queues one check. A stopped tracker would never serve
// it, so the request is refused with 409. Manual checks are rate limited
// per tracker.
func (s *server) handleRequestCheck(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Trackers.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if t.Stopped() || t.State() == tracker.Stopped {
		writeError(w, r, fmt.Errorf("tracker %q: %w", t.Name(), stockwatch.ErrStopped))
		return
	}
	if res := s.deps.CheckLimiter.Allow(t.Name()); !res.Allowed {
		secs := int(math.Ceil(res.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		writeError(w, r, fmt.Errorf("tracker %q: %w", t.Name(), stockwatch.ErrRateLimited))
		return
	}
	t.RequestCheck()
	slog.LogAttrs(r.Context(), slog.LevelInfo, "check requested",
		slog.String("tracker", t.Name()),
		slog.String("request_id", stockwatch.RequestIDFromContext(r.Context())),
	)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Name: t.Name(), State: t.State().String()})
}

func (s *server) handleStopTracker(w http.ResponseWriter, r *http.Request) {
	t, err := s.deps.Trackers.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	t.Stop()
	writeJSON(w, http.StatusAccepted, acceptedResponse{Name: t.Name(), State: t.State().String()})
}
