package daemon

import (
	"net/http"
	"time"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/ingest"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/relay"
	"git.home.luguber.info/inful/nasstate/internal/services"
	"git.home.luguber.info/inful/nasstate/internal/state"
	"git.home.luguber.info/inful/nasstate/internal/version"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status        DaemonStatus           `json:"status"`
	Version       string                 `json:"version"`
	StartTime     time.Time              `json:"start_time"`
	Uptime        string                 `json:"uptime"`
	StateVersion  uint64                 `json:"state_version"`
	WatchMode     string                 `json:"watch_mode"`
	Subscribers   map[pubsub.Channel]int `json:"subscribers"`
	Relay         *relay.View            `json:"relay,omitempty"`
	Notifications any                    `json:"notifications,omitempty"`
	Services      []services.ServiceInfo `json:"services"`
}

// SliceResponse is the body of GET /state/{key}.
type SliceResponse struct {
	Key     state.Key   `json:"key"`
	Version uint64      `json:"version"`
	Slice   state.Slice `json:"slice"`
	Typed   any         `json:"typed,omitempty"`
}

// StatusSnapshot collects the daemon status.
func (d *Daemon) StatusSnapshot() StatusResponse {
	d.mu.RLock()
	status, start := d.status, d.startTime
	d.mu.RUnlock()

	now := d.clock.Now()
	resp := StatusResponse{
		Status:       status,
		Version:      version.Version,
		StartTime:    start,
		StateVersion: d.store.Version(),
		WatchMode:    string(d.watches.Mode()),
		Subscribers:  make(map[pubsub.Channel]int),
		Services:     d.services.AllServiceInfo(),
	}
	if !start.IsZero() {
		resp.Uptime = now.Sub(start).Round(time.Second).String()
	}
	for _, c := range pubsub.Channels() {
		resp.Subscribers[c] = d.hub.Subscribers(c)
	}
	if d.monitor != nil {
		v := d.monitor.Status().View(now)
		resp.Relay = &v
	}
	if d.notifier != nil {
		resp.Notifications = d.notifier.Overview()
	}
	return resp
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.daemon.StatusSnapshot())
}

func (s *AdminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.daemon.Health()
	code := http.StatusOK
	if h.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, code, h)
}

func (s *AdminServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.daemon.store.Snapshot())
}

func (s *AdminServer) handleSlice(w http.ResponseWriter, r *http.Request) {
	raw := r.PathValue("key")
	k, ok := state.ParseKey(raw)
	if !ok {
		s.errorAdapter.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "unknown state key").
			WithContext("key", raw).
			Build())
		return
	}
	snap := s.daemon.store.Snapshot()
	resp := SliceResponse{Key: k, Version: snap.Version, Slice: snap.Get(k)}
	if r.URL.Query().Get("typed") != "" {
		resp.Typed = ingest.Project(k, resp.Slice)
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *AdminServer) handleRelayReset(w http.ResponseWriter, r *http.Request) {
	m := s.daemon.monitor
	if m == nil {
		s.errorAdapter.WriteErrorResponse(w, r, ferrors.NewError(ferrors.CategoryNotFound, "relay is disabled").Build())
		return
	}
	m.Reset()
	w.WriteHeader(http.StatusAccepted)
}
