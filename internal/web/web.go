package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hvacsched/internal/config"
	"hvacsched/internal/engine"
	"hvacsched/internal/ics"
	appLog "hvacsched/internal/log"
	"hvacsched/internal/model"
	"hvacsched/internal/occurrence"
	"hvacsched/internal/timeutil"
)

const maxBodyBytes = 1 << 20

// Server exposes the engine over a small JSON API.
type Server struct {
	cfg    *config.Config
	eng    *engine.Engine
	sun    occurrence.SunFunc
	loc    *time.Location
	logger *zap.Logger
	mux    *http.ServeMux
	now    func() time.Time
}

// NewServer constructs a new Server. sun may be nil, in which case solar
// schedules are shown at their literal offsets.
func NewServer(cfg *config.Config, eng *engine.Engine, sun occurrence.SunFunc, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		eng:    eng,
		sun:    sun,
		logger: logger,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	s.loc = s.resolveLocationOrLocal(cfg.Timezone)
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		s.logger.Info("HTTP basic auth enabled", zap.String("listen", "http://"+s.cfg.Listen))
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="hvacsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", zap.String("listen", "http://"+s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/schedules", s.handleSchedules)
	s.mux.HandleFunc("GET /api/schedules.ics", s.handleICS)
	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("GET /api/active", s.handleActive)
	s.mux.HandleFunc("POST /api/actions", s.handleAction)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /api/device/config", s.handleDeviceConfig)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleSchedules(w http.ResponseWriter, _ *http.Request) {
	schedules := s.eng.Schedules()
	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": schedules,
		"total":     len(schedules),
	})
}

// occurrenceDTO is an occurrence plus its wall-clock placement, with solar
// offsets resolved.
type occurrenceDTO struct {
	model.Occurrence
	TimeSetting model.TimeSetting `json:"time_setting"`
	Start       time.Time         `json:"start"`
	End         time.Time         `json:"end"`
}

// handleOccurrences expands the schedule set over a date window.
//
// GET /api/occurrences?from=2025-01-01&to=2025-01-31
//
// Without from/to the window is today plus the next `days` days (default 7).
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		days := parseIntDefault(q.Get("days"), 7)
		if days <= 0 {
			days = 7
		}
		today := timeutil.Day(s.now().In(s.loc))
		from = timeutil.ToDateString(today)
		to = timeutil.ToDateString(today.AddDate(0, 0, days))
	}

	win, err := occurrence.NewWindow(from, to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid window: "+err.Error())
		return
	}

	byID := make(map[string]model.Schedule)
	for _, sch := range s.eng.Schedules() {
		byID[sch.ID] = sch
	}

	occs := s.eng.Occurrences(win)
	out := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		sch := byID[occ.ScheduleID]
		start, end, err := occurrence.Resolve(occ, sch, s.sun, s.loc)
		if err != nil {
			s.logger.Warn("occurrence not resolvable", zap.String("key", occ.InstanceKey), zap.Error(err))
			continue
		}
		out = append(out, occurrenceDTO{Occurrence: occ, TimeSetting: sch.TimeSetting, Start: start, End: end})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":        from,
		"to":          to,
		"timezone":    s.loc.String(),
		"occurrences": out,
	})
}

// handleActive reports the schedule in effect now, or at ?at=RFC3339.
func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	at := s.now().In(s.loc)
	if v := r.URL.Query().Get("at"); v != "" {
		t, err := s.parseInstant(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		at = t
	}

	sch, ok := s.eng.Active(at, s.sun)
	if !ok {
		writeError(w, http.StatusNotFound, "no active schedule")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"at":       at.Format(time.RFC3339),
		"schedule": sch,
	})
}

// actionRequest is the wire form of an engine command.
type actionRequest struct {
	Action         engine.Action  `json:"action"`
	ID             string         `json:"id"`
	Schedule       model.Schedule `json:"schedule"`
	Patch          engine.Patch   `json:"patch"`
	Start          string         `json:"start"`
	End            string         `json:"end"`
	Scope          engine.Scope   `json:"scope"`
	OccurrenceDate string         `json:"occurrence_date"`
	Date           string         `json:"date"`
}

func (s *Server) command(req actionRequest) (engine.Command, error) {
	switch req.Action {
	case engine.ActionCreate:
		return engine.Create{Schedule: req.Schedule}, nil
	case engine.ActionUpdate:
		return engine.Update{ID: req.ID, Patch: req.Patch}, nil
	case engine.ActionDelete:
		return engine.Delete{ID: req.ID}, nil
	case engine.ActionDrag:
		start, err := s.parseInstant(req.Start)
		if err != nil {
			return nil, err
		}
		return engine.Drag{ID: req.ID, Start: start, Scope: req.Scope, OccurrenceDate: req.OccurrenceDate}, nil
	case engine.ActionResize:
		end, err := s.parseInstant(req.End)
		if err != nil {
			return nil, err
		}
		return engine.Resize{ID: req.ID, End: end, Scope: req.Scope, OccurrenceDate: req.OccurrenceDate}, nil
	case engine.ActionRemoveExcludedDate:
		return engine.RemoveExcludedDate{ID: req.ID, Date: req.Date}, nil
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cmd, err := s.command(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.eng.Apply(r.Context(), cmd)
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	doc := s.eng.Export()
	name := fmt.Sprintf("hvac-schedules-%s.json", timeutil.ToDateString(s.now().In(s.loc)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// handleImport accepts an exported document (or a bare legacy schedule)
// and replaces the schedule set with it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: "+err.Error())
		return
	}
	doc, err := model.DecodeDocument(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document: "+err.Error())
		return
	}

	res, err := s.eng.Apply(r.Context(), engine.Import{Schedules: doc.Schedules})
	if err != nil {
		s.writeActionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imported": len(res.Changed)})
}

func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ics.Export(s.eng.Schedules(), s.cfg.Device.Name, s.now()))
}

// handleDeviceConfig describes the controller for device-side clients.
func (s *Server) handleDeviceConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":   s.cfg.Device.ID,
		"device_name": s.cfg.Device.Name,
		"location":    s.cfg.Device.Location,
		"timezone":    s.loc.String(),
		"schedules":   len(s.eng.Schedules()),
	})
}

// parseInstant reads a naive wall-clock "YYYY-MM-DDTHH:MM" (or with a
// space) as-is, and converts a zoned RFC3339 value to the device zone.
func (s *Server) parseInstant(v string) (time.Time, error) {
	if date, clock, ok := timeutil.SplitDateTime(v); ok && !hasZone(v) {
		day, err := timeutil.ParseDate(date)
		if err != nil {
			return time.Time{}, err
		}
		m, err := timeutil.ParseClock(clock)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(day.Year(), day.Month(), day.Day(), 0, m, 0, 0, s.loc), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid instant %q", v)
	}
	return t.In(s.loc), nil
}

func hasZone(v string) bool {
	if strings.HasSuffix(v, "Z") {
		return true
	}
	_, clock, ok := strings.Cut(v, "T")
	return ok && strings.ContainsAny(clock, "+-")
}

type errorBody struct {
	Error    string                       `json:"error"`
	Kind     string                       `json:"kind"`
	Field    string                       `json:"field,omitempty"`
	Conflict *engine.OverlapConflictError `json:"conflict,omitempty"`
	Items    []itemBody                   `json:"items,omitempty"`
}

type itemBody struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// writeActionError maps engine error kinds to HTTP status codes.
func (s *Server) writeActionError(w http.ResponseWriter, err error) {
	var (
		ve *engine.ValidationError
		de *engine.DurationError
		nf *engine.NotFoundError
		oc *engine.OverlapConflictError
		pe *engine.ProtectedEntityError
		be *engine.BatchError
		se *engine.PersistenceError
	)

	status := http.StatusInternalServerError
	body := errorBody{Error: err.Error(), Kind: "internal"}

	switch {
	case errors.As(err, &be):
		status, body.Kind = http.StatusBadRequest, "batch"
		for _, it := range be.Items {
			body.Items = append(body.Items, itemBody{Index: it.Index, Error: it.Err.Error()})
		}
	case errors.As(err, &ve):
		status, body.Kind, body.Field = http.StatusBadRequest, "validation", ve.Field
	case errors.As(err, &de):
		status, body.Kind = http.StatusBadRequest, "duration"
	case errors.As(err, &nf):
		status, body.Kind = http.StatusNotFound, "not_found"
	case errors.As(err, &oc):
		status, body.Kind, body.Conflict = http.StatusConflict, "overlap", oc
	case errors.As(err, &pe):
		status, body.Kind = http.StatusForbidden, "protected"
	case errors.Is(err, engine.ErrBusy):
		status, body.Kind = http.StatusTooManyRequests, "busy"
	case errors.As(err, &se):
		status, body.Kind = http.StatusBadGateway, "persistence"
		s.logger.Error("action failed to persist", zap.Error(err))
	default:
		s.logger.Error("action failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Error("failed to load timezone; falling back to local", zap.String("name", name), zap.Error(err))
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: "request"})
}
