package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"serial-monitor/internal/console"
	"serial-monitor/internal/logging"
	"serial-monitor/internal/monitor"
	"serial-monitor/internal/record"
	"serial-monitor/internal/store"
)

// SettingsSource reports the engine settings.
type SettingsSource interface {
	Settings() monitor.Settings
}

// RecordSwitch turns sample recording on and off.
type RecordSwitch interface {
	Enabled() bool
	SetEnabled(on bool)
}

// Deps are the collaborators the admin surface reads from and controls.
type Deps struct {
	Store    *store.Store
	Console  *console.Sink
	Settings SettingsSource
	Controls chan<- monitor.Control
	Recorder RecordSwitch
	Gatherer prometheus.Gatherer
	// CSVPath resolves relative export names; nil keeps them unchanged.
	CSVPath func(string) string
	// PushInterval paces websocket updates.
	PushInterval time.Duration
	Logger       *slog.Logger
}

// DefaultPushInterval is used when Deps.PushInterval is zero.
const DefaultPushInterval = 500 * time.Millisecond

// recentSamples bounds the per-channel history sent to browsers.
const recentSamples = 200

type Server struct {
	deps     Deps
	tpl      *template.Template
	router   chi.Router
	upgrader websocket.Upgrader
	log      *slog.Logger
}

//go:embed templates/index.html
var content embed.FS

func NewServer(d Deps) *Server {
	if d.PushInterval <= 0 {
		d.PushInterval = DefaultPushInterval
	}
	if d.CSVPath == nil {
		d.CSVPath = func(s string) string { return s }
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	log := d.Logger
	if log == nil {
		log = logging.Discard()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	s := &Server{
		deps: d,
		tpl:  tpl,
		log:  log.With("component", "admin"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/api/status", s.handleStatus)
	r.Get("/api/data", s.handleData)
	r.Get("/api/console", s.handleConsole)
	r.Post("/api/record", s.handleRecord)
	r.Route("/api/control", func(r chi.Router) {
		r.Post("/clear", s.handleClear)
		r.Post("/buffer", s.handleBuffer)
		r.Post("/names", s.handleNames)
		r.Post("/raw-traffic", s.handleRawTraffic)
		r.Post("/window", s.handleWindow)
		r.Post("/save", s.handleSave)
	})
	r.Get("/ws", s.handleWS)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	s.router = r
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("admin listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Status is the summary served by /api/status and pushed over /ws.
type Status struct {
	Settings  monitor.Settings     `json:"settings"`
	Recording bool                 `json:"recording"`
	Samples   int                  `json:"samples"`
	Channels  []store.ChannelStats `json:"channels"`
}

func (s *Server) status() Status {
	snap := s.deps.Store.Recent(recentSamples)
	st := Status{Samples: snap.Total, Channels: snap.Channels()}
	if s.deps.Settings != nil {
		st.Settings = s.deps.Settings.Settings()
	}
	if s.deps.Recorder != nil {
		st.Recording = s.deps.Recorder.Enabled()
	}
	return st
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	data := struct {
		Status
		Console []console.Entry
	}{Status: st}
	if s.deps.Console != nil {
		data.Console = s.deps.Console.Entries()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("recent")
	if q == "" {
		writeJSON(w, http.StatusOK, s.deps.Store.Snapshot())
		return
	}
	n, err := strconv.Atoi(q)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "recent must be a positive integer")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Store.Recent(n))
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	var entries []console.Entry
	if s.deps.Console != nil {
		entries = s.deps.Console.Entries()
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recorder == nil {
		writeError(w, http.StatusNotFound, "recording is not configured")
		return
	}
	var body struct {
		Enable bool `json:"enable"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.deps.Recorder.SetEnabled(body.Enable)
	writeJSON(w, http.StatusOK, map[string]any{"recording": body.Enable})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.send(w, r, monitor.ClearControl())
}

func (s *Server) handleBuffer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Size int `json:"size"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Size < 1 {
		writeError(w, http.StatusBadRequest, "size must be >= 1")
		return
	}
	s.send(w, r, monitor.BufferSizeControl(body.Size))
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Names []string `json:"names"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.send(w, r, monitor.NamesControl(body.Names))
}

func (s *Server) handleRawTraffic(w http.ResponseWriter, r *http.Request) {
	var body monitor.RawTrafficOptions
	if !decode(w, r, &body) {
		return
	}
	if body.MaxLen < 1 {
		writeError(w, http.StatusBadRequest, "max_len must be >= 1")
		return
	}
	s.send(w, r, monitor.RawTrafficControl(body))
}

func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Window string `json:"window"`
	}
	if !decode(w, r, &body) {
		return
	}
	win, err := monitor.ParseWindow(body.Window)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.send(w, r, monitor.WindowControl(win))
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var opts record.FileOptions
	if !decode(w, r, &opts) {
		return
	}
	if opts.FilePath == "" {
		writeError(w, http.StatusBadRequest, record.ErrNoPath.Error())
		return
	}
	opts.FilePath = s.deps.CSVPath(opts.FilePath)
	s.send(w, r, monitor.SaveControl(opts))
}

// send queues c for the engine. A full queue is reported as 503 rather
// than blocking the request.
func (s *Server) send(w http.ResponseWriter, r *http.Request, c monitor.Control) {
	if s.deps.Controls == nil {
		writeError(w, http.StatusServiceUnavailable, "engine is not running")
		return
	}
	select {
	case s.deps.Controls <- c:
		s.log.Debug("control queued", "kind", c.Kind.String(), "remote", r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, map[string]string{"queued": c.Kind.String()})
	default:
		writeError(w, http.StatusServiceUnavailable, "control queue full")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// reader goroutine notices client close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.deps.PushInterval)
	defer ticker.Stop()
	for {
		if err := s.push(conn); err != nil {
			s.log.Debug("websocket push stopped", "err", err)
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) push(conn *websocket.Conn) error {
	data, err := json.Marshal(s.status())
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
