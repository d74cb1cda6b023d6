// Package api serves the rover's status HTTP surface: current aggregated
// telemetry, drive history, health and config, plus a websocket stream for
// live dashboards.
package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swarmie-robotics/abridge/internal/drivelog"
	"github.com/swarmie-robotics/abridge/internal/httputil"
	"github.com/swarmie-robotics/abridge/internal/telemetry"
	"github.com/swarmie-robotics/abridge/internal/units"
	"github.com/swarmie-robotics/abridge/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// StateSource provides the live rover state. *bridge.Bridge satisfies it.
type StateSource interface {
	Snapshot() telemetry.Snapshot
	Mode() uint8
}

// Config is the running configuration echoed on /api/config.
type Config struct {
	Name              string  `json:"name"`
	Device            string  `json:"device"`
	Broker            string  `json:"broker"`
	MaxLinearVel      float64 `json:"max_linear_vel"`
	MaxAngularVel     float64 `json:"max_angular_vel"`
	MaxMotorCmd       int     `json:"max_motor_cmd"`
	Kp                float64 `json:"kp"`
	Ki                float64 `json:"ki"`
	PollInterval      string  `json:"poll_interval"`
	HeartbeatInterval string  `json:"heartbeat_interval"`
}

type Server struct {
	source StateSource
	log    *drivelog.DB
	config Config
	units  string

	started      time.Time
	pushInterval time.Duration
	upgrader     websocket.Upgrader
}

func NewServer(source StateSource, log *drivelog.DB, config Config, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MPS
	}
	return &Server{
		source:       source,
		log:          log,
		config:       config,
		units:        displayUnits,
		started:      time.Now(),
		pushInterval: 500 * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.showState)
	mux.HandleFunc("/api/health", s.showHealth)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/history", s.listHistory)
	mux.HandleFunc("/ws", s.handleWebsocket)
	return mux
}

// stateResponse is the /api/state and websocket payload: the aggregated
// snapshot plus the rover's operating mode. Odometry velocities are
// converted to the requested display units.
type stateResponse struct {
	telemetry.Snapshot
	Mode  uint8  `json:"mode"`
	Units string `json:"units"`
}

func (s *Server) buildState(displayUnits string) stateResponse {
	snap := s.source.Snapshot()
	snap.Odometry.LinearVelocity.X = units.ConvertSpeed(snap.Odometry.LinearVelocity.X, displayUnits)
	snap.Odometry.LinearVelocity.Y = units.ConvertSpeed(snap.Odometry.LinearVelocity.Y, displayUnits)
	return stateResponse{
		Snapshot: snap,
		Mode:     s.source.Mode(),
		Units:    displayUnits,
	}
}

func (s *Server) showState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	displayUnits := s.units
	if u := r.URL.Query().Get("units"); u != "" {
		if !units.IsValid(u) {
			httputil.BadRequest(w,
				fmt.Sprintf("Invalid 'units' parameter; valid units are %s", units.GetValidUnitsString()))
			return
		}
		displayUnits = u
	}

	httputil.WriteJSON(w, http.StatusOK, s.buildState(displayUnits))
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        version.Version,
		"git_sha":        version.GitSHA,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"config": s.config,
		"units":  s.units,
	})
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	if s.log == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "Drive log disabled")
		return
	}

	limit := 0 // RecentOdometry applies its default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	poses, err := s.log.RecentOdometry(limit)
	if err != nil {
		httputil.InternalServerError(w,
			fmt.Sprintf("Failed to retrieve drive history: %v", err))
		return
	}
	if poses == nil {
		poses = []drivelog.Pose{}
	}

	httputil.WriteJSON(w, http.StatusOK, poses)
}

// handleWebsocket streams the rover state to the client at a fixed cadence
// until the client goes away.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			// Clients send nothing; reads only detect the close.
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ws.WriteJSON(s.buildState(s.units)); err != nil {
				return
			}
		}
	}
}
