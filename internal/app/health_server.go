package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanamilabs/pretender-bot/internal/config"
	"github.com/hanamilabs/pretender-bot/internal/ports"
	"github.com/hanamilabs/pretender-bot/internal/service"
)

var ErrServerClosed = http.ErrServerClosed

type HealthServer struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	startedAt     time.Time
	gateway       ports.Gateway
	controlSvc    *service.ControlService
	storeLocation string
}

type serviceCheck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type healthResponse struct {
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Telegram      serviceCheck `json:"telegram"`
	Store         struct {
		Backend  string `json:"backend"`
		Location string `json:"location"`
	} `json:"store"`
	Relays struct {
		Count     int    `json:"count"`
		Transport string `json:"transport"`
	} `json:"relays"`
}

func NewHealthServer(cfg config.Config, logger *slog.Logger, gateway ports.Gateway, control *service.ControlService, storeLocation string) *HealthServer {
	server := &HealthServer{
		cfg:           cfg,
		logger:        logger,
		startedAt:     time.Now(),
		gateway:       gateway,
		controlSvc:    control,
		storeLocation: storeLocation,
	}
	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HealthPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/relays", s.relaysHandler)
	mux.HandleFunc("/relays/unlink", s.unlinkHandler)
	return mux
}

func (s *HealthServer) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *HealthServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res := healthResponse{UptimeSeconds: int64(time.Since(s.startedAt).Seconds())}
	res.Store.Backend = s.cfg.StoreBackend
	res.Store.Location = s.storeLocation
	res.Relays.Transport = s.cfg.BotTransport
	if s.controlSvc != nil {
		res.Relays.Count = s.controlSvc.RelayCount()
	}
	if s.gateway != nil {
		res.Telegram = checkFromErr(s.gateway.Ping(ctx))
	} else {
		res.Telegram = checkFromErr(errors.New("gateway unavailable"))
	}

	s.writeJSON(w, http.StatusOK, res)
}

func (s *HealthServer) relaysHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controlSvc == nil {
		http.Error(w, "control service unavailable", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"relays": s.controlSvc.Relays()})
}

func (s *HealthServer) unlinkHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.controlSvc == nil {
		http.Error(w, "control service unavailable", http.StatusServiceUnavailable)
		return
	}
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	ownerID, ok := parseInt64Any(payload["ownerId"])
	if !ok || ownerID == 0 {
		http.Error(w, "ownerId is required", http.StatusBadRequest)
		return
	}

	result, err := s.controlSvc.Unlink(r.Context(), ownerID)
	if err != nil {
		s.logger.Error("operator unlink failed", "owner_id", ownerID, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !result.Removed {
		s.writeJSON(w, http.StatusNotFound, result)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// parseInt64Any accepts ids sent either as JSON numbers or strings. Large ids
// should be sent as strings since numbers go through float64.
func parseInt64Any(value any) (int64, bool) {
	switch v := value.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func (s *HealthServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode json response failed", "error", err)
	}
}

func checkFromErr(err error) serviceCheck {
	if err == nil {
		return serviceCheck{OK: true}
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = "unknown error"
	}
	return serviceCheck{OK: false, Error: msg}
}

func IsServerClosed(err error) bool {
	return errors.Is(err, ErrServerClosed)
}
