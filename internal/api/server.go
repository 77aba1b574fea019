package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"medslots/internal/availability"
	"medslots/internal/model"
)

// AppointmentRepository is the ledger used by the appointment endpoints.
type AppointmentRepository interface {
	InsertAppointment(ctx context.Context, appt *model.ExistingAppointment) error
	ListAppointments(ctx context.Context, specialistID string) ([]model.ExistingAppointment, error)
}

// Config tunes the HTTP server.
type Config struct {
	Port         int
	APIKey       string
	RateLimitRPS float64
	RateBurst    int
	// Location renders times in xlsx exports. Defaults to UTC.
	Location *time.Location
}

// HTTPServer serves the availability API.
type HTTPServer struct {
	server       *http.Server
	service      *availability.Service
	appointments AppointmentRepository
	cfg          Config
	limiters     *limiterStore
	logger       *zerolog.Logger
}

// NewHTTPServer wires routes and middleware. appointments may be nil to disable the ledger endpoints.
func NewHTTPServer(cfg Config, service *availability.Service, appointments AppointmentRepository, logger *zerolog.Logger) *HTTPServer {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	s := &HTTPServer{
		service:      service,
		appointments: appointments,
		cfg:          cfg,
		limiters:     newLimiterStore(cfg.RateLimitRPS, cfg.RateBurst),
		logger:       logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/slots/generate", s.handleGenerate)
	mux.HandleFunc("/api/v1/slots", s.handleSlots)
	mux.HandleFunc("/api/v1/availability", s.handleAvailability)
	mux.HandleFunc("/api/v1/availability/export", s.handleExport)
	mux.HandleFunc("/api/v1/sources", s.handleSources)
	if appointments != nil {
		mux.HandleFunc("/api/v1/appointments", s.handleAppointments)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.withRateLimit(s.withAuth(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server started")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey != "" && r.Header.Get("X-Api-Key") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiters != nil && !s.limiters.get(clientKey(r)).Allow() {
			s.logger.Warn().Str("client", clientKey(r)).Msg("Rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded; try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey identifies the caller by api key, falling back to the remote IP.
func clientKey(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore holds one token bucket per client. Buckets idle for longer
// than limiterIdleTTL are dropped during lookups.
type limiterStore struct {
	limiters  map[string]*clientLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
	mu        sync.Mutex
}

// newLimiterStore returns nil when rps is not positive, which disables limiting.
func newLimiterStore(rps float64, burst int) *limiterStore {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &limiterStore{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweepEvery {
		s.sweep(now)
	}

	entry, exists := s.limiters[key]
	if !exists {
		entry = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (s *limiterStore) sweep(now time.Time) {
	for key, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(s.limiters, key)
		}
	}
	s.lastSweep = now
}

func (s *limiterStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
