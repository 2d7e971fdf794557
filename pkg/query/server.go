package query

import (
	"context"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/netprobe/wirewatch/config"
	log "github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	readHeaderTimeout = 5 * time.Second
	writeTimeout      = 30 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server exposes a Service over HTTP
type Server struct {
	service *Service
	address string
	log     *log.Logger
	server  *http.Server
}

// NewServer builds the HTTP surface for service
func NewServer(service *Service, cfg config.APIStaticCfg, logger *log.Logger) *Server {
	s := &Server{
		service: service,
		address: cfg.Address,
		log:     logger,
	}
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	return s
}

// Handler routes the read-only API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/system_info", s.get(func(r *http.Request) (interface{}, error) {
		return s.service.SystemInfo()
	}))
	mux.HandleFunc("/api/packets", s.get(func(r *http.Request) (interface{}, error) {
		return s.service.RecentPackets()
	}))
	mux.HandleFunc("/api/http_packets", s.get(func(r *http.Request) (interface{}, error) {
		return s.service.RecentHTTPRequests()
	}))
	mux.HandleFunc("/api/top_ips", s.get(func(r *http.Request) (interface{}, error) {
		return s.service.TopSourceIPs(r.Context())
	}))
	mux.HandleFunc("/api/stats", s.get(func(r *http.Request) (interface{}, error) {
		return s.service.ProtocolStats()
	}))
	return mux
}

// get adapts a query to a GET-only JSON endpoint
func (s *Server) get(query func(*http.Request) (interface{}, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			s.writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
			return
		}

		result, err := query(r)
		if err != nil {
			s.log.WithFields(log.Fields{
				"path":  r.URL.Path,
				"error": err.Error(),
			}).Error("Query failed")
			s.writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		s.log.WithFields(log.Fields{
			"error": err.Error(),
		}).Error("Failed to encode response")
		status = http.StatusInternalServerError
		payload = []byte(`{"error":"could not encode response"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.log.WithFields(log.Fields{
		"address": listener.Addr().String(),
	}).Info("Query server listening")

	errs := make(chan error, 1)
	go func() {
		errs <- s.server.Serve(listener)
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != http.ErrServerClosed {
		return err
	}
	return nil
}
