// Package pprof runs the optional debug listener of daemon mode.
package pprof

import (
	"context"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"runtime"
	"sync"
	"time"

	logx "guildmirror/pkg/logx"
)

const DefaultAddr = "127.0.0.1:6060"

// Config controls the debug listener. Prefer a loopback address; the
// handlers expose process internals.
type Config struct {
	Enabled              bool
	Addr                 string
	BlockProfileRate     int
	MutexProfileFraction int
}

type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string
	want string
}

func New(log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{log: log.With(logx.String("comp", "pprof"))}
}

// Apply starts, stops or moves the listener to match cfg. Profiling rates
// are applied even when the listener is off.
func (s *Server) Apply(ctx context.Context, cfg Config) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	runtime.SetBlockProfileRate(cfg.BlockProfileRate)
	runtime.SetMutexProfileFraction(cfg.MutexProfileFraction)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !cfg.Enabled {
		s.stopLocked(ctx)
		return
	}
	if s.srv != nil && s.want == cfg.Addr {
		return
	}
	s.stopLocked(ctx)
	s.startLocked(cfg.Addr)
}

func (s *Server) startLocked(addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", hpprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.log.Warn("pprof listen failed", logx.String("addr", addr), logx.Err(err))
		return
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.srv, s.ln, s.want, s.addr = srv, ln, addr, ln.Addr().String()

	bound := s.addr
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server error", logx.String("addr", bound), logx.Err(err))
		}
	}()
	s.log.Info("pprof enabled", logx.String("addr", bound))
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) {
	if s.srv == nil {
		return
	}
	srv, addr := s.srv, s.addr
	s.srv, s.ln, s.addr, s.want = nil, nil, "", ""

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		s.log.Warn("pprof shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	s.log.Info("pprof disabled", logx.String("addr", addr))
}

// Addr is the bound address, empty when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
