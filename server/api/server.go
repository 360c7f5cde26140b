// Package api serves a recording session over HTTP.
package api

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/sonoprep/server/config"
	"github.com/cyclopcam/sonoprep/server/journal"
	"github.com/cyclopcam/sonoprep/server/recording"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

type Server struct {
	Log       logs.Log
	Config    *config.Config
	Recording *recording.Recording
	Journal   *journal.Journal // nil if the journal is disabled

	signalIn   chan os.Signal
	httpServer *http.Server
	httpRouter *httprouter.Router
	wsUpgrader websocket.Upgrader
	progress   *progressHub
}

// NewServer creates a server with an empty session.
// If initialDirectory is not empty, it is loaded immediately.
func NewServer(log logs.Log, cfg *config.Config, initialDirectory string) (*Server, error) {
	var jnl *journal.Journal
	opt := recording.Options{
		Load: recording.LoadOptions{
			Ext:        cfg.Extension,
			LedgerName: cfg.LedgerName,
		},
		Watch: cfg.Watch,
	}
	if cfg.Journal != "" {
		var err error
		jnl, err = journal.Open(log, cfg.Journal)
		if err != nil {
			return nil, err
		}
		opt.Journal = jnl
	}

	s := &Server{
		Log:       log,
		Config:    cfg,
		Recording: recording.New(log, opt),
		Journal:   jnl,
		progress:  newProgressHub(log),
	}
	s.Recording.Progress.AddListener(s.progress)
	s.setupHttpRoutes()

	if initialDirectory != "" {
		if _, err := s.Recording.Load(initialDirectory); err != nil {
			// Keep serving, so that the user can pick another directory
			s.Log.Errorf("Failed to load '%v': %v", initialDirectory, err)
		}
	}
	return s, nil
}

// Handler returns the HTTP handler of all API routes
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// addr example: ":8090"
func (s *Server) ListenHTTP(addr string) error {
	s.Log.Infof("Listening on %v", addr)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.httpRouter,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) ListenForKillSignals() {
	s.Log.Infof("ListenForKillSignals starting")
	s.signalIn = make(chan os.Signal, 1)
	signal.Notify(s.signalIn, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig, ok := <-s.signalIn
		if ok {
			s.Log.Infof("Received OS signal '%v'. ListenForKillSignals will exit after shutdown", sig.String())
			s.Shutdown()
		} else {
			// Shutdown() was called by something other than ourselves, and closed signalIn
			s.Log.Infof("signalIn closed. ListenForKillSignals will exit now")
		}
	}()
}

func (s *Server) Shutdown() {
	s.Log.Infof("Shutdown")
	if s.signalIn != nil {
		signal.Stop(s.signalIn)
		close(s.signalIn)
	}
	if s.httpServer != nil {
		s.Log.Infof("Closing HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.httpServer.Shutdown(ctx)
		cancel()
		if err != nil {
			s.Log.Warnf("HTTP server shutdown error: %v", err)
		}
	}
	s.progress.close()
	s.Recording.Progress.RemoveListener(s.progress)
	s.Recording.Close()
	if s.Journal != nil {
		s.Journal.Close()
	}
	s.Log.Infof("Shutdown complete")
}
