package jtag

import (
	"fmt"
	"log"
	"net"
)

// Server runs the XVC TCP accept loop: one client at a time, USB handle
// reopened per connection so transient USB errors recover across
// connections, matching main()'s accept loop in
// original_source/ftdiJTAG.c.
type Server struct {
	Config Config
	Diag   *Diagnostics

	// openAdapter opens a fresh FTDIAdapter for each connection. Exposed as
	// a field (rather than baked into Serve) so tests can substitute a
	// SimAdapter-backed factory.
	openAdapter func() (Adapter, error)
}

// NewServer builds a Server that opens a real FTDIAdapter per connection
// using cfg.
func NewServer(cfg Config, diag *Diagnostics) *Server {
	s := &Server{Config: cfg, Diag: diag}
	s.openAdapter = func() (Adapter, error) {
		return OpenFTDIAdapter(s.adapterConfig())
	}
	return s
}

// NewServerWithFactory builds a Server against an arbitrary adapter factory,
// used by tests to run the accept loop against a SimAdapter.
func NewServerWithFactory(cfg Config, diag *Diagnostics, openAdapter func() (Adapter, error)) *Server {
	return &Server{Config: cfg, Diag: diag, openAdapter: openAdapter}
}

func (s *Server) adapterConfig() FTDIAdapterConfig {
	cfg := s.Config
	match := cfg.Match
	match.InterfaceNumber = cfg.InterfaceNumber()

	gpioSteps, _ := ParseGPIOInit(cfg.GPIOInit) // validated earlier at CLI parse time

	var runtHook func(status []byte)
	if cfg.Runt && s.Diag != nil {
		runtHook = func(status []byte) {
			s.Diag.USBTrace("RUNT", status)
		}
	}

	return FTDIAdapterConfig{
		Match:       match,
		Loopback:    cfg.Loopback,
		LockedSpeed: cfg.LockedSpeed,
		RuntHook:    runtHook,
		GPIOInit:    gpioSteps,
	}
}

// ListenAndServe binds cfg.BindAddr:cfg.Port and serves connections forever.
// Accept errors and USB open errors are fatal, matching the original's exit
// on accept() or connectUSB() failure.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.Config.BindAddr, s.Config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("jtag: listen on %s: %w", addr, err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("jtag: accept connection: %w", err)
		}
		if err := s.serveOne(conn); err != nil {
			return err
		}
	}
}

func (s *Server) serveOne(conn net.Conn) error {
	defer conn.Close()

	if !s.Config.Quiet {
		log.Printf("Connect %s", conn.RemoteAddr())
	}

	adapter, err := s.openAdapter()
	if err != nil {
		return fmt.Errorf("jtag: open adapter: %w", err)
	}
	defer adapter.Close()

	stats := &Stats{}
	handler := &ProtoHandler{Adapter: adapter, Stats: stats}
	if s.Config.TraceXVC && s.Diag != nil {
		handler.Trace = s.Diag.XVCTrace
	}

	if err := handler.Serve(conn, conn); err != nil {
		log.Printf("jtag: session error: %v", err)
	}

	if !s.Config.Quiet {
		log.Printf("Disconnect %s", conn.RemoteAddr())
	}
	if s.Config.Stats {
		stats.Print(logWriter{})
	}
	return nil
}

// logWriter adapts the standard logger to io.Writer for Stats.Print so
// statistics land in the same stream as Connect/Disconnect lines.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	log.Print(string(p))
	return len(p), nil
}
