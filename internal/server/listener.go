// Package server implements the TCP connection server: binding (including
// the "auto" 127.88.x.y host-probing convention), accepting sockets with
// TCP_NODELAY enabled, and running the reader/worker/writer pipeline per
// connection that dispatches RPC calls into the portmap, mount, and NFS
// v3 programs.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xetdata/nfsserve/internal/logger"
	"github.com/xetdata/nfsserve/internal/metrics"
	"github.com/xetdata/nfsserve/internal/rpc"
	"github.com/xetdata/nfsserve/internal/vfs"
)

// maxAutoHostAttempts bounds the "auto" host token's 127.88.x.y probing.
const maxAutoHostAttempts = 32

// generateHostIP derives the probe address for attempt n (1-based):
// 127.88.{high byte of n}.{low byte of n}.
func generateHostIP(n uint16) string {
	return fmt.Sprintf("127.88.%d.%d", (n>>8)&0xFF, n&0xFF)
}

// Server is the top-level NFS connection server: one TCP listener, one
// shared back-end, and the bookkeeping needed for graceful shutdown.
type Server struct {
	config      Config
	fs          vfs.FileSystem
	mount       chan<- rpc.MountEvent
	mountEvents chan rpc.MountEvent
	metrics     metrics.Recorder

	listenerMu sync.RWMutex
	listener   net.Listener
	port       uint16

	shutdownOnce   sync.Once
	shutdown       chan struct{}
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	connSemaphore chan struct{}
	activeConns   sync.WaitGroup
	connCount     atomic.Int32
	conns         sync.Map // remote addr string -> net.Conn
}

// New constructs a Server bound to the given back-end. mountSink, if
// non-nil, receives a MountEvent on every successful MNT/UMNT/UMNTALL;
// it is optional and never blocks the connection that triggers it.
// recorder may be nil to run with no metrics collection.
func New(cfg Config, fs vfs.FileSystem, mountSink chan<- rpc.MountEvent, recorder metrics.Recorder) *Server {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("invalid server config: %v", err))
	}

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:         cfg,
		fs:             fs,
		mount:          mountSink,
		mountEvents:    make(chan rpc.MountEvent, 16),
		metrics:        recorder,
		shutdown:       make(chan struct{}),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
		connSemaphore:  sem,
	}
}

// runMountEvents records every MNT/UMNT/UMNTALL in metrics and relays it
// to the caller-supplied mount sink, if any, without ever blocking a
// connection's worker on a slow or absent external consumer.
func (s *Server) runMountEvents() {
	for ev := range s.mountEvents {
		if s.metrics != nil {
			s.metrics.RecordMount(bool(ev))
		}
		if s.mount != nil {
			select {
			case s.mount <- ev:
			default:
			}
		}
	}
}

// Port returns the bound listening port, valid after Serve has opened
// the listener.
func (s *Server) Port() uint16 {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	return s.port
}

// bind opens the configured host:port, resolving the "auto" token to a
// 127.88.x.y probe sequence of up to maxAutoHostAttempts attempts.
func bind(host string, port int) (net.Listener, error) {
	if host != "auto" {
		return net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	}

	var lastErr error
	for n := uint16(1); n <= maxAutoHostAttempts; n++ {
		addr := generateHostIP(n)
		l, err := net.Listen("tcp", net.JoinHostPort(addr, fmt.Sprint(port)))
		if err == nil {
			return l, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("auto host: no bindable 127.88.x.y address found after %d attempts: %w", maxAutoHostAttempts, lastErr)
}

// Serve opens the listener and accepts connections until ctx is
// cancelled or Stop is called. It blocks until shutdown completes.
func (s *Server) Serve(ctx context.Context) error {
	listener, err := bind(s.config.Host, s.config.Port)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	s.listenerMu.Lock()
	s.listener = listener
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port = uint16(tcpAddr.Port)
	}
	s.listenerMu.Unlock()

	logger.Info("nfs server listening", "addr", listener.Addr().String())

	go s.runMountEvents()

	go func() {
		<-ctx.Done()
		s.initiateShutdown()
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		conn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Warn("accept error", logger.Err(err))
				continue
			}
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)
		addr := conn.RemoteAddr().String()
		s.conns.Store(addr, conn)
		logger.Debug("connection accepted", logger.ClientAddr(addr))
		if s.metrics != nil {
			s.metrics.RecordConnectionAccepted()
			s.metrics.SetActiveConnections(s.connCount.Load())
		}

		c := newConnection(s, conn)
		go func() {
			defer func() {
				s.conns.Delete(addr)
				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}
				if s.metrics != nil {
					s.metrics.RecordConnectionClosed()
					s.metrics.SetActiveConnections(s.connCount.Load())
				}
				logger.Debug("connection closed", logger.ClientAddr(addr))
			}()
			c.serve(s.shutdownCtx)
		}()
	}
}

func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.listenerMu.Lock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		s.conns.Range(func(_, v any) bool {
			if c, ok := v.(net.Conn); ok {
				_ = c.SetReadDeadline(deadline)
			}
			return true
		})

		s.cancelRequests()
	})
}

func (s *Server) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	defer close(s.mountEvents)

	select {
	case <-done:
		logger.Info("server shutdown complete")
		return nil
	case <-time.After(s.config.Timeouts.Shutdown):
		remaining := s.connCount.Load()
		logger.Warn("shutdown timeout exceeded, forcing connection closure", "remaining", remaining)
		s.conns.Range(func(_, v any) bool {
			if c, ok := v.(net.Conn); ok {
				_ = c.Close()
				if s.metrics != nil {
					s.metrics.RecordConnectionForceClosed()
				}
			}
			return true
		})
		return fmt.Errorf("server: shutdown timeout: %d connections force-closed", remaining)
	}
}

// Stop initiates graceful shutdown and blocks until Serve returns or ctx
// is cancelled.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("server metrics", "active_connections", s.connCount.Load())
		}
	}
}
