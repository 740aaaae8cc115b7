package consoleshell

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/consoleshell/internal/version"
	"pkt.systems/consoleshell/sshserver"
	"pkt.systems/pslog"
)

// Server runs the SSH gateway on top of a Console.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// NewServer constructs the gateway server for console.
func NewServer(console *Console) (Server, error) {
	if console == nil {
		return nil, errors.New("console is required")
	}
	sshSrv, err := console.SSHServer()
	if err != nil {
		return nil, err
	}
	return &gatewayServer{console: console, sshSrv: sshSrv}, nil
}

type gatewayServer struct {
	console *Console
	sshSrv  *sshserver.Server
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	done    chan struct{}
	started bool
}

// Start connects the socket and starts the SSH listener.
func (s *gatewayServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.done = make(chan struct{})
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	serverCtx, errCh, done := s.ctx, s.errCh, s.done
	s.mu.Unlock()

	log := s.logger
	cfg := s.console.Config()
	log.Info("server start", "version", version.Current(), "ssh_addr", cfg.SSH.Addr, "socket", cfg.Socket.URL)
	if err := s.console.Connect(serverCtx); err != nil {
		log.Warn("server socket connect failed", "err", err)
		s.mu.Lock()
		s.cancel()
		s.started = false
		s.done = nil
		s.mu.Unlock()
		return err
	}
	go func() {
		defer close(done)
		if err := s.sshSrv.ListenAndServe(serverCtx); err != nil {
			log.Error("ssh server failed", "err", err)
			errCh <- err
		}
	}()
	return nil
}

func (s *gatewayServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

// Stop cancels the server and waits for the SSH listener to exit.
func (s *gatewayServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	done := s.done
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if err := s.console.Close(); err != nil {
		log.Warn("server socket close failed", "err", err)
	}
	if done == nil {
		log.Info("server stop completed")
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("server stopped")
		return nil
	}
}
