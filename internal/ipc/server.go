package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"log/slog"

	"streamfade/internal/daemon"
	"streamfade/internal/logging"
	"streamfade/internal/runs"
	"streamfade/internal/settings"
	"streamfade/internal/state"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdown func()
}

// NewServer configures the IPC server at the given socket path. The shutdown
// callback, when non-nil, is invoked after a Stop request is acknowledged.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, shutdown func(), logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	server := &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpc.NewServer(),
		ctx:       serverCtx,
		cancel:    cancel,
		shutdown:  shutdown,
	}

	srv := &service{server: server, daemon: d, logger: logger, ctx: serverCtx}
	if err := server.rpcServer.RegisterName("Streamfade", srv); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return server, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	server *Server
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	return s.logger.With(logging.String("component", "ipc"))
}

func (s *service) SubmitCrawl(req SubmitCrawlRequest, resp *SubmitCrawlResponse) error {
	if req.TabID <= 0 {
		return fmt.Errorf("invalid tab id %d", req.TabID)
	}
	s.log().Debug("crawl submitted",
		logging.Int64(logging.FieldTab, req.TabID),
		logging.Int("films", len(req.Films)))

	converted := make([]runs.CrawledFilm, 0, len(req.Films))
	for _, entry := range req.Films {
		converted = append(converted, entry.Film())
	}
	if err := s.daemon.SubmitCrawl(s.ctx, req.TabID, converted); err != nil {
		return err
	}
	resp.Accepted = true
	resp.Films = len(converted)
	return nil
}

func (s *service) Commands(req CommandsRequest, resp *CommandsResponse) error {
	if req.TabID <= 0 {
		return fmt.Errorf("invalid tab id %d", req.TabID)
	}
	resp.Commands = s.daemon.Commands(req.TabID)
	return nil
}

func (s *service) RetryNow(req RetryNowRequest, resp *RetryNowResponse) error {
	if req.TabID <= 0 {
		return fmt.Errorf("invalid tab id %d", req.TabID)
	}
	s.daemon.RetryNow(req.TabID)
	resp.Triggered = true
	return nil
}

func (s *service) CloseTab(req CloseTabRequest, resp *CloseTabResponse) error {
	if req.TabID <= 0 {
		return fmt.Errorf("invalid tab id %d", req.TabID)
	}
	if err := s.daemon.CloseTab(s.ctx, req.TabID); err != nil {
		return err
	}
	resp.Closed = true
	return nil
}

func (s *service) GetFilter(_ GetFilterRequest, resp *FilterResponse) error {
	snap, err := s.daemon.Filter(s.ctx)
	if err != nil {
		return err
	}
	resp.CountryCode = snap.CountryCode
	resp.ProviderID = snap.ProviderID
	resp.Enabled = snap.Enabled
	return nil
}

func (s *service) SetFilter(req SetFilterRequest, resp *FilterResponse) error {
	snap, err := s.daemon.SetFilter(s.ctx, settings.Snapshot{
		CountryCode: req.CountryCode,
		ProviderID:  req.ProviderID,
		Enabled:     req.Enabled,
	})
	if err != nil {
		return err
	}
	resp.CountryCode = snap.CountryCode
	resp.ProviderID = snap.ProviderID
	resp.Enabled = snap.Enabled
	return nil
}

func (s *service) Providers(req ProvidersRequest, resp *ProvidersResponse) error {
	providers, err := s.daemon.Providers(s.ctx)
	if err != nil {
		return err
	}
	resp.Providers = make([]ProviderInfo, 0, len(providers))
	for _, provider := range providers {
		if req.Country != "" && !providerServesCountry(provider, req.Country) {
			continue
		}
		resp.Providers = append(resp.Providers, providerInfo(provider))
	}
	return nil
}

func (s *service) FindProvider(req FindProviderRequest, resp *FindProviderResponse) error {
	if req.Name == "" {
		return errors.New("provider name required")
	}
	provider, err := s.daemon.FindProvider(s.ctx, req.Name)
	if err != nil {
		return err
	}
	resp.Provider = providerInfo(provider)
	return nil
}

func (s *service) Regions(_ RegionsRequest, resp *RegionsResponse) error {
	regions, err := s.daemon.Regions(s.ctx)
	if err != nil {
		return err
	}
	resp.Regions = make([]RegionInfo, 0, len(regions))
	for _, region := range regions {
		resp.Regions = append(resp.Regions, RegionInfo{Code: region.Code, Name: region.Name})
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.LockPath = status.LockPath
	resp.StateDBPath = status.StateDBPath
	resp.PID = status.PID
	resp.Tabs = make([]TabInfo, 0, len(status.Tabs))
	for _, tab := range status.Tabs {
		resp.Tabs = append(resp.Tabs, TabInfo{
			TabID:        tab.TabID,
			SessionID:    tab.SessionID,
			Generation:   tab.Generation,
			Total:        tab.Total,
			Resolved:     tab.Resolved,
			Running:      tab.Running,
			Available:    tab.Available,
			PendingRetry: tab.PendingRetry,
		})
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested")
	resp.Stopped = true
	if s.server.shutdown != nil {
		go s.server.shutdown()
	}
	return nil
}

func providerInfo(provider state.Provider) ProviderInfo {
	return ProviderInfo{
		ID:              provider.ID,
		Name:            provider.Name,
		DisplayPriority: provider.DisplayPriority,
		Countries:       provider.Countries,
	}
}

func providerServesCountry(provider state.Provider, country string) bool {
	for _, code := range provider.Countries {
		if code == country {
			return true
		}
	}
	return false
}
