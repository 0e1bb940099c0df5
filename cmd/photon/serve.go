package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/photon-run/photon/internal/analyzer"
	"github.com/photon-run/photon/internal/broker"
	"github.com/photon-run/photon/internal/broker/stream"
	"github.com/photon-run/photon/internal/config"
	"github.com/photon-run/photon/internal/invocation"
	"github.com/photon-run/photon/internal/loader"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/photonerr"
	"github.com/photon-run/photon/internal/protocol"
	"github.com/photon-run/photon/internal/session"
	"github.com/photon-run/photon/internal/telemetry"
	"github.com/photon-run/photon/internal/transport"
	"github.com/photon-run/photon/internal/watcher"
)

var (
	transportFlag string
	addrFlag      string
	redisAddrFlag string
	noWatchFlag   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Run a photon source file as an MCP server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&transportFlag, "transport", "stdio", "transport: stdio, ipc, or http")
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "listen address for ipc (socket path) or http (host:port)")
	serveCmd.Flags().StringVar(&redisAddrFlag, "redis-addr", "", "Redis address for cross-process channel fan-out; unset runs single-process")
	serveCmd.Flags().BoolVar(&noWatchFlag, "no-watch", false, "disable live reload on source file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := newContext()
	sourcePath := args[0]

	bundle := telemetry.NewClueBundle()
	logger := bundle.Log

	store, err := config.New(dataDirFlag)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	skeleton, err := analyzer.Analyze(string(source))
	if err != nil {
		return err
	}

	saved, err := store.PhotonConfig(ctx, skeleton.Name)
	if err != nil {
		return fmt.Errorf("load saved configuration: %w", err)
	}
	// A missing required setting must not keep the photon off the catalog:
	// spec section 6 asks for the photon to still load and list, with the
	// NotConfigured failure deferred to each tools/call until configured.
	// Backfill returns the partial record alongside the error, so loading
	// continues with whatever it could resolve.
	configRecord, configErr := store.Backfill(skeleton.Name, skeleton.ConfigSchema, saved)
	if configErr != nil && photonerr.KindOf(configErr) != photonerr.NotConfigured {
		return configErr
	}

	ld, err := loader.New(dataDirFlag, logger)
	if err != nil {
		return fmt.Errorf("open loader: %w", err)
	}
	result, err := ld.LoadSource(ctx, sourcePath, source, configRecord)
	if err != nil {
		return err
	}
	inst := photon.NewWithConfigError(result, configErr)
	holder := photon.NewHolder(inst)
	if configErr != nil {
		logger.Warn(ctx, "photon loaded without required configuration", "name", inst.Name(), "error", configErr.Error())
	} else {
		logger.Info(ctx, "photon loaded", "name", inst.Name())
	}

	engine := invocation.New(logger)
	sessMgr := session.NewManager()

	br, err := newBroker(ctx, logger)
	if err != nil {
		return err
	}

	registry := newServerRegistry()
	newServer := func(notify protocol.Notifier) transport.Dispatcher {
		sess := sessMgr.Open()
		srv := protocol.NewServer(holder, engine, sess, br, notify, logger)
		registry.add(srv)
		return srv
	}

	runAutorun(ctx, engine, holder, br, logger)

	if !noWatchFlag {
		go runWatcher(ctx, sourcePath, configRecord, ld, holder, registry, logger)
	}

	switch transportFlag {
	case "stdio":
		return serveStdio(ctx, newServer, logger)
	case "ipc":
		return serveIPC(ctx, newServer, logger)
	case "http":
		return serveHTTP(ctx, newServer, logger)
	default:
		return fmt.Errorf("unknown transport %q: want stdio, ipc, or http", transportFlag)
	}
}

// newBroker builds the Channel Broker, wiring a Redis-backed cross-process
// Backend when --redis-addr is set. The Backend's deliver callback needs
// the Broker to fan incoming messages out locally, and the Broker needs
// the Backend to forward local publishes, so br is declared before the
// Backend is constructed and assigned once both exist.
func newBroker(ctx context.Context, logger telemetry.Logger) (*broker.Broker, error) {
	if redisAddrFlag == "" {
		return broker.New(nil), nil
	}
	var br *broker.Broker
	client := redis.NewClient(&redis.Options{Addr: redisAddrFlag})
	backend, err := stream.New(ctx, stream.Options{Redis: client, Log: logger}, func(msg broker.Message) {
		br.Deliver(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("connect channel stream backend: %w", err)
	}
	br = broker.New(backend)
	return br, nil
}

func runAutorun(ctx context.Context, engine *invocation.Engine, holder *photon.Holder, br *broker.Broker, logger telemetry.Logger) {
	inst := holder.Get()
	surface := autorunSurface{broker: br, log: logger}
	for _, tool := range inst.AutorunTools() {
		req := invocation.Request{InvocationID: uuid.NewString(), ToolName: tool.Name, Arguments: map[string]any{}, Surface: surface}
		if _, err := engine.InvokeTool(ctx, inst, inst.Loaded, req); err != nil {
			logger.Warn(ctx, "autorun tool failed", "tool", tool.Name, "error", err.Error())
		}
	}
}

// autorunSurface backs the invocation side channel for tools run before any
// client has connected. There is no session to log to or elicit through,
// but the Channel Broker already exists, so publishes still reach any
// client that connects and subscribes afterward.
type autorunSurface struct {
	broker *broker.Broker
	log    telemetry.Logger
}

func (s autorunSurface) Progress(context.Context, invocation.Progress) {}

func (s autorunSurface) Log(ctx context.Context, level invocation.LogLevel, message string) {
	s.log.Info(ctx, "autorun log", "level", string(level), "message", message)
}

func (s autorunSurface) Elicit(context.Context, invocation.ElicitRequest) (invocation.ElicitResponse, error) {
	return invocation.ElicitResponse{}, photonerr.New(photonerr.ElicitationNotSupported, "autorun invocations have no connected client to elicit from")
}

func (s autorunSurface) Publish(ctx context.Context, channel, event string, payload any) {
	if s.broker == nil {
		return
	}
	_ = s.broker.Publish(ctx, broker.Message{Channel: broker.ChannelForEvent(channel, event), Payload: payload})
}

// serverRegistry tracks every live protocol.Server (one per connected
// session) so the file watcher can broadcast a reload outcome to all of
// them, per spec section 4.I's notify step.
type serverRegistry struct {
	mu      sync.Mutex
	servers map[*protocol.Server]struct{}
}

func newServerRegistry() *serverRegistry {
	return &serverRegistry{servers: map[*protocol.Server]struct{}{}}
}

func (r *serverRegistry) add(s *protocol.Server) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s] = struct{}{}
}

func (r *serverRegistry) each(fn func(*protocol.Server)) {
	r.mu.Lock()
	servers := make([]*protocol.Server, 0, len(r.servers))
	for s := range r.servers {
		servers = append(servers, s)
	}
	r.mu.Unlock()
	for _, s := range servers {
		fn(s)
	}
}

func runWatcher(ctx context.Context, sourcePath string, configRecord map[string]any, ld *loader.Loader, holder *photon.Holder, registry *serverRegistry, logger telemetry.Logger) {
	w := watcher.New(sourcePath, configRecord, ld, holder, logger)
	w.OnReload = func(outcome watcher.Outcome) {
		if outcome.Success {
			logger.Info(ctx, "photon reloaded", "source", sourcePath)
			registry.each(func(s *protocol.Server) { s.NotifyToolsListChanged() })
			registry.each(func(s *protocol.Server) { s.NotifyPhotonStateChanged("reloaded", "") })
		} else {
			logger.Warn(ctx, "photon reload failed, previous instance remains active", "source", sourcePath, "error", outcome.Err.Error())
			registry.each(func(s *protocol.Server) { s.NotifyPhotonStateChanged("reload_failed", outcome.Err.Error()) })
		}
	}
	if err := w.Run(ctx); err != nil {
		logger.Warn(ctx, "file watcher stopped", "error", err.Error())
	}
}

func serveStdio(ctx context.Context, newServer func(protocol.Notifier) transport.Dispatcher, logger telemetry.Logger) error {
	var t *transport.Stdio
	t = transport.NewStdio(os.Stdin, os.Stdout, nil, logger)
	t.Server = newServer(t.Notify)
	return t.Serve(ctx)
}

func serveIPC(ctx context.Context, newServer func(protocol.Notifier) transport.Dispatcher, logger telemetry.Logger) error {
	path := addrFlag
	if path == "" {
		path = dataDirFlag + "/photon.sock"
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", path, err)
	}
	defer ln.Close()
	logger.Info(ctx, "serving over ipc", "path", path)
	return transport.ListenAndServe(ctx, ln, newServer, logger)
}

func serveHTTP(ctx context.Context, newServer func(protocol.Notifier) transport.Dispatcher, logger telemetry.Logger) error {
	addr := addrFlag
	if addr == "" {
		addr = "127.0.0.1:8585"
	}
	h := transport.NewHTTP(newServer, logger)
	server := &http.Server{Addr: addr, Handler: h}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	logger.Info(ctx, "serving over http", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
