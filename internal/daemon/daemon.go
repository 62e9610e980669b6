// Package daemon wires the host daemon together: the UI socket, the core
// connection, the dispatcher and the host bridge.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lydakis/corehost/internal/closer"
	"github.com/lydakis/corehost/internal/config"
	"github.com/lydakis/corehost/internal/conn"
	"github.com/lydakis/corehost/internal/dispatch"
	"github.com/lydakis/corehost/internal/hostbridge"
	"github.com/lydakis/corehost/internal/ipc"
	"github.com/lydakis/corehost/internal/paths"
	"github.com/lydakis/corehost/internal/pkg/log"
	"github.com/lydakis/corehost/internal/services"
	"github.com/lydakis/corehost/internal/uisink"
)

const shutdownTimeout = 10 * time.Second

var signalShutdownFn = func() {
	p, _ := os.FindProcess(os.Getpid())
	_ = p.Signal(syscall.SIGTERM)
}

// Options tune Run.
type Options struct {
	// ConfigPath overrides the config file location.
	ConfigPath string
	// LogLevel overrides daemon.log_level.
	LogLevel string
}

// Run starts the daemon and blocks until SIGINT, SIGTERM, a shutdown
// request or idle shutdown.
func Run(o Options) error {
	if err := paths.EnsureDir(paths.RuntimeDir()); err != nil {
		return fmt.Errorf("creating runtime dir: %w", err)
	}

	var cfg *config.Config
	var err error
	if o.ConfigPath != "" {
		cfg, err = config.LoadFrom(o.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if verr := config.Validate(cfg); verr != nil {
		return fmt.Errorf("invalid config: %w", verr)
	}

	settings := cfg.DaemonSettings()
	level := settings.LogLevel
	if o.LogLevel != "" {
		level = o.LogLevel
	}
	logger, err := log.New(level)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	nonce, err := publishNonce(paths.StatePath())
	if err != nil {
		return fmt.Errorf("nonce setup: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var cl closer.Closer
	rt := &runtime{log: logger, signalShutdown: signalShutdownFn}
	srv := ipc.NewServer(paths.SocketPath(), nonce, rt.handle, logger)

	connSettings := cfg.Connection()
	mgr := conn.New(conn.Options{Settings: connSettings, Logger: logger})
	set := services.NewSet(services.Options{
		Namespace:      connSettings.Namespace,
		RequestTimeout: connSettings.RequestTimeout,
		Codec:          connSettings.Codec,
		Sink:           srv,
		Logger:         logger,
	})
	rt.dispatcher = dispatch.New(dispatch.Options{
		Settings: connSettings,
		Services: set,
		Conn:     mgr,
		Logger:   logger,
	})
	cl.Add(rt.dispatcher.Close)

	if hb := cfg.HostBridgeSettings(); hb.Enabled {
		rt.bridge = hostbridge.New(hostbridge.Options{Settings: hb, Sink: srv, Logger: logger})
		if err := rt.bridge.Start(); err != nil {
			_ = cl.Close(context.Background())
			return fmt.Errorf("starting host bridge: %w", err)
		}
		cl.AddFunc(rt.bridge.Stop)
		logger.Infof("host bridge listening on %s", rt.bridge.Addr())
	}

	ka := NewKeepalive(settings.IdleShutdown)
	ka.SetOnIdle(func() {
		logger.Infof("no UI session for %s, shutting down", settings.IdleShutdown)
		rt.signalShutdown()
	})
	srv.SetOnSessions(ka.Observe)
	cl.AddFunc(ka.Stop)

	if err := srv.Start(); err != nil {
		_ = cl.Close(context.Background())
		return err
	}
	cl.AddFunc(srv.Stop)
	ka.Observe(srv.Sessions())
	logger.Infof("listening on %s", paths.SocketPath())

	// The core may start after us; EnsureConnected retries on first use.
	go func() {
		if err := mgr.Connect(ctx); err != nil && ctx.Err() == nil {
			logger.Warnf("initial connection to %s failed: %v", connSettings.Endpoint, err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := cl.Close(closeCtx); err != nil {
		logger.Warnf("shutdown: %v", err)
	}
	clearDaemonRuntimeState()
	return nil
}

type runtime struct {
	dispatcher     *dispatch.Dispatcher
	bridge         *hostbridge.Server
	log            log.Logger
	signalShutdown func()
}

// handle routes one socket request. Everything but host replies and
// shutdown goes to the dispatcher.
func (rt *runtime) handle(ctx context.Context, sess *ipc.Session, req *ipc.Request) uisink.Response {
	switch req.Kind() {
	case ipc.TypeShutdown:
		go rt.signalShutdown()
		return uisink.OK(req.RequestID, map[string]any{"shutting_down": true}, false)

	case ipc.TypeHostReply:
		if rt.bridge == nil {
			return uisink.Failed(req.RequestID, fmt.Errorf("host bridge is disabled"))
		}
		if !rt.bridge.Resolve(req.RequestID, req.Message) {
			return uisink.Failed(req.RequestID, fmt.Errorf("no pending host interaction %q", req.RequestID))
		}
		return uisink.OK(req.RequestID, map[string]any{"accepted": true}, false)

	default:
		resp := rt.dispatcher.HandleRequest(ctx, req, sess)
		if req.Streaming && resp.Error == nil {
			if id := subscriptionID(resp.Message); id != "" {
				sess.OnClose(func() {
					if err := rt.dispatcher.Unsubscribe(id); err == nil {
						rt.log.Debugf("session %d closed, cancelled subscription %s", sess.ID, id)
					}
				})
			}
		}
		return resp
	}
}

func subscriptionID(msg any) string {
	m, ok := msg.(map[string]any)
	if !ok {
		return ""
	}
	id, _ := m["subscription_id"].(string)
	return id
}
