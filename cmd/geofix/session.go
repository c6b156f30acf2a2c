package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/cache"
	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/events"
	"github.com/shaunagostinho/geofix/internal/fused"
	"github.com/shaunagostinho/geofix/internal/geoip"
	"github.com/shaunagostinho/geofix/internal/gps"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/locator"
	"github.com/shaunagostinho/geofix/internal/logger"
	"github.com/shaunagostinho/geofix/internal/looper"
	"github.com/shaunagostinho/geofix/internal/permission"
	"github.com/shaunagostinho/geofix/internal/platform"
	"github.com/shaunagostinho/geofix/internal/provider"
	"github.com/shaunagostinho/geofix/internal/server"
	"github.com/shaunagostinho/geofix/internal/terminal"
	"github.com/shaunagostinho/geofix/web"
)

var errSessionFailed = errors.New("session failed")

type sessionOptions struct {
	serve bool
}

// outcome ends a session: the first location of a one-shot session, or a
// failure.
type outcome struct {
	fix    *location.Sample
	reason string
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func runSession(parent context.Context, cfg *config.File, opts sessionOptions) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()
	log.Info("geofix starting", zap.String("version", Version), zap.String("config", cfg.Path()))

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	loop := looper.New(log.Named("loop"))
	term := terminal.New(loop, os.Stdin, os.Stderr, log.Named("terminal"))
	if !cfg.Session.Interactive {
		// Nobody is there to ask.
		term.Grant(permission.LocationPermissions...)
	}

	store, err := newStore(ctx, cfg.Cache, log)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	sources := platform.New(loop, platform.Config{
		Receiver:        newReceiver(cfg.GPS, log),
		Network:         newNetwork(cfg.Network, log),
		Store:           store,
		NetworkInterval: ms(cfg.Network.PollMs),
	}, log.Named("platform"))
	sources.Start(ctx)
	defer sources.Close()

	loc, err := cfg.Location(term, term, log)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var (
		client provider.FusedClient
		avail  provider.Availability
	)
	if loc.Fused != nil {
		if cfg.Fused.APIKey == "" {
			log.Info("no maps api key, using raw sources only")
			loc = loc.WithoutFused()
		} else {
			g, err := fused.NewGoogle(cfg.Fused.APIKey, loop, fused.Config{Store: store, Renderer: term}, log.Named("fused"))
			if err != nil {
				return err
			}
			term.OnAccept(host.ActionSettingsResolution, g.AcceptResolution)
			term.OnAccept(host.ActionFusedAvailability, g.Reset)
			client, avail = g, g
		}
	}

	done := make(chan outcome, 1)
	finish := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}
	out := os.Stdout
	sinks := []events.Sink{
		logger.NewEventLog(log),
		events.SinkFunc(func(e events.Event) {
			switch e.Type {
			case events.TypeLocation:
				printFix(out, e.Location)
				if !loc.KeepTracking {
					finish(outcome{fix: e.Location})
				}
			case events.TypeFailed:
				finish(outcome{reason: e.Reason})
			}
		}),
	}

	if cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, log.Named("nats"))
		if err != nil {
			log.Warn("nats unavailable, events stay local", zap.Error(err))
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	var mgr *locator.Manager
	var srv *server.Server
	if opts.serve {
		status := server.StatusFunc(func(ctx context.Context) (server.Status, error) {
			var st server.Status
			err := loop.Call(ctx, func() {
				st.Waiting = mgr.IsWaitingForLocation()
				st.DialogShowing = mgr.IsAnyDialogShowing()
				st.Provider = providerName(mgr.ActiveProvider())
			})
			return st, err
		})
		srv = server.New(cfg, status, web.FS, log.Named("server"))
		sinks = append(sinks, srv)
	}

	mgr, err = locator.New(loc, host.ForActivity(term), events.NewListener(sinks...),
		locator.WithLogger(log.Named("locator")),
		locator.WithScheduler(loop),
		locator.WithSatellitePlatform(sources),
		locator.WithFusedClient(client),
		locator.WithAvailability(avail),
	)
	if err != nil {
		return err
	}
	term.Attach(mgr)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()
	loop.Post(mgr.Get)

	serveErr := make(chan error, 1)
	if srv != nil {
		go func() { serveErr <- srv.Run(ctx) }()
	}

	var deadline <-chan time.Time
	if cfg.Session.TimeoutMs > 0 && !loc.KeepTracking {
		deadline = time.After(ms(cfg.Session.TimeoutMs))
	}

	var result error
	select {
	case o := <-done:
		if o.fix == nil {
			result = fmt.Errorf("%w: %s", errSessionFailed, o.reason)
		}
	case <-deadline:
		result = fmt.Errorf("%w: %s", errSessionFailed, location.FailTimeout)
	case err := <-serveErr:
		result = err
	case <-ctx.Done():
	}

	stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	if err := loop.Call(stopCtx, func() {
		mgr.Cancel()
		mgr.OnDestroy()
	}); err != nil {
		log.Debug("loop already stopped", zap.Error(err))
	}
	cancel()
	<-loopDone
	return result
}

func newStore(ctx context.Context, cfg config.CacheConfig, log *zap.Logger) (cache.Store, error) {
	ttl := ms(cfg.TTLMs)
	switch cfg.Type {
	case "disabled":
		return nil, nil
	case "redis":
		store, err := cache.ConnectRedis(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		log.Info("using redis cache")
		return store, nil
	default:
		return cache.NewMemory(ttl), nil
	}
}

func newReceiver(cfg config.GPSConfig, log *zap.Logger) gps.Receiver {
	switch cfg.Type {
	case "nmea":
		return gps.NewNMEA(gps.NMEAConfig{
			PortPath: cfg.PortPath,
			BaudRate: cfg.BaudRate,
		}, log.Named("gps"))
	case "disabled":
		return nil
	default:
		return gps.NewDemo(cfg.DemoLat, cfg.DemoLon)
	}
}

func newNetwork(cfg config.NetworkConfig, log *zap.Logger) platform.NetworkLocator {
	if cfg.Type == "disabled" {
		return nil
	}
	return geoip.New(geoip.Config{
		Endpoint: cfg.Endpoint,
		Timeout:  ms(cfg.TimeoutMs),
		Accuracy: cfg.AccuracyM,
	}, log.Named("geoip"))
}

// providerName names what is running right now.
func providerName(p provider.Provider) string {
	if d, ok := p.(*provider.Dispatcher); ok {
		p = d.ActiveProvider()
	}
	switch p := p.(type) {
	case nil:
		return ""
	case *provider.FusedProvider:
		return "fused"
	case *provider.SatelliteProvider:
		if src := p.Source(); src != "" {
			return string(src)
		}
		return "satellite"
	default:
		return "custom"
	}
}

func printFix(w io.Writer, s *location.Sample) {
	if s == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "%s\n", data)
}
