// Package fused implements the vendor fused-location service on top of the
// Google Geolocation API.
//
// Every exported method must be called on the loop; the HTTP calls run on
// their own goroutines and post their results back.
package fused

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"github.com/shaunagostinho/geofix/internal/cache"
	"github.com/shaunagostinho/geofix/internal/config"
	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/host"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/provider"
	"github.com/shaunagostinho/geofix/internal/task"
)

var (
	ErrNoClient     = errors.New("fused: no geolocation client")
	ErrNoResolution = errors.New("fused: nothing to resolve")
)

const defaultPollInterval = 10 * time.Second

// Geolocator is the part of *maps.Client the service uses.
type Geolocator interface {
	Geolocate(ctx context.Context, r *maps.GeolocationRequest) (*maps.GeolocationResult, error)
}

// Loop is where callbacks are delivered.
type Loop interface {
	task.Scheduler
	Post(fn func()) bool
}

type Config struct {
	// ConsiderIP lets the API fall back to the request's IP address.
	ConsiderIP bool
	Timeout    time.Duration
	// Store keeps the last fix across runs. Optional.
	Store cache.Store
	// Renderer draws the availability error dialog. Optional.
	Renderer dialog.Renderer
}

// Google implements provider.FusedClient and provider.Availability.
type Google struct {
	geo      Geolocator
	loop     Loop
	store    cache.Store
	renderer dialog.Renderer
	timeout  time.Duration
	logger   *zap.Logger
	spawn    func(func())

	considerIP bool
	invalid    bool
	last       *location.Sample
	pending    func()

	gen        uint64
	cancelPoll func()
}

var (
	_ provider.FusedClient  = (*Google)(nil)
	_ provider.Availability = (*Google)(nil)
)

// NewGoogle builds a client for apiKey.
func NewGoogle(apiKey string, loop Loop, cfg Config, logger *zap.Logger) (*Google, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return New(client, loop, cfg, logger), nil
}

// New wraps geo. A nil geo reports the service as missing.
func New(geo Geolocator, loop Loop, cfg Config, logger *zap.Logger) *Google {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Google{
		geo:        geo,
		loop:       loop,
		store:      cfg.Store,
		renderer:   cfg.Renderer,
		timeout:    cfg.Timeout,
		logger:     logger,
		spawn:      func(fn func()) { go fn() },
		considerIP: cfg.ConsiderIP,
	}
}

// locate runs one geolocation request off the loop and hands the outcome
// back on it.
func (g *Google) locate(done func(location.Sample, error)) {
	if g.geo == nil {
		g.loop.Post(func() { done(location.Sample{}, ErrNoClient) })
		return
	}
	req := &maps.GeolocationRequest{ConsiderIP: g.considerIP}
	g.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		res, err := g.geo.Geolocate(ctx, req)
		var s location.Sample
		if err == nil {
			s = location.Sample{
				Latitude:  res.Location.Lat,
				Longitude: res.Location.Lng,
				Accuracy:  res.Accuracy,
				Time:      g.loop.Now(),
				Source:    location.SourceFused,
			}
		}
		g.loop.Post(func() { done(s, err) })
	})
}

func (g *Google) remember(s location.Sample) {
	g.last = &s
	if g.store == nil {
		return
	}
	g.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		if err := g.store.Put(ctx, s); err != nil {
			g.logger.Warn("could not cache fused fix", zap.Error(err))
		}
	})
}

func (g *Google) LastLocation(cb func(*location.Sample, error)) {
	if g.last != nil {
		s := *g.last
		g.loop.Post(func() { cb(&s, nil) })
		return
	}
	if g.store == nil {
		g.loop.Post(func() { cb(nil, nil) })
		return
	}
	g.spawn(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		s, err := g.store.Get(ctx, location.SourceFused)
		g.loop.Post(func() { cb(s, err) })
	})
}

func (g *Google) CheckSettings(_ config.Request, cb func(error)) {
	if g.invalid {
		g.loop.Post(func() { cb(&provider.SettingsError{Status: provider.SettingsChangeUnavailable}) })
		return
	}
	g.locate(func(s location.Sample, err error) {
		if err == nil {
			g.remember(s)
			cb(nil)
			return
		}
		g.logger.Info("fused settings check failed", zap.Error(err))
		cb(g.classify(err))
	})
}

// classify turns a Geolocation API failure into a settings outcome.
func (g *Google) classify(err error) error {
	if errors.Is(err, ErrNoClient) {
		return &provider.SettingsError{Status: provider.SettingsChangeUnavailable}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &provider.SettingsError{Status: provider.SettingsTimeout}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "keyInvalid"), strings.Contains(msg, "accessNotConfigured"):
		g.invalid = true
		return &provider.SettingsError{Status: provider.SettingsChangeUnavailable}
	case strings.Contains(msg, "notFound") && !g.considerIP:
		return &provider.SettingsError{
			Status:     provider.SettingsResolutionRequired,
			Resolution: func() { g.considerIP = true },
		}
	case strings.Contains(msg, "notFound"):
		return &provider.SettingsError{Status: provider.SettingsChangeUnavailable}
	case strings.Contains(msg, "LimitExceeded"):
		return &provider.SettingsError{Status: provider.SettingsInternalError}
	default:
		return &provider.SettingsError{Status: provider.SettingsNetworkError}
	}
}

// StartResolution asks the host to confirm the fix. The fix is applied by
// AcceptResolution once the host's answer is yes.
func (g *Google) StartResolution(a host.Activity, serr *provider.SettingsError, code host.RequestCode) error {
	apply, ok := serr.Resolution.(func())
	if !ok || a == nil {
		return ErrNoResolution
	}
	if err := a.StartForResult(host.ActionSettingsResolution, code); err != nil {
		return err
	}
	g.pending = apply
	return nil
}

// AcceptResolution applies the fix started by the last StartResolution.
func (g *Google) AcceptResolution() {
	if g.pending != nil {
		g.pending()
		g.pending = nil
	}
}

func (g *Google) RequestUpdates(req config.Request, cb func([]location.Sample)) error {
	if g.geo == nil {
		return ErrNoClient
	}
	g.RemoveUpdates()
	g.gen++
	gen := g.gen

	interval := req.Interval
	if interval < req.FastestInterval {
		interval = req.FastestInterval
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}

	var poll func()
	poll = func() {
		g.cancelPoll = nil
		g.locate(func(s location.Sample, err error) {
			if gen != g.gen {
				return
			}
			if err != nil {
				g.logger.Debug("fused poll failed", zap.Error(err))
			} else {
				g.remember(s)
				cb([]location.Sample{s})
			}
			if gen == g.gen {
				g.cancelPoll = g.loop.PostDelayed(poll, interval)
			}
		})
	}
	poll()
	return nil
}

func (g *Google) RemoveUpdates() {
	g.gen++
	if g.cancelPoll != nil {
		g.cancelPoll()
		g.cancelPoll = nil
	}
}
