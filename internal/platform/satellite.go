// Package platform provides the raw positioning layer the satellite
// provider reads: a GPS receiver and the IP-based network locator, pumped
// on background goroutines and delivered on the loop.
package platform

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shaunagostinho/geofix/internal/cache"
	"github.com/shaunagostinho/geofix/internal/gps"
	"github.com/shaunagostinho/geofix/internal/location"
	"github.com/shaunagostinho/geofix/internal/provider"
)

var ErrSourceDisabled = errors.New("platform: source disabled")

// maxReadFailures consecutive receiver errors take GPS down.
const maxReadFailures = 5

// Loop is where updates are delivered.
type Loop interface {
	Post(fn func()) bool
	Now() time.Time
}

// NetworkLocator resolves a coarse position, e.g. *geoip.Client.
type NetworkLocator interface {
	Lookup(ctx context.Context) (location.Sample, error)
}

type Config struct {
	Receiver gps.Receiver   // nil disables GPS
	Network  NetworkLocator // nil disables the network source
	Store    cache.Store    // keeps the last network fix across runs, optional

	GPSInterval     time.Duration
	NetworkInterval time.Duration
}

type registration struct {
	l           provider.UpdateListener
	minTime     time.Duration
	minDistance float64
	last        *location.Sample
}

// accepts applies the registration's time and distance thresholds.
func (r *registration) accepts(s location.Sample) bool {
	if r.last == nil {
		return true
	}
	return s.Time.Sub(r.last.Time) >= r.minTime && r.last.DistanceTo(s) >= r.minDistance
}

// Satellite implements provider.SatellitePlatform. Every method except
// Start and Close must be called on the loop.
type Satellite struct {
	loop            Loop
	receiver        gps.Receiver
	network         NetworkLocator
	store           cache.Store
	logger          *zap.Logger
	gpsInterval     time.Duration
	networkInterval time.Duration
	retryBase       time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	gpsUp     bool
	gpsStatus int
	last      map[location.Source]*location.Sample
	regs      map[location.Source][]*registration
	pumps     map[location.Source]context.CancelFunc
}

var _ provider.SatellitePlatform = (*Satellite)(nil)

func New(loop Loop, cfg Config, logger *zap.Logger) *Satellite {
	if cfg.GPSInterval <= 0 {
		cfg.GPSInterval = 100 * time.Millisecond // 10 Hz
	}
	if cfg.NetworkInterval <= 0 {
		cfg.NetworkInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Satellite{
		loop:            loop,
		receiver:        cfg.Receiver,
		network:         cfg.Network,
		store:           cfg.Store,
		logger:          logger,
		gpsInterval:     cfg.GPSInterval,
		networkInterval: cfg.NetworkInterval,
		retryBase:       time.Second,
		ctx:             ctx,
		cancel:          cancel,
		gpsStatus:       gps.StatusOutOfService,
		last:            make(map[location.Source]*location.Sample),
		regs:            make(map[location.Source][]*registration),
		pumps:           make(map[location.Source]context.CancelFunc),
	}
}

// Start connects the receiver in the background and loads the cached
// network fix. Sources come up on the loop as they become ready.
func (p *Satellite) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			p.cancel()
		case <-p.ctx.Done():
		}
	}()

	if p.receiver != nil {
		go p.connect()
	}

	if p.store != nil {
		go func() {
			loadCtx, cancel := context.WithTimeout(p.ctx, 3*time.Second)
			defer cancel()
			s, err := p.store.Get(loadCtx, location.SourceNetwork)
			if err != nil {
				p.logger.Warn("could not load cached network fix", zap.Error(err))
				return
			}
			if s != nil {
				p.loop.Post(func() {
					if p.last[location.SourceNetwork] == nil {
						p.last[location.SourceNetwork] = s
					}
				})
			}
		}()
	}
}

// Close stops every pump and the receiver.
func (p *Satellite) Close() error {
	p.cancel()
	if p.receiver == nil {
		return nil
	}
	p.loop.Post(p.gpsLost)
	return p.receiver.Close()
}

func (p *Satellite) connect() {
	if connectWithRetry(p.ctx, p.logger, p.receiver, 10, p.retryBase) {
		p.loop.Post(p.gpsConnected)
	}
}

func (p *Satellite) gpsConnected() {
	if p.ctx.Err() != nil {
		return
	}
	p.gpsUp = true
	if len(p.regs[location.SourceGPS]) > 0 {
		p.startPump(location.SourceGPS)
	}
	for _, r := range p.all() {
		r.l.OnProviderEnabled(location.SourceGPS)
	}
}

// gpsLost takes GPS down. Registrations stay and resume when the receiver
// reconnects, unless the platform is closing.
func (p *Satellite) gpsLost() {
	if !p.gpsUp {
		return
	}
	p.gpsUp = false
	p.gpsStatus = gps.StatusOutOfService
	if cancel, ok := p.pumps[location.SourceGPS]; ok {
		cancel()
		delete(p.pumps, location.SourceGPS)
	}
	for _, r := range p.all() {
		r.l.OnProviderDisabled(location.SourceGPS)
	}
	if p.ctx.Err() != nil {
		return
	}
	go func() {
		p.receiver.Close()
		p.connect()
	}()
}

func (p *Satellite) IsEnabled(src location.Source) bool {
	switch src {
	case location.SourceGPS:
		return p.receiver != nil && p.gpsUp
	case location.SourceNetwork:
		return p.network != nil
	default:
		return false
	}
}

func (p *Satellite) LastKnown(src location.Source) *location.Sample {
	s := p.last[src]
	if s == nil {
		return nil
	}
	out := *s
	return &out
}

func (p *Satellite) RequestUpdates(src location.Source, minTime time.Duration, minDistance float64, l provider.UpdateListener) error {
	if !p.IsEnabled(src) {
		return ErrSourceDisabled
	}
	p.regs[src] = append(p.regs[src], &registration{l: l, minTime: minTime, minDistance: minDistance})
	p.startPump(src)
	return nil
}

func (p *Satellite) startPump(src location.Source) {
	if _, running := p.pumps[src]; running {
		return
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.pumps[src] = cancel
	switch src {
	case location.SourceGPS:
		go p.pumpGPS(ctx)
	case location.SourceNetwork:
		go p.pumpNetwork(ctx)
	}
	p.logger.Debug("source started", zap.String("source", string(src)))
}

func (p *Satellite) RemoveUpdates(l provider.UpdateListener) {
	for src, regs := range p.regs {
		kept := regs[:0]
		for _, r := range regs {
			if r.l != l {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			p.regs[src] = kept
			continue
		}
		delete(p.regs, src)
		if cancel, ok := p.pumps[src]; ok {
			cancel()
			delete(p.pumps, src)
			p.logger.Debug("source stopped", zap.String("source", string(src)))
		}
	}
}

// snapshot copies the registrations of src so listeners may unregister
// while being notified.
func (p *Satellite) snapshot(src location.Source) []*registration {
	return append([]*registration(nil), p.regs[src]...)
}

func (p *Satellite) all() []*registration {
	var out []*registration
	for _, regs := range p.regs {
		out = append(out, regs...)
	}
	return out
}

func (p *Satellite) pumpGPS(ctx context.Context) {
	t := time.NewTicker(p.gpsInterval)
	defer t.Stop()
	failures := 0
	for {
		data, err := p.receiver.Read()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			failures++
			p.logger.Debug("gps read failed", zap.Int("failures", failures), zap.Error(err))
			if failures >= maxReadFailures {
				p.logger.Warn("gps receiver stopped answering", zap.Error(err))
				p.loop.Post(p.gpsLost)
				return
			}
		case data != nil:
			failures = 0
			d := *data
			p.loop.Post(func() { p.onGPS(d) })
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (p *Satellite) onGPS(d gps.Data) {
	if status := d.Status(); status != p.gpsStatus {
		p.gpsStatus = status
		extras := map[string]string{"satellites": strconv.Itoa(d.Satellites)}
		for _, r := range p.snapshot(location.SourceGPS) {
			r.l.OnStatusChanged(location.SourceGPS, status, extras)
		}
	}
	if s, ok := d.Sample(p.loop.Now()); ok {
		p.deliver(s)
	}
}

func (p *Satellite) pumpNetwork(ctx context.Context) {
	t := time.NewTicker(p.networkInterval)
	defer t.Stop()
	for {
		s, err := p.network.Lookup(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			p.logger.Info("network lookup failed", zap.Error(err))
		default:
			p.loop.Post(func() { p.deliver(s) })
			p.persist(ctx, s)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (p *Satellite) persist(ctx context.Context, s location.Sample) {
	if p.store == nil {
		return
	}
	if err := p.store.Put(ctx, s); err != nil {
		p.logger.Warn("could not cache network fix", zap.Error(err))
	}
}

func (p *Satellite) deliver(s location.Sample) {
	p.last[s.Source] = &s
	for _, r := range p.snapshot(s.Source) {
		if !r.accepts(s) {
			continue
		}
		sent := s
		r.last = &sent
		r.l.OnLocationUpdate(s)
	}
}
