package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/geofix/internal/dialog"
	"github.com/shaunagostinho/geofix/internal/permission"
)

// File holds the geofix command configuration.
type File struct {
	mu sync.RWMutex

	Session   SessionConfig   `yaml:"session" json:"session"`
	Fused     FusedConfig     `yaml:"fused" json:"fused"`
	Satellite SatelliteConfig `yaml:"satellite" json:"satellite"`

	// Concrete sources
	GPS     GPSConfig     `yaml:"gps" json:"gps"`
	Network NetworkConfig `yaml:"network" json:"network"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`

	// Outputs
	Events EventsConfig `yaml:"events" json:"events"`
	Server ServerConfig `yaml:"server" json:"server"`
	Log    LogConfig    `yaml:"log" json:"log"`

	path string // file path for save/load
}

type SessionConfig struct {
	KeepTracking      bool   `yaml:"keep_tracking" json:"keepTracking"`
	Interactive       bool   `yaml:"interactive" json:"interactive"` // Prompt for permissions and GPS
	PermissionMessage string `yaml:"permission_message" json:"permissionMessage"`
	GPSMessage        string `yaml:"gps_message" json:"gpsMessage"`
	TimeoutMs         int    `yaml:"timeout_ms" json:"timeoutMs"` // Hard stop for a one-shot get, 0 = none
}

type FusedConfig struct {
	Enabled                 bool   `yaml:"enabled" json:"enabled"`
	APIKey                  string `yaml:"api_key" json:"-"`
	Priority                string `yaml:"priority" json:"priority"` // "high_accuracy", "balanced_power", ...
	IntervalMs              int    `yaml:"interval_ms" json:"intervalMs"`
	FastestIntervalMs       int    `yaml:"fastest_interval_ms" json:"fastestIntervalMs"`
	WaitMs                  int    `yaml:"wait_ms" json:"waitMs"`
	FallbackToSatellite     bool   `yaml:"fallback_to_satellite" json:"fallbackToSatellite"`
	AskForService           bool   `yaml:"ask_for_service" json:"askForService"`
	AskForSettings          bool   `yaml:"ask_for_settings" json:"askForSettings"`
	FailOnSettingsSuspended bool   `yaml:"fail_on_settings_suspended" json:"failOnSettingsSuspended"`
	IgnoreLastKnown         bool   `yaml:"ignore_last_known" json:"ignoreLastKnown"`
}

type SatelliteConfig struct {
	Enabled         bool    `yaml:"enabled" json:"enabled"`
	TimeIntervalMs  int     `yaml:"time_interval_ms" json:"timeIntervalMs"`
	DistanceM       float64 `yaml:"distance_m" json:"distanceM"`
	AccuracyM       float64 `yaml:"accuracy_m" json:"accuracyM"`
	TimePeriodMs    int     `yaml:"time_period_ms" json:"timePeriodMs"`
	GPSWaitMs       int     `yaml:"gps_wait_ms" json:"gpsWaitMs"`
	NetworkWaitMs   int     `yaml:"network_wait_ms" json:"networkWaitMs"`
	AskForEnableGPS bool    `yaml:"ask_for_enable_gps" json:"askForEnableGps"`
}

type GPSConfig struct {
	Type     string  `yaml:"type" json:"type"`          // "nmea" or "demo" or "disabled"
	PortPath string  `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyACM0
	BaudRate int     `yaml:"baud_rate" json:"baudRate"`
	DemoLat  float64 `yaml:"demo_lat" json:"demoLat"`
	DemoLon  float64 `yaml:"demo_lon" json:"demoLon"`
}

type NetworkConfig struct {
	Type      string  `yaml:"type" json:"type"` // "ipapi" or "disabled"
	Endpoint  string  `yaml:"endpoint" json:"endpoint"`
	TimeoutMs int     `yaml:"timeout_ms" json:"timeoutMs"`
	AccuracyM float64 `yaml:"accuracy_m" json:"accuracyM"` // Reported accuracy of IP fixes
	PollMs    int     `yaml:"poll_ms" json:"pollMs"`
}

type CacheConfig struct {
	Type     string `yaml:"type" json:"type"` // "memory", "redis" or "disabled"
	RedisURL string `yaml:"redis_url" json:"-"`
	TTLMs    int    `yaml:"ttl_ms" json:"ttlMs"`
}

type EventsConfig struct {
	NATSURL       string `yaml:"nats_url" json:"natsUrl"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subjectPrefix"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" json:"format"` // "console" or "json"
	Path   string `yaml:"path" json:"path"`     // Empty logs to stderr
}

// DefaultFile returns a config with sensible defaults.
func DefaultFile() *File {
	return &File{
		Session: SessionConfig{
			KeepTracking:      false,
			Interactive:       true,
			PermissionMessage: DefaultPermissionMessage,
			GPSMessage:        DefaultGPSMessage,
			TimeoutMs:         0,
		},
		Fused: FusedConfig{
			Enabled:                 true,
			Priority:                DefaultPriority.String(),
			IntervalMs:              ms(DefaultLocationInterval),
			FastestIntervalMs:       ms(DefaultFastestInterval),
			WaitMs:                  ms(DefaultWaitPeriod),
			FallbackToSatellite:     defaultFallbackToSatellite,
			AskForService:           defaultAskForService,
			AskForSettings:          defaultAskForSettings,
			FailOnSettingsSuspended: defaultFailOnSuspended,
			IgnoreLastKnown:         defaultIgnoreLastKnown,
		},
		Satellite: SatelliteConfig{
			Enabled:         true,
			TimeIntervalMs:  ms(DefaultLocationInterval),
			DistanceM:       DefaultDistanceInterval,
			AccuracyM:       DefaultMinAccuracy,
			TimePeriodMs:    ms(DefaultTimePeriod),
			GPSWaitMs:       ms(DefaultWaitPeriod),
			NetworkWaitMs:   ms(DefaultWaitPeriod),
			AskForEnableGPS: true,
		},
		GPS: GPSConfig{
			Type:     "demo",
			PortPath: "/dev/ttyACM0",
			BaudRate: 9600,
			DemoLat:  43.6532,
			DemoLon:  -79.3832,
		},
		Network: NetworkConfig{
			Type:      "ipapi",
			Endpoint:  "http://ip-api.com/json/",
			TimeoutMs: 5000,
			AccuracyM: 5000,
			PollMs:    60000,
		},
		Cache: CacheConfig{
			Type:  "memory",
			TTLMs: ms(DefaultTimePeriod),
		},
		Events: EventsConfig{
			SubjectPrefix: "geofix",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func ms(d time.Duration) int { return int(d / time.Millisecond) }

func dur(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// LoadFile reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if the file is missing. A file
// that exists but does not parse is an error.
func LoadFile(path string, logger *zap.Logger) (*File, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultFile()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case err != nil:
		logger.Info("no config file, using defaults", zap.String("path", path))
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		logger.Info("config loaded", zap.String("path", path))
	}

	// Load .env file from the same directory as the config, or from CWD
	for _, ep := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		if loadEnvFile(ep) {
			logger.Debug("loaded .env", zap.String("path", ep))
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
	return true
}

// applyEnvOverrides reads GEOFIX_* environment variables. REDIS_URL and
// GOOGLE_MAPS_API_KEY are honoured too when the prefixed form is unset.
func (f *File) applyEnvOverrides() {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	num := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	flag := func(dst *bool, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || v == "true" || v == "yes"
		}
	}

	flag(&f.Session.KeepTracking, "GEOFIX_KEEP_TRACKING")
	flag(&f.Session.Interactive, "GEOFIX_INTERACTIVE")
	num(&f.Session.TimeoutMs, "GEOFIX_TIMEOUT_MS")

	flag(&f.Fused.Enabled, "GEOFIX_FUSED_ENABLED")
	str(&f.Fused.APIKey, "GEOFIX_MAPS_API_KEY", "GOOGLE_MAPS_API_KEY")
	num(&f.Fused.WaitMs, "GEOFIX_FUSED_WAIT_MS")

	flag(&f.Satellite.Enabled, "GEOFIX_SATELLITE_ENABLED")
	num(&f.Satellite.GPSWaitMs, "GEOFIX_GPS_WAIT_MS")
	num(&f.Satellite.NetworkWaitMs, "GEOFIX_NETWORK_WAIT_MS")

	str(&f.GPS.Type, "GEOFIX_GPS_TYPE")
	str(&f.GPS.PortPath, "GEOFIX_GPS_PORT")
	num(&f.GPS.BaudRate, "GEOFIX_GPS_BAUD")

	str(&f.Network.Type, "GEOFIX_NETWORK_TYPE")
	str(&f.Network.Endpoint, "GEOFIX_NETWORK_ENDPOINT")

	str(&f.Cache.Type, "GEOFIX_CACHE_TYPE")
	str(&f.Cache.RedisURL, "GEOFIX_REDIS_URL", "REDIS_URL")

	str(&f.Events.NATSURL, "GEOFIX_NATS_URL")
	str(&f.Server.ListenAddr, "GEOFIX_LISTEN_ADDR")

	str(&f.Log.Level, "GEOFIX_LOG_LEVEL")
	str(&f.Log.Format, "GEOFIX_LOG_FORMAT")
	str(&f.Log.Path, "GEOFIX_LOG_PATH")
}

// Path returns where Save writes.
func (f *File) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.path
}

// Save writes the config to its YAML file.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == "" {
		f.path = "/etc/geofix/config.yaml"
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0644)
}

// ToJSON serializes config for the API. Secrets are never included.
func (f *File) ToJSON() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return json.Marshal(f)
}

// UpdateFromJSON applies a partial JSON update by deep-merging incoming
// fields into the existing config. Fields absent from the update are kept.
func (f *File) UpdateFromJSON(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	currentBytes, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}
	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, f)
}

// deepMerge recursively merges src into dst. Nested maps are merged, every
// other value in src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}

// Location builds the session configuration the file describes. renderer
// draws rationale and GPS dialogs for interactive sessions.
func (f *File) Location(renderer dialog.Renderer, platform permission.Platform, logger *zap.Logger) (*Location, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := &Location{KeepTracking: f.Session.KeepTracking}

	if f.Session.Interactive {
		gate, err := permission.NewDefault(permission.LocationPermissions,
			dialog.NewSimpleMessage(f.Session.PermissionMessage, renderer), platform, logger)
		if err != nil {
			return nil, err
		}
		out.Permission.Provider = gate
	} else {
		out.Permission.Provider = permission.NewStub(platform)
	}

	if f.Fused.Enabled {
		priority, err := ParsePriority(f.Fused.Priority)
		if err != nil {
			return nil, err
		}
		out.Fused = &Fused{
			Request: Request{
				Priority:        priority,
				Interval:        dur(f.Fused.IntervalMs),
				FastestInterval: dur(f.Fused.FastestIntervalMs),
			},
			FallbackToSatellite:     f.Fused.FallbackToSatellite,
			AskForService:           f.Fused.AskForService && f.Session.Interactive,
			AskForSettings:          f.Fused.AskForSettings && f.Session.Interactive,
			FailOnSettingsSuspended: f.Fused.FailOnSettingsSuspended,
			IgnoreLastKnown:         f.Fused.IgnoreLastKnown,
			WaitPeriod:              dur(f.Fused.WaitMs),
		}
	}

	if f.Satellite.Enabled {
		out.Satellite = &Satellite{
			RequiredTimeInterval:     dur(f.Satellite.TimeIntervalMs),
			RequiredDistanceInterval: f.Satellite.DistanceM,
			AcceptableAccuracy:       f.Satellite.AccuracyM,
			AcceptableTimePeriod:     dur(f.Satellite.TimePeriodMs),
			GPSWaitPeriod:            dur(f.Satellite.GPSWaitMs),
			NetworkWaitPeriod:        dur(f.Satellite.NetworkWaitMs),
		}
		if f.Satellite.AskForEnableGPS && f.Session.Interactive && f.Session.GPSMessage != "" {
			out.Satellite.GPSDialog = dialog.NewSimpleMessage(f.Session.GPSMessage, renderer)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
