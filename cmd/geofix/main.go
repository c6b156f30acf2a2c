// Package main is the CLI entry point for geofix.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaunagostinho/geofix/internal/config"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "geofix",
	Short: "Acquire the device location from GPS, IP geolocation or Google",
	Long: `geofix runs location acquisition sessions. A session checks permissions,
then asks the Google Geolocation API when an API key is configured and falls
back to the GPS receiver and IP geolocation.

Prompts (permissions, settings, GPS) are asked on the terminal when the
session is interactive.`,
	Version:      Version,
	SilenceUsage: true,
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Acquire one location and print it as JSON",
	RunE:  runGet,
}

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Keep printing locations until interrupted",
	Long: `Keeps the session tracking and prints one JSON line per location.
Events are published to NATS when events.nats_url is set.`,
	RunE: runTrack,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Track and stream events to the status page",
	Long:  `Runs a tracking session and serves the status page, the WebSocket event stream and the config API.`,
	RunE:  runServe,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration after file, .env and environment overrides. Secrets are omitted.`,
	RunE:  runConfig,
}

var (
	configPath  string
	logLevel    string
	demo        bool
	interactive bool
	timeout     time.Duration
	listenAddr  string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/geofix/config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&demo, "demo", false, "Use a simulated GPS receiver")
	rootCmd.PersistentFlags().BoolVar(&interactive, "interactive", false, "Ask for permissions and settings on the terminal")
	getCmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 uses session.timeout_ms)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Override listen address (e.g. :8080)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("geofix %s (commit %s, built %s)\n", Version, Commit, BuildTime))

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.File, error) {
	cfg, err := config.LoadFile(configPath, nil)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if demo {
		cfg.GPS.Type = "demo"
	}
	if cmd.Flags().Changed("interactive") {
		cfg.Session.Interactive = interactive
	}
	if timeout > 0 {
		cfg.Session.TimeoutMs = int(timeout / time.Millisecond)
	}
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	return cfg, nil
}

func runGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Session.KeepTracking = false
	return runSession(cmd.Context(), cfg, sessionOptions{})
}

func runTrack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Session.KeepTracking = true
	return runSession(cmd.Context(), cfg, sessionOptions{})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Session.KeepTracking = true
	return runSession(cmd.Context(), cfg, sessionOptions{serve: true})
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := cfg.ToJSON()
	if err != nil {
		return err
	}
	var pretty map[string]any
	if err := json.Unmarshal(data, &pretty); err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(pretty)
}
