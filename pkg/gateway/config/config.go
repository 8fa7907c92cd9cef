package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type AuthMode string

const (
	AuthModeRequired AuthMode = "required"
	AuthModeOptional AuthMode = "optional"
	AuthModeDisabled AuthMode = "disabled"
)

type Config struct {
	Addr string

	AuthMode AuthMode
	APIKeys  map[string]struct{}

	// Credential for the hosted model API.
	GeminiAPIKey string

	// Model routing per operation.
	ChatModel      string
	ImageModel     string
	ImageEditModel string
	VideoModel     string
	LiveModel      string
	LiveVoice      string
	LiveSystem     string

	MaxBodyBytes int64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket mode (/v1/live).
	LiveMaxAudioFrameBytes  int
	LiveMaxJSONMessageBytes int64
	LiveWSPingInterval      time.Duration
	LiveWSWriteTimeout      time.Duration
	LiveHandshakeTimeout    time.Duration
	LiveMaxSessionDuration  time.Duration
	LiveMaxSessionsPerKey   int

	// Long-running video operations.
	VideoPollInterval time.Duration
	VideoPollTimeout  time.Duration

	// In-memory limits (per principal).
	LimitRPS                   float64
	LimitBurst                 int
	LimitMaxConcurrentRequests int

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                       envOr("STUDIO_ADDR", ":8080"),
		AuthMode:                   AuthMode(envOr("STUDIO_AUTH_MODE", string(AuthModeRequired))),
		APIKeys:                    make(map[string]struct{}),
		GeminiAPIKey:               strings.TrimSpace(os.Getenv("STUDIO_GEMINI_API_KEY")),
		ChatModel:                  envOr("STUDIO_CHAT_MODEL", "gemini-2.5-flash"),
		ImageModel:                 envOr("STUDIO_IMAGE_MODEL", "imagen-4.0-generate-001"),
		ImageEditModel:             envOr("STUDIO_IMAGE_EDIT_MODEL", "gemini-2.5-flash-image"),
		VideoModel:                 envOr("STUDIO_VIDEO_MODEL", "veo-3.0-generate-001"),
		LiveModel:                  envOr("STUDIO_LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		LiveVoice:                  envOr("STUDIO_LIVE_VOICE", "Zephyr"),
		LiveSystem:                 strings.TrimSpace(os.Getenv("STUDIO_LIVE_SYSTEM_PROMPT")),
		MaxBodyBytes:               envInt64Or("STUDIO_MAX_BODY_BYTES", 16<<20), // 16 MiB, image uploads
		CORSAllowedOrigins:         make(map[string]struct{}),
		LiveMaxAudioFrameBytes:     envIntOr("STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES", 8192),
		LiveMaxJSONMessageBytes:    envInt64Or("STUDIO_LIVE_MAX_JSON_MESSAGE_BYTES", 64*1024),
		LiveWSPingInterval:         envDurationOr("STUDIO_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:         envDurationOr("STUDIO_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveHandshakeTimeout:       envDurationOr("STUDIO_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		LiveMaxSessionDuration:     envDurationOr("STUDIO_LIVE_MAX_DURATION", 2*time.Hour),
		LiveMaxSessionsPerKey:      envIntOr("STUDIO_LIVE_MAX_SESSIONS_PER_KEY", 2),
		VideoPollInterval:          envDurationOr("STUDIO_VIDEO_POLL_INTERVAL", 10*time.Second),
		VideoPollTimeout:           envDurationOr("STUDIO_VIDEO_POLL_TIMEOUT", 6*time.Minute),
		LimitRPS:                   envFloat64Or("STUDIO_RATE_LIMIT_RPS", 2.0),
		LimitBurst:                 envIntOr("STUDIO_RATE_LIMIT_BURST", 4),
		LimitMaxConcurrentRequests: envIntOr("STUDIO_MAX_CONCURRENT_REQUESTS", 20),
		ReadHeaderTimeout:          envDurationOr("STUDIO_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                envDurationOr("STUDIO_READ_TIMEOUT", 30*time.Second),
		HandlerTimeout:             envDurationOr("STUDIO_TOTAL_REQUEST_TIMEOUT", 10*time.Minute),
		ShutdownGracePeriod:        envDurationOr("STUDIO_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.AuthMode {
	case AuthModeRequired, AuthModeOptional, AuthModeDisabled:
	default:
		return Config{}, fmt.Errorf("STUDIO_AUTH_MODE must be one of required|optional|disabled")
	}

	for _, key := range splitCSV(os.Getenv("STUDIO_API_KEYS")) {
		cfg.APIKeys[key] = struct{}{}
	}

	for _, origin := range splitCSV(os.Getenv("STUDIO_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("STUDIO_GEMINI_API_KEY must be set")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("STUDIO_MAX_BODY_BYTES must be > 0")
	}
	if cfg.LiveMaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.LiveMaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.LiveMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_MAX_DURATION must be > 0")
	}
	if cfg.LiveMaxSessionsPerKey <= 0 {
		return Config{}, fmt.Errorf("STUDIO_LIVE_MAX_SESSIONS_PER_KEY must be > 0")
	}
	if cfg.VideoPollInterval <= 0 {
		return Config{}, fmt.Errorf("STUDIO_VIDEO_POLL_INTERVAL must be > 0")
	}
	if cfg.VideoPollTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDIO_VIDEO_POLL_TIMEOUT must be > 0")
	}
	if cfg.LimitRPS < 0 {
		return Config{}, fmt.Errorf("STUDIO_RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("STUDIO_RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.LimitMaxConcurrentRequests < 0 {
		return Config{}, fmt.Errorf("STUDIO_MAX_CONCURRENT_REQUESTS must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDIO_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDIO_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDIO_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("STUDIO_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	if cfg.AuthMode == AuthModeRequired && len(cfg.APIKeys) == 0 {
		return Config{}, fmt.Errorf("STUDIO_API_KEYS must be set when STUDIO_AUTH_MODE=required")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
