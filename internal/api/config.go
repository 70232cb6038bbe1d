package api

import "time"

// Config holds HTTP server settings and the per-request run defaults.
type Config struct {
	Addr            string        `koanf:"addr" validate:"required"`
	RequestTimeout  time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	// RateLimit is requests per minute per client IP; 0 disables limiting.
	RateLimit    int   `koanf:"rate_limit" validate:"gte=0"`
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gt=0"`

	DefaultWindowDays int `koanf:"default_window_days" validate:"gte=0"`
	DefaultShortlistK int `koanf:"default_shortlist_k" validate:"gte=0"`
	DefaultFinalN     int `koanf:"default_final_n" validate:"gte=0"`
}

// DefaultConfig listens on :8000 and returns seven picks per request.
func DefaultConfig() Config {
	return Config{
		Addr:              ":8000",
		RequestTimeout:    3 * time.Minute,
		ShutdownTimeout:   10 * time.Second,
		RateLimit:         30,
		MaxBodyBytes:      1 << 20,
		DefaultWindowDays: 7,
		DefaultShortlistK: 30,
		DefaultFinalN:     7,
	}
}
