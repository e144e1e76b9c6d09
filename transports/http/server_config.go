package http

import "time"

// ServerConfig holds the listener and surface settings.
type ServerConfig struct {
	Addr         string
	StaticDir    string
	MaxBodyBytes int64
	// GinMode is one of gin.DebugMode, gin.ReleaseMode or gin.TestMode.
	GinMode         string
	ShutdownTimeout time.Duration
}

func DefaultConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":5000",
		StaticDir:       "frontend",
		MaxBodyBytes:    1 << 20,
		GinMode:         "release",
		ShutdownTimeout: 10 * time.Second,
	}
}
