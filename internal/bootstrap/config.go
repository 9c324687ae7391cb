package bootstrap

import (
	"errors"
	"runtime"
	"runtime/debug"

	"go.uber.org/zap"
)

// RuntimeConfig holds runtime-specific configuration settings for the demo
// gateway binary (cmd/wsgatewayd).
type RuntimeConfig struct {
	// GoMaxProcs sets the maximum number of OS threads
	GoMaxProcs int
	// GCPercent sets the garbage collection target percentage
	GCPercent int
	// MemoryLimitMB sets the soft memory limit in megabytes
	MemoryLimitMB int64
	// DispatchWorkers must be at least 1. ApplyRuntimeConfig validates it;
	// no other code reads it, and one-shot requests are not dispatched
	// through a worker pool.
	DispatchWorkers int
	// EventBusBufferSize must be at least 1. ApplyRuntimeConfig validates
	// it; no other code reads it, and the demo in-process event bus has no
	// buffer (it delivers each event synchronously).
	EventBusBufferSize int
}

// DefaultProdRuntimeConfig returns production-optimized runtime settings.
func DefaultProdRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		GoMaxProcs:         1,
		GCPercent:          10,
		MemoryLimitMB:      32,
		DispatchWorkers:    2,
		EventBusBufferSize: 256,
	}
}

// DefaultDevRuntimeConfig returns development-optimized runtime settings.
func DefaultDevRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		GoMaxProcs:         2,
		GCPercent:          100, // Default Go GC
		MemoryLimitMB:      128,
		DispatchWorkers:    4,
		EventBusBufferSize: 1024,
	}
}

// ApplyRuntimeConfig applies runtime configuration settings.
// This configures GOMAXPROCS, GC percentage, and memory limits.
// Returns an error if the configuration values are invalid.
func ApplyRuntimeConfig(cfg RuntimeConfig, logger *zap.SugaredLogger) error {
	if cfg.GoMaxProcs < 1 {
		return errors.New("GoMaxProcs must be at least 1")
	}
	if cfg.GCPercent < 0 {
		return errors.New("GCPercent must be non-negative")
	}
	if cfg.MemoryLimitMB < 1 {
		return errors.New("MemoryLimitMB must be at least 1")
	}
	if cfg.DispatchWorkers < 1 {
		return errors.New("DispatchWorkers must be at least 1")
	}
	if cfg.EventBusBufferSize < 1 {
		return errors.New("EventBusBufferSize must be at least 1")
	}

	runtime.GOMAXPROCS(cfg.GoMaxProcs)
	logger.Infow("Runtime configuration", zap.String("component", "GOMAXPROCS"), zap.Int("value", cfg.GoMaxProcs))

	debug.SetGCPercent(cfg.GCPercent)
	logger.Infow("Runtime configuration", zap.String("component", "GC percent"), zap.Int("value", cfg.GCPercent))

	memLimit := cfg.MemoryLimitMB << 20 // Convert MB to bytes
	debug.SetMemoryLimit(memLimit)
	logger.Infow("Runtime configuration", zap.String("component", "Memory limit"), zap.String("value", "MB"), zap.Int64("megabytes", cfg.MemoryLimitMB))

	return nil
}
