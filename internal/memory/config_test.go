package memory

import (
	"math"
	"runtime/debug"
	"testing"
	"time"
)

// restoreLimit puts GOMEMLIMIT back after a test changes it.
func restoreLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("Expected MemoryLimitBytes to be 0, got %d", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %.2f should be below CriticalWaterMark %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 2*time.Second {
		t.Errorf("Expected CheckInterval to be 2s, got %v", cfg.CheckInterval)
	}
}

func TestConfigureFromEnv_NoEnvironmentVariables(t *testing.T) {
	restoreLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected Configured to be false when no env vars set")
	}
	if result.Source != "none" {
		t.Errorf("Expected Source to be 'none', got %q", result.Source)
	}
	if result.GoMemLimit != 0 || result.ContainerLimit != 0 || result.Ratio != 0 {
		t.Errorf("Expected zero limits, got %+v", result)
	}
}

func TestConfigureFromEnv_GOMEMLIMITTakesPrecedence(t *testing.T) {
	restoreLimit(t)
	debug.SetMemoryLimit(500 << 20)
	t.Setenv("GOMEMLIMIT", "500MiB")
	t.Setenv("MEMORY_LIMIT", "1073741824")

	result := ConfigureFromEnv()

	if result.Source != "GOMEMLIMIT" || !result.Configured {
		t.Errorf("Expected GOMEMLIMIT source, got %+v", result)
	}
	if result.GoMemLimit != 500<<20 {
		t.Errorf("Expected GoMemLimit %d, got %d", 500<<20, result.GoMemLimit)
	}
	if result.ContainerLimit != 0 {
		t.Errorf("MEMORY_LIMIT should be ignored, got ContainerLimit %d", result.ContainerLimit)
	}
}

func TestConfigureFromEnv_MEMORYLIMIT(t *testing.T) {
	tests := []struct {
		name          string
		limit         string
		ratio         string
		wantContainer int64
		wantRatio     float64
	}{
		{"bytes default ratio", "1073741824", "", 1 << 30, DefaultMemoryRatio},
		{"humanized", "2GiB", "", 2 << 30, DefaultMemoryRatio},
		{"custom ratio", "1073741824", "0.5", 1 << 30, 0.5},
		{"ratio of one", "1073741824", "1.0", 1 << 30, 1.0},
		{"ratio above one", "1073741824", "1.5", 1 << 30, DefaultMemoryRatio},
		{"zero ratio", "1073741824", "0", 1 << 30, DefaultMemoryRatio},
		{"unparsable ratio", "1073741824", "most", 1 << 30, DefaultMemoryRatio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			result := ConfigureFromEnv()

			if !result.Configured || result.Source != "MEMORY_LIMIT" {
				t.Fatalf("Expected MEMORY_LIMIT configuration, got %+v", result)
			}
			if result.ContainerLimit != tt.wantContainer {
				t.Errorf("ContainerLimit = %d, want %d", result.ContainerLimit, tt.wantContainer)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %f, want %f", result.Ratio, tt.wantRatio)
			}
			want := int64(float64(tt.wantContainer) * tt.wantRatio)
			if result.GoMemLimit != want {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, want)
			}
			if got := debug.SetMemoryLimit(-1); got != want {
				t.Errorf("runtime limit = %d, want %d", got, want)
			}
		})
	}
}

func TestConfigureFromEnv_InvalidMEMORYLIMIT(t *testing.T) {
	for _, limit := range []string{"lots", "-5", "0"} {
		t.Run(limit, func(t *testing.T) {
			restoreLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", limit)

			result := ConfigureFromEnv()
			if result.Configured || result.Source != "none" {
				t.Errorf("Expected no configuration for %q, got %+v", limit, result)
			}
		})
	}
}

func TestCacheBudget(t *testing.T) {
	restoreLimit(t)

	debug.SetMemoryLimit(math.MaxInt64)
	if got := CacheBudget(0.25); got != DefaultCacheBudget {
		t.Errorf("CacheBudget without limit = %d, want %d", got, DefaultCacheBudget)
	}

	debug.SetMemoryLimit(1 << 30)
	tests := []struct {
		ratio float64
		want  int64
	}{
		{0.25, 256 << 20},
		{0.5, 512 << 20},
		{0, 256 << 20},
		{2, 256 << 20},
	}
	for _, tt := range tests {
		if got := CacheBudget(tt.ratio); got != tt.want {
			t.Errorf("CacheBudget(%v) = %d, want %d", tt.ratio, got, tt.want)
		}
	}
}
