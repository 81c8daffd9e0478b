package config

import (
	"os"
	"strconv"
	"time"
)

// RefreshConfig holds the timing constants of the refresh cycle.
type RefreshConfig interface {
	GetRefreshFraction() float64
	GetPollInterval() time.Duration
	GetInstallRetries() int
	GetInstallRetryDelay() time.Duration
	GetExchangeTimeout() time.Duration
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

// GetRefreshFraction is the share of expires_in after which a refresh is attempted.
func (Refresh) GetRefreshFraction() float64 {
	if v, err := strconv.ParseFloat(os.Getenv("REFRESH_FRACTION"), 64); err == nil && v > 0 && v <= 1 {
		return v
	}
	return 0.75
}

func (Refresh) GetPollInterval() time.Duration {
	return durationEnv("POLL_INTERVAL", 500*time.Millisecond)
}

func (Refresh) GetInstallRetries() int {
	if v, err := strconv.Atoi(os.Getenv("INSTALL_RETRIES")); err == nil && v >= 0 {
		return v
	}
	return 10
}

func (Refresh) GetInstallRetryDelay() time.Duration {
	return durationEnv("INSTALL_RETRY_DELAY", 1*time.Second)
}

func (Refresh) GetExchangeTimeout() time.Duration {
	return durationEnv("EXCHANGE_TIMEOUT", 30*time.Second)
}

func durationEnv(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
