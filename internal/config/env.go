package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Optional variables fall back to their default when unset or malformed.

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
		return d
	}
	return v
}

func envInt(k string, d int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return d
	}
	return n
}

func envDur(k string, d time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return d
	}
	return v
}
