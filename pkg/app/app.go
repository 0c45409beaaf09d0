// Package app holds environment helpers
package app

import (
	"time"

	"riciti/pkg/config"
)

// IsLocal reports whether APP_ENV is local
func IsLocal() bool {
	return config.Get("app.env") == "local"
}

// IsProduction reports whether APP_ENV is production
func IsProduction() bool {
	return config.Get("app.env") == "production"
}

// IsTesting reports whether APP_ENV is testing
func IsTesting() bool {
	return config.Get("app.env") == "testing"
}

// TimenowInTimezone returns now in app.timezone (Africa/Nairobi by default).
// An unknown zone falls back to UTC.
func TimenowInTimezone() time.Time {
	loc, err := time.LoadLocation(config.GetString("app.timezone", "Africa/Nairobi"))
	if err != nil {
		return time.Now().UTC()
	}
	return time.Now().In(loc)
}

// URL joins path onto app.url
func URL(path string) string {
	base := config.GetString("app.url", "http://localhost:3000")
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if len(path) > 0 && path[0] != '/' {
		path = "/" + path
	}
	return base + path
}
