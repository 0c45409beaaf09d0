// Package config registers the application's config blocks
package config

import "riciti/pkg/config"

func init() {
	config.Add("app", func() map[string]interface{} {
		return map[string]interface{}{

			"name": config.Env("APP_NAME", "Riciti"),

			// local, testing, staging, production
			"env": config.Env("APP_ENV", "production"),

			"debug": config.Env("APP_DEBUG", false),

			"port": config.Env("APP_PORT", "3000"),

			// Public base URL, used to build the default M-Pesa callback URL
			"url": config.Env("APP_URL", "http://localhost:3000"),

			// Allowed browser origin for mutating requests; empty allows same-host only
			"allowed_origin": config.Env("APP_ALLOWED_ORIGIN", ""),

			// Header set by the upstream auth proxy with the signed-in user id; empty trusts none
			"auth_user_header": config.Env("APP_AUTH_USER_HEADER", ""),

			"timezone": config.Env("TIMEZONE", "Africa/Nairobi"),

			// Rate limits, formatted as <count>-<S|M|H|D>
			"global_rate_limit":  config.Env("GLOBAL_RATE_LIMIT", "30000-H"),
			"payment_rate_limit": config.Env("PAYMENT_RATE_LIMIT", "5-M"),
			"public_rate_limit":  config.Env("PUBLIC_RATE_LIMIT", "60-M"),
		}
	})
}

// Initialize forces this package's init blocks to run before main
func Initialize() {}
