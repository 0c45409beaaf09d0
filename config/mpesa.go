package config

import "riciti/pkg/config"

func init() {
	config.Add("mpesa", func() map[string]interface{} {
		return map[string]interface{}{
			"enabled": config.Env("MPESA_ENABLED", true),

			// sandbox or production; selects the Daraja host and turns on the
			// callback IP allowlist
			"environment": config.Env("MPESA_ENVIRONMENT", "sandbox"),
			"base_url":    config.Env("MPESA_BASE_URL", ""),

			"consumer_key":    config.Env("MPESA_CONSUMER_KEY", ""),
			"consumer_secret": config.Env("MPESA_CONSUMER_SECRET", ""),
			"passkey":         config.Env("MPESA_PASSKEY", ""),
			"shortcode":       config.Env("MPESA_SHORTCODE", ""),

			// Defaults to APP_URL + /v1/payments/callback
			"callback_url":    config.Env("MPESA_CALLBACK_URL", ""),
			"callback_secret": config.Env("MPESA_CALLBACK_SECRET", ""),
			"allowed_ips": config.Env("MPESA_ALLOWED_IPS",
				"196.201.214.200,196.201.214.206,196.201.213.114,196.201.214.207,196.201.214.208"),

			"timeout":           config.Env("MPESA_TIMEOUT", 15),
			"token_max_retries": config.Env("MPESA_TOKEN_MAX_RETRIES", 2),
			"token_retry_ms":    config.Env("MPESA_TOKEN_RETRY_MS", 500),

			// Flat platform fee per invoice download, independent of invoice currency
			"service_fee_amount":   config.Env("SERVICE_FEE_AMOUNT", "10"),
			"service_fee_currency": config.Env("SERVICE_FEE_CURRENCY", "KES"),
			"transaction_desc":     config.Env("MPESA_TRANSACTION_DESC", "Invoice Pay"),
		}
	})
}
