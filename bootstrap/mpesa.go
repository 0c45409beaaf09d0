package bootstrap

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"riciti/app/repositories"
	"riciti/pkg/app"
	"riciti/pkg/config"
	"riciti/pkg/database"
	"riciti/pkg/logger"
	"riciti/pkg/mpesa"
	paysvc "riciti/pkg/payment"
	"riciti/routes"

	"github.com/shopspring/decimal"
)

// Services are the wired repositories and the payment state machine
type Services struct {
	Invoices     *repositories.InvoiceRepository
	PaymentStore *repositories.PaymentRepository
	Payments     *paysvc.Service
	MpesaConfig  mpesa.Config
}

// ValidateMpesa checks the M-Pesa block. Missing credentials are fatal
// when M-Pesa is enabled; the other findings are only logged.
func ValidateMpesa() error {
	if !config.GetBool("mpesa.enabled") {
		logger.WarnString("Mpesa", "Validate", "M-Pesa disabled, payments will answer 503")
		return nil
	}

	var missing []string
	for _, key := range []string{"consumer_key", "consumer_secret", "passkey", "shortcode"} {
		if config.GetString("mpesa."+key) == "" {
			missing = append(missing, "MPESA_"+strings.ToUpper(key))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing M-Pesa settings: %s", strings.Join(missing, ", "))
	}

	env := config.GetString("mpesa.environment")
	if env != mpesa.EnvSandbox && env != mpesa.EnvProduction {
		return errors.New("MPESA_ENVIRONMENT must be sandbox or production")
	}
	if _, err := decimal.NewFromString(config.GetString("mpesa.service_fee_amount")); err != nil {
		return fmt.Errorf("SERVICE_FEE_AMOUNT: %w", err)
	}

	if app.IsProduction() {
		if config.GetString("mpesa.callback_secret") == "" {
			logger.ErrorString("Mpesa", "Validate", "MPESA_CALLBACK_SECRET is empty, callbacks are unauthenticated")
		}
		if env != mpesa.EnvProduction {
			logger.WarnString("Mpesa", "Validate", "app runs in production against the M-Pesa sandbox")
		}
	}
	return nil
}

// SetupServices builds the repositories and the payment service on database.DB
func SetupServices() *Services {
	invoices := repositories.NewInvoiceRepository(database.DB)
	store := repositories.NewPaymentRepository(database.DB)
	mpesaCfg := mpesaConfig()

	var gateway paysvc.Gateway
	if config.GetBool("mpesa.enabled") {
		gateway = mpesa.NewClient(mpesaCfg)
	}

	svc := paysvc.NewService(store, invoices, gateway, paysvc.Config{
		Fee:             decimal.RequireFromString(config.GetString("mpesa.service_fee_amount", "10")),
		Currency:        config.GetString("mpesa.service_fee_currency", "KES"),
		CallbackURL:     callbackURL(),
		TransactionDesc: config.GetString("mpesa.transaction_desc"),
		ExpireAfter:     seconds("queue.expire_after"),
	})

	return &Services{
		Invoices:     invoices,
		PaymentStore: store,
		Payments:     svc,
		MpesaConfig:  mpesaCfg,
	}
}

func mpesaConfig() mpesa.Config {
	return mpesa.Config{
		Environment:     config.GetString("mpesa.environment"),
		BaseURL:         config.GetString("mpesa.base_url"),
		ConsumerKey:     config.GetString("mpesa.consumer_key"),
		ConsumerSecret:  config.GetString("mpesa.consumer_secret"),
		Passkey:         config.GetString("mpesa.passkey"),
		ShortCode:       config.GetString("mpesa.shortcode"),
		Timeout:         seconds("mpesa.timeout"),
		TokenMaxRetries: config.GetInt("mpesa.token_max_retries"),
		TokenRetryBase:  time.Duration(config.GetInt("mpesa.token_retry_ms")) * time.Millisecond,
	}
}

// callbackURL is MPESA_CALLBACK_URL or APP_URL + the callback route,
// carrying the shared secret as ?token=
func callbackURL() string {
	raw := config.GetString("mpesa.callback_url")
	if raw == "" {
		raw = app.URL(routes.CallbackPath)
	}
	secret := config.GetString("mpesa.callback_secret")
	if secret == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		logger.ErrorString("Mpesa", "CallbackURL", err.Error())
		return raw
	}
	q := u.Query()
	if q.Get("token") == "" {
		q.Set("token", secret)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
