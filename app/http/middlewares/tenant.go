package middlewares

import (
	"context"
	"net/http"

	"riciti/app/models/invoice"
	"riciti/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// GuestCookieName identifies an anonymous browser
	GuestCookieName = "riciti_guest_session"
	guestCookieAge  = 30 * 24 * 60 * 60

	// UserIDKey is set on the gin context by the upstream auth layer
	UserIDKey = "user_id"
	tenantKey = "tenant"
)

// GuestMigrator hands a guest's invoices to a user
type GuestMigrator interface {
	MigrateGuestInvoices(ctx context.Context, guestSessionID, userID string) (int64, error)
}

// TenantOptions configures Tenant
type TenantOptions struct {
	// Header trusted to carry the authenticated user id; empty disables it
	UserHeader   string
	SecureCookie bool
	Migrator     GuestMigrator
}

// Tenant resolves the request owner. A user id from the auth layer wins;
// otherwise the guest cookie is read or issued. When both are present the
// guest's invoices move to the user and the cookie is cleared.
func Tenant(opts TenantOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" && opts.UserHeader != "" {
			userID = c.GetHeader(opts.UserHeader)
		}
		guestID, _ := c.Cookie(GuestCookieName)
		if _, err := uuid.Parse(guestID); err != nil {
			guestID = ""
		}

		var tenant invoice.Tenant
		switch {
		case userID != "":
			tenant.UserID = userID
			if guestID != "" && opts.Migrator != nil {
				moved, err := opts.Migrator.MigrateGuestInvoices(c.Request.Context(), guestID, userID)
				if err != nil {
					logger.Error("Tenant", zap.String("user_id", userID), zap.Error(err))
				} else {
					logger.Info("Tenant", zap.String("user_id", userID), zap.Int64("migrated_invoices", moved))
					setGuestCookie(c, "", -1, opts.SecureCookie)
				}
			}
		case guestID != "":
			tenant.GuestSessionID = guestID
		default:
			tenant.GuestSessionID = uuid.NewString()
			setGuestCookie(c, tenant.GuestSessionID, guestCookieAge, opts.SecureCookie)
		}

		c.Set(tenantKey, tenant)
		c.Next()
	}
}

// CurrentTenant returns the handle set by Tenant
func CurrentTenant(c *gin.Context) invoice.Tenant {
	if v, ok := c.Get(tenantKey); ok {
		if t, ok := v.(invoice.Tenant); ok {
			return t
		}
	}
	return invoice.Tenant{}
}

func setGuestCookie(c *gin.Context, value string, maxAge int, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(GuestCookieName, value, maxAge, "/", "", secure, true)
}
