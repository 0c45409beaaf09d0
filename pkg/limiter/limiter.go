// Package limiter wraps ulule/limiter. Counters live in Redis when it is
// enabled and in process memory otherwise.
package limiter

import (
	"strings"
	"sync"
	"time"

	"riciti/pkg/config"
	"riciti/pkg/logger"
	"riciti/pkg/redis"

	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

var (
	mu    sync.Mutex
	store limiterlib.Store
)

// SetStore overrides the counter store, for tests
func SetStore(s limiterlib.Store) {
	mu.Lock()
	defer mu.Unlock()
	store = s
}

func getStore() (limiterlib.Store, error) {
	mu.Lock()
	defer mu.Unlock()
	if store != nil {
		return store, nil
	}

	opts := limiterlib.StoreOptions{
		Prefix:          config.GetString("app.name", "riciti") + ":limiter",
		CleanUpInterval: time.Hour,
	}
	if redis.Enabled() {
		s, err := sredis.NewStoreWithOptions(redis.Default.Get(redis.MainDB).Client, opts)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.NewStoreWithOptions(opts)
	}
	return store, nil
}

// GetKeyIP keys by client IP
func GetKeyIP(c *gin.Context) string {
	return c.ClientIP()
}

// GetKeyRouteWithIP keys by route and client IP
func GetKeyRouteWithIP(c *gin.Context) string {
	return routeToKeyString(c.FullPath()) + c.ClientIP()
}

// CheckRate counts one hit against key under a limit such as "5-M"
func CheckRate(c *gin.Context, key string, formatted string) (limiterlib.Context, error) {
	var ctx limiterlib.Context

	rate, err := limiterlib.NewRateFromFormatted(formatted)
	if err != nil {
		logger.LogIf(err)
		return ctx, err
	}

	s, err := getStore()
	if err != nil {
		logger.LogIf(err)
		return ctx, err
	}

	// one counter per limit so stacked limiters do not share hits
	return limiterlib.New(s, rate).Get(c, formatted+":"+key)
}

// routeToKeyString turns /v1/invoices/:publicId into -v1-invoices-_publicId
func routeToKeyString(routeName string) string {
	routeName = strings.ReplaceAll(routeName, "/", "-")
	routeName = strings.ReplaceAll(routeName, ":", "_")
	return routeName
}
