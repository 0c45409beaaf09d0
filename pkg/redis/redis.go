/*
Package redis manages the shared go-redis clients

	MainDB  holds rate limiter counters
	QueueDB holds reconcile tasks and their dedupe markers
*/
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"riciti/pkg/logger"

	redis "github.com/redis/go-redis/v9"
)

const (
	DefaultPoolSize     = 50
	DefaultTimeout      = 5 * time.Second
	DefaultMinIdleConns = 5
	DefaultMaxRetries   = 3
	DefaultIdleTimeout  = 5 * time.Minute
)

// Instance names a logical database
type Instance string

const (
	MainDB  Instance = "main"
	QueueDB Instance = "queue"
)

// Client wraps one go-redis client
type Client struct {
	Client *redis.Client
}

// Config for one logical database
type Config struct {
	Address      string
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	Timeout      time.Duration
}

// Manager owns one client per Instance
type Manager struct {
	mu        sync.RWMutex
	instances map[Instance]*Client
}

var (
	once sync.Once
	// Default is nil until InitRedis succeeds
	Default *Manager
)

/* 🔄 Connections */

// NewClient builds a client without touching the network
func NewClient(cfg Config) *Client {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{Client: redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		PoolTimeout:     cfg.Timeout,
		ConnMaxIdleTime: DefaultIdleTimeout,
		ConnMaxLifetime: 24 * time.Hour,

		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,

		MaxRetries:      DefaultMaxRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	})}
}

// NewManager wraps existing clients, for tests and custom wiring
func NewManager(main, queue *Client) *Manager {
	return &Manager{instances: map[Instance]*Client{MainDB: main, QueueDB: queue}}
}

// InitRedis connects both databases and pings them. It runs once.
func InitRedis(address, username, password string, mainDB, queueDB int) error {
	var err error
	once.Do(func() {
		base := Config{
			Address:      address,
			Username:     username,
			Password:     password,
			PoolSize:     DefaultPoolSize,
			MinIdleConns: DefaultMinIdleConns,
			Timeout:      DefaultTimeout,
		}
		mainCfg, queueCfg := base, base
		mainCfg.DB, queueCfg.DB = mainDB, queueDB

		m := NewManager(NewClient(mainCfg), NewClient(queueCfg))
		if err = m.Ping(context.Background()); err != nil {
			err = fmt.Errorf("redis connect %s: %w", address, err)
			return
		}
		Default = m
		logger.InfoString("Redis", "connect", address)
	})
	return err
}

// Enabled reports whether InitRedis succeeded
func Enabled() bool {
	return Default != nil
}

// Get returns the client for instance, falling back to MainDB
func (m *Manager) Get(instance Instance) *Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.instances[instance]; ok && c != nil {
		return c
	}
	return m.instances[MainDB]
}

/* 🔍 Health */

// Ping checks every instance
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, c := range m.instances {
		if err := c.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Ping checks one client with DefaultTimeout
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}

// Close closes every instance
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for _, c := range m.instances {
		if err := c.Client.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
