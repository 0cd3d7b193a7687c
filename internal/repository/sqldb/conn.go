package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"video-cloud/internal/domain"
)

// Opener establishes a ready database handle for dsn.
type Opener func(ctx context.Context, dsn string) (*sql.DB, error)

// Connector hands out the shared database handle. Repositories depend on it
// instead of a *sql.DB so the first query triggers the connect.
type Connector interface {
	DB(ctx context.Context) (*sql.DB, error)
	Dialect() Dialect
}

// ConnCache lazily opens a single database handle and reuses it for the
// lifetime of the process. Concurrent first callers share one connect attempt.
type ConnCache struct {
	dsn            string
	dialect        Dialect
	open           Opener
	connectTimeout time.Duration
	logger         *logrus.Logger

	group singleflight.Group
	mu    sync.RWMutex
	db    *sql.DB
}

type Option func(*ConnCache)

// WithOpener replaces the function used to establish the connection.
func WithOpener(open Opener) Option {
	return func(c *ConnCache) {
		c.open = open
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *ConnCache) {
		c.connectTimeout = d
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(c *ConnCache) {
		c.logger = logger
	}
}

var _ Connector = (*ConnCache)(nil)

// NewConnCache validates dsn and prepares the cache without connecting.
func NewConnCache(dsn string, opts ...Option) (*ConnCache, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database url is required: %w", domain.ErrConfiguration)
	}

	c := &ConnCache{
		dsn:            dsn,
		dialect:        DialectFor(dsn),
		open:           Open,
		connectTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logrus.New()
	}
	return c, nil
}

func (c *ConnCache) Dialect() Dialect {
	return c.dialect
}

// DB returns the cached handle, connecting on first use. A failed attempt is
// not cached: every waiter receives its error and the next call tries again.
func (c *ConnCache) DB(ctx context.Context) (*sql.DB, error) {
	if db := c.cached(); db != nil {
		return db, nil
	}

	ch := c.group.DoChan("connect", func() (any, error) {
		if db := c.cached(); db != nil {
			return db, nil
		}

		// the attempt is shared, so it must outlive the caller that started it
		connectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.connectTimeout)
		defer cancel()

		db, err := c.open(connectCtx, c.dsn)
		if err != nil {
			c.logger.WithError(err).Warn("database connect failed")
			return nil, err
		}

		c.mu.Lock()
		c.db = db
		c.mu.Unlock()
		c.logger.WithField("dialect", c.dialect).Info("database connected")
		return db, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("connect database: %w", res.Err)
		}
		return res.Val.(*sql.DB), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the cached handle, if one was ever opened.
func (c *ConnCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *ConnCache) cached() *sql.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
