package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/sync/singleflight"

	"mensajeria/internal/repository"
)

const connectTimeout = 5 * time.Second

// Config holds the connection parameters of the message database.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN renders the config as a postgres:// URL understood by pgx.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// OpenFunc establishes a fresh database handle.
type OpenFunc func(ctx context.Context) (*sql.DB, error)

// Conn owns the single shared database handle. The handle is opened lazily
// and dropped when a ping fails, so the next access reconnects instead of
// the process failing at startup or after an outage.
type Conn struct {
	mu        sync.Mutex
	db        *sql.DB
	closed    bool
	open      OpenFunc
	onConnect []func(ctx context.Context, db *sql.DB) error

	// one dial at a time; concurrent callers share its result
	dial singleflight.Group
}

// NewConn returns a Conn backed by the pgx driver. No connection is made
// until first use.
func NewConn(cfg Config) *Conn {
	return NewConnWithOpener(pgxOpener(cfg.DSN()))
}

func NewConnWithOpener(open OpenFunc) *Conn {
	return &Conn{open: open}
}

func pgxOpener(dsn string) OpenFunc {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return db, nil
	}
}

// OnConnect registers a hook that runs every time a new handle is opened.
// A failing hook discards the handle.
func (c *Conn) OnConnect(fn func(ctx context.Context, db *sql.DB) error) {
	c.mu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.mu.Unlock()
}

// DB returns the shared handle, connecting first if needed. Failures are
// reported as repository.ErrStorageUnavailable. The dial is not bound to
// ctx; a caller that gives up stops waiting but the attempt continues for
// the others.
func (c *Conn) DB(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()
	if db != nil {
		return db, nil
	}

	ch := c.dial.DoChan("connect", func() (interface{}, error) {
		return c.connect()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*sql.DB), nil
	}
}

func (c *Conn) connect() (*sql.DB, error) {
	c.mu.Lock()
	if c.db != nil {
		db := c.db
		c.mu.Unlock()
		return db, nil
	}
	hooks := append([]func(ctx context.Context, db *sql.DB) error(nil), c.onConnect...)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*connectTimeout)
	defer cancel()

	db, err := c.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorageUnavailable, err)
	}
	for _, fn := range hooks {
		if err := fn(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", repository.ErrStorageUnavailable, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		db.Close()
		return nil, fmt.Errorf("%w: connection closed", repository.ErrStorageUnavailable)
	}
	c.db = db
	return db, nil
}

// Ping checks the handle, dropping it when the database is unreachable.
func (c *Conn) Ping(ctx context.Context) error {
	db, err := c.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.drop(db)
		return fmt.Errorf("%w: %v", repository.ErrStorageUnavailable, err)
	}
	return nil
}

// Connected reports whether a handle is currently held.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db != nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// checkFailure is called after a failed statement. If the database is no
// longer reachable the handle is dropped and the error is re-tagged as
// ErrStorageUnavailable. A cancelled request says nothing about the
// database and leaves the shared handle alone.
func (c *Conn) checkFailure(ctx context.Context, db *sql.DB, err error) error {
	if ctx.Err() != nil {
		return err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		c.drop(db)
		return fmt.Errorf("%w: %v", repository.ErrStorageUnavailable, err)
	}
	return err
}

func (c *Conn) drop(db *sql.DB) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == db {
		_ = db.Close()
		c.db = nil
	}
}
