package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("key not found")

// Store is the key/value + list capability the version registry is built on.
// Range and trim bounds are inclusive and follow Redis index semantics:
// negative indexes count back from the tail, -1 being the last element.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// ListPush prepends value to list and returns the new length.
	ListPush(ctx context.Context, list, value string) (int64, error)
	ListRange(ctx context.Context, list string, start, stop int64) ([]string, error)
	ListTrim(ctx context.Context, list string, start, stop int64) error
}

const (
	DriverRedis  = "redis"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// Connection describes where a Store lives.
type Connection struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Path is the data directory for the badger driver.
	Path string `yaml:"path"`
}

// Addr returns host:port, defaulting to the local Redis port.
func (c Connection) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Open builds the Store described by conn.
func Open(conn Connection) (Store, error) {
	switch conn.Driver {
	case "", DriverRedis:
		return NewRedis(conn), nil
	case DriverBadger:
		if conn.Path == "" {
			return nil, fmt.Errorf("badger driver requires a data path")
		}
		return NewBadger(conn.Path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", conn.Driver)
	}
}

// bounds converts inclusive Redis-style indexes into a half-open slice
// window over a list of length n. ok is false when the window is empty.
func bounds(n, start, stop int64) (lo, hi int64, ok bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop + 1, true
}
