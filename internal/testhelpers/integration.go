//go:build integration

// Package testhelpers holds shared setup for tests run with -tags integration.
package testhelpers

import (
	"os"
	"testing"
)

// MemcachedAddr returns MEMCACHED_ADDRS or localhost:11211.
func MemcachedAddr(t *testing.T) string {
	t.Helper()
	if addr := os.Getenv("MEMCACHED_ADDRS"); addr != "" {
		return addr
	}
	return "localhost:11211"
}

// RedisAddr returns REDIS_ADDR, skipping the test when unset.
func RedisAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	return addr
}
