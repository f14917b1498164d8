package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cacheclient.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  origin: http://localhost:3000/
cache:
  store: sqlite
  maxEntries: 10
  maxObjectSize: 15
  shared: false
revalidation:
  workersCore: 2
  workersMax: 4
  workerIdleLifetime: 30
  queueSize: 5
connections:
  maxTotal: 1
  maxPerRoute: 1
  requestTimeout: 2s
  idleTimeout: 90s
rules:
  - prefix: /static/
    extend: stale-while-revalidate=30
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("Port is %d", cfg.Server.Port)
	}
	if cfg.originURL.String() != "http://localhost:3000" {
		t.Fatalf("Origin is %s", cfg.originURL)
	}

	cc, err := cfg.clientConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cc.SharedCache {
		t.Fatal("Cache is shared")
	}
	if cc.MaxCacheEntries != 10 || cc.MaxObjectSize != 15 {
		t.Fatalf("Store limits are %d, %d", cc.MaxCacheEntries, cc.MaxObjectSize)
	}
	if cc.AsynchronousWorkersCore != 2 || cc.AsynchronousWorkersMax != 4 || cc.RevalidationQueueSize != 5 {
		t.Fatalf("Worker limits are %d, %d, %d", cc.AsynchronousWorkersCore, cc.AsynchronousWorkersMax, cc.RevalidationQueueSize)
	}
	if cc.AsynchronousWorkerIdleLifetime != 30*time.Second {
		t.Fatalf("Idle lifetime is %s", cc.AsynchronousWorkerIdleLifetime)
	}
	if cc.MaxConnTotal != 1 || cc.MaxConnPerRoute != 1 || cc.ConnectionRequestTimeout != 2*time.Second {
		t.Fatalf("Connection settings are %d, %d, %s", cc.MaxConnTotal, cc.MaxConnPerRoute, cc.ConnectionRequestTimeout)
	}
	if cc.ConnectionIdleTimeout != 90*time.Second {
		t.Fatalf("Connection idle timeout is %s", cc.ConnectionIdleTimeout)
	}
	if len(cfg.Rules) != 1 || cfg.Rules[0].Extend != "stale-while-revalidate=30" || cc.ResponseModifier == nil {
		t.Fatalf("Rules are %+v", cfg.Rules)
	}
	if cc.ConnectTimeout != 0 {
		t.Fatalf("Connect timeout is %s", cc.ConnectTimeout)
	}
}

func TestConfigDefaultsToSharedMemoryCache(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  origin: https://example.com\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Store != "memory" {
		t.Fatalf("Store is %s", cfg.Cache.Store)
	}
	cc, err := cfg.clientConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !cc.SharedCache {
		t.Fatal("Cache is not shared")
	}
}

func TestInvalidConfig(t *testing.T) {
	for name, content := range map[string]string{
		"missing origin": "server:\n  port: 80\n",
		"origin path":    "server:\n  origin: http://example.com/app\n",
		"origin scheme":  "server:\n  origin: ftp://example.com\n",
		"unknown store":  "server:\n  origin: http://example.com\ncache:\n  store: redis\n",
	} {
		cfg, err := LoadConfig(writeConfig(t, content))
		if err != nil {
			t.Fatal(err)
		}
		if err := cfg.validate(); err == nil {
			t.Fatalf("No error for %s", name)
		}
	}

	cfg, _ := LoadConfig(writeConfig(t, "server:\n  origin: http://example.com\nconnections:\n  socketTimeout: soon\n"))
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.clientConfig(); err == nil {
		t.Fatal("No error for invalid duration")
	}
}
