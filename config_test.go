package cacheclient

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.SharedCache {
		t.Fatal("Default cache is not shared")
	}
	if cfg.MaxCacheEntries != 1000 || cfg.MaxObjectSize != 8192 {
		t.Fatalf("Store limits are %d, %d", cfg.MaxCacheEntries, cfg.MaxObjectSize)
	}
	if cfg.AsynchronousWorkersCore != 1 || cfg.AsynchronousWorkersMax != 1 || cfg.RevalidationQueueSize != 100 {
		t.Fatalf("Worker limits are %d, %d, %d", cfg.AsynchronousWorkersCore, cfg.AsynchronousWorkersMax, cfg.RevalidationQueueSize)
	}
	if cfg.AsynchronousWorkerIdleLifetime != time.Minute {
		t.Fatalf("Idle lifetime is %s", cfg.AsynchronousWorkerIdleLifetime)
	}
	if cfg.MaxConnTotal != 20 || cfg.MaxConnPerRoute != 2 {
		t.Fatalf("Connection limits are %d, %d", cfg.MaxConnTotal, cfg.MaxConnPerRoute)
	}
	if cfg.ConnectTimeout != 10*time.Second || cfg.SocketTimeout != 30*time.Second || cfg.ConnectionRequestTimeout != 10*time.Second {
		t.Fatalf("Timeouts are %s, %s, %s", cfg.ConnectTimeout, cfg.SocketTimeout, cfg.ConnectionRequestTimeout)
	}
	if cfg.ConnectionIdleTimeout != time.Minute {
		t.Fatalf("Connection idle timeout is %s", cfg.ConnectionIdleTimeout)
	}
	if cfg.Now == nil {
		t.Fatal("Clock not set")
	}
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		MaxObjectSize:           15,
		AsynchronousWorkersCore: 4,
		AsynchronousWorkersMax:  2,
		ConnectTimeout:          time.Second,
	}.withDefaults()
	if cfg.MaxObjectSize != 15 || cfg.ConnectTimeout != time.Second {
		t.Fatalf("Explicit values replaced: %d, %s", cfg.MaxObjectSize, cfg.ConnectTimeout)
	}
	if cfg.AsynchronousWorkersMax != 4 {
		t.Fatalf("Max workers is %d", cfg.AsynchronousWorkersMax)
	}
	if cfg.SharedCache {
		t.Fatal("SharedCache set by defaults")
	}
}

func TestStatusString(t *testing.T) {
	for status, str := range map[CacheResponseStatus]string{
		CacheHit:            "CACHE_HIT",
		CacheMiss:           "CACHE_MISS",
		CacheModuleResponse: "CACHE_MODULE_RESPONSE",
		Validated:           "VALIDATED",
	} {
		if status.String() != str {
			t.Fatalf("%d is %s", status, status)
		}
	}
}
