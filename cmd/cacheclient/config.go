package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/always-cache/cacheclient"
	responsetransformer "github.com/always-cache/cacheclient/pkg/response-transformer"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		Origin string `yaml:"origin"`
		// Hostname to use for HTTP requests and TLS negotiation, when the
		// origin URL is e.g. just an IP address.
		Host string `yaml:"host"`
	} `yaml:"server"`

	Cache struct {
		// memory or sqlite
		Store         string `yaml:"store"`
		MaxEntries    int    `yaml:"maxEntries"`
		MaxObjectSize int64  `yaml:"maxObjectSize"`
		Shared        *bool  `yaml:"shared"`
	} `yaml:"cache"`

	Revalidation struct {
		WorkersCore int `yaml:"workersCore"`
		WorkersMax  int `yaml:"workersMax"`
		// seconds
		WorkerIdleLifetime int `yaml:"workerIdleLifetime"`
		QueueSize          int `yaml:"queueSize"`
	} `yaml:"revalidation"`

	Connections struct {
		MaxTotal       int    `yaml:"maxTotal"`
		MaxPerRoute    int    `yaml:"maxPerRoute"`
		ConnectTimeout string `yaml:"connectTimeout"`
		SocketTimeout  string `yaml:"socketTimeout"`
		RequestTimeout string `yaml:"requestTimeout"`
		IdleTimeout    string `yaml:"idleTimeout"`
	} `yaml:"connections"`

	// Cache-Control adjustments of origin responses.
	Rules responsetransformer.Rules `yaml:"rules"`

	// parsed
	originURL *url.URL
}

func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate sets defaults and checks the values that the client does not
// check itself.
func (cfg *Config) validate() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	origin, err := url.Parse(strings.TrimRight(cfg.Server.Origin, "/"))
	if err != nil {
		return fmt.Errorf("server.origin: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return fmt.Errorf("server.origin: unsupported scheme %q", origin.Scheme)
	}
	if origin.Path != "" {
		return fmt.Errorf("server.origin: origins with paths are not supported")
	}
	cfg.originURL = origin

	switch cfg.Cache.Store {
	case "":
		cfg.Cache.Store = "memory"
	case "memory", "sqlite":
	default:
		return fmt.Errorf("cache.store: unknown store %q", cfg.Cache.Store)
	}
	return nil
}

// clientConfig returns the configuration of the caching client.
// Zero values are left for the client to default.
func (cfg Config) clientConfig() (cacheclient.Config, error) {
	cc := cacheclient.Config{
		MaxCacheEntries:                cfg.Cache.MaxEntries,
		MaxObjectSize:                  cfg.Cache.MaxObjectSize,
		SharedCache:                    true,
		AsynchronousWorkersCore:        cfg.Revalidation.WorkersCore,
		AsynchronousWorkersMax:         cfg.Revalidation.WorkersMax,
		AsynchronousWorkerIdleLifetime: time.Duration(cfg.Revalidation.WorkerIdleLifetime) * time.Second,
		RevalidationQueueSize:          cfg.Revalidation.QueueSize,
		MaxConnTotal:                   cfg.Connections.MaxTotal,
		MaxConnPerRoute:                cfg.Connections.MaxPerRoute,
	}
	if len(cfg.Rules) > 0 {
		cc.ResponseModifier = cfg.Rules.Apply
	}
	if cfg.Cache.Shared != nil {
		cc.SharedCache = *cfg.Cache.Shared
	}
	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"connections.connectTimeout", cfg.Connections.ConnectTimeout, &cc.ConnectTimeout},
		{"connections.socketTimeout", cfg.Connections.SocketTimeout, &cc.SocketTimeout},
		{"connections.requestTimeout", cfg.Connections.RequestTimeout, &cc.ConnectionRequestTimeout},
		{"connections.idleTimeout", cfg.Connections.IdleTimeout, &cc.ConnectionIdleTimeout},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return cacheclient.Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = parsed
	}
	return cc, nil
}
