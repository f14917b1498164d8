package main

import (
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/always-cache/cacheclient"
	"github.com/always-cache/cacheclient/cache"
)

var (
	// CLI flags
	portFlag           int
	originFlag         string
	hostFlag           string
	configFlag         string
	storeFlag          string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// set at build time with -ldflags
	version string
)

func init() {
	flag.StringVar(&originFlag, "origin", "", "Origin URL to proxy to")
	flag.StringVar(&hostFlag, "host", "", "Hostname of origin")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&configFlag, "config", "", "YAML configuration file")
	flag.StringVar(&storeFlag, "store", "memory", "Cache store: memory or sqlite")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if logFilenameFlag != "" {
		if logFileOutput, err := os.OpenFile(logFilenameFlag, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	cfg, err := configure()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	registry := prometheus.NewRegistry()
	client, err := newClient(cfg, registry, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create client")
	}
	defer client.Close()

	router := newRouter(cfg, client, registry, log.Logger)
	log.Info().Msgf("Proxying port %v to %s (with hostname '%s')", cfg.Server.Port, cfg.originURL, cfg.Server.Host)
	if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.Port), router); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// configure reads the configuration file, if any, and applies the flags
// given on the command line on top of it.
func configure() (Config, error) {
	var cfg Config
	if configFlag != "" {
		var err error
		if cfg, err = LoadConfig(configFlag); err != nil {
			return cfg, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "origin":
			cfg.Server.Origin = originFlag
		case "host":
			cfg.Server.Host = hostFlag
		case "port":
			cfg.Server.Port = portFlag
		case "store":
			cfg.Cache.Store = storeFlag
		}
	})
	return cfg, cfg.validate()
}

func newClient(cfg Config, reg prometheus.Registerer, logger zerolog.Logger) (*cacheclient.Client, error) {
	cc, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}
	cc.Logger = &logger
	cc.Registerer = reg
	if cfg.Server.Host != "" {
		cc.TLSConfig = &tls.Config{ServerName: cfg.Server.Host}
	}
	if cfg.Cache.Store == "sqlite" {
		store, err := cache.NewSQLiteStore(cache.Options{
			MaxEntries:    cc.MaxCacheEntries,
			MaxObjectSize: cc.MaxObjectSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		cc.Store = store
	}
	return cacheclient.New(cc)
}

func newRouter(cfg Config, client *cacheclient.Client, gatherer prometheus.Gatherer, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/*", &proxy{
		client: client,
		origin: cfg.originURL,
		host:   cfg.Server.Host,
		log:    logger.With().Str("origin", cfg.originURL.String()).Logger(),
	})
	return r
}
