// Command respd runs the in-memory RESP2 key/value server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"gopkg.in/yaml.v3"

	"github.com/nanokv/respd"
	"github.com/nanokv/respd/pkg/logger"
)

// fileConfig mirrors the CLI flags for the optional --config file. A flag
// the user actually passed on the command line always wins over the value
// loaded here.
type fileConfig struct {
	Port          int    `yaml:"port"`
	Addr          string `yaml:"addr"`
	ReadBufferCap int    `yaml:"read_buffer_cap"`
	TCPKeepAlive  string `yaml:"tcp_keepalive"`
	LogLevel      string `yaml:"log_level"`
	LogFile       string `yaml:"log_file"`
	TLSCert       string `yaml:"tls_cert"`
	TLSKey        string `yaml:"tls_key"`
	TLSAddr       string `yaml:"tls_addr"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	var (
		port          = flag.Int("port", 16379, "listen port")
		addr          = flag.String("addr", "127.0.0.1", "bind address")
		readBufferCap = flag.Int("read-buffer-cap", 64*1024, "per-connection read buffer size, in bytes")
		tcpKeepAlive  = flag.Duration("tcp-keepalive", 5*time.Minute, "TCP keep-alive probe interval; 0 disables")
		logLevel      = flag.String("log-level", "", "log level (debug/info/warn/error); overrides RESPD_LOG")
		logFile       = flag.String("log-file", "", "log file path; empty logs to stdout")
		tlsCert       = flag.String("tls-cert", "", "TLS certificate file; enables a TLS listener alongside the plaintext one")
		tlsKey        = flag.String("tls-key", "", "TLS private key file")
		tlsAddr       = flag.String("tls-addr", "", "TLS listen address; defaults to addr with port+1")
		configPath    = flag.String("config", "", "optional YAML config file; CLI flags override its values")
	)
	flag.Parse()

	if *configPath != "" {
		cfg, err := loadFileConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "respd:", err)
			os.Exit(1)
		}
		applyFileConfig(cfg, port, addr, readBufferCap, tcpKeepAlive, logLevel, logFile, tlsCert, tlsKey, tlsAddr)
	}

	logger.SetOptions(logger.FromEnv(*logLevel, *logFile))

	srv := respd.New(respd.Options{
		Addr:          fmt.Sprintf("%s:%d", *addr, *port),
		ReadBufferCap: *readBufferCap,
		TCPKeepAlive:  *tcpKeepAlive,
		TLSCertFile:   *tlsCert,
		TLSKeyFile:    *tlsKey,
		TLSAddr:       *tlsAddr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("listening on %s:%d", *addr, *port)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Errorf("server exited: %v", err)
		os.Exit(1)
	}
	logger.Infof("shutdown complete")
}

// applyFileConfig fills in any flag that was not explicitly set on the
// command line from cfg, using flag.Visit to tell "default value" apart
// from "user passed this".
func applyFileConfig(
	cfg fileConfig,
	port *int, addr *string, readBufferCap *int, tcpKeepAlive *time.Duration,
	logLevel, logFile, tlsCert, tlsKey, tlsAddr *string,
) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if !set["port"] && cfg.Port != 0 {
		*port = cfg.Port
	}
	if !set["addr"] && cfg.Addr != "" {
		*addr = cfg.Addr
	}
	if !set["read-buffer-cap"] && cfg.ReadBufferCap != 0 {
		*readBufferCap = cfg.ReadBufferCap
	}
	if !set["tcp-keepalive"] && cfg.TCPKeepAlive != "" {
		if d, err := time.ParseDuration(cfg.TCPKeepAlive); err == nil {
			*tcpKeepAlive = d
		}
	}
	if !set["log-level"] && cfg.LogLevel != "" {
		*logLevel = cfg.LogLevel
	}
	if !set["log-file"] && cfg.LogFile != "" {
		*logFile = cfg.LogFile
	}
	if !set["tls-cert"] && cfg.TLSCert != "" {
		*tlsCert = cfg.TLSCert
	}
	if !set["tls-key"] && cfg.TLSKey != "" {
		*tlsKey = cfg.TLSKey
	}
	if !set["tls-addr"] && cfg.TLSAddr != "" {
		*tlsAddr = cfg.TLSAddr
	}
}
