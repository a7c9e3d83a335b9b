// Package config loads EOS settings from a layered TOML file, then
// EOS__-prefixed environment variables, then CLI flags — highest
// precedence last — generalizing the teacher's ConfigStore
// (internal/util/config.go).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"eos/internal/util"
)

type Config struct {
	TickMs        int
	RPCAddr       string
	SocketPath    string
	KVDriver      string
	KVPath        string
	TelemetryAddr string
	LogLevel      string
}

func Default() Config {
	return Config{
		TickMs:        2000,
		RPCAddr:       "127.0.0.1:7420",
		SocketPath:    "/tmp/eos.sock",
		KVDriver:      "sqlite3",
		KVPath:        "eos.db",
		TelemetryAddr: "127.0.0.1:47269",
		LogLevel:      "info",
	}
}

type fileConfig struct {
	TickMs int `toml:"tick_ms"`
	RPC    struct {
		Addr string `toml:"addr"`
	} `toml:"rpc"`
	Socket struct {
		Path string `toml:"path"`
	} `toml:"socket"`
	KV struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
	} `toml:"kv"`
	Telemetry struct {
		Addr string `toml:"addr"`
	} `toml:"telemetry"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load builds a Config from eos.toml (if present in the working
// directory), then EOS__ environment variables, then argv — each layer
// overriding the previous one only for the fields it sets.
func Load(argv []string) Config {
	cfg := Default()

	if _, err := os.Stat("eos.toml"); err == nil {
		var fc fileConfig
		if _, err := toml.DecodeFile("eos.toml", &fc); err == nil {
			applyFile(&cfg, fc)
		}
	}

	applyEnv(&cfg)

	options, _ := util.ParseArgs(argv)
	applyFlags(&cfg, options)

	return cfg
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.TickMs > 0 {
		cfg.TickMs = fc.TickMs
	}
	if fc.RPC.Addr != "" {
		cfg.RPCAddr = fc.RPC.Addr
	}
	if fc.Socket.Path != "" {
		cfg.SocketPath = fc.Socket.Path
	}
	if fc.KV.Driver != "" {
		cfg.KVDriver = fc.KV.Driver
	}
	if fc.KV.Path != "" {
		cfg.KVPath = fc.KV.Path
	}
	if fc.Telemetry.Addr != "" {
		cfg.TelemetryAddr = fc.Telemetry.Addr
	}
	if fc.Log.Level != "" {
		cfg.LogLevel = fc.Log.Level
	}
}

// applyEnv reads EOS__-prefixed variables, e.g. EOS__TICK_MS=500,
// EOS__RPC__ADDR=0.0.0.0:7420 (double underscore separates path
// segments, matching the teacher's SLUG__ convention).
func applyEnv(cfg *Config) {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "EOS__") {
			continue
		}
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(pair[0], "EOS__"), "__", "."))
		setByKey(cfg, key, pair[1])
	}
}

func applyFlags(cfg *Config, options map[string]string) {
	for key, value := range options {
		setByKey(cfg, strings.ReplaceAll(key, "-", "."), value)
	}
}

func setByKey(cfg *Config, key, value string) {
	switch key {
	case "tick_ms", "tick.ms":
		if n, err := strconv.Atoi(value); err == nil {
			cfg.TickMs = n
		}
	case "rpc.addr", "rpc_addr":
		cfg.RPCAddr = value
	case "socket.path", "socket_path":
		cfg.SocketPath = value
	case "kv.driver", "kv_driver":
		cfg.KVDriver = value
	case "kv.path", "kv_path":
		cfg.KVPath = value
	case "telemetry.addr", "telemetry_addr":
		cfg.TelemetryAddr = value
	case "log.level", "log_level":
		cfg.LogLevel = value
	}
}
