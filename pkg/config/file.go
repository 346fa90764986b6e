package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by LoadFile,
// e.g. FPGARELAY_BACKEND_TIMEOUT=45s.
const EnvPrefix = "FPGARELAY"

// DefaultListen is the transport the relay binds when nothing else is configured.
const DefaultListen = "tcp://0.0.0.0:9999"

// File is the relay's on-disk configuration.
type File struct {
	Listen  string        `mapstructure:"listen"`
	Verbose bool          `mapstructure:"verbose"`
	Timeout time.Duration `mapstructure:"timeout"`

	Server struct {
		MaxConns     int    `mapstructure:"max_conns"`
		MaxLineBytes int    `mapstructure:"max_line_bytes"`
		LogFile      string `mapstructure:"log_file"`
	} `mapstructure:"server"`

	Backend struct {
		Program string        `mapstructure:"program"`
		Args    []string      `mapstructure:"args"`
		Dir     string        `mapstructure:"dir"`
		Env     []string      `mapstructure:"env"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`
}

// LoadFile reads defaults, then the optional file at path, then FPGARELAY_*
// environment variables. An empty path skips the file.
func LoadFile(path string) (*File, error) {
	v := viper.New()

	v.SetDefault("listen", DefaultListen)
	v.SetDefault("verbose", false)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("server.max_conns", 0)
	v.SetDefault("server.max_line_bytes", DefaultMaxLineBytes)
	v.SetDefault("server.log_file", "")
	v.SetDefault("backend.program", DefaultBackendProgram)
	v.SetDefault("backend.args", DefaultBackendArgs)
	v.SetDefault("backend.dir", "")
	v.SetDefault("backend.env", []string{})
	v.SetDefault("backend.timeout", DefaultBackendTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return &f, nil
}

// ServerConfig returns the server section as a Server.
func (f *File) ServerConfig() *Server {
	return &Server{
		MaxConns:     f.Server.MaxConns,
		MaxLineBytes: f.Server.MaxLineBytes,
		LogFile:      f.Server.LogFile,
	}
}

// BackendConfig returns the backend section as a Backend.
func (f *File) BackendConfig() *Backend {
	return &Backend{
		Program: f.Backend.Program,
		Args:    append([]string(nil), f.Backend.Args...),
		Dir:     f.Backend.Dir,
		Env:     append([]string(nil), f.Backend.Env...),
		Timeout: f.Backend.Timeout,
	}
}
