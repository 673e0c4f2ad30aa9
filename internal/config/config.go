// Package config provides functionality for managing configuration options
// for the fixture tools using command-line flags, environment variables and an
// optional JSON config file.
package config

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
)

// KeySize is the length of the pre-shared AES-128 key in bytes.
const KeySize = 16

// ErrInvalidKey is returned when the configured key is missing or has the wrong length.
var ErrInvalidKey = errors.New("encryption key must be 16 bytes or 32 hex characters")

// Options holds the configuration values for the application.
type Options struct {
	// Addr defines the HTTP server's listening address (ip:port).
	Addr string `json:"addr"`

	// Key is the pre-shared key, 16 raw characters or 32 hex digits.
	Key string `json:"key"`

	// Prefix is prepended to every device identifier.
	Prefix string `json:"prefix"`

	// Seed is the first unique code; 0 means current Unix milliseconds.
	Seed uint64 `json:"seed"`

	// OutputDir receives rendered QR PNG files.
	OutputDir string `json:"output_dir"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level"`

	// LogFile enables a rotating log file when set.
	LogFile string `json:"log_file"`

	// Config is the path to the Config file.
	Config string `json:"-"`
}

// Load parses args into a fresh Options using fs, then applies the config file and
// environment overrides looked up through getenv.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (*Options, error) {
	opts := &Options{}
	fs.StringVar(&opts.Addr, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&opts.Key, "k", "", "pre-shared encryption key (16 chars or 32 hex digits)")
	fs.StringVar(&opts.Prefix, "p", "DUMMY-BIN", "device id prefix")
	fs.Uint64Var(&opts.Seed, "seed", 0, "first unique code (0 = current time in ms)")
	fs.StringVar(&opts.OutputDir, "o", "qrcodes", "directory for rendered QR codes")
	fs.StringVar(&opts.LogLevel, "l", "info", "log level")
	fs.StringVar(&opts.LogFile, "log-file", "", "rotating log file path")
	fs.StringVar(&opts.Config, "config", "config.json", "path to config file")
	fs.StringVar(&opts.Config, "c", "config.json", "path to config file (shorthand)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Override flags with environment variables if set
	if configPath := getenv("CONFIG"); configPath != "" {
		opts.Config = configPath
	}

	if opts.Config != "" {
		if _, err := os.Stat(opts.Config); err == nil {
			data, err := os.ReadFile(opts.Config)
			if err != nil {
				return nil, errors.Wrap(err, "read config file")
			}
			if err := json.Unmarshal(data, opts); err != nil {
				return nil, errors.Wrap(err, "parse config file")
			}
		}
	}

	if v := getenv("SERVER_ADDRESS"); v != "" {
		opts.Addr = v
	}
	if v := getenv("ENCRYPTION_KEY"); v != "" {
		opts.Key = v
	}
	if v := getenv("DEVICE_PREFIX"); v != "" {
		opts.Prefix = v
	}
	if v := getenv("CODE_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse CODE_SEED")
		}
		opts.Seed = seed
	}
	if v := getenv("OUTPUT_DIR"); v != "" {
		opts.OutputDir = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		opts.LogLevel = v
	}

	return opts, nil
}

// Parse loads options from the process command line and environment.
// It exits the process on malformed input.
func Parse() *Options {
	opts, err := Load(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		log.Fatalf("error while loading config: %v", err)
	}
	return opts
}

// KeyBytes decodes the configured key.
func (o *Options) KeyBytes() ([]byte, error) {
	switch len(o.Key) {
	case KeySize:
		return []byte(o.Key), nil
	case 2 * KeySize:
		b, err := hex.DecodeString(o.Key)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidKey, err.Error())
		}
		return b, nil
	default:
		return nil, errors.Wrapf(ErrInvalidKey, "got %d characters", len(o.Key))
	}
}
