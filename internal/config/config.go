// Package config loads watcher configuration from defaults, an optional
// YAML file and LAUNCHWATCH_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"launch-watch/internal/discovery"
	"launch-watch/internal/solana"
)

// EnvPrefix is the prefix of environment overrides, e.g. LAUNCHWATCH_RPC_ENDPOINT.
const EnvPrefix = "LAUNCHWATCH"

// Metadata source names.
const (
	SourceMetaplex = "metaplex"
	SourceHTTP     = "http"
)

// maxSignaturesLimit is the largest page getSignaturesForAddress accepts.
const maxSignaturesLimit = 1000

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete watcher configuration.
type Config struct {
	RPC        RPCConfig        `mapstructure:"rpc"`
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Poll       PollConfig       `mapstructure:"poll"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Results    ResultsConfig    `mapstructure:"results"`
	Metadata   MetadataConfig   `mapstructure:"metadata"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
}

// RPCConfig configures the Solana endpoints.
type RPCConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	WSEndpoint string        `mapstructure:"ws_endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RPS        float64       `mapstructure:"rps"`
	Burst      int           `mapstructure:"burst"`
}

// TrackerConfig names the watched account.
type TrackerConfig struct {
	Account string `mapstructure:"account"`
}

// PollConfig configures the scheduler.
type PollConfig struct {
	InitialLimit int           `mapstructure:"initial_limit"`
	SteadyLimit  int           `mapstructure:"steady_limit"`
	Interval     time.Duration `mapstructure:"interval"`
	MinWakeGap   time.Duration `mapstructure:"min_wake_gap"`
}

// FetchConfig configures the 429 backoff.
type FetchConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
}

// ClassifierConfig mirrors discovery.Profile.
type ClassifierConfig struct {
	Name              string   `mapstructure:"name"`
	Version           string   `mapstructure:"version"`
	Fingerprints      []string `mapstructure:"fingerprints"`
	ProgramID         string   `mapstructure:"program_id"`
	PostBalancesLen   int      `mapstructure:"post_balances_len"`
	MinFirstBalance   uint64   `mapstructure:"min_first_balance"`
	TokenAccountIndex int      `mapstructure:"token_account_index"`
	PairAccountIndex  int      `mapstructure:"pair_account_index"`
}

// Profile converts the section into a classifier profile.
func (c ClassifierConfig) Profile() discovery.Profile {
	return discovery.Profile{
		Name:              c.Name,
		Version:           c.Version,
		Fingerprints:      append([]string(nil), c.Fingerprints...),
		ProgramID:         c.ProgramID,
		PostBalancesLen:   c.PostBalancesLen,
		MinFirstBalance:   c.MinFirstBalance,
		TokenAccountIndex: c.TokenAccountIndex,
		PairAccountIndex:  c.PairAccountIndex,
	}
}

// ResultsConfig bounds the result set and dedup memory.
type ResultsConfig struct {
	Capacity        int  `mapstructure:"capacity"`
	SignatureWindow int  `mapstructure:"signature_window"`
	TokenWindow     int  `mapstructure:"token_window"`
	DedupByToken    bool `mapstructure:"dedup_by_token"`
}

// MetadataConfig lists enrichment sources in priority order.
type MetadataConfig struct {
	Sources []string      `mapstructure:"sources"`
	HTTPURL string        `mapstructure:"http_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTTPConfig configures the feed server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig configures optional snapshot publishing. Empty Addr disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Load reads configuration. An empty path skips the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDotEnv exports the variables of a dotenv file into the process
// environment. Variables that are already set win. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}

	// viper lowercases keys; variable names here are upper case by convention.
	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if os.Getenv(name) != "" {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.ws_endpoint", "")
	v.SetDefault("rpc.timeout", solana.DefaultTimeout)
	v.SetDefault("rpc.rps", float64(solana.DefaultRPS))
	v.SetDefault("rpc.burst", solana.DefaultBurst)

	v.SetDefault("tracker.account", "39azUYFWPz3VHgKCf3VChUwbpURdCHRxjWVowf5jUJjg")

	v.SetDefault("poll.initial_limit", 50)
	v.SetDefault("poll.steady_limit", 20)
	v.SetDefault("poll.interval", 30*time.Second)
	v.SetDefault("poll.min_wake_gap", 2*time.Second)

	v.SetDefault("fetch.max_retries", discovery.DefaultMaxRetries)
	v.SetDefault("fetch.base_delay", discovery.DefaultBaseDelay)

	p := discovery.DefaultProfile()
	v.SetDefault("classifier.name", p.Name)
	v.SetDefault("classifier.version", p.Version)
	v.SetDefault("classifier.fingerprints", p.Fingerprints)
	v.SetDefault("classifier.program_id", p.ProgramID)
	v.SetDefault("classifier.post_balances_len", p.PostBalancesLen)
	v.SetDefault("classifier.min_first_balance", p.MinFirstBalance)
	v.SetDefault("classifier.token_account_index", p.TokenAccountIndex)
	v.SetDefault("classifier.pair_account_index", p.PairAccountIndex)

	v.SetDefault("results.capacity", 5)
	v.SetDefault("results.signature_window", 1024)
	v.SetDefault("results.token_window", 1024)
	v.SetDefault("results.dedup_by_token", true)

	v.SetDefault("metadata.sources", []string{SourceMetaplex})
	v.SetDefault("metadata.http_url", "")
	v.SetDefault("metadata.timeout", 5*time.Second)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "launch-watch:results")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if err := validateURL(c.RPC.Endpoint, "http", "https"); err != nil {
		return invalid("rpc.endpoint: %v", err)
	}
	if c.RPC.WSEndpoint != "" {
		if err := validateURL(c.RPC.WSEndpoint, "ws", "wss"); err != nil {
			return invalid("rpc.ws_endpoint: %v", err)
		}
	}
	if c.RPC.Timeout <= 0 {
		return invalid("rpc.timeout must be positive")
	}
	if c.RPC.RPS < 0 {
		return invalid("rpc.rps must not be negative")
	}

	if err := solana.ValidatePubkey(c.Tracker.Account); err != nil {
		return invalid("tracker.account: %v", err)
	}

	for name, limit := range map[string]int{
		"poll.initial_limit": c.Poll.InitialLimit,
		"poll.steady_limit":  c.Poll.SteadyLimit,
	} {
		if limit < 1 || limit > maxSignaturesLimit {
			return invalid("%s must be in [1, %d], got %d", name, maxSignaturesLimit, limit)
		}
	}
	if c.Poll.Interval <= 0 {
		return invalid("poll.interval must be positive")
	}
	if c.Poll.MinWakeGap < 0 {
		return invalid("poll.min_wake_gap must not be negative")
	}

	if c.Fetch.MaxRetries < 0 {
		return invalid("fetch.max_retries must not be negative")
	}
	if c.Fetch.BaseDelay < 0 {
		return invalid("fetch.base_delay must not be negative")
	}

	if err := c.Classifier.Profile().Validate(); err != nil {
		return invalid("classifier: %v", err)
	}
	if c.Classifier.ProgramID != "" {
		if err := solana.ValidatePubkey(c.Classifier.ProgramID); err != nil {
			return invalid("classifier.program_id: %v", err)
		}
	}

	if c.Results.Capacity < 1 {
		return invalid("results.capacity must be positive")
	}
	maxLimit := c.MaxLimit()
	if c.Results.SignatureWindow < maxLimit {
		return invalid("results.signature_window %d is smaller than the poll limit %d", c.Results.SignatureWindow, maxLimit)
	}
	if c.Results.DedupByToken && c.Results.TokenWindow < maxLimit {
		return invalid("results.token_window %d is smaller than the poll limit %d", c.Results.TokenWindow, maxLimit)
	}

	if len(c.Metadata.Sources) == 0 {
		return invalid("metadata.sources must not be empty")
	}
	for _, src := range c.Metadata.Sources {
		switch src {
		case SourceMetaplex:
		case SourceHTTP:
			if !strings.Contains(c.Metadata.HTTPURL, "{mint}") {
				return invalid("metadata.http_url must contain {mint} when the http source is enabled")
			}
		default:
			return invalid("metadata.sources: unknown source %q", src)
		}
	}
	if c.Metadata.Timeout <= 0 {
		return invalid("metadata.timeout must be positive")
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr must not be empty")
	}
	if c.Redis.Enabled() && c.Redis.Channel == "" {
		return invalid("redis.channel must not be empty when redis.addr is set")
	}
	return nil
}

// MaxLimit is the larger of the two poll limits.
func (c *Config) MaxLimit() int {
	if c.Poll.InitialLimit > c.Poll.SteadyLimit {
		return c.Poll.InitialLimit
	}
	return c.Poll.SteadyLimit
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %s URL", raw, strings.Join(schemes, "/"))
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
