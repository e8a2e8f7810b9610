package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for verifier server configuration
const (
	EnvVerifierPort            = "NEP413_PORT"
	EnvVerifierRecipient       = "NEP413_RECIPIENT"
	EnvVerifierOrigin          = "NEP413_ORIGIN"
	EnvVerifierTimestampWindow = "NEP413_TIMESTAMP_WINDOW"
	EnvVerifierFutureSkew      = "NEP413_FUTURE_SKEW"
	EnvVerifierPersistenceType = "NEP413_PERSISTENCE_TYPE"
	EnvVerifierRedisAddress    = "NEP413_REDIS_ADDRESS"
	EnvVerifierRedisPassword   = "NEP413_REDIS_PASSWORD"
	EnvVerifierRedisDB         = "NEP413_REDIS_DB"
	EnvVerifierRedisKeyPrefix  = "NEP413_REDIS_KEY_PREFIX"
	EnvVerifierBadgerPath      = "NEP413_BADGER_PATH"
	EnvVerifierReceiptSecret   = "NEP413_RECEIPT_SECRET"
	EnvVerifierReceiptIssuer   = "NEP413_RECEIPT_ISSUER"
	EnvVerifierReceiptTTL      = "NEP413_RECEIPT_TTL"
	EnvVerifierRateLimit       = "NEP413_RATE_LIMIT"
	EnvVerifierRateLimitBurst  = "NEP413_RATE_LIMIT_BURST"
	EnvVerifierTrustedProxies  = "NEP413_TRUSTED_PROXIES"
	EnvVerifierVerbose         = "NEP413_VERBOSE"
	EnvVerifierEnvFile         = "NEP413_ENV_FILE"
	EnvVerifierServerURL       = "NEP413_SERVER_URL"
)

type PersistenceType string

func (p PersistenceType) String() string {
	return string(p)
}

const (
	PersistenceTypeMemory PersistenceType = "memory" // testing only, lost on restart
	PersistenceTypeRedis  PersistenceType = "redis"
	PersistenceTypeBadger PersistenceType = "badger"
)

var supportedPersistenceTypes = []PersistenceType{
	PersistenceTypeMemory,
	PersistenceTypeRedis,
	PersistenceTypeBadger,
}

// Defaults
const (
	DefaultPort            = 8413
	DefaultTimestampWindow = 5 * time.Minute
	DefaultFutureSkew      = 30 * time.Second
	DefaultReceiptTTL      = 15 * time.Minute
	DefaultReceiptIssuer   = "nep413-verifier"
	DefaultRateLimit       = 20.0
	DefaultRateLimitBurst  = 40
	DefaultBadgerPath      = "./data/nonces"

	// minReceiptSecretLength guards against trivially guessable receipt keys
	minReceiptSecretLength = 32
)

// GetSupportedPersistenceTypesString returns supported persistence types for CLI help
func GetSupportedPersistenceTypesString() string {
	names := make([]string, 0, len(supportedPersistenceTypes))
	for _, p := range supportedPersistenceTypes {
		names = append(names, p.String())
	}
	return strings.Join(names, ", ")
}

// RedisConfig holds connection settings for the redis nonce store
type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"keyPrefix"`
}

// PersistenceConfig selects and configures the nonce store
type PersistenceConfig struct {
	Type       PersistenceType `json:"type"`
	Redis      RedisConfig     `json:"redis"`
	BadgerPath string          `json:"badgerPath"`
}

// ReceiptConfig configures verification receipts. An empty Secret disables them.
type ReceiptConfig struct {
	Secret string        `json:"secret"`
	Issuer string        `json:"issuer"`
	TTL    time.Duration `json:"ttl"`
}

// Enabled reports whether receipts should be issued
func (rc *ReceiptConfig) Enabled() bool {
	return rc.Secret != ""
}

// VerifierServerConfig represents the complete configuration for a verifier server
type VerifierServerConfig struct {
	Port int `json:"port"`

	// Recipient is the identifier signatures must be scoped to (e.g. a contract account)
	Recipient string `json:"recipient"`
	// Origin is the site shown in the challenge message
	Origin string `json:"origin"`

	// TimestampWindow is the maximum age of a signed message
	TimestampWindow time.Duration `json:"timestamp_window"`
	// FutureSkew is how far ahead of the server clock a timestamp may be
	FutureSkew time.Duration `json:"future_skew"`

	Persistence PersistenceConfig `json:"persistence"`
	Receipt     ReceiptConfig     `json:"receipt"`

	// RateLimit is requests per second per client; zero disables limiting
	RateLimit      float64 `json:"rate_limit"`
	RateLimitBurst int     `json:"rate_limit_burst"`

	// TrustedProxies are IPs or CIDR ranges whose X-Forwarded-For header identifies the client
	TrustedProxies []string `json:"trusted_proxies"`

	Debug   bool `json:"debug"`
	Verbose bool `json:"verbose"`
}

// ApplyDefaults fills zero values with defaults
func (c *VerifierServerConfig) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TimestampWindow == 0 {
		c.TimestampWindow = DefaultTimestampWindow
	}
	if c.FutureSkew == 0 {
		c.FutureSkew = DefaultFutureSkew
	}
	if c.Persistence.Type == "" {
		c.Persistence.Type = PersistenceTypeMemory
	}
	if c.Persistence.Type == PersistenceTypeBadger && c.Persistence.BadgerPath == "" {
		c.Persistence.BadgerPath = DefaultBadgerPath
	}
	if c.Receipt.Issuer == "" {
		c.Receipt.Issuer = DefaultReceiptIssuer
	}
	if c.Receipt.TTL == 0 {
		c.Receipt.TTL = DefaultReceiptTTL
	}
	if c.RateLimit > 0 && c.RateLimitBurst == 0 {
		c.RateLimitBurst = int(c.RateLimit * 2)
	}
}

// Validate validates the verifier server configuration
func (c *VerifierServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	if c.Recipient == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("recipient"), "recipient is required"))
	}

	if c.Origin == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("origin"), "origin is required"))
	} else if u, err := url.Parse(c.Origin); err != nil || u.Scheme == "" || u.Host == "" {
		allErrors = append(allErrors, field.Invalid(field.NewPath("origin"), c.Origin, "must be an absolute URL"))
	}

	if c.TimestampWindow <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("timestamp_window"), c.TimestampWindow.String(), "must be positive"))
	}
	if c.FutureSkew < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("future_skew"), c.FutureSkew.String(), "must not be negative"))
	}

	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)

	if c.Receipt.Enabled() {
		receiptPath := field.NewPath("receipt")
		if len(c.Receipt.Secret) < minReceiptSecretLength {
			allErrors = append(allErrors, field.Invalid(receiptPath.Child("secret"), "<redacted>",
				fmt.Sprintf("must be at least %d characters", minReceiptSecretLength)))
		}
		if c.Receipt.TTL <= 0 {
			allErrors = append(allErrors, field.Invalid(receiptPath.Child("ttl"), c.Receipt.TTL.String(), "must be positive"))
		}
	}

	if c.RateLimit < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rate_limit"), c.RateLimit, "must not be negative"))
	}
	if c.RateLimit > 0 && c.RateLimitBurst < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rate_limit_burst"), c.RateLimitBurst, "must be at least 1"))
	}

	proxiesPath := field.NewPath("trusted_proxies")
	for i, entry := range c.TrustedProxies {
		if !validProxyEntry(entry) {
			allErrors = append(allErrors, field.Invalid(proxiesPath.Index(i), entry, "must be an IP address or CIDR range"))
		}
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func validProxyEntry(entry string) bool {
	entry = strings.TrimSpace(entry)
	if _, _, err := net.ParseCIDR(entry); err == nil {
		return true
	}
	return net.ParseIP(entry) != nil
}

func (pc *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList

	switch pc.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeRedis:
		if pc.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis", "address"), "redis address is required"))
		}
		if pc.Redis.DB < 0 || pc.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis", "db"), pc.Redis.DB, "must be between 0-15"))
		}
	case PersistenceTypeBadger:
		if pc.BadgerPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("badgerPath"), "badger path is required"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type, []string{
			PersistenceTypeMemory.String(),
			PersistenceTypeRedis.String(),
			PersistenceTypeBadger.String(),
		}))
	}

	return allErrors
}
