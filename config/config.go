// Package config loads the auction server configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/engine"
	"github.com/cloudx-io/nftauction/market"
)

const (
	DefaultListen      = "tcp://:7400"
	DefaultMetricsAddr = "127.0.0.1:9400"
	DefaultReceiptKey  = "receipt_key.pem"
	DefaultMaxRate     = core.BasisPoints(3000)
)

type Config struct {
	Listen      string
	MetricsAddr string // empty disables the metrics server
	MaxWorkers  int
	RateLimit   float64
	RateBurst   int
	ReceiptKey  string
	Verbose     bool

	Admin         core.Address
	FeeRecipient  core.Address
	FeeRate       core.BasisPoints
	BidFeeRate    core.BasisPoints
	MaxDuration   time.Duration
	PaymentTokens []core.Address
	Collections   []market.CollectionSpec

	MaxCreatorRoyaltyRate core.BasisPoints
	MaxPirsRate           core.BasisPoints
	MaxBidbackRate        core.BasisPoints
}

// Load reads the configuration. Files in envFiles (default ".env") are
// optional; variables already set in the environment take precedence.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	maxWorkers, err := getRequiredEnvInt("AUCTION_MAX_WORKERS")
	if err != nil {
		return nil, err
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		Listen:      getEnv("AUCTION_LISTEN", DefaultListen),
		MetricsAddr: getEnv("AUCTION_METRICS_ADDR", DefaultMetricsAddr),
		MaxWorkers:  maxWorkers,
		ReceiptKey:  getEnv("AUCTION_RECEIPT_KEY", DefaultReceiptKey),
		Admin:       core.NormalizeAddress(os.Getenv("AUCTION_ADMIN")),
	}
	cfg.FeeRecipient = core.NormalizeAddress(getEnv("AUCTION_FEE_RECIPIENT", cfg.Admin.String()))

	cfg.RateLimit, err = getEnvFloat("AUCTION_RATE_LIMIT", 0)
	collect(err)
	cfg.RateBurst, err = getEnvInt("AUCTION_RATE_BURST", 0)
	collect(err)
	cfg.Verbose, err = getEnvBool("AUCTION_VERBOSE", false)
	collect(err)

	cfg.FeeRate, err = getEnvRate("AUCTION_FEE_RATE", 0)
	collect(err)
	cfg.BidFeeRate, err = getEnvRate("AUCTION_BID_FEE_RATE", 0)
	collect(err)
	cfg.MaxCreatorRoyaltyRate, err = getEnvRate("AUCTION_MAX_CREATOR_RATE", DefaultMaxRate)
	collect(err)
	cfg.MaxPirsRate, err = getEnvRate("AUCTION_MAX_PIRS_RATE", DefaultMaxRate)
	collect(err)
	cfg.MaxBidbackRate, err = getEnvRate("AUCTION_MAX_BIDBACK_RATE", DefaultMaxRate)
	collect(err)

	maxDuration, err := getEnvInt("AUCTION_MAX_DURATION", int(engine.DefaultMaxDuration/time.Second))
	collect(err)
	cfg.MaxDuration = time.Duration(maxDuration) * time.Second

	cfg.PaymentTokens = parseAddresses(os.Getenv("AUCTION_PAYMENT_TOKENS"))
	cfg.Collections, err = parseCollections(os.Getenv("AUCTION_COLLECTIONS"))
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.MaxWorkers <= 0 {
		return fmt.Errorf("AUCTION_MAX_WORKERS must be positive, got %d", cfg.MaxWorkers)
	}
	if cfg.Admin.IsZero() {
		return errors.New("required environment variable AUCTION_ADMIN is not set")
	}
	if len(cfg.PaymentTokens) == 0 {
		return errors.New("required environment variable AUCTION_PAYMENT_TOKENS is not set")
	}
	if cfg.MaxDuration <= 0 {
		return fmt.Errorf("AUCTION_MAX_DURATION must be positive, got %s", cfg.MaxDuration)
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("AUCTION_RATE_LIMIT must not be negative, got %v", cfg.RateLimit)
	}
	return nil
}

// Market returns the marketplace configuration.
func (cfg *Config) Market(log *slog.Logger, clock clockwork.Clock) market.Config {
	return market.Config{
		Logger: log,
		Clock:  clock,
		Admin:  cfg.Admin,
		Fees: engine.FeeConfig{
			Recipient:      cfg.FeeRecipient,
			AuctionFeeRate: cfg.FeeRate,
			BidFeeRate:     cfg.BidFeeRate,
		},
		MaxDuration:           cfg.MaxDuration,
		PaymentTokens:         cfg.PaymentTokens,
		Collections:           cfg.Collections,
		MaxCreatorRoyaltyRate: cfg.MaxCreatorRoyaltyRate,
		MaxPirsRate:           cfg.MaxPirsRate,
		MaxBidbackRate:        cfg.MaxBidbackRate,
	}
}

func parseAddresses(s string) []core.Address {
	var out []core.Address
	for _, part := range strings.Split(s, ",") {
		if addr := core.NormalizeAddress(part); !addr.IsZero() {
			out = append(out, addr)
		}
	}
	return out
}

// parseCollections reads "addr[:erc721|erc1155],..." entries.
func parseCollections(s string) ([]market.CollectionSpec, error) {
	var out []market.CollectionSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, kind, _ := strings.Cut(part, ":")
		spec := market.CollectionSpec{Address: core.NormalizeAddress(addr)}
		switch strings.ToLower(kind) {
		case "", "erc721":
			spec.TokenType = core.TokenTypeERC721
		case "erc1155":
			spec.TokenType = core.TokenTypeERC1155
		default:
			return nil, fmt.Errorf("invalid token type %q for collection %s in AUCTION_COLLECTIONS", kind, addr)
		}
		out = append(out, spec)
	}
	return out, nil
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// Helper function for required environment variable parsing
func getRequiredEnvInt(key string) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, fmt.Errorf("required environment variable %s is not set", key)
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	return intValue, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a valid integer)", key, value)
	}
	return intValue, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %s (must be a number)", key, value)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %s (must be true or false)", key, value)
	}
	return b, nil
}

// getEnvRate reads basis points (0..10000).
func getEnvRate(key string, defaultValue core.BasisPoints) (core.BasisPoints, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil || !core.BasisPoints(n).Valid() {
		return 0, fmt.Errorf("invalid value for %s: %s (must be basis points between 0 and %d)", key, value, core.MaxBasisPoints)
	}
	return core.BasisPoints(n), nil
}
