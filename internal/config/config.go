package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Chain    ChainConfig
	Paystack PaystackConfig
	SMTP     SMTPConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PostgresConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

type ChainConfig struct {
	// RPCURL is the default JSON-RPC endpoint; per-chain overrides come from
	// CHAIN_RPC_URL_<id> (e.g. CHAIN_RPC_URL_8453).
	RPCURL string
	// SponsorKey is the hex private key used to pay gas for sponsored grants.
	// Empty disables the gasless path entirely.
	SponsorKey string
	// GaslessDailyLimit caps sponsored claims per wallet per 24h.
	GaslessDailyLimit int
}

type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type AuthConfig struct {
	JWTSecret string
}

func New() (*Config, error) {
	const op = "config.New"

	_ = godotenv.Load()

	serverHost := os.Getenv("SERVER_HOST")
	if serverHost == "" {
		serverHost = "localhost"
	}

	serverPortStr := os.Getenv("SERVER_PORT")
	if serverPortStr == "" {
		serverPortStr = "8080"
	}

	serverPort, err := strconv.Atoi(serverPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SERVER_PORT: %w", op, err)
	}

	serverCfg := ServerConfig{
		Host: serverHost,
		Port: serverPort,
	}

	postgresHost := os.Getenv("POSTGRES_HOST")
	if postgresHost == "" {
		postgresHost = "localhost"
	}

	postgresPortStr := os.Getenv("POSTGRES_PORT")
	if postgresPortStr == "" {
		postgresPortStr = "5432"
	}

	postgresPort, err := strconv.Atoi(postgresPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid POSTGRES_PORT: %w", op, err)
	}

	postgresUser := os.Getenv("POSTGRES_USER")
	if postgresUser == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_USER", op)
	}

	postgresPassword := os.Getenv("POSTGRES_PASSWORD")
	if postgresPassword == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_PASSWORD", op)
	}

	postgresDB := os.Getenv("POSTGRES_DB")
	if postgresDB == "" {
		return nil, fmt.Errorf("%s: missing POSTGRES_DB", op)
	}

	postgresSSLMode := os.Getenv("POSTGRES_SSLMODE")
	if postgresSSLMode == "" {
		postgresSSLMode = "disable"
	}

	postgresCfg := PostgresConfig{
		User:     postgresUser,
		Password: postgresPassword,
		Name:     postgresDB,
		Host:     postgresHost,
		Port:     postgresPort,
		SSLMode:  postgresSSLMode,
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisCfg := RedisConfig{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	}

	rpcURL := os.Getenv("CHAIN_RPC_URL")
	if rpcURL == "" {
		return nil, fmt.Errorf("%s: missing CHAIN_RPC_URL", op)
	}

	gaslessLimitStr := os.Getenv("GASLESS_DAILY_LIMIT")
	if gaslessLimitStr == "" {
		gaslessLimitStr = "3"
	}

	gaslessLimit, err := strconv.Atoi(gaslessLimitStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid GASLESS_DAILY_LIMIT: %w", op, err)
	}

	chainCfg := ChainConfig{
		RPCURL:            rpcURL,
		SponsorKey:        os.Getenv("SPONSOR_PRIVATE_KEY"),
		GaslessDailyLimit: gaslessLimit,
	}

	paystackSecret := os.Getenv("PAYSTACK_SECRET_KEY")
	if paystackSecret == "" {
		return nil, fmt.Errorf("%s: missing PAYSTACK_SECRET_KEY", op)
	}

	paystackBase := os.Getenv("PAYSTACK_BASE_URL")
	if paystackBase == "" {
		paystackBase = "https://api.paystack.co"
	}

	paystackCfg := PaystackConfig{
		SecretKey:   paystackSecret,
		BaseURL:     paystackBase,
		CallbackURL: os.Getenv("PAYSTACK_CALLBACK_URL"),
	}

	smtpHost := os.Getenv("SMTP_HOST")

	smtpPortStr := os.Getenv("SMTP_PORT")
	if smtpPortStr == "" {
		smtpPortStr = "587"
	}

	smtpPort, err := strconv.Atoi(smtpPortStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid SMTP_PORT: %w", op, err)
	}

	smtpFrom := os.Getenv("SMTP_FROM")
	if smtpFrom == "" {
		smtpFrom = "tickets@teerex.live"
	}

	smtpCfg := SMTPConfig{
		Host:     smtpHost,
		Port:     smtpPort,
		User:     os.Getenv("SMTP_USER"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     smtpFrom,
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("%s: missing JWT_SECRET", op)
	}

	return &Config{
		Server:   serverCfg,
		Postgres: postgresCfg,
		Redis:    redisCfg,
		Chain:    chainCfg,
		Paystack: paystackCfg,
		SMTP:     smtpCfg,
		Auth:     AuthConfig{JWTSecret: jwtSecret},
	}, nil
}

// RPCURLFor returns the JSON-RPC endpoint for a chain, honoring per-chain
// env overrides.
func (c *ChainConfig) RPCURLFor(chainID int64) string {
	if url := os.Getenv(fmt.Sprintf("CHAIN_RPC_URL_%d", chainID)); url != "" {
		return url
	}
	return c.RPCURL
}
