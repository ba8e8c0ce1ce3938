package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Debug bool `env:"DEBUG" envDefault:"false"`

	Server struct {
		Port   int    `env:"PORT" envDefault:"8080"`
		Origin string `env:"ORIGIN" envDefault:"http://localhost:3000"`
	}

	Postgres struct {
		Host            string        `env:"POSTGRES_HOST" envDefault:"localhost"`
		Port            int           `env:"POSTGRES_PORT" envDefault:"5432"`
		User            string        `env:"POSTGRES_USER" envDefault:"postgres"`
		Password        string        `env:"POSTGRES_PASSWORD" envDefault:""`
		Database        string        `env:"POSTGRES_DB" envDefault:"pocketlegal"`
		SSLMode         string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
		MaxOpenConns    int           `env:"POSTGRES_MAX_OPEN_CONNS" envDefault:"25"`
		MaxIdleConns    int           `env:"POSTGRES_MAX_IDLE_CONNS" envDefault:"5"`
		ConnMaxLifetime time.Duration `env:"POSTGRES_CONN_MAX_LIFETIME" envDefault:"5m"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Chain struct {
		// JSON-RPC endpoint of a Base node used for balance reads and
		// receipt lookups.
		RPCURL string `env:"CHAIN_RPC_URL" envDefault:"https://mainnet.base.org"`

		// USDC contract on Base.
		USDCContract string `env:"CHAIN_USDC_CONTRACT" envDefault:"0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"`

		// Address that receives content payments.
		RecipientAddress string `env:"CHAIN_RECIPIENT_ADDRESS,required"`

		// Confirmation depth required before a payment counts as verified.
		Confirmations int64 `env:"CHAIN_CONFIRMATIONS" envDefault:"1"`

		// Bound on the payment submission call. On expiry the transaction
		// stays pending for reconciliation.
		SubmitTimeout time.Duration `env:"CHAIN_SUBMIT_TIMEOUT" envDefault:"45s"`
	}

	Facilitator struct {
		BaseURL  string `env:"FACILITATOR_BASE_URL" envDefault:"https://x402.org/facilitator"`
		APIToken string `env:"FACILITATOR_API_TOKEN" envDefault:""`
	}

	Gemini struct {
		APIKey string `env:"GEMINI_API_KEY,required"`
		Model  string `env:"GEMINI_MODEL" envDefault:"models/gemini-2.0-flash"`
	}

	Auth struct {
		NonceTTL   time.Duration `env:"AUTH_NONCE_TTL" envDefault:"5m"`
		SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"24h"`
	}

	Reconciler struct {
		Interval time.Duration `env:"RECONCILER_INTERVAL" envDefault:"1m"`

		// How long a pending transaction without a hash may sit before it is
		// expired to failed.
		AbandonAfter time.Duration `env:"RECONCILER_ABANDON_AFTER" envDefault:"30m"`
	}
}

func Load() *Config {
	// .env is optional; production sets variables directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// GetDSN builds the lib/pq connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host, c.Postgres.Port, c.Postgres.User, c.Postgres.Password,
		c.Postgres.Database, c.Postgres.SSLMode)
}
