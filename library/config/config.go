package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/booktrack/library-service/pkg/kafka"
	"github.com/booktrack/library-service/pkg/logger"
	"github.com/booktrack/library-service/pkg/postgres"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"LIBRARY_HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"LIBRARY_HTTP_PORT" default:"8060"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ"`
	WriteTimeout time.Duration `yaml:"writeTimeout" envconfig:"HTTP_WRITE"`
	RateLimit    float64       `yaml:"rateLimit" envconfig:"HTTP_RATE_LIMIT" default:"100"`
}

type Auth struct {
	// JWTSecret verifies HS256 bearer tokens. When empty the gateway identity headers are trusted.
	JWTSecret string        `envconfig:"JWT_SECRET" json:"-"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"24h"`
}

type Loan struct {
	MaxActive  int `envconfig:"LOAN_MAX_ACTIVE" default:"3"`
	PeriodDays int `envconfig:"LOAN_PERIOD_DAYS" default:"14"`
}

type Sweep struct {
	Interval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
}

type Storage struct {
	Driver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
}

type Config struct {
	Server   HTTPServer  `yaml:"server"`
	Database postgres.DB `yaml:"db"`
	Kafka    kafka.Config
	Log      logger.Log `yaml:"log"`
	Auth     Auth
	Loan     Loan
	Sweep    Sweep
	Storage  Storage
}

var (
	once sync.Once
	cfg  *Config
)

// NewConfig reads config from environment. Options set values that the environment may override.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		if err := envconfig.Process("", &config); err != nil {
			log.Fatal("NewConfig ", err)
		}
		if err := config.validate(); err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = &config
		printConfig(cfg)
	})

	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Loan.MaxActive <= 0 || c.Loan.PeriodDays <= 0 {
		return fmt.Errorf("loan policy must be positive, got max=%d period=%d", c.Loan.MaxActive, c.Loan.PeriodDays)
	}
	return nil
}

func printConfig(cfg *Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}
