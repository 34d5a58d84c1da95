package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type LedgerConfig struct {
	Env            string `yaml:"env" env-default:"local"`
	HTTPServer     `yaml:"http_server"`
	LedgerDB       `yaml:"ledger_db"`
	AccountService `yaml:"account-service"`
	KafkaService   `yaml:"kafka-service"`
	Ledger         `yaml:"ledger"`
	Export         `yaml:"export"`
	LogConfig      `yaml:"log_config"`
}

type HTTPServer struct {
	Host string `yaml:"host" env-default:"0.0.0.0"`
	Port string `yaml:"port" env-default:"8080"`
}

type LedgerDB struct {
	Dsn            string `yaml:"dsn"`
	MigrationsPath string `yaml:"migrations_path" env-default:"migrations"`
}

type AccountService struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type KafkaService struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	EventsTopic    string `yaml:"events_topic" env-default:"transaction-events"`
	ExpiryTopic    string `yaml:"expiry_topic" env-default:"expiry-jobs"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Mechanism      string `yaml:"mechanism"`
	TLSEnabled     bool   `yaml:"tls_enabled"`
}

type Ledger struct {
	PaymentWindow time.Duration `yaml:"payment_window" env-default:"30m"`
	SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	SweepLimit    int           `yaml:"sweep_limit" env-default:"100"`
}

type Export struct {
	CountFastLimit  int           `yaml:"count_fast_limit" env-default:"500"`
	CountBatchSize  int           `yaml:"count_batch_size" env-default:"1000"`
	LargeThreshold  int           `yaml:"large_threshold" env-default:"25000"`
	StandardBatch   int           `yaml:"standard_batch" env-default:"2000"`
	LargeBatch      int           `yaml:"large_batch" env-default:"500"`
	Parallelism     int           `yaml:"parallelism" env-default:"4"`
	BatchPause      time.Duration `yaml:"batch_pause" env-default:"150ms"`
	CacheTTL        time.Duration `yaml:"cache_ttl" env-default:"30s"`
	MemoryCeilingMB uint64        `yaml:"memory_ceiling_mb" env-default:"768"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env-default:"info"`
	LogFormat string `yaml:"log_format" env-default:"json"`
	LogOutput string `yaml:"log_output" env-default:"stdout"`
}

func MustLoad() *LedgerConfig {
	configPath := os.Getenv("LEDGER_CONFIG_PATH")
	if configPath == "" {
		log.Fatalf("LEDGER_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	var cfg LedgerConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
