// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"log"
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是服务的全量配置。
// 先加载内置默认值，再用 CONFIG_FILE 指向的 yaml 覆盖，最后用环境变量覆盖敏感项。
type Config struct {
	App struct {
		ServiceName string `yaml:"serviceName"`
		Port        int    `yaml:"port"`
	} `yaml:"app"`

	Infra struct {
		MysqlDSN string `yaml:"mysqlDsn"`
		Redis    struct {
			Addr string `yaml:"addr"`
		} `yaml:"redis"`
		Kafka struct {
			Brokers           []string `yaml:"brokers"`
			NotificationTopic string   `yaml:"notificationTopic"`
		} `yaml:"kafka"`
		Jaeger struct {
			Endpoint    string  `yaml:"endpoint"`
			SampleRatio float64 `yaml:"sampleRatio"`
		} `yaml:"jaeger"`
	} `yaml:"infra"`

	Payment struct {
		APIURL          string        `yaml:"apiUrl"`
		PublicKey       string        `yaml:"publicKey"`
		PrivateKey      string        `yaml:"privateKey"`
		IntegritySecret string        `yaml:"integritySecret"`
		Currency        string        `yaml:"currency"`
		Timeout         time.Duration `yaml:"timeout"`
		MaxAttempts     int           `yaml:"maxAttempts"`
	} `yaml:"payment"`

	Delivery struct {
		BaseURL string        `yaml:"baseUrl"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"delivery"`

	Saga struct {
		ProcessingTimeout time.Duration `yaml:"processingTimeout"`
		ReservationTTL    time.Duration `yaml:"reservationTtl"`
		SweepInterval     time.Duration `yaml:"sweepInterval"`
	} `yaml:"saga"`
}

var currentConfig atomic.Pointer[Config]

// Init 加载配置并缓存为全局当前配置。必须在 StartService 之前调用。
func Init() {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("FATAL: cannot read config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			log.Fatalf("FATAL: cannot parse config file %s: %v", path, err)
		}
	}

	applyEnvOverrides(cfg)
	currentConfig.Store(cfg)
}

// GetCurrentConfig 返回当前生效的配置。
func GetCurrentConfig() *Config {
	cfg := currentConfig.Load()
	if cfg == nil {
		log.Fatal("FATAL: bootstrap.Init must be called before GetCurrentConfig")
	}
	return cfg
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.App.ServiceName = "checkout-service"
	cfg.App.Port = 8080
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Infra.Jaeger.SampleRatio = 1
	cfg.Infra.Kafka.NotificationTopic = "order-notifications"
	cfg.Payment.Currency = "COP"
	cfg.Payment.Timeout = 10 * time.Second
	cfg.Payment.MaxAttempts = 3
	cfg.Delivery.Timeout = 5 * time.Second
	cfg.Saga.ProcessingTimeout = 30 * time.Second
	cfg.Saga.ReservationTTL = 10 * time.Minute
	cfg.Saga.SweepInterval = time.Minute
	return cfg
}

// applyEnvOverrides 让敏感配置不必落盘。
func applyEnvOverrides(cfg *Config) {
	overrides := map[string]*string{
		"MYSQL_DSN":                &cfg.Infra.MysqlDSN,
		"REDIS_ADDR":               &cfg.Infra.Redis.Addr,
		"JAEGER_ENDPOINT":          &cfg.Infra.Jaeger.Endpoint,
		"PAYMENT_API_URL":          &cfg.Payment.APIURL,
		"PAYMENT_PUBLIC_KEY":       &cfg.Payment.PublicKey,
		"PAYMENT_PRIVATE_KEY":      &cfg.Payment.PrivateKey,
		"PAYMENT_INTEGRITY_SECRET": &cfg.Payment.IntegritySecret,
		"DELIVERY_BASE_URL":        &cfg.Delivery.BaseURL,
	}
	for key, target := range overrides {
		if v := os.Getenv(key); v != "" {
			*target = v
		}
	}
}
