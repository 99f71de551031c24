package config

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Configuration struct {
	App      Application      `mapstructure:"app"`
	Server   ServerSettings   `mapstructure:"server"`
	Logs     LogsSettings     `mapstructure:"logs"`
	Database Database         `mapstructure:"database"`
	Redis    Redis            `mapstructure:"redis"`
	Queue    QueueConfig      `mapstructure:"queue"`
	Security SecuritySettings `mapstructure:"security"`
	Limits   Limits           `mapstructure:"limits"`
}

type Application struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

type ServerSettings struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read-timeout"`
	WriteTimeout int      `mapstructure:"write-timeout"`
	IdleTimeout  int      `mapstructure:"idle-timeout"`
	CORSOrigins  []string `mapstructure:"cors-origins"`
}

type LogsSettings struct {
	Level            string `mapstructure:"level"`
	EnableJSONOutput bool   `mapstructure:"enable-json-output"`
}

// Database selects the store implementation. Driver is "mongodb" or "sqlite";
// Url is a Mongo connection string or a SQLite path respectively.
type Database struct {
	Driver      string      `mapstructure:"driver"`
	Url         string      `mapstructure:"url"`
	DbName      string      `mapstructure:"dbname"`
	Timeout     int         `mapstructure:"timeout"`
	Collections Collections `mapstructure:"collections"`
}

type Collections struct {
	Users         string `mapstructure:"users"`
	Messages      string `mapstructure:"messages"`
	Contacts      string `mapstructure:"contacts"`
	Notifications string `mapstructure:"notifications"`
}

type Redis struct {
	Url                string `mapstructure:"url"`
	Password           string `mapstructure:"password"`
	Db                 int    `mapstructure:"db"`
	PresenceTTLMinutes int    `mapstructure:"presence-ttl-minutes"`
}

type QueueConfig struct {
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

type RabbitMQConfig struct {
	Url          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeType string `mapstructure:"exchange-type"`
	RoutingKey   string `mapstructure:"routing-key"`
	Durable      bool   `mapstructure:"durable"`
	AutoDelete   bool   `mapstructure:"auto-delete"`
	Internal     bool   `mapstructure:"internal"`
	NoWait       bool   `mapstructure:"no-wait"`
}

type SecuritySettings struct {
	JwtKey          string `mapstructure:"jwt-key"`
	TokenTTLMinutes int    `mapstructure:"token-ttl-minutes"`
	EncryptKey      string `mapstructure:"encrypt-key"`
}

type Limits struct {
	MaxContentLength  int `mapstructure:"max-content-length"`
	EditWindowMinutes int `mapstructure:"edit-window-minutes"`
	PageSize          int `mapstructure:"page-size"`
}

func Load() (*Configuration, error) {
	cfg := read()

	// Override with environment variables
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.Url = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.DbName = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.Url = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		cfg.Queue.RabbitMQ.Url = v
	}
	if v := os.Getenv("JWT_KEY"); v != "" {
		cfg.Security.JwtKey = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		cfg.Security.EncryptKey = v
	}

	if cfg.Security.JwtKey == "" {
		return nil, fmt.Errorf("JWT_KEY is required")
	}
	if cfg.Security.EncryptKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}

	logrus.Info("Configuration loaded")
	return cfg, nil
}

func read() *Configuration {
	viper.SetConfigFile(configPath())
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	var config Configuration

	if err := viper.ReadInConfig(); err != nil {
		logrus.WithError(err).Panic("Error reading config file")
	}
	if err := viper.Unmarshal(&config); err != nil {
		logrus.WithError(err).Panic("Error unmarshalling config file")
	}

	return &config
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yml"
}

func (c *Configuration) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
