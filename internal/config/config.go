package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Pipeline struct {
		StageTimeoutSec    int `yaml:"stageTimeoutSec"`
		OverallTimeoutSec  int `yaml:"overallTimeoutSec"`
		PersistTimeoutSec  int `yaml:"persistTimeoutSec"`
		MaxUploadSizeBytes int `yaml:"maxUploadSizeBytes"`
	} `yaml:"pipeline"`

	OpenAI struct {
		APIKey       string `yaml:"apiKey"`
		Model        string `yaml:"model"`
		CaptionModel string `yaml:"captionModel"`
	} `yaml:"openai"`

	OCR struct {
		Languages []string `yaml:"languages"`
	} `yaml:"ocr"`

	Detector struct {
		Endpoint      string  `yaml:"endpoint"`
		MinConfidence float64 `yaml:"minConfidence"`
	} `yaml:"detector"`

	Geocoder struct {
		BaseURL   string `yaml:"baseURL"`
		UserAgent string `yaml:"userAgent"`
	} `yaml:"geocoder"`

	Postgres struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"postgres"`

	MySQL struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"mysql"`

	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Load baca file config.yaml; secrets boleh dioverride lewat env
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Pipeline.StageTimeoutSec == 0 {
		c.Pipeline.StageTimeoutSec = 30
	}
	if c.Pipeline.OverallTimeoutSec == 0 {
		c.Pipeline.OverallTimeoutSec = 120
	}
	if c.Pipeline.PersistTimeoutSec == 0 {
		c.Pipeline.PersistTimeoutSec = 10
	}
	if c.Pipeline.MaxUploadSizeBytes == 0 {
		c.Pipeline.MaxUploadSizeBytes = 10 << 20
	}
	if len(c.OCR.Languages) == 0 {
		c.OCR.Languages = []string{"eng"}
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "historify.db"
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		c.MySQL.Password = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
}

// Helper untuk build DSN PostgreSQL
func (c *Config) PostgresDSN() string {
	ssl := c.Postgres.SSLMode
	if ssl == "" {
		ssl = "require"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Name,
		ssl,
	)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.Name,
	)
}
