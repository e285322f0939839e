package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Templates struct {
		TTL string `yaml:"ttl"`
		// SeedFile is imported into the in-memory loader when no database is configured.
		SeedFile string `yaml:"seedFile"`
	} `yaml:"templates"`
	Autosave struct {
		Delay        string `yaml:"delay"`
		SaveTimeout  string `yaml:"saveTimeout"`
		FlushOnClose *bool  `yaml:"flushOnClose"`
	} `yaml:"autosave"`
	Storage struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"useSSL"`
		PublicURL string `yaml:"publicURL"`
	} `yaml:"storage"`
	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"maxSizeMB"`
		MaxBackups int    `yaml:"maxBackups"`
		MaxAgeDays int    `yaml:"maxAgeDays"`
	} `yaml:"log"`
	Tracing struct {
		Enabled        bool    `yaml:"enabled"`
		ServiceName    string  `yaml:"serviceName"`
		JaegerEndpoint string  `yaml:"jaegerEndpoint"`
		SampleRatio    float64 `yaml:"sampleRatio"`
	} `yaml:"tracing"`
	Limits struct {
		EditsPerSecond float64 `yaml:"editsPerSecond"`
		EditBurst      int     `yaml:"editBurst"`
		MaxUploadMB    int64   `yaml:"maxUploadMB"`
	} `yaml:"limits"`
}

// Load reads YAML config from path. Environment variables referenced as
// ${NAME} inside the file are expanded before parsing.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FlushOnClose defaults to true when unset.
func (c Config) FlushOnClose() bool {
	if c.Autosave.FlushOnClose == nil {
		return true
	}
	return *c.Autosave.FlushOnClose
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
