package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	JWT struct {
		SecretKey string `mapstructure:"secretKey"`
	} `mapstructure:"jwt"`
	AI struct {
		Model       string  `mapstructure:"model"`
		Temperature float32 `mapstructure:"temperature"`
		MaxRounds   int     `mapstructure:"maxRounds"`
	} `mapstructure:"ai"`
	Tools struct {
		Timeout       time.Duration `mapstructure:"timeout"`
		CacheTTL      time.Duration `mapstructure:"cacheTTL"`
		CacheCleanup  time.Duration `mapstructure:"cacheCleanup"`
		PlacesBaseURL string        `mapstructure:"placesBaseURL"`
		WeatherBaseURL string       `mapstructure:"weatherBaseURL"`
		VideoBaseURL  string        `mapstructure:"videoBaseURL"`
		SearchBaseURL string        `mapstructure:"searchBaseURL"`
	} `mapstructure:"tools"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("TRIPPLY")
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
