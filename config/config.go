package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the tunables shared by the three netcopy programs.
// Block size and default TTL are the protocol's only tunables; the
// timeouts are a hardening addition, since the base protocol has none.
type AppConfig struct {
	BlockSize            int    `mapstructure:"block_size"`
	DefaultTTLSeconds    int    `mapstructure:"default_ttl_seconds"`
	DialTimeoutMS        int    `mapstructure:"dial_timeout_ms"`
	ReadTimeoutMS        int    `mapstructure:"read_timeout_ms"`
	JournalPath          string `mapstructure:"journal_path"`
	SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds"`
}

var Config *AppConfig

func LoadConfig(path string) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(path)
	viper.SetEnvPrefix("netcopy")
	viper.AutomaticEnv()

	viper.SetDefault("block_size", 4096)
	viper.SetDefault("default_ttl_seconds", 60)
	viper.SetDefault("dial_timeout_ms", 5000)
	viper.SetDefault("read_timeout_ms", 5000)
	viper.SetDefault("journal_path", "")
	viper.SetDefault("sweep_interval_seconds", 0)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("no config file found, using defaults: %v", err)
	}

	var appConfig AppConfig
	if err := viper.Unmarshal(&appConfig); err != nil {
		log.Fatalf("unable to decode config into struct: %v", err)
	}

	Config = &appConfig
}

// DefaultTTL returns the checksum time-to-live as a duration.
func (c *AppConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// DialTimeout bounds outbound connection attempts.
func (c *AppConfig) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutMS) * time.Millisecond
}

// ReadTimeout bounds waiting for a registry reply.
func (c *AppConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// SweepInterval returns the registry sweep period; zero disables the
// sweeper and leaves expiry purely lazy.
func (c *AppConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}
