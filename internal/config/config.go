package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"github.com/mwhitford/dumpdb/internal/minidump"
)

type Config struct {
	Database  string   `mapstructure:"database"`
	Output    string   `mapstructure:"output"`
	Streams   []string `mapstructure:"streams"`
	LogLevel  string   `mapstructure:"log_level"`
	LogFormat string   `mapstructure:"log_format"`
}

// Load initializes and loads configuration from file
func Load(cfgFile string) (*Config, error) {
	// Set defaults
	viper.SetDefault("database", "dumps.db")
	viper.SetDefault("output", "streams")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")

	// Config file handling
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName("dumpdb")
		viper.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateStreamFilter(cfg.Streams); err != nil {
		return nil, fmt.Errorf("invalid stream configuration: %w", err)
	}

	return &cfg, nil
}

// validateStreamFilter checks that each filter entry is a well-known stream
// name or a numeric type tag.
func validateStreamFilter(streams []string) error {
	for _, s := range streams {
		if _, err := ParseStreamFilterEntry(s); err != nil {
			return err
		}
	}
	return nil
}

// ParseStreamFilterEntry resolves one stream filter entry to a type tag.
// Entries are either well-known names ("ThreadList") or numeric tags.
func ParseStreamFilterEntry(s string) (uint32, error) {
	if tag, ok := minidump.StreamTypeByName(s); ok {
		return tag, nil
	}
	if n, err := strconv.ParseUint(s, 0, 32); err == nil {
		return uint32(n), nil
	}
	return 0, fmt.Errorf("unknown stream type %q", s)
}

// StreamFilter resolves the configured filter to a tag set. An empty filter
// returns nil, meaning all streams.
func (c *Config) StreamFilter() (map[uint32]bool, error) {
	if len(c.Streams) == 0 {
		return nil, nil
	}

	filter := make(map[uint32]bool, len(c.Streams))
	for _, s := range c.Streams {
		tag, err := ParseStreamFilterEntry(s)
		if err != nil {
			return nil, err
		}
		filter[tag] = true
	}
	return filter, nil
}
