// cellrules/pkg/config/config.go

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the engine's process-wide configuration: hop-limit and timer
// thread tuning, the topic the control-plane subscriber listens on, the
// Redis-backed store/broker connection, log setup, and the optional debug
// server's listen address.
type Config struct {
	MaxEventHop       int
	TimerEventThreads int
	RuleTopicName     string

	// CellBaseURLFormat is a fmt template with one %s verb for the cell ID,
	// used to resolve a rule's localbox-relative service URL against its
	// owning cell's own address.
	CellBaseURLFormat string

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	ActionPoolWorkers   int
	ActionPoolQueueSize int
	ActionTimeoutMillis int

	LogLevel  string
	LogOutput string

	DebugListenAddress string
}

// Load reads configuration from the file at configFile (if non-empty) or
// from viper's default search path, falling back to defaults when no file
// is found. A configFile explicitly requested but missing is an error;
// absence of the default file is not.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	v.SetDefault("engine.max_event_hop", 5)
	v.SetDefault("engine.timer_thread_num", 0)
	v.SetDefault("eventbus.rule_topic_name", "rule")
	v.SetDefault("engine.cell_base_url_format", "http://localhost:8080/cells/%s/")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)

	v.SetDefault("action_pool.workers", 8)
	v.SetDefault("action_pool.queue_size", 256)
	v.SetDefault("action_pool.timeout_millis", 5000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "console")

	v.SetDefault("debug.listen_address", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cellrules_config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cellrules")
		v.AddConfigPath("/etc/cellrules")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return &Config{
		MaxEventHop:       v.GetInt("engine.max_event_hop"),
		TimerEventThreads: v.GetInt("engine.timer_thread_num"),
		RuleTopicName:     v.GetString("eventbus.rule_topic_name"),
		CellBaseURLFormat: v.GetString("engine.cell_base_url_format"),

		RedisAddress:  v.GetString("redis.address"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.database"),

		ActionPoolWorkers:   v.GetInt("action_pool.workers"),
		ActionPoolQueueSize: v.GetInt("action_pool.queue_size"),
		ActionTimeoutMillis: v.GetInt("action_pool.timeout_millis"),

		LogLevel:  v.GetString("logging.level"),
		LogOutput: v.GetString("logging.output"),

		DebugListenAddress: v.GetString("debug.listen_address"),
	}, nil
}
