package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings are the application-level knobs. Values come from an optional
// YAML file overlaid with COSTPULSE_* environment variables.
type Settings struct {
	DatabasePath string `mapstructure:"database_path"`
	ListenAddr   string `mapstructure:"listen_addr"`

	ScheduleInterval time.Duration `mapstructure:"schedule_interval"`

	DatabricksProfile string `mapstructure:"databricks_profile"`
	WorkspaceID       string `mapstructure:"workspace_id"`
	WarehouseHTTPPath string `mapstructure:"warehouse_http_path"`

	SlackWebhookURL string `mapstructure:"slack_webhook_url"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	AnomalySensitivity float64 `mapstructure:"anomaly_sensitivity"`
}

func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("COSTPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database_path", "costpulse.db")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("schedule_interval", time.Hour)
	v.SetDefault("databricks_profile", "DEFAULT")
	v.SetDefault("anomaly_sensitivity", 2.0)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return &settings, nil
}
