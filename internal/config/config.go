// Package config loads the engine's layered configuration: a YAML file
// plus LEDENGINE_-prefixed environment variable overrides, via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for the engine process.
type Config struct {
	Animation  AnimationConfig  `mapstructure:"animation"`
	OSC        OSCConfig        `mapstructure:"osc"`
	Transition TransitionConfig `mapstructure:"transition"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Ops        OpsConfig        `mapstructure:"ops"`
	Indicator  IndicatorConfig  `mapstructure:"indicator"`
	Profile    string           `mapstructure:"profile"`
}

// AnimationConfig holds the engine-wide animation settings: target FPS, LED
// count, master-brightness default, default dissolve time. Defaults match
// original_source/config/settings.py's AnimationConfig.
type AnimationConfig struct {
	TargetFPS           int   `mapstructure:"target_fps"`
	LEDCount            int   `mapstructure:"led_count"`
	LEDZones            []int `mapstructure:"led_zones"`
	MasterBrightness    int   `mapstructure:"master_brightness"`
	DefaultDissolveTime int   `mapstructure:"default_dissolve_time_ms"`
	ScenesDir           string `mapstructure:"scenes_dir"`
}

// OSCConfig names the control-plane endpoints. The field name is kept from
// the original Python implementation's terminology (its control protocol was
// OSC); the wire format here is the engine's own address-tagged UDP
// datagram, not OSC framing.
type OSCConfig struct {
	InputHost      string          `mapstructure:"input_host"`
	InputPort      int             `mapstructure:"input_port"`
	OutputAddress  string          `mapstructure:"output_address"`
	Destinations   []DestinationConfig `mapstructure:"destinations"`
}

// DestinationConfig is one configured OutputSink target.
type DestinationConfig struct {
	Kind string `mapstructure:"kind"` // "udp", "serial", "strip"
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"` // serial device path, when kind=serial
}

// TransitionConfig mirrors model.TransitionConfig for viper unmarshaling.
type TransitionConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	DefaultFadeInMs  int  `mapstructure:"default_fade_in_ms"`
	DefaultFadeOutMs int  `mapstructure:"default_fade_out_ms"`
	DefaultWaitingMs int  `mapstructure:"default_waiting_ms"`
}

// LoggerConfig configures internal/logger.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	LogDir     string `mapstructure:"log_dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// StorageConfig configures scene persistence and frame-stats history.
type StorageConfig struct {
	ScenesPath     string `mapstructure:"scenes_path"`
	StatsDBPath    string `mapstructure:"stats_db_path"`
	InfluxURL      string `mapstructure:"influx_url"`
	InfluxToken    string `mapstructure:"influx_token"`
	InfluxOrg      string `mapstructure:"influx_org"`
	InfluxBucket   string `mapstructure:"influx_bucket"`
	InfluxEnabled  bool   `mapstructure:"influx_enabled"`
}

// RedisConfig configures the optional engine-state mirror.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MQTTConfig configures the optional control-ingress bridge.
type MQTTConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	ClientID string `mapstructure:"client_id"`
	TopicRoot string `mapstructure:"topic_root"`
}

// SchedulerConfig configures the cron/interval scene scheduler and the
// optional FTP scene sync + fsnotify hot reload.
type SchedulerConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	WatchEnabled  bool   `mapstructure:"watch_enabled"`
	FTPEnabled    bool   `mapstructure:"ftp_enabled"`
	FTPAddr       string `mapstructure:"ftp_addr"`
	FTPUser       string `mapstructure:"ftp_user"`
	FTPPassword   string `mapstructure:"ftp_password"`
	FTPRemoteDir  string `mapstructure:"ftp_remote_dir"`
	FTPPollSeconds int   `mapstructure:"ftp_poll_seconds"`
}

// OpsConfig configures the thin ambient HTTP surface.
type OpsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	AuthJWT  bool   `mapstructure:"auth_jwt"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// IndicatorConfig configures the two optional physical-feedback peripherals:
// an "engine running" GPIO status pin and an I2C ambient-light sensor that
// nudges master brightness.
type IndicatorConfig struct {
	StatusPinEnabled    bool    `mapstructure:"status_pin_enabled"`
	StatusPin           int     `mapstructure:"status_pin"`
	LightSensorEnabled  bool    `mapstructure:"light_sensor_enabled"`
	LightSensorAddress  int     `mapstructure:"light_sensor_address"`
	LightSensorMinLux   float64 `mapstructure:"light_sensor_min_lux"`
	LightSensorMaxLux   float64 `mapstructure:"light_sensor_max_lux"`
	LightSensorPollMs   int     `mapstructure:"light_sensor_poll_ms"`
}

// Load reads configuration from file and LEDENGINE_-prefixed environment
// variables, merging the two with viper's standard precedence. A config file
// that does not exist leaves the defaults in place.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		v.AddConfigPath(getConfigDir())
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("LEDENGINE")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("animation.target_fps", 60)
	v.SetDefault("animation.led_count", 225)
	v.SetDefault("animation.led_zones", []int{50, 50, 50, 50, 25})
	v.SetDefault("animation.master_brightness", 255)
	v.SetDefault("animation.default_dissolve_time_ms", 1000)
	v.SetDefault("animation.scenes_dir", "./scenes")

	v.SetDefault("osc.input_host", "127.0.0.1")
	v.SetDefault("osc.input_port", 8000)
	v.SetDefault("osc.output_address", "/light/serial")

	v.SetDefault("transition.enabled", false)
	v.SetDefault("transition.default_fade_in_ms", 500)
	v.SetDefault("transition.default_fade_out_ms", 500)
	v.SetDefault("transition.default_waiting_ms", 200)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_dir", "./logs")
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age_days", 7)
	v.SetDefault("logger.compress", true)

	v.SetDefault("storage.scenes_path", "./data/scenes")
	v.SetDefault("storage.stats_db_path", "./data/stats.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "ledengine")

	v.SetDefault("mqtt.client_id", "ledengine")
	v.SetDefault("mqtt.topic_root", "ledengine")

	v.SetDefault("scheduler.ftp_poll_seconds", 60)

	v.SetDefault("ops.host", "127.0.0.1")
	v.SetDefault("ops.port", 8090)

	v.SetDefault("indicator.status_pin", 18)
	v.SetDefault("indicator.light_sensor_address", 0x23)
	v.SetDefault("indicator.light_sensor_min_lux", 5.0)
	v.SetDefault("indicator.light_sensor_max_lux", 500.0)
	v.SetDefault("indicator.light_sensor_poll_ms", 2000)

	v.SetDefault("profile", "standard")
}

func getConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".ledengine")
}
