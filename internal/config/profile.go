package config

import (
	"fmt"
	"runtime"

	"github.com/spf13/viper"

	"github.com/ledengine/ledengine/internal/hal"
)

// Profile is a runtime tier selecting which optional subsystems activate,
// the same tiered-gating pattern other flow-automation platforms use to gate
// node categories, here gating the engine's optional subsystems instead.
type Profile string

const (
	// ProfileMinimal - Pi Zero class hardware: core engine only.
	ProfileMinimal Profile = "minimal"
	// ProfileStandard - Pi 3/4 class hardware: core + storage + ops surface.
	ProfileStandard Profile = "standard"
	// ProfileFull - Pi 4/5 class hardware: every optional subsystem.
	ProfileFull Profile = "full"
)

// SubsystemsConfig toggles the engine's optional subsystems.
type SubsystemsConfig struct {
	Scheduler     bool `mapstructure:"scheduler"`
	HotReload     bool `mapstructure:"hot_reload"`
	FrameHistory  bool `mapstructure:"frame_history"`
	InfluxExport  bool `mapstructure:"influx_export"`
	RedisMirror   bool `mapstructure:"redis_mirror"`
	MQTTBridge    bool `mapstructure:"mqtt_bridge"`
	FTPSync       bool `mapstructure:"ftp_sync"`
	SerialOutput  bool `mapstructure:"serial_output"`
	HardwarePreview bool `mapstructure:"hardware_preview"`
	StatusPin     bool `mapstructure:"status_pin"`
	LightSensor   bool `mapstructure:"light_sensor"`
	OpsHTTP       bool `mapstructure:"ops_http"`
	OpsAuth       bool `mapstructure:"ops_auth"`
}

// ProfileConfig holds the full tier definition.
type ProfileConfig struct {
	Name        Profile `mapstructure:"name"`
	Description string  `mapstructure:"description"`
	Subsystems  SubsystemsConfig `mapstructure:"subsystems"`
}

// DefaultProfiles returns the built-in tier definitions.
func DefaultProfiles() map[Profile]*ProfileConfig {
	return map[Profile]*ProfileConfig{
		ProfileMinimal: {
			Name:        ProfileMinimal,
			Description: "Minimal profile for Pi Zero class hardware: core frame loop only",
			Subsystems:  SubsystemsConfig{},
		},
		ProfileStandard: {
			Name:        ProfileStandard,
			Description: "Standard profile for Pi 3/4 class hardware",
			Subsystems: SubsystemsConfig{
				Scheduler:    true,
				HotReload:    true,
				FrameHistory: true,
				OpsHTTP:      true,
			},
		},
		ProfileFull: {
			Name:        ProfileFull,
			Description: "Full profile for Pi 4/5 class hardware: every optional subsystem",
			Subsystems: SubsystemsConfig{
				Scheduler:       true,
				HotReload:       true,
				FrameHistory:    true,
				InfluxExport:    true,
				RedisMirror:     true,
				MQTTBridge:      true,
				FTPSync:         true,
				SerialOutput:    true,
				HardwarePreview: true,
				StatusPin:       true,
				LightSensor:     true,
				OpsHTTP:         true,
				OpsAuth:         true,
			},
		},
	}
}

// LoadProfile loads a tier, optionally overridden by a
// ./configs/profile-<name>.yaml file.
func LoadProfile(name string) (*ProfileConfig, error) {
	profile := Profile(name)
	defaults, ok := DefaultProfiles()[profile]
	if !ok {
		return nil, fmt.Errorf("unknown profile: %s", name)
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("profile-%s", name))
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(getConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read profile config: %w", err)
		}
		return defaults, nil
	}

	var cfg ProfileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile config: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Description == "" {
		cfg.Description = defaults.Description
	}
	return &cfg, nil
}

// DetectProfile picks a tier from the board's RAM as read by the HAL: up to
// 512 MB is minimal, up to 1024 MB standard, more is full. Non-ARM hosts get
// ProfileFull; an ARM host whose board RAM cannot be read gets
// ProfileStandard.
func DetectProfile() Profile {
	isARM := runtime.GOARCH == "arm" || runtime.GOARCH == "arm64"
	if !isARM {
		return ProfileFull
	}

	board, err := hal.DetectBoard()
	if err != nil || board.RAMSize == 0 {
		return ProfileStandard
	}
	switch {
	case board.RAMSize <= 512:
		return ProfileMinimal
	case board.RAMSize <= 1024:
		return ProfileStandard
	default:
		return ProfileFull
	}
}
