package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/steersim/internal/dynamo"
)

// EnvPrefix namespaces environment overrides, e.g. STEERSIM_GAINS_KP.
const EnvPrefix = "STEERSIM"

type Config struct {
	Scenario      string         `mapstructure:"scenario" yaml:"scenario" json:"scenario"`
	Duration      float64        `mapstructure:"t_end" yaml:"t_end" json:"t_end"`
	Dt            float64        `mapstructure:"dt" yaml:"dt" json:"dt"`
	OutputLimit   float64        `mapstructure:"output_limit" yaml:"output_limit" json:"output_limit"`
	ValidateState bool           `mapstructure:"validate_state" yaml:"validate_state" json:"validate_state"`
	Gains         GainsConfig    `mapstructure:"gains" yaml:"gains" json:"gains"`
	Physical      PhysicalConfig `mapstructure:"physical" yaml:"physical" json:"physical"`
	Events        EventsConfig   `mapstructure:"events" yaml:"events" json:"events"`
	Logger        LoggerConfig   `mapstructure:"logger" yaml:"logger" json:"-"`
	DataDir       string         `mapstructure:"data_dir" yaml:"data_dir" json:"-"`
}

type GainsConfig struct {
	Kp float64 `mapstructure:"kp" yaml:"kp" json:"kp"`
	Ki float64 `mapstructure:"ki" yaml:"ki" json:"ki"`
	Kd float64 `mapstructure:"kd" yaml:"kd" json:"kd"`
}

type PhysicalConfig struct {
	J        float64 `mapstructure:"j" yaml:"j" json:"j"`
	B        float64 `mapstructure:"b" yaml:"b" json:"b"`
	Kt       float64 `mapstructure:"kt" yaml:"kt" json:"kt"`
	Kh       float64 `mapstructure:"kh" yaml:"kh" json:"kh"`
	TauH     float64 `mapstructure:"tau_h" yaml:"tau_h" json:"tau_h"`
	SpoolMax float64 `mapstructure:"spool_max" yaml:"spool_max" json:"spool_max"`
}

// EventsConfig places the scenario events. Angles are in degrees.
type EventsConfig struct {
	InitialDeg      float64 `mapstructure:"initial_deg" yaml:"initial_deg" json:"initial_deg"`
	DisturbanceTime float64 `mapstructure:"disturbance_time" yaml:"disturbance_time" json:"disturbance_time"`
	DisturbanceDeg  float64 `mapstructure:"disturbance_deg" yaml:"disturbance_deg" json:"disturbance_deg"`
	ReferenceTime   float64 `mapstructure:"reference_time" yaml:"reference_time" json:"reference_time"`
	ReferenceDeg    float64 `mapstructure:"reference_deg" yaml:"reference_deg" json:"reference_deg"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:       "info",
		Format:      "console",
		ServiceName: "steersim",
		MaxSize:     10,
		MaxBackups:  3,
		MaxAge:      28,
	}
}

func DefaultConfig() *Config {
	return FromParams(dynamo.DefaultParams())
}

// FromParams converts run parameters into their file representation.
func FromParams(p dynamo.Params) *Config {
	return &Config{
		Scenario:      p.Scenario.String(),
		Duration:      p.Duration,
		Dt:            p.Dt,
		OutputLimit:   p.OutputLimit,
		ValidateState: p.ValidateState,
		Gains:         GainsConfig{Kp: p.Gains.Kp, Ki: p.Gains.Ki, Kd: p.Gains.Kd},
		Physical: PhysicalConfig{
			J:        p.Physical.J,
			B:        p.Physical.B,
			Kt:       p.Physical.Kt,
			Kh:       p.Physical.Kh,
			TauH:     p.Physical.TauH,
			SpoolMax: p.Physical.SpoolMax,
		},
		Events: EventsConfig{
			InitialDeg:      dynamo.Rad2Deg(p.InitialDeflection),
			DisturbanceTime: p.DisturbanceTime,
			DisturbanceDeg:  dynamo.Rad2Deg(p.Disturbance),
			ReferenceTime:   p.ReferenceTime,
			ReferenceDeg:    dynamo.Rad2Deg(p.ReferenceStep),
		},
		Logger:  DefaultLoggerConfig(),
		DataDir: ".steersim",
	}
}

// Params converts the config into validated run parameters.
func (c *Config) Params() (dynamo.Params, error) {
	sc, err := dynamo.ParseScenario(c.Scenario)
	if err != nil {
		return dynamo.Params{}, err
	}
	p := dynamo.Params{
		Scenario: sc,
		Gains:    dynamo.Gains{Kp: c.Gains.Kp, Ki: c.Gains.Ki, Kd: c.Gains.Kd},
		Physical: dynamo.Physical{
			J:        c.Physical.J,
			B:        c.Physical.B,
			Kt:       c.Physical.Kt,
			Kh:       c.Physical.Kh,
			TauH:     c.Physical.TauH,
			SpoolMax: c.Physical.SpoolMax,
		},
		Duration:          c.Duration,
		Dt:                c.Dt,
		OutputLimit:       c.OutputLimit,
		InitialDeflection: dynamo.Deg2Rad(c.Events.InitialDeg),
		DisturbanceTime:   c.Events.DisturbanceTime,
		Disturbance:       dynamo.Deg2Rad(c.Events.DisturbanceDeg),
		ReferenceTime:     c.Events.ReferenceTime,
		ReferenceStep:     dynamo.Deg2Rad(c.Events.ReferenceDeg),
		ValidateState:     c.ValidateState,
	}
	if err := p.Validate(); err != nil {
		return dynamo.Params{}, err
	}
	return p, nil
}

// SetDefaults registers every key of base with v so that environment
// variables can override keys absent from the file.
func SetDefaults(v *viper.Viper, base *Config) {
	v.SetDefault("scenario", base.Scenario)
	v.SetDefault("t_end", base.Duration)
	v.SetDefault("dt", base.Dt)
	v.SetDefault("output_limit", base.OutputLimit)
	v.SetDefault("validate_state", base.ValidateState)
	v.SetDefault("data_dir", base.DataDir)

	v.SetDefault("gains.kp", base.Gains.Kp)
	v.SetDefault("gains.ki", base.Gains.Ki)
	v.SetDefault("gains.kd", base.Gains.Kd)

	v.SetDefault("physical.j", base.Physical.J)
	v.SetDefault("physical.b", base.Physical.B)
	v.SetDefault("physical.kt", base.Physical.Kt)
	v.SetDefault("physical.kh", base.Physical.Kh)
	v.SetDefault("physical.tau_h", base.Physical.TauH)
	v.SetDefault("physical.spool_max", base.Physical.SpoolMax)

	v.SetDefault("events.initial_deg", base.Events.InitialDeg)
	v.SetDefault("events.disturbance_time", base.Events.DisturbanceTime)
	v.SetDefault("events.disturbance_deg", base.Events.DisturbanceDeg)
	v.SetDefault("events.reference_time", base.Events.ReferenceTime)
	v.SetDefault("events.reference_deg", base.Events.ReferenceDeg)

	v.SetDefault("logger.level", base.Logger.Level)
	v.SetDefault("logger.format", base.Logger.Format)
	v.SetDefault("logger.add_source", base.Logger.AddSource)
	v.SetDefault("logger.service_name", base.Logger.ServiceName)
	v.SetDefault("logger.log_file", base.Logger.LogFile)
	v.SetDefault("logger.max_size", base.Logger.MaxSize)
	v.SetDefault("logger.max_backups", base.Logger.MaxBackups)
	v.SetDefault("logger.max_age", base.Logger.MaxAge)
	v.SetDefault("logger.compress", base.Logger.Compress)
}

// Load reads path over the defaults and applies STEERSIM_ environment
// overrides. An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	return LoadWithBase(path, DefaultConfig())
}

// LoadWithBase is Load with base (typically a preset) in place of the
// defaults, so file values override the preset and the environment
// overrides both.
func LoadWithBase(path string, base *Config) (*Config, error) {
	v := viper.New()
	SetDefaults(v, base)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("config: unknown preset")
