// Package config loads the rover's static configuration: pin assignments,
// the safe-distance threshold and service endpoints. It is read once at
// startup and never changed afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/obstacle-rover/internal/gpio"
	"github.com/sweeney/obstacle-rover/internal/logic"
)

// Environment overrides.
const (
	EnvSafeDistance = "ROVER_SAFE_DISTANCE"
	EnvMQTTBroker   = "ROVER_MQTT_BROKER"
	EnvHTTPAddr     = "ROVER_HTTP_ADDR"
)

// Config is the complete rover configuration.
type Config struct {
	Chip         string     `yaml:"chip"`
	Pins         PinsConfig `yaml:"pins"`
	SafeDistance float64    `yaml:"safe_distance_cm"`
	PWMFrequency int        `yaml:"pwm_frequency_hz"`
	MQTT         MQTTConfig `yaml:"mqtt"`
	HTTP         HTTPConfig `yaml:"http"`
	Log          LogConfig  `yaml:"log"`
}

// PinsConfig holds BCM pin numbers.
type PinsConfig struct {
	LeftTrigger  int       `yaml:"left_trigger"`
	LeftEcho     int       `yaml:"left_echo"`
	RightTrigger int       `yaml:"right_trigger"`
	RightEcho    int       `yaml:"right_echo"`
	FrontPW      int       `yaml:"front_pw"`
	LeftMotor    MotorPins `yaml:"left_motor"`
	RightMotor   MotorPins `yaml:"right_motor"`
}

// MotorPins holds one H-bridge side.
type MotorPins struct {
	Forward  int `yaml:"forward"`
	Backward int `yaml:"backward"`
	Enable   int `yaml:"enable"`
}

// GPIO converts to the gpio package representation.
func (m MotorPins) GPIO() gpio.MotorPins {
	return gpio.MotorPins{Forward: m.Forward, Backward: m.Backward, Enable: m.Enable}
}

// MQTTConfig holds telemetry settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig holds the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig controls the optional rotating log file. Stdout logging is
// always on.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Chip: gpio.DefaultChip,
		Pins: PinsConfig{
			LeftTrigger:  gpio.PinLeftTrigger,
			LeftEcho:     gpio.PinLeftEcho,
			RightTrigger: gpio.PinRightTrigger,
			RightEcho:    gpio.PinRightEcho,
			FrontPW:      gpio.PinFrontPW,
			LeftMotor: MotorPins{
				Forward:  gpio.PinLeftForward,
				Backward: gpio.PinLeftBackward,
				Enable:   gpio.PinLeftEnable,
			},
			RightMotor: MotorPins{
				Forward:  gpio.PinRightForward,
				Backward: gpio.PinRightBackward,
				Enable:   gpio.PinRightEnable,
			},
		},
		SafeDistance: logic.DefaultSafeDistance,
		PWMFrequency: gpio.DefaultPWMFrequency,
		MQTT: MQTTConfig{
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvSafeDistance); v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvSafeDistance, err)
		}
		cfg.SafeDistance = d
	}
	if v, ok := os.LookupEnv(EnvMQTTBroker); ok {
		cfg.MQTT.Broker = v
	}
	if v, ok := os.LookupEnv(EnvHTTPAddr); ok {
		cfg.HTTP.Addr = v
	}
	return nil
}

// Validate checks ranges and that no pin is assigned twice.
func (c *Config) Validate() error {
	if c.Chip == "" {
		return fmt.Errorf("chip must be set")
	}
	if !(c.SafeDistance > 0 && c.SafeDistance <= 400) {
		return fmt.Errorf("safe distance %v cm is outside (0, 400]", c.SafeDistance)
	}
	if c.PWMFrequency <= 0 || c.PWMFrequency > 10000 {
		return fmt.Errorf("pwm frequency %d Hz is outside [1, 10000]", c.PWMFrequency)
	}
	if c.MQTT.Heartbeat < 0 {
		return fmt.Errorf("mqtt heartbeat must not be negative")
	}

	seen := make(map[int]string)
	for _, p := range c.Pins.named() {
		if p.pin < 0 {
			return fmt.Errorf("pin %s: invalid number %d", p.name, p.pin)
		}
		if other, dup := seen[p.pin]; dup {
			return fmt.Errorf("pin %d assigned to both %s and %s", p.pin, other, p.name)
		}
		seen[p.pin] = p.name
	}
	return nil
}

type namedPin struct {
	name string
	pin  int
}

func (p PinsConfig) named() []namedPin {
	return []namedPin{
		{"left_trigger", p.LeftTrigger},
		{"left_echo", p.LeftEcho},
		{"right_trigger", p.RightTrigger},
		{"right_echo", p.RightEcho},
		{"front_pw", p.FrontPW},
		{"left_motor.forward", p.LeftMotor.Forward},
		{"left_motor.backward", p.LeftMotor.Backward},
		{"left_motor.enable", p.LeftMotor.Enable},
		{"right_motor.forward", p.RightMotor.Forward},
		{"right_motor.backward", p.RightMotor.Backward},
		{"right_motor.enable", p.RightMotor.Enable},
	}
}
