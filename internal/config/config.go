// Package config loads and validates the daemon's YAML configuration.
//
// Load starts from Default, so a file only needs the keys it changes.
// Durations are Go duration strings ("1s", "15m").
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/texecom-monitor/internal/gpio"
	"github.com/sweeney/texecom-monitor/internal/logger"
	"github.com/sweeney/texecom-monitor/internal/logic"
	"github.com/sweeney/texecom-monitor/internal/mqtt"
	"github.com/sweeney/texecom-monitor/internal/serial"
)

const (
	// DefaultConfigFilename is the default configuration path.
	DefaultConfigFilename = "/etc/texecom-monitor.yaml"

	// DefaultBroker is the MQTT broker on the home network.
	DefaultBroker = "tcp://192.168.1.200:1883"

	// DefaultPoll is the run loop tick.
	DefaultPoll = 10 * time.Millisecond

	// DefaultHeartbeat is the heartbeat interval.
	DefaultHeartbeat = 15 * time.Minute

	// DefaultHTTPAddr is the status page address.
	DefaultHTTPAddr = ":80"

	// DefaultFilePermissions is the file permission for saved configs.
	DefaultFilePermissions = 0o600
)

var (
	errConfigIsNotSet = errors.New("configuration is not set")
	errBrokerRequired = errors.New("mqtt broker must be provided")
	errSerialRequired = errors.New("serial port must be provided")
)

// Config is the complete daemon configuration.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Panel  PanelConfig  `yaml:"panel"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	// Poll is the run loop tick.
	Poll time.Duration `yaml:"poll"`
	// Heartbeat is the heartbeat interval; 0 disables it.
	Heartbeat time.Duration `yaml:"heartbeat"`
	LogLevel  string        `yaml:"log_level"`
}

// SerialConfig describes the panel's Crestron port.
type SerialConfig struct {
	Port         string        `yaml:"port"`
	Baud         int           `yaml:"baud"`
	MaxFrameSize int           `yaml:"max_frame_size"`
	FrameTimeout time.Duration `yaml:"frame_timeout"`
}

// PanelConfig describes the installed panel.
type PanelConfig struct {
	FirstZone      int           `yaml:"first_zone"`
	ZoneCount      int           `yaml:"zone_count"`
	Users          []string      `yaml:"users"`
	IdleBanner     string        `yaml:"idle_banner"`
	Debounce       time.Duration `yaml:"debounce"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// GPIOConfig selects the sense line backend and wiring.
type GPIOConfig struct {
	Backend   string `yaml:"backend"`
	Chip      string `yaml:"chip"`
	ActiveLow bool   `yaml:"active_low"`
	// Pins maps line names (full_armed, part_armed, exit, entry, triggered,
	// arm_failed, fault_present, area_ready) to BCM numbers.
	Pins map[string]int `yaml:"pins"`
}

// MQTTConfig describes the broker connection.
type MQTTConfig struct {
	Broker     string `yaml:"broker"`
	ClientID   string `yaml:"client_id"`
	Username   string `yaml:"username,omitempty"`
	Password   string `yaml:"password,omitempty"`
	BufferSize int    `yaml:"buffer_size"`
}

// HTTPConfig describes the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration of the installed system.
func Default() *Config {
	mon := logic.DefaultConfig()
	pins := make(map[string]int, logic.LineCount)
	for i, p := range gpio.DefaultPins {
		pins[logic.Line(i).String()] = p
	}

	return &Config{
		Serial: SerialConfig{
			Port:         serial.DefaultPath,
			Baud:         serial.DefaultBaudRate,
			MaxFrameSize: mon.MaxFrameSize,
			FrameTimeout: mon.FrameTimeout,
		},
		Panel: PanelConfig{
			FirstZone:      mon.FirstZone,
			ZoneCount:      mon.ZoneCount,
			Users:          mon.Users,
			IdleBanner:     mon.IdleBanner,
			Debounce:       mon.Debounce,
			SampleInterval: mon.SampleInterval,
		},
		GPIO: GPIOConfig{
			Backend:   gpio.BackendCdev,
			Chip:      gpio.DefaultChip,
			ActiveLow: true,
			Pins:      pins,
		},
		MQTT: MQTTConfig{
			Broker:     DefaultBroker,
			ClientID:   "texecom-monitor",
			BufferSize: mqtt.DefaultBufferSize,
		},
		HTTP:      HTTPConfig{Addr: DefaultHTTPAddr},
		Poll:      DefaultPoll,
		Heartbeat: DefaultHeartbeat,
		LogLevel:  "info",
	}
}

// Load reads configuration from path over the defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate fills zero connection settings with defaults and rejects unusable
// settings. Panel and framing settings are never filled: a zero there is an
// error from the monitor's own validation.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}
	def := Default()

	if cfg.Serial.Port == "" {
		return errSerialRequired
	}
	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = def.Serial.Baud
	}

	switch cfg.GPIO.Backend {
	case "":
		cfg.GPIO.Backend = def.GPIO.Backend
	case gpio.BackendCdev, gpio.BackendPeriph:
	default:
		return fmt.Errorf("unknown gpio backend %q", cfg.GPIO.Backend)
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = def.GPIO.Chip
	}
	if cfg.GPIO.Pins == nil {
		cfg.GPIO.Pins = def.GPIO.Pins
	}
	if _, err := cfg.GPIO.pins(); err != nil {
		return err
	}

	if cfg.MQTT.Broker == "" {
		return errBrokerRequired
	}
	if _, err := url.Parse(cfg.MQTT.Broker); err != nil {
		return fmt.Errorf("invalid mqtt broker: %w", err)
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = def.MQTT.ClientID
	}
	if cfg.MQTT.BufferSize <= 0 {
		cfg.MQTT.BufferSize = def.MQTT.BufferSize
	}

	if cfg.Poll <= 0 {
		cfg.Poll = def.Poll
	}
	if cfg.Heartbeat < 0 {
		return fmt.Errorf("negative heartbeat interval %v", cfg.Heartbeat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	return cfg.Monitor().Validate()
}

// pins resolves the named pin map. Lines missing from the map keep their
// default pin.
func (g GPIOConfig) pins() (gpio.Pins, error) {
	pins := gpio.DefaultPins
	byName := make(map[string]logic.Line, logic.LineCount)
	for i := logic.Line(0); i < logic.LineCount; i++ {
		byName[i.String()] = i
	}

	for name, pin := range g.Pins {
		line, ok := byName[name]
		if !ok {
			return pins, fmt.Errorf("unknown sense line %q in gpio pins", name)
		}
		if pin < 0 {
			return pins, fmt.Errorf("negative pin %d for %s", pin, name)
		}
		pins[line] = pin
	}
	return pins, nil
}

// Monitor returns the core monitor settings.
func (c *Config) Monitor() logic.Config {
	return logic.Config{
		ZoneCount:      c.Panel.ZoneCount,
		FirstZone:      c.Panel.FirstZone,
		Users:          c.Panel.Users,
		IdleBanner:     c.Panel.IdleBanner,
		Debounce:       c.Panel.Debounce,
		SampleInterval: c.Panel.SampleInterval,
		MaxFrameSize:   c.Serial.MaxFrameSize,
		FrameTimeout:   c.Serial.FrameTimeout,
	}
}

// GPIOOptions returns the options for gpio.Open.
func (c *Config) GPIOOptions() gpio.Options {
	pins, err := c.GPIO.pins()
	if err != nil {
		pins = gpio.DefaultPins
	}
	return gpio.Options{
		Backend:   c.GPIO.Backend,
		Chip:      c.GPIO.Chip,
		Pins:      pins,
		ActiveLow: c.GPIO.ActiveLow,
	}
}

// MQTTOptions returns the publisher options.
func (c *Config) MQTTOptions() mqtt.Options {
	opts := mqtt.DefaultOptions(c.MQTT.Broker)
	opts.ClientID = c.MQTT.ClientID
	opts.Username = c.MQTT.Username
	opts.Password = c.MQTT.Password
	opts.BufferSize = c.MQTT.BufferSize
	return opts
}
