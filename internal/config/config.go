package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/relabs-tech/gesture_lock/internal/gesture"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "gesture_config.txt"

// EnvPrefix prefixes environment overrides, e.g. GESTURE_THRESHOLD=0.5.
const EnvPrefix = "GESTURE"

var ErrInvalid = errors.New("invalid config")

// eepromAddressSpace is the reach of the EEPROM's 16-bit word address.
const eepromAddressSpace = 1 << 16

// Config holds all application configuration values.
type Config struct {
	// Capture and matching
	Axes                     int
	Samples                  int
	WindowSize               int
	Trim                     int
	Threshold                float64
	CorrelationNormalization string
	RejectShortCaptures      bool
	TickInterval             time.Duration

	// Sensor: mpu9250, serial or mock
	Sensor           string
	IMUSPIDevice     string
	IMUCSPin         string
	IMUAccelRange    byte // 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelDLPF     byte
	IMUSampleRateDiv byte
	SerialPort       string
	SerialBaudRate   int

	// Triggers (empty pins: MQTT commands only)
	TriggerRecordPin  string
	TriggerAttemptPin string

	// Indicators
	LEDOrangePin   string
	LEDWhitePin    string
	LEDGreenPin    string
	LEDRedPin      string
	BuzzerPin      string
	IndicatorHold  time.Duration
	DisplayI2CBus  string
	DisplayI2CAddr uint16 // 0 disables the display

	// Template storage: file, eeprom or memory
	Store         string
	StorePath     string
	EEPROMI2CBus  string
	EEPROMI2CAddr uint16
	EEPROMOffset  int

	// MQTT (empty broker disables publishing)
	MQTTBroker          string
	MQTTClientIDLock    string
	MQTTClientIDConsole string
	MQTTClientIDWeb     string
	TopicState          string
	TopicCorrelation    string
	TopicSeries         string
	TopicCommand        string

	// HTTP
	WebServerPort int
	MetricsPort   int // 0 disables /metrics on the lock process

	Debug bool
}

type entry struct {
	key  string
	def  string
	help string
}

// entries lists every key in file order. Defaults are strings so the
// default file and the viper defaults cannot drift.
var entries = []entry{
	{"AXES", "3", "Capture and matching"},
	{"SAMPLES", "40", ""},
	{"WINDOW_SIZE", "8", ""},
	{"TRIM", "5", ""},
	{"THRESHOLD", "0.3", ""},
	{"CORRELATION_NORMALIZATION", "full", "full (n = SAMPLES) or trimmed (n = SAMPLES - 2*TRIM)"},
	{"REJECT_SHORT_CAPTURES", "false", ""},
	{"TICK_INTERVAL_MS", "20", ""},

	{"SENSOR", "mpu9250", "Sensor: mpu9250, serial or mock"},
	{"IMU_SPI_DEVICE", "/dev/spidev0.0", ""},
	{"IMU_CS_PIN", "GPIO8", ""},
	{"IMU_ACCEL_RANGE", "0", "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
	{"IMU_ACCEL_DLPF", "3", ""},
	{"IMU_SMPLRT_DIV", "0", ""},
	{"SERIAL_PORT", "/dev/ttyUSB0", ""},
	{"SERIAL_BAUD_RATE", "115200", ""},

	{"TRIGGER_RECORD_PIN", "GPIO5", "Buttons, active low with pull-up"},
	{"TRIGGER_ATTEMPT_PIN", "GPIO6", ""},

	{"LED_ORANGE_PIN", "GPIO17", "Indicators"},
	{"LED_WHITE_PIN", "GPIO27", ""},
	{"LED_GREEN_PIN", "GPIO22", ""},
	{"LED_RED_PIN", "GPIO23", ""},
	{"BUZZER_PIN", "GPIO18", ""},
	{"INDICATOR_HOLD_MS", "800", ""},
	{"DISPLAY_I2C_BUS", "", ""},
	{"DISPLAY_I2C_ADDR", "0x3C", "0 disables the display"},

	{"STORE", "file", "Template storage: file, eeprom or memory"},
	{"STORE_PATH", "gesture_template.bin", ""},
	{"EEPROM_I2C_BUS", "", ""},
	{"EEPROM_I2C_ADDR", "0x50", ""},
	{"EEPROM_OFFSET", "0", ""},

	{"MQTT_BROKER", "tcp://localhost:1883", "MQTT"},
	{"MQTT_CLIENT_ID_LOCK", "gesture-lock", ""},
	{"MQTT_CLIENT_ID_CONSOLE", "gesture-console", ""},
	{"MQTT_CLIENT_ID_WEB", "gesture-web", ""},
	{"TOPIC_STATE", "gesture/state", ""},
	{"TOPIC_CORRELATION", "gesture/correlation", ""},
	{"TOPIC_SERIES", "gesture/series", ""},
	{"TOPIC_COMMAND", "gesture/command", ""},

	{"WEB_SERVER_PORT", "8080", "HTTP"},
	{"METRICS_PORT", "0", ""},

	{"DEBUG", "false", ""},
}

// Global configuration instance.
//
// External code must use InitGlobal() to set and Get() to read.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the KEY=VALUE file at path, applies GESTURE_* environment
// overrides and validates the result. An empty path uses defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		v.SetDefault(e.key, e.def)
		known[strings.ToLower(e.key)] = true
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Debugf("config: using %s", v.ConfigFileUsed())
	}

	for _, k := range v.AllKeys() {
		if !known[k] {
			return nil, fmt.Errorf("%w: unknown config key: %q", ErrInvalid, strings.ToUpper(k))
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fromViper converts and range checks each value.
func fromViper(v *viper.Viper) (*Config, error) {
	p := parser{v: v}
	c := &Config{
		Axes:                     p.intIn("AXES", 1, gesture.MaxAxes),
		Samples:                  p.intIn("SAMPLES", 1, 10000),
		WindowSize:               p.intIn("WINDOW_SIZE", 1, 1000),
		Trim:                     p.intIn("TRIM", 0, 5000),
		Threshold:                p.float("THRESHOLD"),
		CorrelationNormalization: v.GetString("CORRELATION_NORMALIZATION"),
		RejectShortCaptures:      p.bool("REJECT_SHORT_CAPTURES"),
		TickInterval:             time.Duration(p.intIn("TICK_INTERVAL_MS", 1, 10000)) * time.Millisecond,

		Sensor:           strings.ToLower(v.GetString("SENSOR")),
		IMUSPIDevice:     v.GetString("IMU_SPI_DEVICE"),
		IMUCSPin:         v.GetString("IMU_CS_PIN"),
		IMUAccelRange:    byte(p.intIn("IMU_ACCEL_RANGE", 0, 3)),
		IMUAccelDLPF:     byte(p.intIn("IMU_ACCEL_DLPF", 0, 7)),
		IMUSampleRateDiv: byte(p.intIn("IMU_SMPLRT_DIV", 0, 255)),
		SerialPort:       v.GetString("SERIAL_PORT"),
		SerialBaudRate:   p.intIn("SERIAL_BAUD_RATE", 1, 4000000),

		TriggerRecordPin:  v.GetString("TRIGGER_RECORD_PIN"),
		TriggerAttemptPin: v.GetString("TRIGGER_ATTEMPT_PIN"),

		LEDOrangePin:   v.GetString("LED_ORANGE_PIN"),
		LEDWhitePin:    v.GetString("LED_WHITE_PIN"),
		LEDGreenPin:    v.GetString("LED_GREEN_PIN"),
		LEDRedPin:      v.GetString("LED_RED_PIN"),
		BuzzerPin:      v.GetString("BUZZER_PIN"),
		IndicatorHold:  time.Duration(p.intIn("INDICATOR_HOLD_MS", 0, 60000)) * time.Millisecond,
		DisplayI2CBus:  v.GetString("DISPLAY_I2C_BUS"),
		DisplayI2CAddr: p.addr("DISPLAY_I2C_ADDR"),

		Store:         strings.ToLower(v.GetString("STORE")),
		StorePath:     v.GetString("STORE_PATH"),
		EEPROMI2CBus:  v.GetString("EEPROM_I2C_BUS"),
		EEPROMI2CAddr: p.addr("EEPROM_I2C_ADDR"),
		EEPROMOffset:  p.intIn("EEPROM_OFFSET", 0, 1<<16),

		MQTTBroker:          v.GetString("MQTT_BROKER"),
		MQTTClientIDLock:    v.GetString("MQTT_CLIENT_ID_LOCK"),
		MQTTClientIDConsole: v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:     v.GetString("MQTT_CLIENT_ID_WEB"),
		TopicState:          v.GetString("TOPIC_STATE"),
		TopicCorrelation:    v.GetString("TOPIC_CORRELATION"),
		TopicSeries:         v.GetString("TOPIC_SERIES"),
		TopicCommand:        v.GetString("TOPIC_COMMAND"),

		WebServerPort: p.intIn("WEB_SERVER_PORT", 1, 65535),
		MetricsPort:   p.intIn("METRICS_PORT", 0, 65535),

		Debug: p.bool("DEBUG"),
	}
	if p.err != nil {
		return nil, p.err
	}
	return c, nil
}

// parser records the first conversion error.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
	}
}

func (p *parser) intIn(key string, lo, hi int) int {
	s := strings.TrimSpace(p.v.GetString(key))
	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail("invalid %s %q", key, s)
		return 0
	}
	if n < lo || n > hi {
		p.fail("%s must be %d-%d, got %d", key, lo, hi, n)
	}
	return n
}

func (p *parser) float(key string) float64 {
	s := strings.TrimSpace(p.v.GetString(key))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail("invalid %s %q", key, s)
	}
	return f
}

func (p *parser) bool(key string) bool {
	s := strings.TrimSpace(p.v.GetString(key))
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail("invalid %s %q", key, s)
	}
	return b
}

func (p *parser) addr(key string) uint16 {
	s := strings.TrimSpace(p.v.GetString(key))
	a, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		p.fail("invalid %s %q", key, s)
	}
	return uint16(a)
}

// validate checks cross-field constraints.
func (c *Config) validate() error {
	if err := c.Layout().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := gesture.ParseNormalization(c.CorrelationNormalization); err != nil {
		return fmt.Errorf("%w: CORRELATION_NORMALIZATION: %v", ErrInvalid, err)
	}
	if c.Threshold < -1 || c.Threshold > 1 {
		return fmt.Errorf("%w: THRESHOLD must be in [-1, 1], got %g", ErrInvalid, c.Threshold)
	}
	switch c.Sensor {
	case "mpu9250":
		if c.IMUSPIDevice == "" {
			return fmt.Errorf("%w: IMU_SPI_DEVICE is required for SENSOR=mpu9250", ErrInvalid)
		}
		if c.IMUCSPin == "" {
			return fmt.Errorf("%w: IMU_CS_PIN is required for SENSOR=mpu9250", ErrInvalid)
		}
	case "serial":
		if c.SerialPort == "" {
			return fmt.Errorf("%w: SERIAL_PORT is required for SENSOR=serial", ErrInvalid)
		}
	case "mock":
	default:
		return fmt.Errorf("%w: SENSOR must be mpu9250, serial or mock, got %q", ErrInvalid, c.Sensor)
	}
	switch c.Store {
	case "file":
		if c.StorePath == "" {
			return fmt.Errorf("%w: STORE_PATH is required for STORE=file", ErrInvalid)
		}
	case "eeprom":
		if end := c.EEPROMOffset + c.Layout().RegionSize(); end > eepromAddressSpace {
			return fmt.Errorf("%w: EEPROM_OFFSET %d leaves no room for %d template bytes below 0x%X",
				ErrInvalid, c.EEPROMOffset, c.Layout().RegionSize(), eepromAddressSpace)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: STORE must be file, eeprom or memory, got %q", ErrInvalid, c.Store)
	}
	return nil
}

// Layout returns the capture dimensions.
func (c *Config) Layout() gesture.Layout {
	return gesture.Layout{Axes: c.Axes, Samples: c.Samples, Window: c.WindowSize, Trim: c.Trim}
}

// Normalization returns the parsed correlation normalization.
func (c *Config) Normalization() gesture.Normalization {
	n, _ := gesture.ParseNormalization(c.CorrelationNormalization)
	return n
}

// WriteDefault writes a commented config file holding every default.
func WriteDefault(w io.Writer) error {
	var b strings.Builder
	b.WriteString("# gesture lock configuration\n")
	b.WriteString("# every key can be overridden with a GESTURE_<KEY> environment variable\n")
	for _, e := range entries {
		if e.help != "" {
			fmt.Fprintf(&b, "\n# %s\n", e.help)
		}
		fmt.Fprintf(&b, "%s=%s\n", e.key, e.def)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteDefaultFile writes the default config to path. It refuses to
// overwrite an existing file unless force is set.
func WriteDefaultFile(path string, force bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if err := WriteDefault(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
