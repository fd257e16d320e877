package modbus

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the file/env configuration of one serial link and the
// client policy on top of it.
type Config struct {
	Serial SerialConfig `mapstructure:"serial"`
	Client PolicyConfig `mapstructure:"client"`
	Log    LogConfig    `mapstructure:"log"`
}

// SerialConfig defines the serial line settings.
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PolicyConfig defines the client policy surface.
type PolicyConfig struct {
	Station             uint8 `mapstructure:"station"`
	ZeroBasedAddressing bool  `mapstructure:"zero_based_addressing"`
	WordSwap            bool  `mapstructure:"word_swap"`
	MultiWordSwap       bool  `mapstructure:"multi_word_swap"`
	StringWordSwap      bool  `mapstructure:"string_word_swap"`
}

// LogConfig defines logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warning, error, none
}

// LoadConfig loads configuration from the given file, or from
// modbusrtu.yaml in the working directory when configFile is empty.
// Environment variables prefixed MODBUSRTU_ override file values.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("modbusrtu")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MODBUSRTU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults match DefaultClientConfig and the common 9600-8-N-1 line.
	v.SetDefault("serial.baud_rate", 9600)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.timeout", time.Second)
	v.SetDefault("client.station", 1)
	v.SetDefault("client.zero_based_addressing", true)
	v.SetDefault("client.word_swap", true)
	v.SetDefault("client.multi_word_swap", false)
	v.SetDefault("client.string_word_swap", false)
	v.SetDefault("log.level", "INFO")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("modbus: failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("modbus: failed to unmarshal config: %w", err)
	}

	fixupConfig(&config)
	return &config, nil
}

func fixupConfig(c *Config) {
	c.Serial.Parity = strings.ToUpper(c.Serial.Parity)
	if c.Serial.Timeout == 0 {
		c.Serial.Timeout = time.Second
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 9600
	}
	if c.Serial.DataBits == 0 {
		c.Serial.DataBits = 8
	}
	if c.Serial.StopBits == 0 {
		c.Serial.StopBits = 1
	}
}

// Open opens the configured serial device and returns a ready Client
// plus the transport for lifecycle management.
func Open(config *Config) (*Client, *SerialTransport, error) {
	if config.Serial.Device == "" {
		return nil, nil, fmt.Errorf("modbus: serial device not configured")
	}
	transport, err := OpenSerialTransport(
		config.Serial.Device,
		config.Serial.BaudRate,
		config.Serial.DataBits,
		config.Serial.StopBits,
		config.Serial.Parity,
		SerialTransportConfig{Timeout: config.Serial.Timeout},
	)
	if err != nil {
		return nil, nil, err
	}

	logger := NewSimpleLogger(nil, LevelInfo, "modbus-rtu")
	if err := logger.SetLevelFromString(config.Log.Level); err != nil {
		logger.SetLevel(LevelInfo)
	}

	client := NewClient(transport, ClientConfig{
		Station:             config.Client.Station,
		ZeroBasedAddressing: config.Client.ZeroBasedAddressing,
		WordSwap:            config.Client.WordSwap,
		MultiWordSwap:       config.Client.MultiWordSwap,
		StringWordSwap:      config.Client.StringWordSwap,
		Logger:              logger,
	})
	return client, transport, nil
}
