// Package config holds the station configuration, loaded from YAML with defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the station configuration.
type Config struct {
	Mains       MainsConfig       `yaml:"mains"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Control     ControlConfig     `yaml:"control"`
	Timing      TimingConfig      `yaml:"timing"`
	Hardware    HardwareConfig    `yaml:"hardware"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
}

// MainsConfig contains the zero-cross timing parameters.
type MainsConfig struct {
	ZeroCrossDelay time.Duration `yaml:"zero_cross_delay"` // Detector edge to true zero cross
	SettleDelay    time.Duration `yaml:"settle_delay"`     // One settle tick of the read phase
	ACWatchdog     time.Duration `yaml:"ac_watchdog"`      // Max expected time between edges
	StartupGrace   time.Duration `yaml:"startup_grace"`    // Watchdog allowance before the first edge
}

// AcquisitionConfig contains ADC burst and tip detection parameters.
type AcquisitionConfig struct {
	Samples          int `yaml:"samples"`
	MaxDeviation     int `yaml:"max_deviation"`
	NoTipMin         int `yaml:"no_tip_min"` // Lowest reading with no tip and check line high
	TipMax           int `yaml:"tip_max"`    // Highest reading with a tip inserted
	GainNum          int `yaml:"gain_num"`
	GainDen          int `yaml:"gain_den"`
	Offset           int `yaml:"offset"`
	TipCheckInterval int `yaml:"tip_check_interval"` // Half-cycles between tip checks
}

// ControlConfig contains temperature limits and power law parameters.
type ControlConfig struct {
	DefaultTemp  int `yaml:"default_temp"`
	MinTemp      int `yaml:"min_temp"`
	MaxTemp      int `yaml:"max_temp"`
	TempStep     int `yaml:"temp_step"`
	MaxOnPeriods int `yaml:"max_on_periods"`
	StandbyTemp  int `yaml:"standby_temp"`
	Deadband     int `yaml:"deadband"`
}

// TimingConfig contains the front panel and state machine delays.
type TimingConfig struct {
	TipInsertDelay     time.Duration `yaml:"tip_insert_delay"`
	TipChangeHold      time.Duration `yaml:"tip_change_hold"`
	HolderReleaseDelay time.Duration `yaml:"holder_release_delay"`
	StandbyTime        time.Duration `yaml:"standby_time"`
	LoopInterval       time.Duration `yaml:"loop_interval"`
	DisplayRefresh     time.Duration `yaml:"display_refresh"`
	SplashTimeout      time.Duration `yaml:"splash_timeout"`
}

// HardwareConfig names the buses and line offsets the station is wired to.
type HardwareConfig struct {
	GPIOChip       string `yaml:"gpio_chip"`
	ZeroCrossLine  int    `yaml:"zero_cross_line"`
	HeaterLine     int    `yaml:"heater_line"`
	ClampLine      int    `yaml:"clamp_line"`
	CheckLine      int    `yaml:"check_line"`
	HolderLine     int    `yaml:"holder_line"`
	TipChangeLine  int    `yaml:"tip_change_line"`
	ButtonLine     int    `yaml:"button_line"`
	EncoderALine   int    `yaml:"encoder_a_line"`
	EncoderBLine   int    `yaml:"encoder_b_line"`
	SPIPort        string `yaml:"spi_port"`
	SPISpeedHz     int64  `yaml:"spi_speed_hz"`
	ADCChannel     int    `yaml:"adc_channel"`
	I2CBus         string `yaml:"i2c_bus"`
	AmbientAddr    uint16 `yaml:"ambient_addr"`
	DisplayEnabled bool   `yaml:"display_enabled"`
	Contrast       uint8  `yaml:"contrast"`
}

// MQTTConfig contains telemetry broker settings.
type MQTTConfig struct {
	Broker    string        `yaml:"broker"`
	ClientID  string        `yaml:"client_id"`
	Heartbeat time.Duration `yaml:"heartbeat"`
}

// HTTPConfig contains the status server settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration matching the reference station hardware.
func Default() *Config {
	return &Config{
		Mains: MainsConfig{
			ZeroCrossDelay: 600 * time.Microsecond,
			SettleDelay:    2 * time.Millisecond,
			// Edge timestamps come from a userspace goroutine and can lag
			// the mains edge by several milliseconds.
			ACWatchdog:   50 * time.Millisecond,
			StartupGrace: time.Second,
		},
		Acquisition: AcquisitionConfig{
			Samples:          50,
			MaxDeviation:     200,
			NoTipMin:         4000,
			TipMax:           3800,
			GainNum:          100,
			GainDen:          750,
			Offset:           25,
			TipCheckInterval: 50, // 50 half cycles * 10ms = 500ms
		},
		Control: ControlConfig{
			DefaultTemp:  300,
			MinTemp:      30,
			MaxTemp:      400,
			TempStep:     5,
			MaxOnPeriods: 4,
			StandbyTemp:  50,
			Deadband:     3,
		},
		Timing: TimingConfig{
			TipInsertDelay:     3 * time.Second,
			TipChangeHold:      3 * time.Second,
			HolderReleaseDelay: 500 * time.Millisecond,
			StandbyTime:        30 * time.Second,
			LoopInterval:       10 * time.Millisecond,
			DisplayRefresh:     500 * time.Millisecond,
			SplashTimeout:      time.Second,
		},
		Hardware: HardwareConfig{
			GPIOChip:       "gpiochip0",
			ZeroCrossLine:  17,
			HeaterLine:     27,
			ClampLine:      22,
			CheckLine:      23,
			HolderLine:     5,
			TipChangeLine:  6,
			ButtonLine:     13,
			EncoderALine:   19,
			EncoderBLine:   26,
			SPIPort:        "/dev/spidev0.0",
			SPISpeedHz:     1000000,
			ADCChannel:     0,
			I2CBus:         "1",
			AmbientAddr:    0x49,
			DisplayEnabled: true,
			Contrast:       255,
		},
		MQTT: MQTTConfig{
			Broker:    "tcp://192.168.1.200:1883",
			ClientID:  "solder-station",
			Heartbeat: 15 * time.Minute,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate reports settings that would break the control loop.
func (c *Config) Validate() error {
	var errs []error

	a := c.Acquisition
	if a.TipMax >= a.NoTipMin {
		errs = append(errs, fmt.Errorf("acquisition: tip_max (%d) must be below no_tip_min (%d)", a.TipMax, a.NoTipMin))
	}
	if a.GainDen <= 0 {
		errs = append(errs, errors.New("acquisition: gain_den must be positive"))
	}
	if a.Samples < 1 {
		errs = append(errs, errors.New("acquisition: samples must be at least 1"))
	}

	ctl := c.Control
	if ctl.MaxOnPeriods < 1 {
		errs = append(errs, errors.New("control: max_on_periods must be at least 1"))
	}
	if ctl.MinTemp >= ctl.MaxTemp {
		errs = append(errs, fmt.Errorf("control: min_temp (%d) must be below max_temp (%d)", ctl.MinTemp, ctl.MaxTemp))
	}
	if ctl.StandbyTemp > ctl.MaxTemp {
		errs = append(errs, fmt.Errorf("control: standby_temp (%d) exceeds max_temp (%d)", ctl.StandbyTemp, ctl.MaxTemp))
	}
	if ctl.DefaultTemp < ctl.MinTemp || ctl.DefaultTemp > ctl.MaxTemp {
		errs = append(errs, fmt.Errorf("control: default_temp (%d) outside [%d, %d]", ctl.DefaultTemp, ctl.MinTemp, ctl.MaxTemp))
	}

	if c.Mains.ACWatchdog <= 0 {
		errs = append(errs, errors.New("mains: ac_watchdog must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ensureDefaults fills fields left at their zero value.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Mains.ZeroCrossDelay == 0 {
		c.Mains.ZeroCrossDelay = def.Mains.ZeroCrossDelay
	}
	if c.Mains.SettleDelay == 0 {
		c.Mains.SettleDelay = def.Mains.SettleDelay
	}
	if c.Mains.ACWatchdog == 0 {
		c.Mains.ACWatchdog = def.Mains.ACWatchdog
	}
	if c.Mains.StartupGrace == 0 {
		c.Mains.StartupGrace = def.Mains.StartupGrace
	}

	if c.Acquisition.Samples == 0 {
		c.Acquisition.Samples = def.Acquisition.Samples
	}
	if c.Acquisition.MaxDeviation == 0 {
		c.Acquisition.MaxDeviation = def.Acquisition.MaxDeviation
	}
	if c.Acquisition.NoTipMin == 0 {
		c.Acquisition.NoTipMin = def.Acquisition.NoTipMin
	}
	if c.Acquisition.TipMax == 0 {
		c.Acquisition.TipMax = def.Acquisition.TipMax
	}
	if c.Acquisition.GainNum == 0 {
		c.Acquisition.GainNum = def.Acquisition.GainNum
	}
	if c.Acquisition.GainDen == 0 {
		c.Acquisition.GainDen = def.Acquisition.GainDen
	}
	if c.Acquisition.TipCheckInterval == 0 {
		c.Acquisition.TipCheckInterval = def.Acquisition.TipCheckInterval
	}

	if c.Control.DefaultTemp == 0 {
		c.Control.DefaultTemp = def.Control.DefaultTemp
	}
	if c.Control.MinTemp == 0 {
		c.Control.MinTemp = def.Control.MinTemp
	}
	if c.Control.MaxTemp == 0 {
		c.Control.MaxTemp = def.Control.MaxTemp
	}
	if c.Control.TempStep == 0 {
		c.Control.TempStep = def.Control.TempStep
	}
	if c.Control.MaxOnPeriods == 0 {
		c.Control.MaxOnPeriods = def.Control.MaxOnPeriods
	}
	if c.Control.StandbyTemp == 0 {
		c.Control.StandbyTemp = def.Control.StandbyTemp
	}
	if c.Control.Deadband == 0 {
		c.Control.Deadband = def.Control.Deadband
	}

	if c.Timing.TipInsertDelay == 0 {
		c.Timing.TipInsertDelay = def.Timing.TipInsertDelay
	}
	if c.Timing.TipChangeHold == 0 {
		c.Timing.TipChangeHold = def.Timing.TipChangeHold
	}
	if c.Timing.HolderReleaseDelay == 0 {
		c.Timing.HolderReleaseDelay = def.Timing.HolderReleaseDelay
	}
	if c.Timing.StandbyTime == 0 {
		c.Timing.StandbyTime = def.Timing.StandbyTime
	}
	if c.Timing.LoopInterval == 0 {
		c.Timing.LoopInterval = def.Timing.LoopInterval
	}
	if c.Timing.DisplayRefresh == 0 {
		c.Timing.DisplayRefresh = def.Timing.DisplayRefresh
	}

	if c.Hardware.GPIOChip == "" {
		c.Hardware.GPIOChip = def.Hardware.GPIOChip
	}
	if c.Hardware.SPIPort == "" {
		c.Hardware.SPIPort = def.Hardware.SPIPort
	}
	if c.Hardware.SPISpeedHz == 0 {
		c.Hardware.SPISpeedHz = def.Hardware.SPISpeedHz
	}
	if c.Hardware.I2CBus == "" {
		c.Hardware.I2CBus = def.Hardware.I2CBus
	}
	if c.Hardware.AmbientAddr == 0 {
		c.Hardware.AmbientAddr = def.Hardware.AmbientAddr
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
}
