package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moffa90/go-hvsp/doctor"
	"github.com/moffa90/go-hvsp/gpiobus"
	"github.com/moffa90/go-hvsp/panel"
	"github.com/moffa90/go-hvsp/protocol"
)

// Config is the host-side configuration of a fuse doctor.
type Config struct {
	Pins   PinsConfig   `mapstructure:"pins" yaml:"pins"`
	Timing TimingConfig `mapstructure:"timing" yaml:"timing"`
	Poll   PollConfig   `mapstructure:"poll" yaml:"poll"`
	Panel  PanelConfig  `mapstructure:"panel" yaml:"panel"`
	Verify bool         `mapstructure:"verify" yaml:"verify"`
	Spin   bool         `mapstructure:"spin" yaml:"spin"`
}

// PinsConfig names the GPIO pin of every line, button and LED.
type PinsConfig struct {
	Clock         string `mapstructure:"clock" yaml:"clock"`
	DataIn        string `mapstructure:"data_in" yaml:"data_in"`
	InstructionIn string `mapstructure:"instruction_in" yaml:"instruction_in"`
	DataOut       string `mapstructure:"data_out" yaml:"data_out"`
	Reset         string `mapstructure:"reset" yaml:"reset"`
	Supply        string `mapstructure:"supply" yaml:"supply"`
	Button        string `mapstructure:"button" yaml:"button"`
	LED           string `mapstructure:"led" yaml:"led"`
}

// TimingConfig holds the HVSP entry and exit delays.
type TimingConfig struct {
	PulseWidth     time.Duration `mapstructure:"pulse_width" yaml:"pulse_width"`
	PowerSettle    time.Duration `mapstructure:"power_settle" yaml:"power_settle"`
	ProgEnableHold time.Duration `mapstructure:"prog_enable_hold" yaml:"prog_enable_hold"`
	ModeEntry      time.Duration `mapstructure:"mode_entry" yaml:"mode_entry"`
	PowerDownHold  time.Duration `mapstructure:"power_down_hold" yaml:"power_down_hold"`
}

// PollConfig bounds the wait for a fuse write to complete.
type PollConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`
	MaxInterval time.Duration `mapstructure:"max_interval" yaml:"max_interval"`
}

// PanelConfig sets the LED pattern and the button sampling interval.
type PanelConfig struct {
	Step  time.Duration `mapstructure:"step" yaml:"step"`
	Steps int           `mapstructure:"steps" yaml:"steps"`
	Idle  time.Duration `mapstructure:"idle" yaml:"idle"`
}

func configDefaults() map[string]any {
	pins := gpiobus.DefaultPins()
	return map[string]any{
		"pins.clock":              pins.Clock,
		"pins.data_in":            pins.DataIn,
		"pins.instruction_in":     pins.InstructionIn,
		"pins.data_out":           pins.DataOut,
		"pins.reset":              pins.Reset,
		"pins.supply":             pins.Supply,
		"pins.button":             "GPIO5",
		"pins.led":                "GPIO6",
		"timing.pulse_width":      protocol.DefaultPulseWidth,
		"timing.power_settle":     doctor.DefaultPowerSettle,
		"timing.prog_enable_hold": doctor.DefaultProgEnableHold,
		"timing.mode_entry":       doctor.DefaultModeEntry,
		"timing.power_down_hold":  doctor.DefaultPowerDownHold,
		"poll.timeout":            protocol.DefaultPollTimeout,
		"poll.min_interval":       protocol.DefaultPollMinInterval,
		"poll.max_interval":       protocol.DefaultPollMaxInterval,
		"panel.step":              panel.DefaultStep,
		"panel.steps":             panel.DefaultSteps,
		"panel.idle":              panel.DefaultIdle,
		"verify":                  true,
		"spin":                    true,
	}
}

// configDirs lists the directories searched for fusedoctor.yaml, user
// directory first.
func configDirs() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "fusedoctor"))
	}
	return append(dirs, "/etc/fusedoctor", ".")
}

// LoadConfig layers defaults, the config file, FUSEDOCTOR_* environment
// variables and command flags.
func LoadConfig(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range configDefaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("fusedoctor")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	for _, dir := range configDirs() {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("fusedoctor")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// BusPins returns the GPIO names of the six HVSP lines.
func (c Config) BusPins() gpiobus.Pins {
	return gpiobus.Pins{
		Clock:         c.Pins.Clock,
		DataIn:        c.Pins.DataIn,
		InstructionIn: c.Pins.InstructionIn,
		DataOut:       c.Pins.DataOut,
		Reset:         c.Pins.Reset,
		Supply:        c.Pins.Supply,
	}
}

// ProgrammerOptions converts the configuration to doctor options.
func (c Config) ProgrammerOptions() []doctor.Option {
	return []doctor.Option{
		doctor.WithPulseWidth(c.Timing.PulseWidth),
		doctor.WithPowerSettle(c.Timing.PowerSettle),
		doctor.WithProgEnableHold(c.Timing.ProgEnableHold),
		doctor.WithModeEntryDelay(c.Timing.ModeEntry),
		doctor.WithPowerDownHold(c.Timing.PowerDownHold),
		doctor.WithPollTimeout(c.Poll.Timeout),
		doctor.WithPollInterval(c.Poll.MinInterval, c.Poll.MaxInterval),
		doctor.WithVerify(c.Verify),
	}
}

// Delayer returns the delay source selected by the spin setting.
func (c Config) Delayer() protocol.Delayer {
	if c.Spin {
		return gpiobus.SpinDelayer{}
	}
	return gpiobus.SleepDelayer{}
}
