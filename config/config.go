// Package config loads simulator host settings from a TOML file, an optional
// .env file and SIMHOST_* environment variables, in increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/wippyai/simhost/driver"
	"github.com/wippyai/simhost/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SIMHOST_"

// Config is the complete host configuration.
type Config struct {
	Module  Module  `toml:"module"`
	Exports Exports `toml:"exports"`
	Timing  Timing  `toml:"timing"`
	Display Display `toml:"display"`
	Run     Run     `toml:"run"`
	Log     Log     `toml:"log"`
}

// Module locates the guest and its boot image.
type Module struct {
	Path             string `toml:"path"`
	BootImage        string `toml:"boot-image"`
	MemoryLimitPages uint32 `toml:"memory-limit-pages" validate:"lte=65536"`
}

// Exports names the guest entry points.
type Exports struct {
	Setup       string `toml:"setup" validate:"required"`
	FrameBuffer string `toml:"frame-buffer" validate:"required"`
	Step        string `toml:"step" validate:"required"`
	Input       string `toml:"input" validate:"required"`
}

// Timing sets how many guest cycles each tick advances.
type Timing struct {
	ClockHz       float64 `toml:"clock-hz" validate:"gt=0"`
	RefreshHz     float64 `toml:"refresh-hz" validate:"gt=0,lte=1000"`
	CyclesPerTick uint32  `toml:"cycles-per-tick"`
}

// Display is the frame geometry and terminal scale.
type Display struct {
	Width  uint32 `toml:"width" validate:"gt=0,lte=4096"`
	Height uint32 `toml:"height" validate:"gt=0,lte=4096"`
	Scale  int    `toml:"scale" validate:"gte=1,lte=8"`
}

// Run controls a session's extent.
type Run struct {
	Snapshot string `toml:"snapshot"`
	Frames   uint64 `toml:"frames"`
	Headless bool   `toml:"headless"`
}

// Log configures the host logger.
type Log struct {
	Level       string `toml:"level" validate:"oneof=debug info warn error"`
	Development bool   `toml:"development"`
}

var validate = validator.New()

// Default returns the configuration of the original handheld.
func Default() *Config {
	exp := driver.DefaultExports()
	return &Config{
		Exports: Exports{
			Setup:       exp.Setup,
			FrameBuffer: exp.FrameBuffer,
			Step:        exp.Step,
			Input:       exp.Input,
		},
		Timing: Timing{
			ClockHz:   driver.DefaultClockHz,
			RefreshHz: driver.DefaultRefreshHz,
		},
		Display: Display{Width: 160, Height: 144, Scale: 1},
		Log:     Log{Level: "info"},
	}
}

// Load reads path over the defaults, then applies envFile (if non-empty) and
// the process environment. An empty path skips the file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.InvalidConfig(fmt.Sprintf("cannot read %s", path), err)
		}
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.InvalidConfig(fmt.Sprintf("parse error in %s", path), err)
		}
	}

	env := map[string]string{}
	if envFile != "" {
		fileEnv, err := godotenv.Read(envFile)
		if err != nil {
			return nil, errors.InvalidConfig(fmt.Sprintf("cannot read %s", envFile), err)
		}
		env = fileEnv
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}

	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies SIMHOST_* overrides from env.
func (c *Config) ApplyEnv(env map[string]string) error {
	str := func(key string, dst *string) {
		if v, ok := env[EnvPrefix+key]; ok {
			*dst = v
		}
	}
	num := func(key string, bits int, set func(uint64)) error {
		v, ok := env[EnvPrefix+key]
		if !ok {
			return nil
		}
		n, err := strconv.ParseUint(v, 10, bits)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
				Path(EnvPrefix + key).
				Value(v).
				Cause(err).
				Build()
		}
		set(n)
		return nil
	}
	float := func(key string, dst *float64) error {
		v, ok := env[EnvPrefix+key]
		if !ok {
			return nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New(errors.PhaseConfig, errors.KindInvalidConfig).
				Path(EnvPrefix + key).
				Value(v).
				Cause(err).
				Build()
		}
		*dst = f
		return nil
	}

	str("MODULE", &c.Module.Path)
	str("BOOT_IMAGE", &c.Module.BootImage)
	str("SNAPSHOT", &c.Run.Snapshot)
	str("LOG_LEVEL", &c.Log.Level)

	if err := num("CYCLES_PER_TICK", 32, func(n uint64) { c.Timing.CyclesPerTick = uint32(n) }); err != nil {
		return err
	}
	if err := num("FRAMES", 64, func(n uint64) { c.Run.Frames = n }); err != nil {
		return err
	}
	if err := num("SCALE", 8, func(n uint64) { c.Display.Scale = int(n) }); err != nil {
		return err
	}
	if err := num("MEMORY_LIMIT_PAGES", 32, func(n uint64) { c.Module.MemoryLimitPages = uint32(n) }); err != nil {
		return err
	}
	if err := float("CLOCK_HZ", &c.Timing.ClockHz); err != nil {
		return err
	}
	return float("REFRESH_HZ", &c.Timing.RefreshHz)
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.InvalidConfig("validation failed", err)
	}
	return nil
}

// Quantum returns the cycles per tick: the explicit setting, or the clock
// divided by the refresh rate.
func (c *Config) Quantum() uint32 {
	if c.Timing.CyclesPerTick > 0 {
		return c.Timing.CyclesPerTick
	}
	return driver.Quantum(c.Timing.ClockHz, c.Timing.RefreshHz)
}

// DriverConfig converts to the driver's configuration. bootImage is the
// already-loaded boot image, or nil.
func (c *Config) DriverConfig(bootImage []byte) driver.Config {
	return driver.Config{
		Exports: driver.Exports{
			Setup:       c.Exports.Setup,
			FrameBuffer: c.Exports.FrameBuffer,
			Step:        c.Exports.Step,
			Input:       c.Exports.Input,
		},
		BootImage:     bootImage,
		Width:         c.Display.Width,
		Height:        c.Display.Height,
		CyclesPerTick: c.Quantum(),
	}
}
