package main

import (
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/simhost/config"
	"github.com/wippyai/simhost/driver"
	"github.com/wippyai/simhost/engine"
	"github.com/wippyai/simhost/errors"
	"github.com/wippyai/simhost/linker"
	"github.com/wippyai/simhost/runtime"
)

// app carries state shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	configPath string
	envFile    string
	logLevel   string
	logFile    string
	dev        bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "simhost",
		Short: "Run a WebAssembly handheld simulator guest.",
		Long: `simhost loads a simulator compiled to a core WebAssembly module, links its ` +
			`imports (stubbing any it does not know), and drives it one display frame at a time.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "TOML configuration file")
	pf.StringVar(&a.envFile, "env-file", "", "read SIMHOST_* variables from this .env file")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&a.logFile, "log-file", "", "write host logs to this file instead of stderr")
	pf.BoolVar(&a.dev, "dev", false, "human-readable development logging")

	root.AddCommand(newRunCmd(a), newImportsCmd(a), newDemoCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if cmd.Flags().Changed("dev") {
		cfg.Log.Development = a.dev
	}
	a.cfg = cfg

	logger, err := a.buildLogger()
	if err != nil {
		return err
	}
	a.setLogger(logger)
	return nil
}

func (a *app) buildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return nil, errors.InvalidConfig("log level", err)
	}

	zc := zap.NewProductionConfig()
	if a.cfg.Log.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	if a.logFile != "" {
		zc.OutputPaths = []string{a.logFile}
	}
	return zc.Build()
}

// setLogger installs l in every package that logs.
func (a *app) setLogger(l *zap.Logger) {
	a.logger = l
	engine.SetLogger(l.Named("engine"))
	linker.SetLogger(l.Named("linker"))
	driver.SetLogger(l.Named("driver"))
	runtime.SetLogger(l.Named("runtime"))
	atexit.Register(func() { _ = l.Sync() })
}
