package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/mstoykov/envconfig"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/marionette/cmd/state"
	"github.com/liuxd6825/marionette/errext"
	"github.com/liuxd6825/marionette/errext/exitcodes"
)

// DefaultAddress is where clients connect unless configured otherwise.
const DefaultAddress = "localhost:2828"

// Config is the configuration of the serve command.
type Config struct {
	Address        null.String `json:"address" envconfig:"MARIONETTE_ADDRESS"`
	WSAddress      null.String `json:"wsAddress" envconfig:"MARIONETTE_WS_ADDRESS"`
	MetricsAddress null.String `json:"metricsAddress" envconfig:"MARIONETTE_METRICS_ADDRESS"`
	TracesOutput   null.String `json:"tracesOutput" envconfig:"MARIONETTE_TRACES_OUTPUT"`

	AcceptRate  null.Float `json:"acceptRate" envconfig:"MARIONETTE_ACCEPT_RATE"`
	AcceptBurst null.Int   `json:"acceptBurst" envconfig:"MARIONETTE_ACCEPT_BURST"`

	// Fixture is a YAML description of the simulated application.
	Fixture   null.String `json:"fixture" envconfig:"MARIONETTE_FIXTURE"`
	ScriptDir null.String `json:"scriptDir" envconfig:"MARIONETTE_SCRIPT_DIR"`
}

// Apply the provided config on top of the current one, returning a new one.
// The provided config has priority for every value it sets.
func (c Config) Apply(cfg Config) Config {
	if cfg.Address.Valid {
		c.Address = cfg.Address
	}
	if cfg.WSAddress.Valid {
		c.WSAddress = cfg.WSAddress
	}
	if cfg.MetricsAddress.Valid {
		c.MetricsAddress = cfg.MetricsAddress
	}
	if cfg.TracesOutput.Valid {
		c.TracesOutput = cfg.TracesOutput
	}
	if cfg.AcceptRate.Valid {
		c.AcceptRate = cfg.AcceptRate
	}
	if cfg.AcceptBurst.Valid {
		c.AcceptBurst = cfg.AcceptBurst
	}
	if cfg.Fixture.Valid {
		c.Fixture = cfg.Fixture
	}
	if cfg.ScriptDir.Valid {
		c.ScriptDir = cfg.ScriptDir
	}
	return c
}

func defaultConfig() Config {
	return Config{
		Address:      null.NewString(DefaultAddress, false),
		TracesOutput: null.NewString("none", false),
		AcceptBurst:  null.NewInt(1, false),
		ScriptDir:    null.NewString("marionette-scripts", false),
	}
}

func configFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringP("address", "a", DefaultAddress, "address to accept stream clients on")
	flags.String("ws-address", "", "address to accept WebSocket clients on, disabled if empty")
	flags.String("metrics-address", "", "address to serve Prometheus metrics on, disabled if empty")
	flags.String("traces-output", "none", "set the output for traces, possible values are none,otel[=host:port]")
	flags.Float64("accept-rate", 0, "maximum number of clients accepted per second, 0 means no limit")
	flags.Int64("accept-burst", 1, "number of clients accepted at once before the rate applies")
	flags.String("fixture", "", "YAML `file` describing the simulated application")
	flags.String("script-dir", "marionette-scripts", "directory imported scripts are stored in")
	return flags
}

func getConfig(flags *pflag.FlagSet) Config {
	return Config{
		Address:        getNullString(flags, "address"),
		WSAddress:      getNullString(flags, "ws-address"),
		MetricsAddress: getNullString(flags, "metrics-address"),
		TracesOutput:   getNullString(flags, "traces-output"),
		AcceptRate:     getNullFloat64(flags, "accept-rate"),
		AcceptBurst:    getNullInt64(flags, "accept-burst"),
		Fixture:        getNullString(flags, "fixture"),
		ScriptDir:      getNullString(flags, "script-dir"),
	}
}

// readDiskConfig reads the JSON config file, if there is one.
func readDiskConfig(gs *state.GlobalState) (Config, error) {
	data, err := afero.ReadFile(gs.FS, gs.Flags.ConfigFilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	} else if err != nil {
		return Config{}, fmt.Errorf("couldn't load the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	var conf Config
	if err := json.Unmarshal(data, &conf); err != nil {
		return Config{}, fmt.Errorf("couldn't parse the configuration from %q: %w", gs.Flags.ConfigFilePath, err)
	}
	return conf, nil
}

func readEnvConfig(env map[string]string) (Config, error) {
	var conf Config
	err := envconfig.Process("", &conf, func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	return conf, err
}

// getConsolidatedConfig assembles the final configuration. Every source
// overrides the previous ones, in this order:
//   - the defaults
//   - the JSON config file
//   - the MARIONETTE_* environment variables
//   - the command line flags
func getConsolidatedConfig(gs *state.GlobalState, cliConf Config) (Config, error) {
	fileConf, err := readDiskConfig(gs)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	envConf, err := readEnvConfig(gs.Env)
	if err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	conf := defaultConfig().Apply(fileConf).Apply(envConf).Apply(cliConf)
	if err := validateConfig(conf); err != nil {
		return Config{}, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return conf, nil
}

func validateConfig(conf Config) error {
	if conf.Address.String == "" {
		return errors.New("the address must not be empty")
	}
	if conf.AcceptRate.Float64 < 0 {
		return fmt.Errorf("the accept rate must not be negative, got %v", conf.AcceptRate.Float64)
	}
	if conf.AcceptBurst.Int64 < 1 {
		return fmt.Errorf("the accept burst must be at least 1, got %d", conf.AcceptBurst.Int64)
	}
	return nil
}
