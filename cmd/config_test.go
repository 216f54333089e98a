package cmd

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/marionette/cmd/state"
	"github.com/liuxd6825/marionette/errext"
	"github.com/liuxd6825/marionette/errext/exitcodes"
)

func TestConfigApply(t *testing.T) {
	t.Parallel()

	base := Config{
		Address:     null.StringFrom("localhost:1"),
		AcceptBurst: null.IntFrom(3),
	}
	conf := base.Apply(Config{Address: null.StringFrom("localhost:2"), AcceptRate: null.FloatFrom(5)})
	assert.Equal(t, "localhost:2", conf.Address.String)
	assert.Equal(t, int64(3), conf.AcceptBurst.Int64)
	assert.Equal(t, 5.0, conf.AcceptRate.Float64)

	assert.Equal(t, base, base.Apply(Config{}))
}

func testGlobalState(t *testing.T, env map[string]string) *state.GlobalState {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/etc/marionette", 0o755))
	return &state.GlobalState{
		Ctx:   context.Background(),
		FS:    fs,
		Env:   env,
		Flags: state.GlobalOptions{ConfigFilePath: "/etc/marionette/config.json"},
	}
}

func TestConsolidatedConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		conf, err := getConsolidatedConfig(testGlobalState(t, map[string]string{}), Config{})
		require.NoError(t, err)
		assert.Equal(t, DefaultAddress, conf.Address.String)
		assert.Equal(t, "none", conf.TracesOutput.String)
		assert.Equal(t, int64(1), conf.AcceptBurst.Int64)
		assert.False(t, conf.Address.Valid, "defaults are not explicitly set")
	})

	t.Run("priority", func(t *testing.T) {
		t.Parallel()

		gs := testGlobalState(t, map[string]string{
			"MARIONETTE_WS_ADDRESS":  "localhost:3000",
			"MARIONETTE_ACCEPT_RATE": "2.5",
		})
		require.NoError(t, afero.WriteFile(gs.FS, gs.Flags.ConfigFilePath,
			[]byte(`{"address":"localhost:1000","wsAddress":"localhost:2000","acceptBurst":4}`), 0o644))

		flags := configFlagSet()
		require.NoError(t, flags.Parse([]string{"--address", "localhost:4000"}))

		conf, err := getConsolidatedConfig(gs, getConfig(flags))
		require.NoError(t, err)
		assert.Equal(t, "localhost:4000", conf.Address.String)
		assert.Equal(t, "localhost:3000", conf.WSAddress.String)
		assert.Equal(t, 2.5, conf.AcceptRate.Float64)
		assert.Equal(t, int64(4), conf.AcceptBurst.Int64)
		assert.False(t, conf.MetricsAddress.Valid)
		assert.Equal(t, "marionette-scripts", conf.ScriptDir.String)
	})

	t.Run("invalid env", func(t *testing.T) {
		t.Parallel()

		_, err := getConsolidatedConfig(testGlobalState(t, map[string]string{
			"MARIONETTE_ACCEPT_RATE": "fast",
		}), Config{})
		require.Error(t, err)
		var ecerr errext.HasExitCode
		require.ErrorAs(t, err, &ecerr)
		assert.Equal(t, exitcodes.InvalidConfig, ecerr.ExitCode())
	})
}
