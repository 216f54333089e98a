package tests

import (
	"encoding/json"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/marionette/cmd"
	"github.com/liuxd6825/marionette/errext/exitcodes"
	"github.com/liuxd6825/marionette/testutils"
	"github.com/liuxd6825/marionette/version"
)

const waitTimeout = 10 * time.Second

func TestVersion(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"marionette", "version"}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.Equal(t, "marionette v"+version.Full()+"\n", ts.Stdout.String())
	assert.Empty(t, ts.Stderr.Bytes())
	assert.Empty(t, ts.LoggerHook.Drain())
}

func TestVersionJSON(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"marionette", "version", "--json"}
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	var details map[string]string
	require.NoError(t, json.Unmarshal(ts.Stdout.Bytes(), &details))
	assert.Equal(t, "v"+version.Full(), details["version"])
	assert.Equal(t, runtime.Version(), details["go_version"])
	assert.Equal(t, runtime.GOOS, details["go_os"])
	assert.Equal(t, runtime.GOARCH, details["go_arch"])
}

func TestInvalidLogOutput(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"marionette", "--log-output", "syslog", "version"}
	ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, "unsupported log output 'syslog'"))
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		file   string
		noAddr bool
		env    map[string]string
		args   []string
		msg    string
	}{
		"malformed file": {
			file: `{"address": `,
			msg:  "couldn't parse the configuration",
		},
		"empty address in file": {
			file:   `{"address": ""}`,
			noAddr: true,
			msg:    "the address must not be empty",
		},
		"burst from env": {
			env: map[string]string{"MARIONETTE_ACCEPT_BURST": "0"},
			msg: "the accept burst must be at least 1",
		},
		"negative rate flag": {
			args: []string{"--accept-rate", "-1"},
			msg:  "the accept rate must not be negative",
		},
		"missing fixture": {
			args: []string{"--fixture", "/test/nope.yaml"},
			msg:  "reading fixture",
		},
		"traces output": {
			args: []string{"--traces-output", "jaeger"},
			msg:  "invalid traces output",
		},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ts := NewGlobalTestState(t)
			if tc.file != "" {
				require.NoError(t, ts.FS.MkdirAll(filepath.Dir(ts.Flags.ConfigFilePath), 0o755))
				require.NoError(t, afero.WriteFile(ts.FS, ts.Flags.ConfigFilePath, []byte(tc.file), 0o644))
			}
			for k, v := range tc.env {
				ts.Env[k] = v
			}
			args := []string{"marionette", "serve"}
			if !tc.noAddr {
				args = append(args, "--address", "127.0.0.1:0")
			}
			ts.CmdArgs = append(args, tc.args...)
			ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
			cmd.ExecuteWithGlobalState(ts.GlobalState)

			assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, tc.msg))
		})
	}
}

func TestCallWithoutServer(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	// Nothing listens on the discard port.
	ts.CmdArgs = []string{"marionette", "call", "--address", "127.0.0.1:9", "--timeout", "1s", "getTitle"}
	ts.ExpectedExitCode = int(exitcodes.ClientFailed)
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	entries := ts.LoggerHook.Drain()
	require.True(t, testutils.LogContains(entries, logrus.ErrorLevel, "couldn't connect to 127.0.0.1:9"))
	assert.Equal(t, "start a server with `marionette serve` or point --address to one", lastError(entries).Data["hint"])
}

func TestCallInvalidParameters(t *testing.T) {
	t.Parallel()

	ts := NewGlobalTestState(t)
	ts.CmdArgs = []string{"marionette", "call", "get", `["http://example.com/"]`}
	ts.ExpectedExitCode = int(exitcodes.InvalidConfig)
	cmd.ExecuteWithGlobalState(ts.GlobalState)

	assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, "the parameters must be a JSON object"))
}

func TestServeAndCall(t *testing.T) {
	t.Parallel()

	srv := NewGlobalTestState(t)
	srv.CmdArgs = []string{"marionette", "serve", "--address", "127.0.0.1:0", "--script-dir", filepath.Join(srv.Cwd, "scripts")}
	served := make(chan struct{})
	go func() {
		defer close(served)
		cmd.ExecuteWithGlobalState(srv.GlobalState)
	}()
	addr := serverAddress(t, srv)

	call := func(t *testing.T, exitCode exitcodes.ExitCode, args ...string) *GlobalTestState {
		t.Helper()

		ts := NewGlobalTestState(t)
		ts.CmdArgs = append([]string{"marionette", "call", "--address", addr}, args...)
		ts.ExpectedExitCode = int(exitCode)
		cmd.ExecuteWithGlobalState(ts.GlobalState)
		return ts
	}

	ts := call(t, 0, "getWindowHandles")
	assert.True(t, gjson.Parse(ts.Stdout.String()).IsArray(), ts.Stdout.String())

	ts = call(t, 0, "--no-session", "--raw", "getMarionetteID")
	assert.Equal(t, "root", gjson.Get(ts.Stdout.String(), "from").String())

	ts = call(t, exitcodes.CommandFailed, "frobnicate")
	assert.Empty(t, ts.Stdout.String())
	assert.True(t, testutils.LogContains(ts.LoggerHook.Drain(), logrus.ErrorLevel, "frobnicate failed"))

	ts = call(t, 0, "quitApplication", `{"flags":["eForceQuit"]}`)
	assert.Equal(t, "ok\n", ts.Stdout.String())

	select {
	case <-served:
	case <-time.After(waitTimeout):
		require.FailNow(t, "the server didn't stop after quitApplication")
	}
	assert.True(t, testutils.LogContains(srv.LoggerHook.Drain(), logrus.InfoLevel, "the application quit with flags [eForceQuit]"))
}

// serverAddress waits for the serve command to log the address it listens on.
func serverAddress(t *testing.T, ts *GlobalTestState) string {
	t.Helper()

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		for _, e := range ts.LoggerHook.Entries() {
			if addr, ok := strings.CutPrefix(e.Message, "listening on "); ok {
				return addr
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.FailNow(t, "the server didn't start listening")
	return ""
}

func lastError(entries []logrus.Entry) logrus.Entry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Level == logrus.ErrorLevel {
			return entries[i]
		}
	}
	return logrus.Entry{}
}
