package tests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/liuxd6825/marionette/cmd/state"
	"github.com/liuxd6825/marionette/testutils"
)

// GlobalTestState is a wrapper around GlobalState for use in tests.
type GlobalTestState struct {
	*state.GlobalState
	Cancel func()

	Stdout, Stderr *bytes.Buffer
	LoggerHook     *testutils.SimpleLogrusHook

	Cwd string

	ExpectedExitCode int
}

// NewGlobalTestState returns an initialized GlobalTestState, mocking all
// GlobalState fields for use in tests.
func NewGlobalTestState(tb testing.TB) *GlobalTestState {
	tb.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	fs := afero.NewMemMapFs()
	cwd := "/test/"
	if err := fs.MkdirAll(cwd, 0o755); err != nil {
		tb.Fatal(err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.Out = testutils.NewTestOutput(tb)
	hook := &testutils.SimpleLogrusHook{HookedLevels: logrus.AllLevels}
	logger.AddHook(hook)

	ts := &GlobalTestState{
		Cwd:        cwd,
		Cancel:     cancel,
		LoggerHook: hook,
		Stdout:     new(bytes.Buffer),
		Stderr:     new(bytes.Buffer),
	}

	var osExitCalled atomic.Bool
	defaultOsExitHandle := func(exitCode int) {
		cancel()
		osExitCalled.Store(true)
		assert.Equal(tb, ts.ExpectedExitCode, exitCode)
	}

	tb.Cleanup(func() {
		if ts.ExpectedExitCode > 0 {
			// Ensure that, if we expected to receive an error, our `os.Exit()` mock
			// function was actually called.
			assert.Truef(tb, osExitCalled.Load(), "expected exit code %d, but the os.Exit() mock was not called", ts.ExpectedExitCode)
		}
	})

	outMutex := &sync.Mutex{}
	defaultFlags := state.GetDefaultGlobalOptions(filepath.Join(cwd, ".config"))
	flags := defaultFlags
	flags.NoColor = true

	ts.GlobalState = &state.GlobalState{
		Ctx:            ctx,
		FS:             fs,
		Getwd:          func() (string, error) { return ts.Cwd, nil },
		BinaryName:     "marionette",
		CmdArgs:        []string{},
		Env:            map[string]string{},
		DefaultFlags:   defaultFlags,
		Flags:          flags,
		OutMutex:       outMutex,
		Stdout:         &state.ConsoleWriter{Writer: ts.Stdout, IsTTY: false, Mutex: outMutex},
		Stderr:         &state.ConsoleWriter{Writer: ts.Stderr, IsTTY: false, Mutex: outMutex},
		Stdin:          new(bytes.Buffer),
		OSExit:         defaultOsExitHandle,
		SignalNotify:   func(_ chan<- os.Signal, _ ...os.Signal) {},
		SignalStop:     func(_ chan<- os.Signal) {},
		Logger:         logger,
		FallbackLogger: testutils.NewLogger(tb).WithField("fallback", true),
	}

	return ts
}
