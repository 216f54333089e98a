package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/liuxd6825/marionette/cmd/state"
	"github.com/liuxd6825/marionette/errext"
	"github.com/liuxd6825/marionette/errext/exitcodes"
	"github.com/liuxd6825/marionette/internal/trace"
	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/metrics"
	"github.com/liuxd6825/marionette/server"
	"github.com/liuxd6825/marionette/simhost"
)

const (
	// quitGracePeriod is how long the clients have to read the answer to
	// quitApplication before they are disconnected.
	quitGracePeriod   = 2 * time.Second
	httpShutdownGrace = 5 * time.Second
)

// cmdServe handles the `marionette serve` sub-command
type cmdServe struct {
	gs        *state.GlobalState
	getLogger func() *log.Logger
}

func getCmdServe(gs *state.GlobalState, getLogger func() *log.Logger) *cobra.Command {
	c := &cmdServe{gs: gs, getLogger: getLogger}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a remote control server",
		Long: `Start a remote control server driving a simulated application.

Clients connect over TCP with length-prefixed JSON packets, or over
WebSocket with one packet per text message. The server runs until a
client sends quitApplication or the process is interrupted.`,
		Example: `
  # Accept stream clients on the default address.
  marionette serve

  # Also accept WebSocket clients and serve Prometheus metrics.
  marionette serve --ws-address localhost:2829 --metrics-address localhost:9090

  # Simulate the windows and pages described in a fixture file.
  marionette serve --fixture ./app.yaml`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	serveCmd.Flags().SortFlags = false
	serveCmd.Flags().AddFlagSet(configFlagSet())
	return serveCmd
}

func (c *cmdServe) run(cmd *cobra.Command, _ []string) (err error) {
	conf, err := getConsolidatedConfig(c.gs, getConfig(cmd.Flags()))
	if err != nil {
		return err
	}
	logger := c.getLogger()

	host, err := c.newHost(conf, logger)
	if err != nil {
		return err
	}
	defer host.Close()

	tp, err := trace.TracerProviderFromConfigLine(c.gs.Ctx, conf.TracesOutput.String)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	defer func() {
		if serr := tp.Shutdown(context.Background()); serr != nil {
			logger.Warnf("Serve:traces", "shutting down the tracer provider: %v", serr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:        host,
		Logger:      logger,
		Metrics:     m,
		Tracer:      tp.Tracer("marionette"),
		Fs:          c.gs.FS,
		ScriptDir:   conf.ScriptDir.String,
		AcceptRate:  rate.Limit(conf.AcceptRate.Float64),
		AcceptBurst: int(conf.AcceptBurst.Int64),
	})

	l, err := listen(conf.Address.String)
	if err != nil {
		return err
	}

	errC := make(chan error, 3)
	go func() {
		errC <- srv.Serve(l)
	}()

	var httpServers []*http.Server
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), httpShutdownGrace)
		defer cancel()
		for _, hs := range httpServers {
			if serr := hs.Shutdown(ctx); serr != nil {
				logger.Warnf("Serve:http", "shutting down %s: %v", hs.Addr, serr)
			}
		}
	}()

	if conf.WSAddress.String != "" {
		mux := http.NewServeMux()
		mux.Handle("/", srv)
		hs, herr := serveHTTP(conf.WSAddress.String, mux, errC)
		if herr != nil {
			_ = srv.Close()
			return herr
		}
		httpServers = append(httpServers, hs)
		logger.Infof("Serve:websocket", "accepting WebSocket clients on ws://%s/", hs.Addr)
	}
	if conf.MetricsAddress.String != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		hs, herr := serveHTTP(conf.MetricsAddress.String, mux, errC)
		if herr != nil {
			_ = srv.Close()
			return herr
		}
		httpServers = append(httpServers, hs)
		logger.Infof("Serve:metrics", "serving metrics on http://%s/metrics", hs.Addr)
	}

	sigC := make(chan os.Signal, 2)
	c.gs.SignalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	defer c.gs.SignalStop(sigC)

	select {
	case <-srv.Quitting():
		waitForClients(srv, quitGracePeriod)
	case serr := <-errC:
		if serr != nil {
			err = errext.WithExitCodeIfNone(fmt.Errorf("the server stopped: %w", serr), exitcodes.ServerAborted)
			break
		}
		// The stream listener only stops cleanly when a client asked to quit.
		waitForClients(srv, quitGracePeriod)
	case sig := <-sigC:
		logger.Debugf("Serve:signal", "stopping the server after receiving signal %q", sig)
		err = errext.WithExitCodeIfNone(&errext.InterruptError{
			Reason: fmt.Sprintf("the server was stopped by signal %q", sig),
		}, exitcodes.ExternalAbort)
	case <-c.gs.Ctx.Done():
	}

	_ = srv.Close()
	if quitted, flags := host.Quitted(); quitted {
		logger.Infof("Serve:quit", "the application quit with flags %v", flags)
	}
	return err
}

func (c *cmdServe) newHost(conf Config, logger *log.Logger) (*simhost.Host, error) {
	fixture := simhost.DefaultFixture()
	if path := conf.Fixture.String; path != "" {
		f, err := simhost.LoadFixture(c.gs.FS, path)
		if err != nil {
			return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		fixture = f
	}
	host, err := simhost.New(fixture, simhost.WithLogger(logger))
	if err != nil {
		return nil, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return host, nil
}

func listen(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		err = errext.WithHint(
			fmt.Errorf("couldn't listen on %s: %w", addr, err),
			"another server may be running on the same address, use --address to pick another one",
		)
		return nil, errext.WithExitCodeIfNone(err, exitcodes.CannotListen)
	}
	return l, nil
}

// serveHTTP starts an HTTP server on addr. Errors other than a shutdown
// are sent to errC.
func serveHTTP(addr string, h http.Handler, errC chan<- error) (*http.Server, error) {
	l, err := listen(addr)
	if err != nil {
		return nil, err
	}
	hs := &http.Server{
		Addr:              l.Addr().String(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := hs.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()
	return hs, nil
}

// waitForClients waits until every client disconnected or the timeout
// passed.
func waitForClients(srv *server.Server, timeout time.Duration) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)
	for len(srv.Connections()) > 0 {
		select {
		case <-ticker.C:
		case <-deadline:
			return
		}
	}
}
