package cmd

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/cmd/state"
	"github.com/liuxd6825/marionette/errext"
	"github.com/liuxd6825/marionette/errext/exitcodes"
	"github.com/liuxd6825/marionette/transport"
	"github.com/liuxd6825/marionette/wire"
)

// cmdCall handles the `marionette call` sub-command
type cmdCall struct {
	gs *state.GlobalState

	address   string
	timeout   time.Duration
	noSession bool
	raw       bool
}

func getCmdCall(gs *state.GlobalState) *cobra.Command {
	c := &cmdCall{gs: gs}

	callCmd := &cobra.Command{
		Use:   "call command [parameters]",
		Short: "Send one command to a running server",
		Long: `Send one command to a running server and print its answer.

The parameters are a JSON object. A session is started before the
command unless the command is newSession itself or --no-session is set.`,
		Example: `
  marionette call getWindowHandles
  marionette call get '{"url":"http://example.com/"}'
  marionette call quitApplication '{"flags":["eForceQuit"]}'`[1:],
		Args: cobra.RangeArgs(1, 2),
		RunE: c.run,
	}
	flags := callCmd.Flags()
	flags.StringVarP(&c.address, "address", "a", DefaultAddress, "address of the server")
	flags.DurationVar(&c.timeout, "timeout", 30*time.Second, "how long to wait for every answer")
	flags.BoolVar(&c.noSession, "no-session", false, "don't start a session before the command")
	flags.BoolVar(&c.raw, "raw", false, "print the answer packet as it was received")
	return callCmd
}

func (c *cmdCall) run(_ *cobra.Command, args []string) error {
	params := "{}"
	if len(args) > 1 {
		params = args[1]
	}
	if !gjson.Valid(params) || !gjson.Parse(params).IsObject() {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("the parameters must be a JSON object, got %q", params), exitcodes.InvalidConfig)
	}
	req, err := wire.DecodeRequest([]byte(fmt.Sprintf(`{"name":%q,"parameters":%s}`, args[0], params)))
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}

	cl, err := dialServer(c.address, c.timeout)
	if err != nil {
		return errext.WithExitCodeIfNone(err, exitcodes.ClientFailed)
	}
	defer func() { _ = cl.Close() }()

	hello, err := cl.recv()
	if err != nil {
		return errext.WithExitCodeIfNone(fmt.Errorf("reading the server greeting: %w", err), exitcodes.ClientFailed)
	}
	c.gs.Logger.Debugf("connected to %s: %s", c.address, hello)

	if !c.noSession && req.Name != "newSession" {
		if _, err := cl.call(&wire.Request{Name: "newSession"}); err != nil {
			return err
		}
	}
	data, err := cl.call(req)
	if err != nil {
		return err
	}

	if c.raw {
		printToStdout(c.gs, string(data)+"\n")
		return nil
	}
	printToStdout(c.gs, c.format(data))
	return nil
}

func (c *cmdCall) format(data []byte) string {
	noColor := c.gs.Flags.NoColor || !c.gs.Stdout.IsTTY
	ok := color.New(color.FgGreen)
	if noColor {
		ok.DisableColor()
	}
	if value := gjson.GetBytes(data, "value"); value.Exists() {
		return strings.TrimRight(gjson.Get(value.Raw, "@pretty").Raw, "\n") + "\n"
	}
	return ok.Sprint("ok") + "\n"
}

// client speaks the stream framing to a server.
type client struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

func dialServer(addr string, timeout time.Duration) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errext.WithHint(
			fmt.Errorf("couldn't connect to %s: %w", addr, err),
			"start a server with `marionette serve` or point --address to one",
		)
	}
	return &client{conn: conn, r: bufio.NewReader(conn), timeout: timeout}, nil
}

func (cl *client) Close() error {
	return cl.conn.Close()
}

func (cl *client) recv() ([]byte, error) {
	if err := cl.conn.SetReadDeadline(time.Now().Add(cl.timeout)); err != nil {
		return nil, err
	}
	return transport.ReadPacket(cl.r)
}

// call sends req and returns the answer. An error answer is returned as
// a *remoteError.
func (cl *client) call(req *wire.Request) ([]byte, error) {
	pkt, err := wire.Encode(req)
	if err != nil {
		return nil, err
	}
	if err := transport.WritePacket(cl.conn, pkt); err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("sending %s: %w", req.Name, err), exitcodes.ClientFailed)
	}
	data, err := cl.recv()
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("reading the answer to %s: %w", req.Name, err), exitcodes.ClientFailed)
	}

	var resp wire.Response
	if err := resp.UnmarshalJSON(data); err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("malformed answer to %s: %w", req.Name, err), exitcodes.ClientFailed)
	}
	switch resp.Kind {
	case wire.KindError:
		return nil, errext.WithExitCodeIfNone(&remoteError{command: req.Name, err: resp.Error}, exitcodes.CommandFailed)
	case wire.KindEmulatorCmd, wire.KindEmulatorShell:
		return nil, errext.WithExitCodeIfNone(
			fmt.Errorf("%s needs an emulator, which this client doesn't provide", req.Name), exitcodes.ClientFailed)
	}
	return data, nil
}

// remoteError is a command failure reported by the server.
type remoteError struct {
	command string
	err     *api.Error
}

var _ errext.Exception = &remoteError{}

func (e *remoteError) Error() string {
	return fmt.Sprintf("%s failed: %s (%s, status %d)", e.command, e.err.Message, e.err.Kind, e.err.Status())
}

func (e *remoteError) Unwrap() error {
	return e.err
}

// StackTrace returns the error with the stack trace reported by the server.
func (e *remoteError) StackTrace() string {
	if e.err.Stacktrace == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.err.Stacktrace
}
