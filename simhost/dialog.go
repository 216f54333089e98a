package simhost

import (
	"context"
	"sync"

	"github.com/liuxd6825/marionette/api"
)

// Dialog kinds.
const (
	DialogAlert   = "alert"
	DialogConfirm = "confirm"
	DialogPrompt  = "prompt"
)

// Ensure Dialog implements api.Dialog.
var _ api.Dialog = &Dialog{}

// Dialog is a tab-modal prompt opened by content.
type Dialog struct {
	host *Host
	kind string
	text string
	done chan struct{}

	mu       sync.Mutex
	input    string
	accepted bool
	closed   bool
}

func newDialog(h *Host, kind, text string) *Dialog {
	return &Dialog{host: h, kind: kind, text: text, done: make(chan struct{})}
}

// Kind returns alert, confirm or prompt.
func (d *Dialog) Kind() string { return d.kind }

// Text implements api.Dialog.
func (d *Dialog) Text() string { return d.text }

// Accept implements api.Dialog.
func (d *Dialog) Accept() error {
	return d.close(true)
}

// Dismiss implements api.Dialog. Alerts only have the primary button.
func (d *Dialog) Dismiss() error {
	return d.close(d.kind == DialogAlert)
}

// HasInput implements api.Dialog.
func (d *Dialog) HasInput() bool {
	return d.kind == DialogPrompt
}

// SendKeys implements api.Dialog.
func (d *Dialog) SendKeys(text string) error {
	if !d.HasInput() {
		return api.NewError(api.ElementNotInteractable, "This prompt does not accept text input")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return api.NewError(api.NoSuchAlert, "The dialog was closed")
	}
	d.input += text
	return nil
}

// Closed implements api.Dialog.
func (d *Dialog) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Dialog) close(accepted bool) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return api.NewError(api.NoSuchAlert, "The dialog was closed")
	}
	d.closed, d.accepted = true, accepted
	close(d.done)
	d.mu.Unlock()

	d.host.emit(func(l api.Listener) { l.DialogClosed(d) })
	return nil
}

// wait blocks until the dialog closed and returns what the script that
// opened it sees: nothing for alerts, whether it was accepted for
// confirms and the input or null for prompts.
func (d *Dialog) wait(ctx context.Context) interface{} {
	select {
	case <-ctx.Done():
		return nil
	case <-d.done:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.kind {
	case DialogConfirm:
		return d.accepted
	case DialogPrompt:
		if !d.accepted {
			return nil
		}
		return d.input
	}
	return nil
}
