package simhost

import (
	"github.com/liuxd6825/marionette/api"
)

// touch is the state of one finger through an action chain.
type touch struct {
	pressed api.Element
}

func singleTap(a *agent, id string, p api.Params) (interface{}, error) {
	el, err := a.element(p["id"])
	if err != nil {
		return nil, err
	}
	if !el.Displayed() {
		return nil, api.NewError(api.ElementNotInteractable, "Element is not currently visible and may not be manipulated")
	}
	return a.activate(id, el.Click)
}

// actionChain runs the steps of chain in order and answers with the id
// of the next touch.
func actionChain(a *agent, _ string, p api.Params) (interface{}, error) {
	t := &touch{}
	for _, step := range p.Slice("chain") {
		if err := a.action(t, step); err != nil {
			return nil, err
		}
	}
	next, _ := api.ToInt(p["nextId"])
	return next, nil
}

// multiAction runs several chains, one step of each chain at a time.
func multiAction(a *agent, _ string, p api.Params) (interface{}, error) {
	chains := p.Slice("value")
	maxlen, err := api.ToInt(p["maxlen"])
	if err != nil {
		return nil, err
	}
	touches := make([]*touch, len(chains))
	for i := range touches {
		touches[i] = &touch{}
	}
	for step := 0; step < int(maxlen); step++ {
		for i, c := range chains {
			steps, _ := c.([]interface{})
			if step >= len(steps) {
				continue
			}
			if err := a.action(touches[i], steps[step]); err != nil {
				return nil, err
			}
		}
	}
	return replyOK, nil
}

// action performs one step of a chain: [name, arguments...].
func (a *agent) action(t *touch, step interface{}) error {
	args, ok := step.([]interface{})
	if !ok || len(args) == 0 {
		return api.NewError(api.InvalidArgument, "Invalid action: %v", step)
	}
	name, _ := args[0].(string)
	arg := func(i int) interface{} {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	switch name {
	case "press":
		if t.pressed != nil {
			return api.NewError(api.InvalidElementState, "Invalid press action: the element is already pressed")
		}
		el, err := a.element(arg(1))
		if err != nil {
			return err
		}
		t.pressed = el
	case "move":
		if t.pressed == nil {
			return api.NewError(api.InvalidElementState, "Element has not been pressed")
		}
		el, err := a.element(arg(1))
		if err != nil {
			return err
		}
		t.pressed = el
	case "moveByOffset":
		if t.pressed == nil {
			return api.NewError(api.InvalidElementState, "Element has not been pressed")
		}
	case "release":
		if t.pressed == nil {
			return api.NewError(api.InvalidElementState, "Element has not been pressed: no such element")
		}
		el := t.pressed
		t.pressed = nil
		return el.Click()
	case "cancel":
		t.pressed = nil
	case "click":
		el, err := a.element(arg(1))
		if err != nil {
			return err
		}
		return el.Click()
	case "wait", "keyDown", "keyUp":
	default:
		return api.NewError(api.UnsupportedOperation, "Unknown action: %s", name)
	}
	return nil
}
