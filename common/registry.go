/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"errors"
	"fmt"
	"sort"

	"github.com/liuxd6825/marionette/api"
)

// CommandKind tells where a command is executed.
type CommandKind int

// Command kinds.
const (
	// KindChrome commands run in the control process whatever the
	// session context is.
	KindChrome CommandKind = iota + 1
	// KindContent commands are always forwarded to the content agent.
	KindContent
	// KindBoth commands run locally in chrome context and are forwarded
	// in content context.
	KindBoth
)

func (k CommandKind) String() string {
	switch k {
	case KindChrome:
		return "chrome"
	case KindContent:
		return "content"
	case KindBoth:
		return "both"
	}
	return fmt.Sprintf("CommandKind(%d)", int(k))
}

// HandlerFunc executes a command. It either answers id before returning
// or arranges for a later answer. A returned error is answered with id.
type HandlerFunc func(c *Connection, id CommandID, p api.Params) error

// Command is an entry of the dispatch table.
type Command struct {
	Name    string
	Aliases []string
	Kind    CommandKind

	// OutOfBand commands are not answered through the correlation slot
	// and leave the command in flight untouched.
	OutOfBand bool

	// Chrome runs the command in the control process.
	Chrome HandlerFunc

	// Content forwards the command to the content agent.
	Content HandlerFunc
}

// handler picks the implementation for the session context.
func (cmd *Command) handler(chromeContext bool) HandlerFunc {
	switch cmd.Kind {
	case KindChrome:
		return cmd.Chrome
	case KindContent:
		return cmd.Content
	default:
		if chromeContext {
			return cmd.Chrome
		}
		return cmd.Content
	}
}

func (cmd *Command) validate() error {
	if cmd.Name == "" {
		return errors.New("command without name")
	}
	switch cmd.Kind {
	case KindChrome:
		if cmd.Chrome == nil {
			return fmt.Errorf("chrome command %q has no chrome handler", cmd.Name)
		}
		if cmd.Content != nil {
			return fmt.Errorf("chrome command %q has a content handler", cmd.Name)
		}
	case KindContent:
		if cmd.Content == nil {
			return fmt.Errorf("content command %q has no content handler", cmd.Name)
		}
		if cmd.Chrome != nil {
			return fmt.Errorf("content command %q has a chrome handler", cmd.Name)
		}
	case KindBoth:
		if cmd.Chrome == nil || cmd.Content == nil {
			return fmt.Errorf("command %q needs both a chrome and a content handler", cmd.Name)
		}
	default:
		return fmt.Errorf("command %q has invalid kind %s", cmd.Name, cmd.Kind)
	}
	return nil
}

// Registry is an immutable dispatch table.
type Registry struct {
	commands map[string]*Command
}

// NewRegistry builds a dispatch table from cmds. Names and aliases share
// one namespace.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{commands: make(map[string]*Command, len(cmds))}
	for i := range cmds {
		cmd := cmds[i]
		if err := cmd.validate(); err != nil {
			return nil, err
		}
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			if name == "" {
				return nil, fmt.Errorf("command %q has an empty alias", cmd.Name)
			}
			if _, ok := r.commands[name]; ok {
				return nil, fmt.Errorf("duplicate command name %q", name)
			}
			r.commands[name] = &cmd
		}
	}
	return r, nil
}

// Lookup returns the command registered under name or one of its
// aliases.
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns every registered name and alias, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for n := range r.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
