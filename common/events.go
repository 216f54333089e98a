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

import "github.com/liuxd6825/marionette/api"

// Events processed by the loop of a Connection.
type (
	packetReceived    struct{ data []byte }
	transportFailed   struct{ err error }
	transportClosed   struct{ err error }
	agentRegistered   struct{ reg api.Registration }
	agentMessage      struct{ msg *api.Message }
	dialogOpened      struct{ dialog api.Dialog }
	dialogClosed      struct{ dialog api.Dialog }
	windowClosed      struct{ id string }
	frameClosed       struct{ id string }
	remotenessChanged struct{ tabID string }
	deferred          struct{ fn func() }

	timerFired struct {
		kind timerKind
		id   CommandID
	}

	chromeScriptDone struct {
		id    CommandID
		value interface{}
		err   error
	}

	emulatorRequest struct {
		id    int64
		cmd   string
		shell []interface{}
	}
)
