// Package transport carries packets between remote control clients and
// their connections.
package transport

import (
	"errors"

	"github.com/tidwall/gjson"
)

// MaxPacketSize is the largest packet accepted from a client.
const MaxPacketSize = 64 << 20

var (
	// ErrPacketTooLarge is returned for packets longer than MaxPacketSize.
	ErrPacketTooLarge = errors.New("packet exceeds the maximum size")
	// ErrClosed is returned when sending on a closed channel.
	ErrClosed = errors.New("channel is closed")
)

// Receiver is notified of what a channel reads from its client.
type Receiver interface {
	OnPacket(data []byte)
	OnError(err error)
	OnClosed(err error)
}

// packetName peeks at the command name of a request without decoding it.
func packetName(data []byte) string {
	if name := gjson.GetBytes(data, "name"); name.Exists() {
		return name.String()
	}
	return "-"
}
