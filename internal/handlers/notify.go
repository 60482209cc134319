package handlers

import (
	"github.com/blazerelay/server/internal/blaze/components"
	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
)

func wrapNotify(component, command uint16, w *tdf.Writer) *packet.Packet {
	return &packet.Packet{
		Header: packet.Header{
			Component: component,
			Command:   command,
			Type:      packet.TypeNotify,
		},
		Body: w.Bytes(),
	}
}

// notifyUserRemoved announces a player's departure to the rest of the
// registry (spec.md §4.D shutdown step 3).
func notifyUserRemoved(playerID int64) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("BUID", uint64(playerID))
	return wrapNotify(uint16(components.UserSessions), components.NotifyUserRemoved, w)
}
