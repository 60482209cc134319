package game

import (
	"github.com/blazerelay/server/internal/blaze/components"
	"github.com/blazerelay/server/internal/blaze/packet"
	"github.com/blazerelay/server/internal/blaze/tdf"
)

type adminOperation uint8

const (
	adminOpAdd    adminOperation = 0
	adminOpRemove adminOperation = 1
)

func notifyPacket(command uint16, w *tdf.Writer) *packet.Packet {
	return &packet.Packet{
		Header: packet.Header{
			Component: uint16(components.GameManager),
			Command:   command,
			Type:      packet.TypeNotify,
		},
		Body: w.Bytes(),
	}
}

func writeMember(w *tdf.Writer, m Member) {
	w.GroupStart("PDAT")
	w.VarInt("PID", uint64(m.PlayerID))
	w.String("DSNM", m.DisplayName)
	w.VarInt("SLOT", uint64(m.Slot))
	w.VarInt("STAT", uint64(m.State))
	w.GroupEnd()
}

func notifyPlayerJoining(gameID uint32, m Member) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	writeMember(w, m)
	return notifyPacket(components.NotifyPlayerJoining, w)
}

func notifyGameSetup(snap Snapshot, ctx JoinContext) *packet.Packet {
	w := tdf.NewWriter()
	w.GroupStart("GAME")
	w.VarInt("GID", uint64(snap.ID))
	w.VarInt("GSTA", uint64(snap.State))
	w.VarInt("GSET", uint64(snap.Settings))
	w.StringMap("ATTR", snap.Attributes)
	w.VarIntList("ADMN", int64SliceToUint64(snap.AdminList))
	w.GroupList("ROST", len(snap.Roster))
	for _, m := range snap.Roster {
		writeMember(w, m)
	}
	w.GroupEnd()
	w.VarInt("MMCX", uint64(ctx))
	return notifyPacket(components.NotifyGameSetup, w)
}

func notifyPlayerRemoved(gameID uint32, playerID int64, reason RemoveReason) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	w.VarInt("PID", uint64(playerID))
	w.VarInt("REAS", uint64(reason))
	return notifyPacket(components.NotifyPlayerRemoved, w)
}

func notifyAdminListChange(gameID uint32, playerID int64, op adminOperation) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	w.VarInt("PID", uint64(playerID))
	w.VarInt("OPER", uint64(op))
	return notifyPacket(components.NotifyAdminListChange, w)
}

func notifyHostMigrationStart(gameID uint32, newHostID int64) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	w.VarInt("HOST", uint64(newHostID))
	return notifyPacket(components.NotifyHostMigrationStart, w)
}

func notifyHostMigrationFinished(gameID uint32) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	return notifyPacket(components.NotifyHostMigrationFinished, w)
}

func notifyGameStateChange(gameID uint32, state uint16) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	w.VarInt("GSTA", uint64(state))
	return notifyPacket(components.NotifyGameStateChange, w)
}

func notifyGameSettingsChange(gameID uint32, settings uint16) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	w.VarInt("GSET", uint64(settings))
	return notifyPacket(components.NotifyGameSettingsChange, w)
}

func notifyGameAttribChange(gameID uint32, attrs map[string]string) *packet.Packet {
	w := tdf.NewWriter()
	w.VarInt("GID", uint64(gameID))
	w.StringMap("ATTR", attrs)
	return notifyPacket(components.NotifyGameAttribChange, w)
}

func int64SliceToUint64(in []int64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
