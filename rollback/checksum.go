package rollback

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/nethercore-systems/nethercore/guest"
)

// computeChecksum hashes a full instance snapshot (guest memory + GuestState,
// which already folds in tracker state and carries no render command buffer
// since the Pass is excluded from GuestState.Snapshot as per-tick scratch
// space) into the 64-bit digest the session compares across peers.
func computeChecksum(snap *guest.InstanceSnapshot) Checksum {
	h := xxhash.New()
	var owned [1]byte
	if snap.GuestOwned {
		owned[0] = 1
	}
	h.Write(owned[:])
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(snap.Memory)))
	h.Write(lenBuf[:])
	h.Write(snap.Memory)
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(snap.GuestState)))
	h.Write(lenBuf[:])
	h.Write(snap.GuestState)
	return Checksum(h.Sum64())
}
