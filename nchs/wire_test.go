package nchs

import (
	"bytes"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{"JoinRequest", Message{Type: MsgJoinRequest, JoinRequest: &JoinRequestMsg{
			ConsoleType: 3, ROMHash: 0xDEADBEEFCAFEBABE, TickRate: 60, MaxPlayers: 4,
			PlayerInfo:    PlayerInfo{Name: "Azula", AvatarID: 7, Color: [3]byte{10, 20, 30}},
			LocalAddrHint: "192.168.1.12:9000",
			Extra:         []byte{1, 2, 3},
		}}},
		{"JoinAccept", Message{Type: MsgJoinAccept, JoinAccept: &JoinAcceptMsg{
			AssignedHandle: 2,
			Lobby: LobbyState{Players: []LobbyPlayer{
				{Handle: 1, Info: PlayerInfo{Name: "A"}, Ready: true, Connected: true},
				{Handle: 2, Info: PlayerInfo{Name: "B"}, Ready: false, Connected: true},
			}},
		}}},
		{"JoinReject", Message{Type: MsgJoinReject, JoinReject: &JoinRejectMsg{Reason: "rom_hash mismatch"}}},
		{"LobbyUpdate", Message{Type: MsgLobbyUpdate, LobbyUpdate: &LobbyUpdateMsg{Lobby: LobbyState{}}}},
		{"GuestReady-true", Message{Type: MsgGuestReady, GuestReady: &GuestReadyMsg{Ready: true}}},
		{"GuestReady-false", Message{Type: MsgGuestReady, GuestReady: &GuestReadyMsg{Ready: false}}},
		{"SessionStart", Message{Type: MsgSessionStart, SessionStart: &SessionStartMsg{
			PlayerCount: 2, RandomSeed: 0x0123456789ABCDEF,
			Players: []SessionPlayer{
				{Handle: 0, Addr: "", Active: true},
				{Handle: 1, Addr: "10.0.0.5:4000", Active: true},
			},
		}}},
		{"PunchHello", Message{Type: MsgPunchHello, PunchHello: &PunchHelloMsg{SenderHandle: 1, Nonce: 0xFFEEDDCCBBAA9988}}},
		{"PunchAck", Message{Type: MsgPunchAck, PunchAck: &PunchAckMsg{SenderHandle: 2, Nonce: 0x1122334455667788}}},
		{"Ping", Message{Type: MsgPing}},
		{"Pong", Message{Type: MsgPong}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			if len(data) == 0 || MessageType(data[0]) != tc.msg.Type {
				t.Fatalf("expected leading discriminator byte %d, got %v", tc.msg.Type, data)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			redata, err := Encode(got)
			if err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if !bytes.Equal(data, redata) {
				t.Fatalf("round trip mismatch:\n  want % x\n  got  % x", data, redata)
			}
		})
	}
}

func TestDecode_UnknownDiscriminator(t *testing.T) {
	_, err := Decode([]byte{0xFF})
	if err == nil {
		t.Fatal("expected an error for an unknown discriminator")
	}
}

func TestDecode_EmptyDatagram(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected an error for an empty datagram")
	}
}

func TestEncode_OversizedExtraRejected(t *testing.T) {
	msg := Message{Type: MsgJoinRequest, JoinRequest: &JoinRequestMsg{
		Extra: make([]byte, MaxDatagramSize*2),
	}}
	_, err := Encode(msg)
	if err == nil {
		t.Fatal("expected encoding an oversized message to fail")
	}
}

func TestDecode_OversizedDatagramRejected(t *testing.T) {
	_, err := Decode(make([]byte, MaxDatagramSize+1))
	if err == nil {
		t.Fatal("expected decoding an oversized datagram to fail")
	}
}
