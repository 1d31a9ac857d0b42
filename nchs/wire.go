package nchs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ErrUnknownDiscriminator is returned by Decode when the leading byte does
// not match any known MessageType.
var ErrUnknownDiscriminator = fmt.Errorf("nchs: unknown message discriminator")

// ErrOversizedMessage is returned when an encoded record (or an incoming
// datagram) exceeds MaxDatagramSize.
var ErrOversizedMessage = fmt.Errorf("nchs: message exceeds %d bytes", MaxDatagramSize)

// Encode serializes a Message to its wire form: a 1-byte discriminator
// followed by fields in a fixed order, with 16-bit little-endian length
// prefixes on variable-length fields.
func Encode(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(msg.Type))

	var err error
	switch msg.Type {
	case MsgJoinRequest:
		err = encodeJoinRequest(&buf, msg.JoinRequest)
	case MsgJoinAccept:
		err = encodeJoinAccept(&buf, msg.JoinAccept)
	case MsgJoinReject:
		err = encodeString(&buf, msg.JoinReject.Reason)
	case MsgLobbyUpdate:
		err = encodeLobbyState(&buf, msg.LobbyUpdate.Lobby)
	case MsgGuestReady:
		err = encodeBool(&buf, msg.GuestReady.Ready)
	case MsgSessionStart:
		err = encodeSessionStart(&buf, msg.SessionStart)
	case MsgPunchHello:
		err = encodePunch(&buf, msg.PunchHello.SenderHandle, msg.PunchHello.Nonce)
	case MsgPunchAck:
		err = encodePunch(&buf, msg.PunchAck.SenderHandle, msg.PunchAck.Nonce)
	case MsgPing, MsgPong:
		// no payload
	default:
		return nil, fmt.Errorf("nchs: encode: %w: %d", ErrUnknownDiscriminator, msg.Type)
	}
	if err != nil {
		return nil, err
	}

	if buf.Len() > MaxDatagramSize {
		return nil, ErrOversizedMessage
	}
	return buf.Bytes(), nil
}

// Decode parses a wire record back into a Message. It rejects oversized
// datagrams and unknown discriminators.
func Decode(data []byte) (Message, error) {
	if len(data) > MaxDatagramSize {
		return Message{}, ErrOversizedMessage
	}
	if len(data) == 0 {
		return Message{}, fmt.Errorf("nchs: decode: empty datagram")
	}
	r := bytes.NewReader(data)
	discByte, _ := r.ReadByte()
	typ := MessageType(discByte)

	var msg Message
	msg.Type = typ
	var err error
	switch typ {
	case MsgJoinRequest:
		msg.JoinRequest, err = decodeJoinRequest(r)
	case MsgJoinAccept:
		msg.JoinAccept, err = decodeJoinAccept(r)
	case MsgJoinReject:
		var reason string
		reason, err = decodeString(r)
		msg.JoinReject = &JoinRejectMsg{Reason: reason}
	case MsgLobbyUpdate:
		var lobby LobbyState
		lobby, err = decodeLobbyState(r)
		msg.LobbyUpdate = &LobbyUpdateMsg{Lobby: lobby}
	case MsgGuestReady:
		var ready bool
		ready, err = decodeBool(r)
		msg.GuestReady = &GuestReadyMsg{Ready: ready}
	case MsgSessionStart:
		msg.SessionStart, err = decodeSessionStart(r)
	case MsgPunchHello:
		var h uint8
		var n uint64
		h, n, err = decodePunch(r)
		msg.PunchHello = &PunchHelloMsg{SenderHandle: h, Nonce: n}
	case MsgPunchAck:
		var h uint8
		var n uint64
		h, n, err = decodePunch(r)
		msg.PunchAck = &PunchAckMsg{SenderHandle: h, Nonce: n}
	case MsgPing, MsgPong:
		// no payload
	default:
		return Message{}, fmt.Errorf("nchs: decode: %w: %d", ErrUnknownDiscriminator, discByte)
	}
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b := []byte(s)
	if len(b) > 0xFFFF {
		return fmt.Errorf("nchs: string field too long: %d bytes", len(b))
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func decodeString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", fmt.Errorf("nchs: reading string length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("nchs: reading string bytes: %w", err)
	}
	return string(b), nil
}

func encodeBytes(buf *bytes.Buffer, b []byte) error {
	if len(b) > 0xFFFF {
		return fmt.Errorf("nchs: byte field too long: %d bytes", len(b))
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(b))); err != nil {
		return err
	}
	_, err := buf.Write(b)
	return err
}

func decodeBytes(r *bytes.Reader) ([]byte, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("nchs: reading bytes length: %w", err)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("nchs: reading bytes: %w", err)
	}
	return b, nil
}

func encodeBool(buf *bytes.Buffer, v bool) error {
	var b byte
	if v {
		b = 1
	}
	return buf.WriteByte(b)
}

func decodeBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("nchs: reading bool: %w", err)
	}
	return b != 0, nil
}

func encodePlayerInfo(buf *bytes.Buffer, p PlayerInfo) error {
	if err := encodeString(buf, p.Name); err != nil {
		return err
	}
	if err := buf.WriteByte(p.AvatarID); err != nil {
		return err
	}
	_, err := buf.Write(p.Color[:])
	return err
}

func decodePlayerInfo(r *bytes.Reader) (PlayerInfo, error) {
	var p PlayerInfo
	name, err := decodeString(r)
	if err != nil {
		return p, err
	}
	p.Name = name
	if p.AvatarID, err = r.ReadByte(); err != nil {
		return p, fmt.Errorf("nchs: reading avatar id: %w", err)
	}
	if _, err := io.ReadFull(r, p.Color[:]); err != nil {
		return p, fmt.Errorf("nchs: reading color: %w", err)
	}
	return p, nil
}

func encodeLobbyState(buf *bytes.Buffer, l LobbyState) error {
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(l.Players))); err != nil {
		return err
	}
	for _, p := range l.Players {
		if err := buf.WriteByte(p.Handle); err != nil {
			return err
		}
		if err := encodePlayerInfo(buf, p.Info); err != nil {
			return err
		}
		if err := encodeBool(buf, p.Ready); err != nil {
			return err
		}
		if err := encodeBool(buf, p.Connected); err != nil {
			return err
		}
	}
	return nil
}

func decodeLobbyState(r *bytes.Reader) (LobbyState, error) {
	var l LobbyState
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return l, fmt.Errorf("nchs: reading lobby player count: %w", err)
	}
	l.Players = make([]LobbyPlayer, n)
	for i := range l.Players {
		h, err := r.ReadByte()
		if err != nil {
			return l, fmt.Errorf("nchs: reading lobby handle: %w", err)
		}
		info, err := decodePlayerInfo(r)
		if err != nil {
			return l, err
		}
		ready, err := decodeBool(r)
		if err != nil {
			return l, err
		}
		connected, err := decodeBool(r)
		if err != nil {
			return l, err
		}
		l.Players[i] = LobbyPlayer{Handle: h, Info: info, Ready: ready, Connected: connected}
	}
	return l, nil
}

func encodeJoinRequest(buf *bytes.Buffer, m *JoinRequestMsg) error {
	if err := buf.WriteByte(m.ConsoleType); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.ROMHash); err != nil {
		return err
	}
	if err := buf.WriteByte(m.TickRate); err != nil {
		return err
	}
	if err := buf.WriteByte(m.MaxPlayers); err != nil {
		return err
	}
	if err := encodePlayerInfo(buf, m.PlayerInfo); err != nil {
		return err
	}
	if err := encodeString(buf, m.LocalAddrHint); err != nil {
		return err
	}
	return encodeBytes(buf, m.Extra)
}

func decodeJoinRequest(r *bytes.Reader) (*JoinRequestMsg, error) {
	m := &JoinRequestMsg{}
	var err error
	if m.ConsoleType, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("nchs: reading console type: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.ROMHash); err != nil {
		return nil, fmt.Errorf("nchs: reading rom hash: %w", err)
	}
	if m.TickRate, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("nchs: reading tick rate: %w", err)
	}
	if m.MaxPlayers, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("nchs: reading max players: %w", err)
	}
	if m.PlayerInfo, err = decodePlayerInfo(r); err != nil {
		return nil, err
	}
	if m.LocalAddrHint, err = decodeString(r); err != nil {
		return nil, err
	}
	if m.Extra, err = decodeBytes(r); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeJoinAccept(buf *bytes.Buffer, m *JoinAcceptMsg) error {
	if err := buf.WriteByte(m.AssignedHandle); err != nil {
		return err
	}
	return encodeLobbyState(buf, m.Lobby)
}

func decodeJoinAccept(r *bytes.Reader) (*JoinAcceptMsg, error) {
	m := &JoinAcceptMsg{}
	h, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("nchs: reading assigned handle: %w", err)
	}
	m.AssignedHandle = h
	if m.Lobby, err = decodeLobbyState(r); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeSessionStart(buf *bytes.Buffer, m *SessionStartMsg) error {
	if err := buf.WriteByte(m.PlayerCount); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, m.RandomSeed); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, uint16(len(m.Players))); err != nil {
		return err
	}
	for _, p := range m.Players {
		if err := buf.WriteByte(p.Handle); err != nil {
			return err
		}
		if err := encodeString(buf, p.Addr); err != nil {
			return err
		}
		if err := encodeBool(buf, p.Active); err != nil {
			return err
		}
	}
	return nil
}

func decodeSessionStart(r *bytes.Reader) (*SessionStartMsg, error) {
	m := &SessionStartMsg{}
	var err error
	if m.PlayerCount, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("nchs: reading player count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &m.RandomSeed); err != nil {
		return nil, fmt.Errorf("nchs: reading random seed: %w", err)
	}
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("nchs: reading session player count: %w", err)
	}
	m.Players = make([]SessionPlayer, n)
	for i := range m.Players {
		h, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("nchs: reading session player handle: %w", err)
		}
		addr, err := decodeString(r)
		if err != nil {
			return nil, err
		}
		active, err := decodeBool(r)
		if err != nil {
			return nil, err
		}
		m.Players[i] = SessionPlayer{Handle: h, Addr: addr, Active: active}
	}
	return m, nil
}

func encodePunch(buf *bytes.Buffer, handle uint8, nonce uint64) error {
	if err := buf.WriteByte(handle); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, nonce)
}

func decodePunch(r *bytes.Reader) (uint8, uint64, error) {
	h, err := r.ReadByte()
	if err != nil {
		return 0, 0, fmt.Errorf("nchs: reading punch handle: %w", err)
	}
	var nonce uint64
	if err := binary.Read(r, binary.LittleEndian, &nonce); err != nil {
		return 0, 0, fmt.Errorf("nchs: reading punch nonce: %w", err)
	}
	return h, nonce, nil
}
