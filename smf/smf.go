// Package smf parses Standard MIDI Files: header and track framing,
// variable-length quantities, running status, and meta/sysex payloads.
package smf

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"go-sfplayer/errs"
)

// Channel message types (status high nibble).
const (
	MsgNoteOff         = 0x8
	MsgNoteOn          = 0x9
	MsgPolyPressure    = 0xA
	MsgController      = 0xB
	MsgProgramChange   = 0xC
	MsgChannelPressure = 0xD
	MsgPitchBend       = 0xE
)

// Non-channel status bytes and the meta types the player reacts to.
const (
	StatusSysEx     = 0xF0
	StatusSysExCont = 0xF7
	StatusMeta      = 0xFF

	MetaTempo      = 0x51
	MetaEndOfTrack = 0x2F
)

// Controller numbers dispatched by the sequencer.
const (
	CCBankMSB    = 0
	CCModulation = 1
	CCVolume     = 7
	CCPan        = 10
	CCExpression = 11
	CCBankLSB    = 32
)

// Event is one decoded track event. Channel voice messages carry their
// data in D1/D2; meta and sysex events carry Payload.
type Event struct {
	Delta    uint32
	Status   byte  // effective status byte, running status resolved
	Type     byte  // high nibble for channel messages; 0xF0/0xF7/0xFF otherwise
	Channel  uint8 // low nibble for channel messages
	MetaType byte
	D1, D2   byte
	Payload  []byte
}

// Track is an ordered event list with per-event delta times.
type Track struct {
	Events []Event
}

// File is a parsed Standard MIDI File.
type File struct {
	Format   int
	Division int // ticks per quarter note
	Tracks   []Track
}

// Parse decodes a complete Standard MIDI File.
func Parse(data []byte) (*File, error) {
	if len(data) < 14 {
		return nil, errs.Bounds("MThd", 14, len(data))
	}
	if string(data[0:4]) != "MThd" {
		return nil, errs.Formatf("MThd", "header signature missing")
	}
	hlen := int(binary.BigEndian.Uint32(data[4:8]))
	if hlen < 6 {
		return nil, errs.Formatf("MThd", "header length %d too small", hlen)
	}
	f := &File{
		Format:   int(binary.BigEndian.Uint16(data[8:10])),
		Division: int(binary.BigEndian.Uint16(data[12:14])),
	}
	ntracks := int(binary.BigEndian.Uint16(data[10:12]))
	if f.Division&0x8000 != 0 {
		return nil, errs.Formatf("MThd", "SMPTE division %#x not supported", f.Division)
	}
	if f.Division == 0 {
		return nil, errs.Formatf("MThd", "zero division")
	}

	pos := 8 + hlen
	for i := 0; i < ntracks; i++ {
		if pos+8 > len(data) {
			return nil, errs.Bounds("MTrk header", pos+8, len(data))
		}
		if string(data[pos:pos+4]) != "MTrk" {
			return nil, errs.Formatf("MTrk", "track %d signature missing", i)
		}
		tlen := int(binary.BigEndian.Uint32(data[pos+4 : pos+8]))
		if pos+8+tlen > len(data) {
			return nil, errs.Bounds("MTrk body", tlen, len(data)-pos-8)
		}
		track, err := parseTrack(data[pos+8 : pos+8+tlen])
		if err != nil {
			return nil, errors.Wrapf(err, "track %d", i)
		}
		f.Tracks = append(f.Tracks, track)
		pos += 8 + tlen
	}
	return f, nil
}

func parseTrack(data []byte) (Track, error) {
	var t Track
	var running byte
	pos := 0
	for pos < len(data) {
		delta, n, err := ReadVarInt(data[pos:])
		if err != nil {
			return t, err
		}
		pos += n
		if pos >= len(data) {
			return t, errs.Bounds("event status", 1, 0)
		}

		ev := Event{Delta: delta}
		b := data[pos]
		if b < 0x80 {
			// Running status: reuse the previous status byte and treat
			// this byte as the first data byte.
			if running == 0 {
				return t, errs.Formatf("event", "data byte %#x with no running status", b)
			}
			ev.Status = running
		} else {
			ev.Status = b
			pos++
			if b < 0xF0 {
				running = b
			} else {
				running = 0
			}
		}

		switch {
		case ev.Status == StatusMeta:
			if pos >= len(data) {
				return t, errs.Bounds("meta type", 1, 0)
			}
			ev.Type = StatusMeta
			ev.MetaType = data[pos]
			pos++
			plen, n, err := ReadVarInt(data[pos:])
			if err != nil {
				return t, err
			}
			pos += n
			if pos+int(plen) > len(data) {
				return t, errs.Bounds("meta payload", int(plen), len(data)-pos)
			}
			ev.Payload = data[pos : pos+int(plen)]
			pos += int(plen)

		case ev.Status == StatusSysEx || ev.Status == StatusSysExCont:
			ev.Type = ev.Status
			plen, n, err := ReadVarInt(data[pos:])
			if err != nil {
				return t, err
			}
			pos += n
			if pos+int(plen) > len(data) {
				return t, errs.Bounds("sysex payload", int(plen), len(data)-pos)
			}
			ev.Payload = data[pos : pos+int(plen)]
			pos += int(plen)

		default:
			ev.Type = ev.Status >> 4
			ev.Channel = ev.Status & 0x0F
			nd := 2
			if ev.Type == MsgProgramChange || ev.Type == MsgChannelPressure {
				nd = 1
			}
			if pos+nd > len(data) {
				return t, errs.Bounds("event data", nd, len(data)-pos)
			}
			ev.D1 = data[pos]
			if nd == 2 {
				ev.D2 = data[pos+1]
			}
			pos += nd
		}
		t.Events = append(t.Events, ev)
	}
	return t, nil
}

// ReadVarInt decodes a variable-length quantity: up to four bytes, seven
// bits each, most significant group first, the high bit marking
// continuation. It returns the value and the number of bytes consumed.
func ReadVarInt(data []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		if i >= len(data) {
			return 0, 0, errs.Bounds("varint", i+1, len(data))
		}
		b := data[i]
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, errs.Formatf("varint", "continuation past 4 bytes")
}

// AppendVarInt appends the variable-length encoding of v to dst.
func AppendVarInt(dst []byte, v uint32) []byte {
	var tmp [4]byte
	n := 0
	for {
		tmp[n] = byte(v & 0x7F)
		v >>= 7
		n++
		if v == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		b := tmp[i]
		if i > 0 {
			b |= 0x80
		}
		dst = append(dst, b)
	}
	return dst
}
