package proto

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	// HeaderSize is the size of the big-endian length prefix.
	HeaderSize = 2
	// MaxPayload is the largest payload a frame can carry.
	MaxPayload = math.MaxUint16
)

type registerFrame struct {
	Command Command `json:"command"`
	User    string  `json:"user"`
}

type joinFrame struct {
	Command Command `json:"command"`
	Channel string  `json:"channel"`
}

type textFrame struct {
	Command Command `json:"command"`
	Message string  `json:"message"`
	Channel string  `json:"channel,omitempty"`
	TS      int64   `json:"ts"`
}

// Marshal renders the JSON payload of m, without the length prefix.
func Marshal(m Message) ([]byte, error) {
	var frame interface{}
	switch m := m.(type) {
	case Register:
		frame = registerFrame{CommandRegister, m.User}
	case Join:
		frame = joinFrame{CommandJoin, m.Channel}
	case Text:
		frame = textFrame{CommandMessage, m.Message, m.Channel, m.Timestamp}
	default:
		return nil, &ProtocolError{Op: "encode", Msg: m, Err: fmt.Errorf("%w: %T", ErrUnknownCommand, m)}
	}

	buf := bytes.Buffer{}
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(frame); err != nil {
		return nil, &ProtocolError{Op: "encode", Msg: m, Err: err}
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Encode returns the complete frame for m: length prefix followed by payload.
func Encode(m Message) ([]byte, error) {
	payload, err := Marshal(m)
	if err != nil {
		return nil, err
	}
	if len(payload) > MaxPayload {
		return nil, &ProtocolError{Op: "encode", Msg: m, Err: ErrFrameTooLarge}
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(frame, uint16(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Write encodes m and writes the frame to w with a single Write call.
func Write(w io.Writer, m Message) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return &ProtocolError{Op: "write", Msg: m, Err: err}
	}
	return nil
}

// Decode reads exactly one frame from r and parses it.
// It returns io.EOF, unwrapped, when r is exhausted before the first header byte.
func Decode(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &ProtocolError{Op: "read", Err: err}
	}

	payload := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &ProtocolError{Op: "read", Err: err}
	}
	return Unmarshal(payload)
}

// decodeFrame parses a complete frame held in memory. The declared length
// must match the number of payload bytes exactly.
func decodeFrame(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return nil, &ProtocolError{Op: "decode", Err: io.ErrUnexpectedEOF}
	}
	declared := int(binary.BigEndian.Uint16(frame))
	if payload := frame[HeaderSize:]; declared != len(payload) {
		return nil, &ProtocolError{
			Op:  "decode",
			Err: fmt.Errorf("%w: length field says %d bytes, frame has %d", ErrMalformed, declared, len(payload)),
		}
	}
	return Unmarshal(frame[HeaderSize:])
}

// Unmarshal parses a JSON payload into the variant named by its command field.
func Unmarshal(payload []byte) (Message, error) {
	if payload == nil {
		payload = []byte{}
	}
	fail := func(err error) (Message, error) {
		return nil, &ProtocolError{Op: "decode", Raw: payload, Err: err}
	}

	if !utf8.Valid(payload) {
		return fail(fmt.Errorf("%w: payload is not valid utf-8", ErrMalformed))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	var command Command
	if err := field(fields, "command", &command); err != nil {
		return fail(err)
	}

	switch command {
	case CommandRegister:
		var m Register
		if err := field(fields, "user", &m.User); err != nil {
			return fail(err)
		}
		return m, nil

	case CommandJoin:
		var m Join
		if err := field(fields, "channel", &m.Channel); err != nil {
			return fail(err)
		}
		return m, nil

	case CommandMessage:
		var m Text
		if err := field(fields, "message", &m.Message); err != nil {
			return fail(err)
		}
		if err := field(fields, "ts", &m.Timestamp); err != nil {
			return fail(err)
		}
		if _, ok := fields["channel"]; ok {
			if err := field(fields, "channel", &m.Channel); err != nil {
				return fail(err)
			}
		}
		return m, nil

	default:
		return fail(fmt.Errorf("%w %q", ErrUnknownCommand, command))
	}
}

// field decodes a required member of the payload object. A JSON null leaves v untouched.
func field(fields map[string]json.RawMessage, name string, v interface{}) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrMissingField, name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
	}
	return nil
}
