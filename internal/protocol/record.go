// Package protocol defines the JSON records exchanged between a client
// and the relay server.
//
// A record is one JSON object per send, with no length prefix and no
// delimiter.  Two shapes exist:
//
//	{"name": "alice", "msg": "!FIRST_CONNECTION!"}   identification
//	{"msg": "HOLELWRDLO", "key": 3}                   payload
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	rrerr "railrelay/internal/errors"
)

const (
	// FirstConnection marks the identification record.
	FirstConnection = "!FIRST_CONNECTION!"
	// Disconnected asks the server to end the session.  It is sent
	// without passing through the cipher.
	Disconnected = "!DISCONNECTED!"
)

// Record is a single message from a client.
type Record struct {
	Name string `json:"name,omitempty"`
	Msg  string `json:"msg"`
	Key  int    `json:"key,omitempty"`
}

// Identify builds an identification record.
func Identify(name string) Record {
	return Record{Name: name, Msg: FirstConnection}
}

// Payload builds a payload record.
func Payload(ciphertext string, key int) Record {
	return Record{Msg: ciphertext, Key: key}
}

// Disconnect builds the un-encoded disconnect record.
func Disconnect(key int) Record {
	return Record{Msg: Disconnected, Key: key}
}

// IsIdentification reports whether r announces the sender's name.
func (r Record) IsIdentification() bool {
	return r.Msg == FirstConnection
}

// IsDisconnect reports whether r carries the raw disconnect sentinel.
func (r Record) IsDisconnect() bool {
	return !r.IsIdentification() && r.Msg == Disconnected
}

// Marshal encodes r for the wire.
func Marshal(r Record) ([]byte, error) {
	return json.Marshal(r)
}

// Write sends r as one write on w.
func Write(w io.Writer, r Record) error {
	b, err := Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// SplitRecords parses every record in a received chunk.  Records that
// precede a parse failure are returned together with an error wrapping
// ErrMalformedRecord.
func SplitRecords(chunk []byte) ([]Record, error) {
	if !utf8.Valid(chunk) {
		return nil, fmt.Errorf("%w: invalid UTF-8", rrerr.ErrMalformedRecord)
	}

	dec := json.NewDecoder(bytes.NewReader(chunk))
	var out []Record
	for {
		var raw map[string]json.RawMessage
		err := dec.Decode(&raw)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("%w: %v", rrerr.ErrMalformedRecord, err)
		}
		r, err := fromFields(raw)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}

// fromFields validates the shape of one decoded object.
func fromFields(raw map[string]json.RawMessage) (Record, error) {
	var r Record
	msg, ok := raw["msg"]
	if !ok {
		return r, fmt.Errorf("%w: missing msg", rrerr.ErrMalformedRecord)
	}
	if err := json.Unmarshal(msg, &r.Msg); err != nil {
		return r, fmt.Errorf("%w: msg: %v", rrerr.ErrMalformedRecord, err)
	}

	if name, ok := raw["name"]; ok {
		if err := json.Unmarshal(name, &r.Name); err != nil {
			return r, fmt.Errorf("%w: name: %v", rrerr.ErrMalformedRecord, err)
		}
	}
	if r.IsIdentification() {
		if r.Name == "" {
			return r, fmt.Errorf("%w: identification without name", rrerr.ErrMalformedRecord)
		}
		return r, nil
	}

	key, ok := raw["key"]
	if !ok {
		if r.Msg == Disconnected {
			return r, nil
		}
		return r, fmt.Errorf("%w: payload without key", rrerr.ErrMalformedRecord)
	}
	if err := json.Unmarshal(key, &r.Key); err != nil {
		return r, fmt.Errorf("%w: key: %v", rrerr.ErrMalformedRecord, err)
	}
	return r, nil
}
