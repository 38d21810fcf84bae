package event

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec names a recorded stream encoding.
type Codec string

const (
	CodecJSON    Codec = "json"
	CodecMsgpack Codec = "msgpack"
)

// CodecFor picks the codec from a file extension; JSON Lines is the default.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return CodecMsgpack
	default:
		return CodecJSON
	}
}

// Decoder reads records one at a time. Decode returns io.EOF at the end of
// the stream.
type Decoder interface {
	Decode() (Record, error)
}

// Encoder writes records one at a time.
type Encoder interface {
	Encode(Record) error
}

// NewDecoder returns a decoder for c reading from r.
func NewDecoder(c Codec, r io.Reader) Decoder {
	if c == CodecMsgpack {
		return &msgpackDecoder{dec: msgpack.NewDecoder(r)}
	}
	return &jsonDecoder{dec: json.NewDecoder(r)}
}

// NewEncoder returns an encoder for c writing to w.
func NewEncoder(c Codec, w io.Writer) Encoder {
	if c == CodecMsgpack {
		return &msgpackEncoder{enc: msgpack.NewEncoder(w)}
	}
	return &jsonEncoder{enc: json.NewEncoder(w)}
}

type jsonDecoder struct{ dec *json.Decoder }

func (d *jsonDecoder) Decode() (Record, error) {
	var r Record
	err := d.dec.Decode(&r)
	return r, err
}

type msgpackDecoder struct{ dec *msgpack.Decoder }

func (d *msgpackDecoder) Decode() (Record, error) {
	var r Record
	err := d.dec.Decode(&r)
	return r, err
}

type jsonEncoder struct{ enc *json.Encoder }

func (e *jsonEncoder) Encode(r Record) error { return e.enc.Encode(r) }

type msgpackEncoder struct{ enc *msgpack.Encoder }

func (e *msgpackEncoder) Encode(r Record) error { return e.enc.Encode(r) }
