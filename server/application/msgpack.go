package application

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeName は列挙型の名前を str として書きます。msgpack は TextMarshaler を bin として書くためです。
func encodeName(enc *msgpack.Encoder, m interface{ MarshalText() ([]byte, error) }) error {
	text, err := m.MarshalText()
	if err != nil {
		return err
	}
	return enc.EncodeString(string(text))
}

func decodeName(dec *msgpack.Decoder, u interface{ UnmarshalText([]byte) error }) error {
	s, err := dec.DecodeString()
	if err != nil {
		return err
	}
	return u.UnmarshalText([]byte(s))
}

func (d Direction) EncodeMsgpack(enc *msgpack.Encoder) error   { return encodeName(enc, d) }
func (d *Direction) DecodeMsgpack(dec *msgpack.Decoder) error  { return decodeName(dec, d) }
func (c Cell) EncodeMsgpack(enc *msgpack.Encoder) error        { return encodeName(enc, c) }
func (c *Cell) DecodeMsgpack(dec *msgpack.Decoder) error       { return decodeName(dec, c) }
func (k ActionKind) EncodeMsgpack(enc *msgpack.Encoder) error  { return encodeName(enc, k) }
func (k *ActionKind) DecodeMsgpack(dec *msgpack.Decoder) error { return decodeName(dec, k) }
func (k PlayerKind) EncodeMsgpack(enc *msgpack.Encoder) error  { return encodeName(enc, k) }
func (k *PlayerKind) DecodeMsgpack(dec *msgpack.Decoder) error { return decodeName(dec, k) }

// DecodeMsgpack は UnmarshalJSON と同じく "action" キーの欠落を不正として扱います。
func (a *Action) DecodeMsgpack(dec *msgpack.Decoder) error {
	var raw struct {
		Kind      *ActionKind `msgpack:"action"`
		Direction Direction   `msgpack:"direction"`
		Range     uint8       `msgpack:"range"`
	}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw.Kind == nil {
		return fmt.Errorf("%w: missing action tag", ErrUnknownAction)
	}
	*a = Action{Kind: *raw.Kind, Direction: raw.Direction, Range: raw.Range}
	return nil
}
