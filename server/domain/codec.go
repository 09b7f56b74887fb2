package domain

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// サブプロトコル名
const (
	SubprotocolJSON    = "skirmish.json"
	SubprotocolMsgpack = "skirmish.msgpack"
)

// Codec はフレームのエンコード方式です。
type Codec interface {
	Name() string
	// Binary はバイナリフレームで送るべきかを返します。
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return SubprotocolJSON }
func (jsonCodec) Binary() bool                       { return false }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return SubprotocolMsgpack }
func (msgpackCodec) Binary() bool                       { return true }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

var (
	JSONCodec    Codec = jsonCodec{}
	MsgpackCodec Codec = msgpackCodec{}
)

// Subprotocols はハンドシェイクで提示するサブプロトコルを優先順に返します。
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgpack}
}

// CodecFor はネゴシエートされたサブプロトコルの Codec を返します。
// 未指定や未知の値は JSON として扱います。
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return MsgpackCodec
	}
	return JSONCodec
}
