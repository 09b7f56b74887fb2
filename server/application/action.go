package application

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionKind はアクションの種別です。
type ActionKind uint8

const (
	ActionNothing ActionKind = iota
	ActionMove
	ActionAttack
	ActionReload
)

var ErrUnknownAction = errors.New("unknown action")

var actionNames = [...]string{
	ActionNothing: "nothing",
	ActionMove:    "move",
	ActionAttack:  "attack",
	ActionReload:  "reload",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return fmt.Sprintf("action(%d)", uint8(k))
}

func (k ActionKind) MarshalText() ([]byte, error) {
	if int(k) >= len(actionNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAction, uint8(k))
	}
	return []byte(actionNames[k]), nil
}

func (k *ActionKind) UnmarshalText(text []byte) error {
	for i, name := range actionNames {
		if name == string(text) {
			*k = ActionKind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownAction, text)
}

// Action は1スロット分の行動です。Kind によって使うフィールドが決まります。
//
//	Move:    Direction, Range
//	Attack:  Direction
//	Reload:  なし
//	Nothing: なし
type Action struct {
	Kind      ActionKind `json:"action" msgpack:"action"`
	Direction Direction  `json:"direction,omitempty" msgpack:"direction,omitempty"`
	Range     uint8      `json:"range,omitempty" msgpack:"range,omitempty"`
}

func Move(direction Direction, distance uint8) Action {
	return Action{Kind: ActionMove, Direction: direction, Range: distance}
}

func Attack(direction Direction) Action {
	return Action{Kind: ActionAttack, Direction: direction}
}

func Reload() Action {
	return Action{Kind: ActionReload}
}

func Nothing() Action {
	return Action{Kind: ActionNothing}
}

// UnmarshalJSON は "action" キーの欠落を不正として扱います。
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind      *ActionKind `json:"action"`
		Direction Direction   `json:"direction"`
		Range     uint8       `json:"range"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind == nil {
		return fmt.Errorf("%w: missing action tag", ErrUnknownAction)
	}
	*a = Action{Kind: *raw.Kind, Direction: raw.Direction, Range: raw.Range}
	return nil
}

// PadActions はバッチを n 件に揃えます。
// 短ければ Nothing で埋め、長ければ切り詰めます。入力スライスは変更しません。
func PadActions(actions []Action, n int) []Action {
	if n < 0 {
		n = 0
	}
	out := make([]Action, n)
	copy(out, actions)
	return out
}

// NothingBatch は n 件の Nothing からなるバッチです。
func NothingBatch(n int) []Action {
	return PadActions(nil, n)
}
