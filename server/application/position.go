package application

import (
	"fmt"
	"math"
)

// Position はグリッド上のセル座標です。各成分は [0, size) の範囲でのみ有効です。
type Position struct {
	X uint8 `json:"x" msgpack:"x"`
	Y uint8 `json:"y" msgpack:"y"`
}

// Shift は方向に1セル分ずらした座標を返します。
// 座標型の表現範囲を超える場合（0からさらに下など）は false を返します。
// グリッドサイズとの比較は行いません。
func (p Position) Shift(d Direction) (Position, bool) {
	switch d {
	case DirectionUp:
		if p.Y == math.MaxUint8 {
			return p, false
		}
		return Position{X: p.X, Y: p.Y + 1}, true
	case DirectionDown:
		if p.Y == 0 {
			return p, false
		}
		return Position{X: p.X, Y: p.Y - 1}, true
	case DirectionRight:
		if p.X == math.MaxUint8 {
			return p, false
		}
		return Position{X: p.X + 1, Y: p.Y}, true
	case DirectionLeft:
		if p.X == 0 {
			return p, false
		}
		return Position{X: p.X - 1, Y: p.Y}, true
	default:
		return p, false
	}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}
