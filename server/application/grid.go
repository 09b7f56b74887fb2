package application

import (
	"errors"
	"fmt"
)

// Cell はグリッドの1マスの種別です。
type Cell uint8

const (
	CellEmpty Cell = iota
	CellWall
	CellBushes
	CellPlayer
	CellBot
	CellBullet
)

var ErrUnknownCell = errors.New("unknown cell")

var cellNames = [...]string{
	CellEmpty:  "empty",
	CellWall:   "wall",
	CellBushes: "bushes",
	CellPlayer: "player",
	CellBot:    "bot",
	CellBullet: "bullet",
}

func (c Cell) String() string {
	if int(c) < len(cellNames) {
		return cellNames[c]
	}
	return fmt.Sprintf("cell(%d)", uint8(c))
}

// Passable はアクターがそのセルに進入できるかを返します。
func (c Cell) Passable() bool {
	switch c {
	case CellEmpty, CellBushes, CellBullet:
		return true
	default:
		return false
	}
}

// Conceals はセル上のプレイヤー位置をスナップショットで隠すかを返します。
func (c Cell) Conceals() bool {
	return c == CellBushes
}

func (c Cell) MarshalText() ([]byte, error) {
	if int(c) >= len(cellNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCell, uint8(c))
	}
	return []byte(cellNames[c]), nil
}

func (c *Cell) UnmarshalText(text []byte) error {
	for i, name := range cellNames {
		if name == string(text) {
			*c = Cell(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCell, text)
}

var (
	ErrPositionOverflow = errors.New("position overflow")
	ErrOutOfRange       = errors.New("position out of range")
)

// ImpassableError は移動先のセルが通行不可であることを表します。
type ImpassableError struct {
	Cell Cell
}

func (e *ImpassableError) Error() string {
	return fmt.Sprintf("impassable object: %s", e.Cell)
}

// Grid は size×size のセルを x*size+y の行優先で保持するマップです。
// サイズは生成後に変わりません。
type Grid struct {
	size  uint8
	cells []Cell
}

// NewGrid は全セルが Empty のグリッドを作成します。
func NewGrid(size uint8) *Grid {
	return &Grid{
		size:  size,
		cells: make([]Cell, int(size)*int(size)),
	}
}

func (g *Grid) Size() uint8 {
	return g.size
}

// InBounds は座標が [0, size) に収まっているかを返します。
func (g *Grid) InBounds(p Position) bool {
	return p.X < g.size && p.Y < g.size
}

// Cell は座標のセルを返します。範囲外は Wall として扱います。
func (g *Grid) Cell(p Position) Cell {
	if !g.InBounds(p) {
		return CellWall
	}
	return g.cells[g.index(p)]
}

// SetCell は座標のセルを書き換えます。範囲外なら ErrOutOfRange を返します。
func (g *Grid) SetCell(p Position, c Cell) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %s", ErrOutOfRange, p)
	}
	g.cells[g.index(p)] = c
	return nil
}

// CanMove は from から direction へ1セル進めるかを判定し、進めるなら移動先を返します。
// 判定順は 表現範囲 → グリッド範囲 → 通行可否 です。
func (g *Grid) CanMove(from Position, direction Direction) (Position, error) {
	next, ok := from.Shift(direction)
	if !ok {
		return from, ErrPositionOverflow
	}
	if !g.InBounds(next) {
		return from, ErrOutOfRange
	}
	if cell := g.cells[g.index(next)]; !cell.Passable() {
		return from, &ImpassableError{Cell: cell}
	}
	return next, nil
}

// Cells はセル配列のコピーを返します。
func (g *Grid) Cells() []Cell {
	out := make([]Cell, len(g.cells))
	copy(out, g.cells)
	return out
}

func (g *Grid) Clone() *Grid {
	return &Grid{size: g.size, cells: g.Cells()}
}

func (g *Grid) index(p Position) int {
	return int(p.X)*int(g.size) + int(p.Y)
}
