package application

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// MapLayout はマップ生成方式です。
type MapLayout uint8

const (
	LayoutEmpty MapLayout = iota
	LayoutScattered
)

var (
	ErrUnknownLayout   = errors.New("unknown map layout")
	ErrTooManyPlayers  = errors.New("not enough spawn points")
	ErrInvalidGridSize = errors.New("grid size must be positive")
)

func (l MapLayout) String() string {
	switch l {
	case LayoutEmpty:
		return "empty"
	case LayoutScattered:
		return "scattered"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

func ParseMapLayout(s string) (MapLayout, error) {
	switch s {
	case "empty":
		return LayoutEmpty, nil
	case "scattered":
		return LayoutScattered, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownLayout, s)
	}
}

// MapOptions はマップ生成パラメータです。
type MapOptions struct {
	Size        uint8
	Layout      MapLayout
	WallDensity float64
	BushDensity float64
}

// SpawnPoints はグリッド外周に n 人分の初期位置を等間隔に配置します。
// 外周は (0,0) から反時計回りに辿ります。
func SpawnPoints(size uint8, n int) ([]Position, error) {
	if size == 0 {
		return nil, ErrInvalidGridSize
	}
	ring := perimeter(size)
	if n > len(ring) {
		return nil, fmt.Errorf("%w: %d players on a %dx%d grid", ErrTooManyPlayers, n, size, size)
	}
	points := make([]Position, 0, n)
	for i := range n {
		points = append(points, ring[i*len(ring)/n])
	}
	return points, nil
}

func perimeter(size uint8) []Position {
	if size == 1 {
		return []Position{{X: 0, Y: 0}}
	}
	last := size - 1
	ring := make([]Position, 0, 4*int(last))
	for x := uint8(0); x < last; x++ {
		ring = append(ring, Position{X: x, Y: 0})
	}
	for y := uint8(0); y < last; y++ {
		ring = append(ring, Position{X: last, Y: y})
	}
	for x := last; x > 0; x-- {
		ring = append(ring, Position{X: x, Y: last})
	}
	for y := last; y > 0; y-- {
		ring = append(ring, Position{X: 0, Y: y})
	}
	return ring
}

// GenerateGrid は opts に従ってグリッドを生成します。
// reserved に含まれるセルは常に Empty のままです。
func GenerateGrid(opts MapOptions, rng *rand.Rand, reserved []Position) (*Grid, error) {
	if opts.Size == 0 {
		return nil, ErrInvalidGridSize
	}
	grid := NewGrid(opts.Size)
	if opts.Layout == LayoutEmpty {
		return grid, nil
	}
	if opts.Layout != LayoutScattered {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLayout, uint8(opts.Layout))
	}

	keep := make(map[Position]struct{}, len(reserved))
	for _, p := range reserved {
		keep[p] = struct{}{}
	}
	for x := range opts.Size {
		for y := range opts.Size {
			pos := Position{X: x, Y: y}
			if _, ok := keep[pos]; ok {
				continue
			}
			roll := rng.Float64()
			switch {
			case roll < opts.WallDensity:
				grid.cells[grid.index(pos)] = CellWall
			case roll < opts.WallDensity+opts.BushDensity:
				grid.cells[grid.index(pos)] = CellBushes
			}
		}
	}
	return grid, nil
}
