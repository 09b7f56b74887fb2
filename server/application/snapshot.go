package application

// MapView はスナップショットに含める地形です。
type MapView struct {
	Size  uint8  `json:"size" msgpack:"size"`
	Field []Cell `json:"field" msgpack:"field"`
}

// PlayerView は1プレイヤー分の観測情報です。
// 茂みにいるプレイヤーの Position は nil になります。
type PlayerView struct {
	ID              PlayerID   `json:"id" msgpack:"id"`
	Kind            PlayerKind `json:"kind" msgpack:"kind"`
	Health          uint8      `json:"health" msgpack:"health"`
	MaxHealth       uint8      `json:"maxHealth" msgpack:"maxHealth"`
	Speed           uint8      `json:"speed" msgpack:"speed"`
	ReloadCountdown uint8      `json:"reloadCountdown" msgpack:"reloadCountdown"`
	ReloadTime      uint8      `json:"reloadTime" msgpack:"reloadTime"`
	BulletRange     uint8      `json:"bulletRange" msgpack:"bulletRange"`
	BulletDamage    uint8      `json:"bulletDamage" msgpack:"bulletDamage"`
	Position        *Position  `json:"position" msgpack:"position"`
}

func (v PlayerView) Alive() bool {
	return v.Health > 0
}

// Snapshot は1ティック分の観測可能な状態です。
type Snapshot struct {
	Tick           uint32       `json:"tick" msgpack:"tick"`
	TicksRemaining uint16       `json:"ticksRemaining" msgpack:"ticksRemaining"`
	Map            MapView      `json:"map" msgpack:"map"`
	Players        []PlayerView `json:"players" msgpack:"players"`
}

// Player は id の観測情報を返します。
func (s *Snapshot) Player(id PlayerID) (PlayerView, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}

// Cell はスナップショット上の地形を返します。範囲外は Wall です。
func (m MapView) Cell(p Position) Cell {
	if p.X >= m.Size || p.Y >= m.Size {
		return CellWall
	}
	return m.Field[int(p.X)*int(m.Size)+int(p.Y)]
}

func (g *Game) snapshot() *Snapshot {
	players := make([]PlayerView, 0, len(g.players))
	for i := range g.players {
		p := &g.players[i]
		c := p.Character
		view := PlayerView{
			ID:              p.ID,
			Kind:            p.Kind,
			Health:          c.Health.Current,
			MaxHealth:       c.Health.Max,
			Speed:           c.Speed,
			ReloadCountdown: c.Weapon.Countdown,
			ReloadTime:      c.Weapon.ReloadTime,
			BulletRange:     c.Weapon.Bullet.Range,
			BulletDamage:    c.Weapon.Bullet.Damage,
		}
		if !g.grid.Cell(c.Position).Conceals() {
			pos := c.Position
			view.Position = &pos
		}
		players = append(players, view)
	}
	return &Snapshot{
		Tick:           g.tick,
		TicksRemaining: g.ticksRemaining,
		Map: MapView{
			Size:  g.grid.Size(),
			Field: g.grid.Cells(),
		},
		Players: players,
	}
}
