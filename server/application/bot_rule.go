package application

import (
	"math/rand/v2"
)

const (
	wanderChance float64 = 0.3 // 敵が見えないときに移動する確率
)

// RuleBotController はルールベースのボットAIです。
// ボットごとに異なる個性パラメータを持ちます。
// 茂みで自分の位置が隠れている間は最後に観測した位置を使うため、ボットごとに1つ生成してください。
type RuleBotController struct {
	// Keep はこの距離未満の敵からは射線を保ったまま離れようとする距離です。0なら常に接近します。
	Keep int
	// Patience はリロード中に射線上の敵へ向けて待機する確率です。
	Patience float64

	rng       *rand.Rand
	lastKnown *Position
}

// NewRuleBotController はランダムな個性を持つボットAIを生成します。
func NewRuleBotController(rng *rand.Rand) *RuleBotController {
	return &RuleBotController{
		Keep:     rng.IntN(3),
		Patience: 0.3 + rng.Float64()*0.6,
		rng:      rng,
	}
}

func (r *RuleBotController) Decide(self PlayerID, snapshot *Snapshot, actionsPerTurn int) []Action {
	actions := NothingBatch(actionsPerTurn)
	if snapshot == nil {
		return actions
	}
	me, ok := snapshot.Player(self)
	if !ok || !me.Alive() {
		return actions
	}
	if me.Position != nil {
		pos := *me.Position
		r.lastKnown = &pos
	}
	if r.lastKnown == nil {
		return actions
	}

	pos := *r.lastKnown
	countdown := me.ReloadCountdown
	for slot := range actions {
		target, found := r.nearestEnemy(self, pos, snapshot)

		if found {
			if dir, aligned := lineOfFire(pos, target, snapshot.Map, me.BulletRange); aligned {
				if countdown == 0 {
					actions[slot] = Attack(dir)
					countdown = me.ReloadTime
					continue
				}
				if r.rng.Float64() < r.Patience {
					actions[slot] = Reload()
					countdown--
					continue
				}
			}
		}

		if countdown > 0 && !found {
			actions[slot] = Reload()
			countdown--
			continue
		}

		var dir Direction
		switch {
		case found:
			dir = r.approach(self, pos, target, snapshot)
		case r.rng.Float64() < wanderChance:
			dir = r.wander(self, pos, snapshot)
		}
		if dir == DirectionNone {
			if countdown > 0 {
				actions[slot] = Reload()
				countdown--
			}
			continue
		}
		actions[slot] = Move(dir, 1)
		if next, ok := pos.Shift(dir); ok {
			pos = next
		}
	}
	r.lastKnown = &pos
	return actions
}

// nearestEnemy は位置が見えている生存敵のうちマンハッタン距離が最小のものを返します。
func (r *RuleBotController) nearestEnemy(self PlayerID, from Position, snapshot *Snapshot) (Position, bool) {
	var nearest Position
	best := -1
	for _, p := range snapshot.Players {
		if p.ID == self || !p.Alive() || p.Position == nil {
			continue
		}
		d := manhattan(from, *p.Position)
		if best < 0 || d < best {
			best = d
			nearest = *p.Position
		}
	}
	return nearest, best >= 0
}

// approach は敵と同じ行か列に並ぶ方向を優先して1歩の方向を選びます。
// Keep より近い場合は射線を保ったまま離れる方向を選びます。
func (r *RuleBotController) approach(self PlayerID, from, target Position, snapshot *Snapshot) Direction {
	dx := int(target.X) - int(from.X)
	dy := int(target.Y) - int(from.Y)

	var candidates []Direction
	if manhattan(from, target) <= r.Keep && (dx == 0 || dy == 0) {
		if dx == 0 {
			candidates = append(candidates, towards(-dy, DirectionUp, DirectionDown))
		} else {
			candidates = append(candidates, towards(-dx, DirectionRight, DirectionLeft))
		}
	}

	// 差が小さい軸を先に詰めると射線に入りやすい
	horizontal := towards(dx, DirectionRight, DirectionLeft)
	vertical := towards(dy, DirectionUp, DirectionDown)
	if abs(dx) <= abs(dy) {
		candidates = append(candidates, horizontal, vertical)
	} else {
		candidates = append(candidates, vertical, horizontal)
	}

	for _, dir := range candidates {
		if dir != DirectionNone && walkable(self, from, dir, snapshot) {
			return dir
		}
	}
	return DirectionNone
}

func (r *RuleBotController) wander(self PlayerID, from Position, snapshot *Snapshot) Direction {
	dirs := []Direction{DirectionUp, DirectionDown, DirectionLeft, DirectionRight}
	r.rng.Shuffle(len(dirs), func(i, j int) { dirs[i], dirs[j] = dirs[j], dirs[i] })
	for _, dir := range dirs {
		if walkable(self, from, dir, snapshot) {
			return dir
		}
	}
	return DirectionNone
}

// lineOfFire は target が同じ行か列にあり、射程内で壁に遮られていない場合に射撃方向を返します。
func lineOfFire(from, target Position, m MapView, bulletRange uint8) (Direction, bool) {
	var dir Direction
	switch {
	case from.X == target.X && target.Y > from.Y:
		dir = DirectionUp
	case from.X == target.X && target.Y < from.Y:
		dir = DirectionDown
	case from.Y == target.Y && target.X > from.X:
		dir = DirectionRight
	case from.Y == target.Y && target.X < from.X:
		dir = DirectionLeft
	default:
		return DirectionNone, false
	}
	// 弾丸は1セル先に生成され、残り射程の回数だけ判定される
	if manhattan(from, target) > int(bulletRange) {
		return DirectionNone, false
	}
	pos := from
	for {
		next, ok := pos.Shift(dir)
		if !ok {
			return DirectionNone, false
		}
		if next == target {
			return dir, true
		}
		if !m.Cell(next).Passable() {
			return DirectionNone, false
		}
		pos = next
	}
}

func walkable(self PlayerID, from Position, dir Direction, snapshot *Snapshot) bool {
	next, ok := from.Shift(dir)
	if !ok || !snapshot.Map.Cell(next).Passable() {
		return false
	}
	for _, p := range snapshot.Players {
		if p.ID != self && p.Alive() && p.Position != nil && *p.Position == next {
			return false
		}
	}
	return true
}

func towards(delta int, positive, negative Direction) Direction {
	switch {
	case delta > 0:
		return positive
	case delta < 0:
		return negative
	default:
		return DirectionNone
	}
}

func manhattan(a, b Position) int {
	return abs(int(a.X)-int(b.X)) + abs(int(a.Y)-int(b.Y))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
