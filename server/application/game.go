package application

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNoPlayers             = errors.New("game requires at least one player")
	ErrDuplicatePlayerID     = errors.New("duplicate player id")
	ErrInvalidTickBudget     = errors.New("tick budget must be positive")
	ErrInvalidActionsPerTurn = errors.New("actions per turn must be positive")
	ErrSpawnBlocked          = errors.New("spawn position is blocked")
)

// GameConfig はゲーム生成時に固定される設定です。
type GameConfig struct {
	TickBudget     uint16
	ActionsPerTurn int
	ReloadPolicy   ReloadPolicy
}

// DefaultGameConfig は残りティック1000, 1ターン2アクション, 手動装填です。
func DefaultGameConfig() GameConfig {
	return GameConfig{
		TickBudget:     1000,
		ActionsPerTurn: 2,
		ReloadPolicy:   ReloadManual,
	}
}

// Game は1マッチ分の決定的なシミュレーションです。
// 単一のスケジューラからのみ操作される前提で、内部でロックはしません。
type Game struct {
	grid           *Grid
	players        []Player
	ticksRemaining uint16
	tick           uint32
	actionsPerTurn int
	reloadPolicy   ReloadPolicy
	bullets        []Bullet
	state          State
}

// NewGame はグリッドとプレイヤーからゲームを生成し、NotStarted 状態にします。
// プレイヤーはID順に並べ替えられ、以降その順序は変わりません。
func NewGame(grid *Grid, players []Player, cfg GameConfig) (*Game, error) {
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}
	if cfg.TickBudget == 0 {
		return nil, ErrInvalidTickBudget
	}
	if cfg.ActionsPerTurn <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidActionsPerTurn, cfg.ActionsPerTurn)
	}

	sorted := slices.Clone(players)
	slices.SortFunc(sorted, func(a, b Player) int {
		return int(a.ID) - int(b.ID)
	})

	occupied := make(map[Position]PlayerID, len(sorted))
	for i := range sorted {
		p := &sorted[i]
		if i > 0 && sorted[i-1].ID == p.ID {
			return nil, fmt.Errorf("%w: %d", ErrDuplicatePlayerID, p.ID)
		}
		pos := p.Position()
		if !grid.InBounds(pos) {
			return nil, fmt.Errorf("%w: player %d at %s: %w", ErrSpawnBlocked, p.ID, pos, ErrOutOfRange)
		}
		if cell := grid.Cell(pos); !cell.Passable() {
			return nil, fmt.Errorf("%w: player %d at %s: %w", ErrSpawnBlocked, p.ID, pos, &ImpassableError{Cell: cell})
		}
		if other, ok := occupied[pos]; ok {
			return nil, fmt.Errorf("%w: players %d and %d share %s", ErrSpawnBlocked, other, p.ID, pos)
		}
		occupied[pos] = p.ID
	}

	g := &Game{
		grid:           grid,
		players:        sorted,
		ticksRemaining: cfg.TickBudget,
		actionsPerTurn: cfg.ActionsPerTurn,
		reloadPolicy:   cfg.ReloadPolicy,
	}
	g.state = State{Phase: PhaseNotStarted, Snapshot: g.snapshot()}
	return g, nil
}

func (g *Game) State() State {
	return g.state
}

func (g *Game) ActionsPerTurn() int {
	return g.actionsPerTurn
}

func (g *Game) TicksRemaining() uint16 {
	return g.ticksRemaining
}

func (g *Game) Tick() uint32 {
	return g.tick
}

func (g *Game) Grid() *Grid {
	return g.grid
}

// Players はID順のプレイヤーのコピーを返します。
func (g *Game) Players() []Player {
	return slices.Clone(g.players)
}

func (g *Game) Player(id PlayerID) (Player, bool) {
	for _, p := range g.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// PendingBullets はターン解決中の弾丸です。ティックの境界では常に空です。
func (g *Game) PendingBullets() []Bullet {
	return slices.Clone(g.bullets)
}

// AliveIDs は生存プレイヤーのIDをID順に返します。
func (g *Game) AliveIDs() []PlayerID {
	ids := make([]PlayerID, 0, len(g.players))
	for i := range g.players {
		if g.players[i].Alive() {
			ids = append(ids, g.players[i].ID)
		}
	}
	return ids
}

// Update は1ティック進めます。
// batches にないプレイヤーは全て Nothing として扱い、各バッチは ActionsPerTurn 件に揃えます。
// 終了状態では何もせず現在の状態を返します。
func (g *Game) Update(batches map[PlayerID][]Action) State {
	if g.state.Phase == PhaseEmpty || g.state.Terminal() {
		return g.state
	}

	padded := make([][]Action, len(g.players))
	for i := range g.players {
		padded[i] = PadActions(batches[g.players[i].ID], g.actionsPerTurn)
	}

	for slot := 0; slot < g.actionsPerTurn; slot++ {
		for i := range g.players {
			g.execute(i, padded[i][slot])
		}
	}

	g.resolveBullets()

	if g.reloadPolicy.passiveReloads() {
		for i := range g.players {
			if g.players[i].Alive() {
				g.players[i].Reload()
			}
		}
	}

	g.tick++
	g.state = g.evaluate()
	return g.state
}

func (g *Game) execute(i int, action Action) {
	p := &g.players[i]
	if !p.Alive() {
		return
	}
	switch action.Kind {
	case ActionMove:
		steps := min(p.Speed(), action.Range)
		for range steps {
			next, err := g.canStep(p.Position(), action.Direction)
			if err != nil {
				break
			}
			p.Character.Position = next
		}
	case ActionAttack:
		bullet, ok := p.Attack(action.Direction)
		if !ok {
			return
		}
		// 生成位置が範囲外や通行不可なら弾丸は生成されない
		if !g.grid.InBounds(bullet.Position) || !g.grid.Cell(bullet.Position).Passable() {
			return
		}
		g.bullets = append(g.bullets, bullet)
	case ActionReload:
		if g.reloadPolicy.actionReloads() {
			p.Reload()
		}
	case ActionNothing:
	}
}

// canStep は地形に加え、生存プレイヤーの占有も通行不可として判定します。
func (g *Game) canStep(from Position, direction Direction) (Position, error) {
	next, err := g.grid.CanMove(from, direction)
	if err != nil {
		return from, err
	}
	if occupant := g.occupant(next); occupant != nil {
		return from, &ImpassableError{Cell: occupant.Kind.OccupantCell()}
	}
	return next, nil
}

func (g *Game) occupant(pos Position) *Player {
	for i := range g.players {
		p := &g.players[i]
		if p.Alive() && p.Position() == pos {
			return p
		}
	}
	return nil
}

func (g *Game) resolveBullets() {
	var rounds uint8
	for i := range g.bullets {
		rounds = max(rounds, g.bullets[i].Range)
	}

	for range rounds {
		for i := range g.bullets {
			b := &g.bullets[i]
			if !b.Active() {
				continue
			}
			if target := g.occupant(b.Position); target != nil {
				target.TakeDamage(b.Consume())
				continue
			}
			next, err := g.grid.CanMove(b.Position, b.Direction)
			if err != nil {
				b.stall()
				continue
			}
			b.advance(next)
		}
	}

	g.bullets = g.bullets[:0]
}

func (g *Game) evaluate() State {
	alive := g.AliveIDs()
	if len(alive) <= 1 {
		return State{Phase: PhaseEnd, Winners: alive}
	}
	g.ticksRemaining--
	if g.ticksRemaining == 0 {
		return State{Phase: PhaseTimeIsOver, Winners: alive}
	}
	return State{Phase: PhaseContinue, Snapshot: g.snapshot()}
}
