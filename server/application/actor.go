package application

import "fmt"

// PlayerID はマッチ時に割り当てられ、セッション中は変わらないプレイヤーの識別子です。
type PlayerID uint8

// PlayerKind は操作元の種別です。シミュレーション上の振る舞いは同じです。
type PlayerKind uint8

const (
	KindHuman PlayerKind = iota
	KindBot
)

func (k PlayerKind) String() string {
	switch k {
	case KindHuman:
		return "human"
	case KindBot:
		return "bot"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k PlayerKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PlayerKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "human":
		*k = KindHuman
	case "bot":
		*k = KindBot
	default:
		return fmt.Errorf("unknown player kind: %q", text)
	}
	return nil
}

// OccupantCell はこの種別のプレイヤーが占有するセルの種別です。
func (k PlayerKind) OccupantCell() Cell {
	if k == KindBot {
		return CellBot
	}
	return CellPlayer
}

// Health は最大HPと現在HPです。Current は常に Max 以下です。
type Health struct {
	Max     uint8
	Current uint8
}

func NewHealth(maxHP uint8) Health {
	return Health{Max: maxHP, Current: maxHP}
}

// ApplyDamage はダメージを適用します。HPは0で止まります。
func (h *Health) ApplyDamage(damage uint8) {
	if damage >= h.Current {
		h.Current = 0
		return
	}
	h.Current -= damage
}

func (h Health) Alive() bool {
	return h.Current > 0
}

// BulletSpec は武器が生成する弾丸の射程とダメージです。
type BulletSpec struct {
	Range  uint8
	Damage uint8
}

// Weapon は装填時間とカウントダウン（0で発射可能）を持つ武器です。
type Weapon struct {
	ReloadTime uint8
	Countdown  uint8
	Bullet     BulletSpec
}

func NewWeapon(reloadTime uint8, bullet BulletSpec) Weapon {
	return Weapon{ReloadTime: reloadTime, Bullet: bullet}
}

func (w Weapon) CanFire() bool {
	return w.Countdown == 0
}

// Fire は origin の1セル先に弾丸を生成し、カウントダウンをリセットします。
// 未装填なら何もしません。表現範囲を超える場合は弾丸を生成しませんが、武器は発射済みになります。
func (w *Weapon) Fire(origin Position, direction Direction) (Bullet, bool) {
	if !w.CanFire() {
		return Bullet{}, false
	}
	w.Countdown = w.ReloadTime
	pos, ok := origin.Shift(direction)
	if !ok {
		return Bullet{}, false
	}
	return Bullet{
		Position:  pos,
		Range:     w.Bullet.Range,
		Direction: direction,
		Damage:    w.Bullet.Damage,
	}, true
}

// AdvanceReload はカウントダウンを1進めます。0のときは何もしません。
func (w *Weapon) AdvanceReload() {
	if w.Countdown > 0 {
		w.Countdown--
	}
}

// Character はプレイヤーの能力値と位置です。
type Character struct {
	Speed    uint8
	Position Position
	Health   Health
	Weapon   Weapon
}

// Loadout は新規キャラクターの初期能力値です。
type Loadout struct {
	Speed        uint8
	Health       uint8
	ReloadTime   uint8
	BulletRange  uint8
	BulletDamage uint8
}

// DefaultLoadout は速度1, HP100, 装填2, 射程5, ダメージ20 です。
func DefaultLoadout() Loadout {
	return Loadout{
		Speed:        1,
		Health:       100,
		ReloadTime:   2,
		BulletRange:  5,
		BulletDamage: 20,
	}
}

func (l Loadout) Character(pos Position) Character {
	return Character{
		Speed:    l.Speed,
		Position: pos,
		Health:   NewHealth(l.Health),
		Weapon:   NewWeapon(l.ReloadTime, BulletSpec{Range: l.BulletRange, Damage: l.BulletDamage}),
	}
}

// Player はIDとキャラクターを持つアクターです。人間とボットは Kind のみが異なります。
type Player struct {
	ID        PlayerID
	Kind      PlayerKind
	Character Character
}

func NewPlayer(id PlayerID, kind PlayerKind, character Character) Player {
	return Player{ID: id, Kind: kind, Character: character}
}

func (p *Player) Position() Position {
	return p.Character.Position
}

func (p *Player) Speed() uint8 {
	return p.Character.Speed
}

func (p *Player) Alive() bool {
	return p.Character.Health.Alive()
}

func (p *Player) TakeDamage(damage uint8) {
	p.Character.Health.ApplyDamage(damage)
}

// Attack は現在位置から direction に向けて発射します。
func (p *Player) Attack(direction Direction) (Bullet, bool) {
	return p.Character.Weapon.Fire(p.Character.Position, direction)
}

func (p *Player) Reload() {
	p.Character.Weapon.AdvanceReload()
}
