package application

// Bullet は1ターンの弾丸解決の間だけ存在する弾丸です。
// 使用済みの弾丸は Range=0, Damage=0, Direction=None になり、再利用されません。
type Bullet struct {
	Position  Position
	Range     uint8
	Direction Direction
	Damage    uint8

	stalled bool
}

// Active は弾丸がまだ移動または命中できるかを返します。
func (b *Bullet) Active() bool {
	return b.Range > 0 && !b.stalled
}

func (b *Bullet) Spent() bool {
	return b.Range == 0 && b.Damage == 0 && b.Direction == DirectionNone
}

// Consume は弾丸を使用済みにし、与えるダメージを返します。
func (b *Bullet) Consume() uint8 {
	damage := b.Damage
	b.Range = 0
	b.Damage = 0
	b.Direction = DirectionNone
	return damage
}

func (b *Bullet) advance(to Position) {
	b.Position = to
	b.Range--
}

func (b *Bullet) stall() {
	b.stalled = true
}
