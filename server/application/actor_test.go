package application

import (
	"testing"

	"pgregory.net/rapid"
)

func TestHealth_ApplyDamage(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxHP := rapid.Uint8().Draw(t, "max")
		current := rapid.Uint8Range(0, maxHP).Draw(t, "current")
		damage := rapid.Uint8().Draw(t, "damage")

		h := Health{Max: maxHP, Current: current}
		h.ApplyDamage(damage)

		want := uint8(0)
		if damage < current {
			want = current - damage
		}
		if h.Current != want {
			t.Fatalf("Current = %d, want %d", h.Current, want)
		}
		if h.Alive() != (h.Current > 0) {
			t.Fatalf("Alive() = %v with Current %d", h.Alive(), h.Current)
		}
		if h.Current > h.Max {
			t.Fatalf("Current %d exceeds Max %d", h.Current, h.Max)
		}
	})
}

func TestWeapon_Fire(t *testing.T) {
	w := NewWeapon(2, BulletSpec{Range: 5, Damage: 20})

	b, ok := w.Fire(Position{1, 1}, DirectionRight)
	if !ok {
		t.Fatal("ready weapon did not fire")
	}
	if b.Position != (Position{2, 1}) {
		t.Errorf("bullet position = %s, want (2, 1)", b.Position)
	}
	if b.Range != 5 || b.Damage != 20 || b.Direction != DirectionRight {
		t.Errorf("bullet = %+v, want range 5 damage 20 right", b)
	}
	if w.Countdown != 2 {
		t.Errorf("Countdown = %d, want 2", w.Countdown)
	}

	if _, ok := w.Fire(Position{1, 1}, DirectionRight); ok {
		t.Error("weapon fired while reloading")
	}
	if w.Countdown != 2 {
		t.Errorf("Countdown after failed fire = %d, want 2", w.Countdown)
	}
}

func TestWeapon_FireOverflow(t *testing.T) {
	w := NewWeapon(3, BulletSpec{Range: 5, Damage: 20})

	if _, ok := w.Fire(Position{0, 0}, DirectionLeft); ok {
		t.Error("bullet spawned past the coordinate boundary")
	}
	if w.Countdown != 3 {
		t.Errorf("Countdown = %d, want 3", w.Countdown)
	}
}

func TestWeapon_AdvanceReload(t *testing.T) {
	w := Weapon{ReloadTime: 2, Countdown: 2}
	w.AdvanceReload()
	w.AdvanceReload()
	w.AdvanceReload()
	if w.Countdown != 0 {
		t.Errorf("Countdown = %d, want 0", w.Countdown)
	}
	if !w.CanFire() {
		t.Error("CanFire() = false, want true")
	}
}

func TestDefaultLoadout(t *testing.T) {
	c := DefaultLoadout().Character(Position{1, 0})
	if c.Speed != 1 {
		t.Errorf("Speed = %d, want 1", c.Speed)
	}
	if c.Health.Current != 100 || c.Health.Max != 100 {
		t.Errorf("Health = %+v, want 100/100", c.Health)
	}
	if c.Weapon.ReloadTime != 2 || c.Weapon.Countdown != 0 {
		t.Errorf("Weapon = %+v, want reload 2 ready", c.Weapon)
	}
	if c.Weapon.Bullet != (BulletSpec{Range: 5, Damage: 20}) {
		t.Errorf("Bullet = %+v, want range 5 damage 20", c.Weapon.Bullet)
	}
}

func TestBullet_Consume(t *testing.T) {
	b := Bullet{Position: Position{1, 1}, Range: 3, Direction: DirectionUp, Damage: 20}
	if got := b.Consume(); got != 20 {
		t.Errorf("Consume() = %d, want 20", got)
	}
	if !b.Spent() {
		t.Errorf("bullet = %+v, want spent", b)
	}
	if b.Active() {
		t.Error("spent bullet is still active")
	}
}
