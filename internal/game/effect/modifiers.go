package effect

// Modifiers is the mutable stat block effects act on. Enemies and towers own
// one each and read it every tick.
//
// Invariant: multipliers are only ever multiplied and divided by the same
// factor; immobilize and disarm are reference counts that never go negative.
type Modifiers struct {
	SpeedMultiplier  float64
	DamageMultiplier float64
	immobilized      int
	disarmed         int
}

// NewModifiers returns a neutral stat block.
func NewModifiers() *Modifiers {
	return &Modifiers{SpeedMultiplier: 1, DamageMultiplier: 1}
}

// Speed returns base scaled by SpeedMultiplier, or 0 while immobilized.
func (m *Modifiers) Speed(base float64) float64 {
	if m.immobilized > 0 {
		return 0
	}
	return base * m.SpeedMultiplier
}

// Damage returns base scaled by DamageMultiplier.
func (m *Modifiers) Damage(base float64) float64 {
	return base * m.DamageMultiplier
}

// Immobilized reports whether any effect holds the entity in place.
func (m *Modifiers) Immobilized() bool { return m.immobilized > 0 }

// Disarmed reports whether any effect prevents the entity from attacking.
func (m *Modifiers) Disarmed() bool { return m.disarmed > 0 }

// Reset restores the neutral stat block.
func (m *Modifiers) Reset() {
	*m = Modifiers{SpeedMultiplier: 1, DamageMultiplier: 1}
}

func (m *Modifiers) immobilize() { m.immobilized++ }

func (m *Modifiers) release() {
	if m.immobilized > 0 {
		m.immobilized--
	}
}

func (m *Modifiers) disarm() { m.disarmed++ }

func (m *Modifiers) rearm() {
	if m.disarmed > 0 {
		m.disarmed--
	}
}
