package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// EntityInfo is a read-only view of an enemy or tower passed to Lua.
type EntityInfo struct {
	ID        string
	Kind      string // "enemy", "boss" or "tower"
	Type      string
	Health    float64
	MaxHealth float64
	Shield    float64
	Alive     bool
	X, Z      float64
}

// Bindings connect a VM to one simulation. Every field may be nil; the
// corresponding engine.* function is then a no-op.
type Bindings struct {
	Entity      func(id string) (EntityInfo, bool)
	Damage      func(id string, amount float64, damageType string) float64
	Heal        func(id string, amount float64) float64
	ApplyEffect func(id, kind string, durationMs float64) bool
	AddGold     func(amount int)
	AddScore    func(amount int)
}

// RegisterModules defines the engine global in L:
//
//	engine.log.debug|info|warn|error(msg)
//	engine.dice.roll(n)              -> 1..n
//	engine.dice.chance(p)            -> bool
//	engine.entity.get(id)            -> table or nil
//	engine.entity.damage(id, n, t)   -> damage dealt
//	engine.entity.heal(id, n)        -> health restored
//	engine.effect.apply(id, kind, ms) -> bool
//	engine.economy.add_gold(n)
//	engine.economy.add_score(n)
//
// Precondition: L must be from NewSandboxedState.
func (m *Manager) RegisterModules(L *lua.LState, b Bindings) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetField(engine, "entity", entityModule(L, b))
	L.SetField(engine, "effect", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"apply": func(L *lua.LState) int {
			ok := false
			if b.ApplyEffect != nil {
				ok = b.ApplyEffect(L.CheckString(1), L.CheckString(2), float64(L.OptNumber(3, 0)))
			}
			L.Push(lua.LBool(ok))
			return 1
		},
	}))
	L.SetField(engine, "economy", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"add_gold": func(L *lua.LState) int {
			if b.AddGold != nil {
				b.AddGold(L.CheckInt(1))
			}
			return 0
		},
		"add_score": func(L *lua.LState) int {
			if b.AddScore != nil {
				b.AddScore(L.CheckInt(1))
			}
			return 0
		},
	}))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState) *lua.LTable {
	logger := m.logger.Named("lua")
	at := func(log func(string, ...zap.Field)) lua.LGFunction {
		return func(L *lua.LState) int {
			log(L.CheckString(1))
			return 0
		}
	}
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"debug": at(logger.Debug),
		"info":  at(logger.Info),
		"warn":  at(logger.Warn),
		"error": at(logger.Error),
	})
}

func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"roll": func(L *lua.LState) int {
			n := L.CheckInt(1)
			if n < 1 {
				L.ArgError(1, "sides must be >= 1")
				return 0
			}
			L.Push(lua.LNumber(m.src.Intn(n) + 1))
			return 1
		},
		"chance": func(L *lua.LState) int {
			p := float64(L.CheckNumber(1))
			L.Push(lua.LBool(m.src.Float64() < p))
			return 1
		},
	})
}

func entityModule(L *lua.LState, b Bindings) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"get": func(L *lua.LState) int {
			if b.Entity == nil {
				L.Push(lua.LNil)
				return 1
			}
			info, ok := b.Entity(L.CheckString(1))
			if !ok {
				L.Push(lua.LNil)
				return 1
			}
			L.Push(entityTable(L, info))
			return 1
		},
		"damage": func(L *lua.LState) int {
			dealt := 0.0
			if b.Damage != nil {
				dealt = b.Damage(L.CheckString(1), float64(L.CheckNumber(2)), L.OptString(3, "physical"))
			}
			L.Push(lua.LNumber(dealt))
			return 1
		},
		"heal": func(L *lua.LState) int {
			healed := 0.0
			if b.Heal != nil {
				healed = b.Heal(L.CheckString(1), float64(L.CheckNumber(2)))
			}
			L.Push(lua.LNumber(healed))
			return 1
		},
	})
}

func entityTable(L *lua.LState, e EntityInfo) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LString(e.ID))
	t.RawSetString("kind", lua.LString(e.Kind))
	t.RawSetString("type", lua.LString(e.Type))
	t.RawSetString("health", lua.LNumber(e.Health))
	t.RawSetString("max_health", lua.LNumber(e.MaxHealth))
	t.RawSetString("shield", lua.LNumber(e.Shield))
	t.RawSetString("alive", lua.LBool(e.Alive))
	t.RawSetString("x", lua.LNumber(e.X))
	t.RawSetString("z", lua.LNumber(e.Z))
	return t
}
