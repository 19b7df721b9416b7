package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/towerdefense/internal/game/wave"
)

// Session dispatches engine hooks to one session's VM. It satisfies
// effect.HookCaller and wave.HookCaller.
type Session struct {
	m  *Manager
	id string
}

// Session returns the hook dispatcher for sessionID.
func (m *Manager) Session(sessionID string) Session {
	return Session{m: m, id: sessionID}
}

// CallEffectHook calls hook(entity_id, instance_id).
func (s Session) CallEffectHook(hook, entityID, instanceID string) error {
	_, err := s.m.CallHook(s.id, hook, lua.LString(entityID), lua.LString(instanceID))
	return err
}

// CallWaveHook calls hook(results) with a table of the wave's results.
func (s Session) CallWaveHook(hook string, r wave.Results) error {
	_, err := s.m.call(s.id, hook, func(L *lua.LState) []lua.LValue {
		t := L.NewTable()
		t.RawSetString("level", lua.LNumber(r.Level))
		t.RawSetString("wave", lua.LNumber(r.WaveNumber))
		t.RawSetString("total_enemies", lua.LNumber(r.TotalEnemies))
		t.RawSetString("killed", lua.LNumber(r.Killed))
		t.RawSetString("reached_end", lua.LNumber(r.ReachedEnd))
		t.RawSetString("kill_rate", lua.LNumber(r.KillRate))
		t.RawSetString("survival_rate", lua.LNumber(r.SurvivalRate))
		t.RawSetString("duration_ms", lua.LNumber(r.DurationMs))
		t.RawSetString("perfect", lua.LBool(r.Perfect))
		t.RawSetString("skipped", lua.LBool(r.Skipped))
		t.RawSetString("rating", lua.LString(r.Rating))
		return []lua.LValue{t}
	})
	return err
}
