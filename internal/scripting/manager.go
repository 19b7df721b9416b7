package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/towerdefense/internal/game/dice"
)

// globalKey is the reserved key for shared scripts loaded via LoadGlobal.
// CallHook falls back to this VM when a session has none of its own.
const globalKey = "__global__"

// vm is one sandboxed LState. An LState is single-threaded, so every call
// holds mu.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed VM per simulation session and dispatches hooks
// to them.
//
// Manager is safe for concurrent use. Calls into the same session are
// serialised; different sessions run concurrently.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	src    dice.Source
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: src and logger must be non-nil.
// Postcondition: Returns a Manager with no VMs loaded.
func NewManager(src dice.Source, logger *zap.Logger) *Manager {
	if src == nil {
		panic("scripting.NewManager: src must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:    make(map[string]*vm),
		src:    src,
		logger: logger,
	}
}

// LoadSession creates a VM for sessionID bound to b, then executes every
// *.lua file in scriptDir in lexicographic order. A VM already loaded for
// sessionID is replaced.
//
// Precondition: sessionID must be non-empty; scriptDir must be a readable directory.
// Postcondition: on success the VM is registered; on error nothing changes.
func (m *Manager) LoadSession(sessionID, scriptDir string, instLimit int, b Bindings) error {
	return m.loadInto(sessionID, scriptDir, instLimit, b)
}

// LoadGlobal creates the fallback VM used by sessions without their own.
// Its bindings are empty, so engine.entity and engine.economy are no-ops.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalKey, scriptDir, instLimit, Bindings{})
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int, b Bindings) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(files)

	L := NewSandboxedState(instLimit)
	m.RegisterModules(L, b)
	for _, path := range files {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = &vm{L: L, limit: instLimit}
	m.mu.Unlock()
	if old != nil {
		old.close()
	}
	m.logger.Info("scripts loaded",
		zap.String("session", key),
		zap.String("dir", scriptDir),
		zap.Int("files", len(files)),
	)
	return nil
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.L.Close()
}

// CallHook calls the Lua global function hook in sessionID's VM, falling
// back to the global VM. It returns (LNil, nil) when no VM exists or the
// hook is not defined. A Lua runtime error, including an exhausted
// instruction budget, is returned and leaves the VM usable.
//
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(sessionID, hook string, args ...lua.LValue) (lua.LValue, error) {
	return m.call(sessionID, hook, func(*lua.LState) []lua.LValue { return args })
}

// call is CallHook with arguments built on the target VM.
func (m *Manager) call(sessionID, hook string, build func(*lua.LState) []lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.vms[sessionID]
	if !ok {
		v = m.vms[globalKey]
	}
	m.mu.RUnlock()

	if v == nil {
		m.logger.Info("scripting: no VM for session",
			zap.String("session", sessionID),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	L := v.L
	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}
	err := withBudget(L, v.limit, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, build(L)...)
	})
	if err != nil {
		return lua.LNil, fmt.Errorf("scripting: hook %q: %w", hook, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Unload closes sessionID's VM. Unknown ids are ignored.
func (m *Manager) Unload(sessionID string) {
	m.mu.Lock()
	v := m.vms[sessionID]
	delete(m.vms, sessionID)
	m.mu.Unlock()
	if v != nil {
		v.close()
	}
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.close()
	}
}
