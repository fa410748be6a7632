package system

import (
	"fmt"
	"strings"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/pathsteer/prefabs"
)

type brainRuntime struct {
	scriptPath  string
	compiled    *tengo.Compiled
	stateData   *tengo.Map
	initial     string
	initialized bool
	pending     string
}

const brainLifecycleDispatchScript = `
if __phase == "enter" {
	onEnter(__engine, __state, __current_state)
} else if __phase == "update" {
	update(__engine, __state, __current_state)
} else if __phase == "exit" {
	onExit(__engine, __state, __current_state)
}
`

const defaultBrainState = "idle"

// compileBrain loads a brain script and resolves its initial state from
// the optional initial_state global.
func compileBrain(path string) (*brainRuntime, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("brain: empty script path")
	}

	scriptBytes, err := prefabs.LoadScript(path)
	if err != nil {
		return nil, fmt.Errorf("brain: load %s: %w", path, err)
	}

	src := string(scriptBytes) + "\n" + brainLifecycleDispatchScript
	script := tengo.NewScript([]byte(src))
	_ = script.Add("__phase", "")
	_ = script.Add("__engine", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	_ = script.Add("__current_state", "")

	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("brain: compile %s: %w", path, err)
	}

	rt := &brainRuntime{
		scriptPath: path,
		compiled:   compiled,
		stateData:  &tengo.Map{Value: map[string]tengo.Object{}},
		initial:    defaultBrainState,
	}

	noop := &tengo.ImmutableMap{Value: map[string]tengo.Object{}}
	if err := rt.runPhase("noop", rt.initial, noop); err != nil {
		return nil, fmt.Errorf("brain: run %s: %w", path, err)
	}
	if compiled.IsDefined("initial_state") {
		s := strings.TrimSpace(compiled.Get("initial_state").String())
		if s != "" {
			rt.initial = s
		}
	}
	return rt, nil
}

// runPhase runs one lifecycle phase. Runtime faults inside the VM, such as
// integer division by zero, surface as errors.
func (rt *brainRuntime) runPhase(phase, current string, engine *tengo.ImmutableMap) (err error) {
	if rt == nil || rt.compiled == nil {
		return fmt.Errorf("nil script runtime")
	}
	if engine == nil {
		engine = &tengo.ImmutableMap{Value: map[string]tengo.Object{}}
	}
	if err := rt.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := rt.compiled.Set("__engine", engine); err != nil {
		return err
	}
	if err := rt.compiled.Set("__state", rt.stateData); err != nil {
		return err
	}
	if err := rt.compiled.Set("__current_state", current); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", phase, r)
		}
	}()
	return rt.compiled.Run()
}

// step runs one tick of the lifecycle: enter on first use, update, then
// exit and enter again if the script asked for a transition.
func (rt *brainRuntime) step(current string, engine *tengo.ImmutableMap) (string, error) {
	if current == "" {
		current = rt.initial
	}
	if !rt.initialized {
		if err := rt.runPhase("enter", current, engine); err != nil {
			return current, fmt.Errorf("onEnter: %w", err)
		}
		rt.initialized = true
	}

	if err := rt.runPhase("update", current, engine); err != nil {
		return current, fmt.Errorf("update: %w", err)
	}

	if rt.pending == "" || rt.pending == current {
		rt.pending = ""
		return current, nil
	}

	if err := rt.runPhase("exit", current, engine); err != nil {
		return current, fmt.Errorf("onExit: %w", err)
	}
	current = rt.pending
	rt.pending = ""

	if err := rt.runPhase("enter", current, engine); err != nil {
		return current, fmt.Errorf("onEnter: %w", err)
	}
	return current, nil
}

// stateValue reads a value the script stored in its state map.
func (rt *brainRuntime) stateValue(key string) any {
	if rt == nil || rt.stateData == nil {
		return nil
	}
	v, ok := rt.stateData.Value[key]
	if !ok {
		return nil
	}
	return objectToAny(v)
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

func objectAsFloat(obj tengo.Object) (float64, bool) {
	switch v := obj.(type) {
	case *tengo.Int:
		return float64(v.Value), true
	case *tengo.Float:
		return v.Value, true
	default:
		return 0, false
	}
}

func objectToAny(obj tengo.Object) any {
	if obj == nil {
		return nil
	}

	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	case *tengo.Int:
		return int(v.Value)
	case *tengo.Float:
		return v.Value
	case *tengo.Bool:
		return !v.IsFalsy()
	case *tengo.Array:
		out := make([]any, 0, len(v.Value))
		for _, item := range v.Value {
			out = append(out, objectToAny(item))
		}
		return out
	case *tengo.Map:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.ImmutableMap:
		out := make(map[string]any, len(v.Value))
		for k, item := range v.Value {
			out[k] = objectToAny(item)
		}
		return out
	case *tengo.Undefined:
		return nil
	default:
		return v.String()
	}
}
