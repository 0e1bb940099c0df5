// Package invocation implements the Invocation Engine: it resolves a tool
// by name, validates its arguments, calls the user method by reflection,
// and translates the result (or panic, or error) into a protocol-shaped
// CallResult.
package invocation

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/photon-run/photon/internal/catalog"
	"github.com/photon-run/photon/internal/photon"
	"github.com/photon-run/photon/internal/photonerr"
	"github.com/photon-run/photon/internal/telemetry"
)

// MethodCaller is the subset of *loader.LoadedPhoton the engine depends
// on, narrowed to ease testing with a hand-built reflect.Value.
type MethodCaller interface {
	MethodByName(name string) (reflect.Value, bool)
}

// Engine executes tool, prompt, and resource-read invocations against the
// currently active photon instance.
type Engine struct {
	log telemetry.Logger

	mu      sync.Mutex
	pending map[string]*Invocation

	// CancelGrace holds the cancellation grace window (spec section 9 open
	// question, resolved in DESIGN.md: 5s). InvokeTool does not read it: a
	// cancelled invocation is reported cancelled only once the method
	// returns, and a method that ignores ctx.Done() is waited on for as
	// long as it runs.
	CancelGrace time.Duration
}

// New constructs an Engine.
func New(log telemetry.Logger) *Engine {
	if log == nil {
		log = telemetry.Noop().Log
	}
	return &Engine{log: log, pending: map[string]*Invocation{}, CancelGrace: 5 * time.Second}
}

// Request describes one tools/call invocation.
type Request struct {
	InvocationID string
	SessionID    string
	ToolName     string
	Arguments    map[string]any
	Surface      Surface
}

// InvokeTool runs a tool method to completion, returning a CallResult even
// on a user-level failure; missing configuration and argument schema
// mismatches are also isError results. Only an unknown tool and
// cancellation come back as an error.
func (e *Engine) InvokeTool(ctx context.Context, inst *photon.Instance, caller MethodCaller, req Request) (CallResult, error) {
	member, err := inst.Tool(req.ToolName)
	if err != nil {
		return CallResult{}, err
	}
	if cfgErr := inst.ConfigError(); cfgErr != nil {
		return errorResult(cfgErr.Error()), nil
	}
	if err := validateArguments(member.InputSchema, req.Arguments); err != nil {
		return errorResult(err.Error()), nil
	}

	invCtx, cancel := context.WithCancel(ctx)
	inv := &Invocation{ID: req.InvocationID, SessionID: req.SessionID, ToolName: req.ToolName, State: StateAccepted, StartedAt: timeNow(), cancel: cancel}
	e.track(inv)
	defer e.untrack(inv.ID)
	defer cancel()

	invCtx = WithSurface(invCtx, req.Surface)
	inv.State = StateRunning
	result, callErr := e.callMethod(invCtx, caller, member, req.Arguments, req.Surface)
	inv.CompletedAt = timeNow()

	select {
	case <-invCtx.Done():
		if invCtx.Err() == context.Canceled {
			inv.State = StateCancelled
			return CallResult{}, photonerr.New(photonerr.Cancelled, "invocation cancelled")
		}
	default:
	}

	if callErr != nil {
		inv.State = StateErrored
		e.log.Warn(ctx, "tool invocation failed", "tool", req.ToolName, "error", callErr.Error())
		return errorResult(callErr.Error()), nil
	}
	inv.State = StateCompleted
	return result, nil
}

// InvokePrompt runs a //photon:template method, returning its rendered
// text directly rather than wrapping it in tool content blocks.
func (e *Engine) InvokePrompt(ctx context.Context, inst *photon.Instance, caller MethodCaller, name string, arguments map[string]any) (string, error) {
	member, err := inst.Prompt(name)
	if err != nil {
		return "", err
	}
	return e.invokeMemberText(ctx, caller, member, arguments)
}

// InvokeResource runs a //photon:static method identified by the already
// URI-matched member, used by resources/read. Placeholder values
// extracted from the URI template are merged into arguments by the
// caller before this is invoked.
func (e *Engine) InvokeResource(ctx context.Context, caller MethodCaller, member catalog.Member, arguments map[string]any) (string, error) {
	return e.invokeMemberText(ctx, caller, member, arguments)
}

func (e *Engine) invokeMemberText(ctx context.Context, caller MethodCaller, member catalog.Member, arguments map[string]any) (string, error) {
	if err := validateArguments(member.InputSchema, arguments); err != nil {
		return "", err
	}
	result, err := e.callMethod(ctx, caller, member, arguments, nil)
	if err != nil {
		return "", photonerr.Wrap(photonerr.Internal, err, "method failed")
	}
	if len(result.Content) == 0 {
		return "", nil
	}
	return result.Content[0].Text, nil
}

// callMethod invokes the user method by reflection. A method has the
// signature func(ctx context.Context, surface photon.Context, args SomeArgs)
// (ReturnType, error), with the ctx and surface parameters each optional;
// the engine detects which are present by inspecting the method's declared
// parameter types: context.Context by exact type, the invocation surface by
// interface kind (it is a type local to the photon's own isolated build, so
// it can only be recognized structurally), and the argument struct as
// whatever is left.
func (e *Engine) callMethod(ctx context.Context, caller MethodCaller, member catalog.Member, arguments map[string]any, surface Surface) (result CallResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = photonerr.Newf(photonerr.Internal, "tool method panicked: %v", r)
		}
	}()

	fn, ok := caller.MethodByName(member.MethodName)
	if !ok {
		return CallResult{}, photonerr.Newf(photonerr.NotFound, "method %q not found on instance", member.MethodName)
	}
	fnType := fn.Type()

	args, err := decodeArguments(fnType, arguments)
	if err != nil {
		return CallResult{}, err
	}

	callArgs, err := buildCallArgs(ctx, fnType, args, surface)
	if err != nil {
		return CallResult{}, err
	}

	outs := fn.Call(callArgs)
	return interpretReturn(member.OutputFormat, outs)
}

// decodeArguments round-trips the raw argument map through JSON into a new
// value of the method's declared argument struct type, if any. It skips
// both the context.Context parameter and the invocation surface parameter
// (recognized by interface kind) to find the one remaining struct
// parameter, matching paramSchema's analyzer-time logic.
func decodeArguments(fnType reflect.Type, arguments map[string]any) (reflect.Value, error) {
	argIndex := -1
	for i := 0; i < fnType.NumIn(); i++ {
		t := fnType.In(i)
		if t.String() == "context.Context" || t.Kind() == reflect.Interface {
			continue
		}
		argIndex = i
		break
	}
	if argIndex < 0 {
		return reflect.Value{}, nil
	}
	argType := fnType.In(argIndex)
	target := reflect.New(argType)
	raw, err := json.Marshal(arguments)
	if err != nil {
		return reflect.Value{}, photonerr.Wrap(photonerr.InvalidArguments, err, "re-encode arguments")
	}
	if err := json.Unmarshal(raw, target.Interface()); err != nil {
		return reflect.Value{}, photonerr.Wrap(photonerr.InvalidArguments, err, "decode arguments into method parameter type")
	}
	return target.Elem(), nil
}

func buildCallArgs(ctx context.Context, fnType reflect.Type, argValue reflect.Value, surface Surface) ([]reflect.Value, error) {
	var callArgs []reflect.Value
	argConsumed := false
	for i := 0; i < fnType.NumIn(); i++ {
		paramType := fnType.In(i)
		switch {
		case paramType.String() == "context.Context":
			callArgs = append(callArgs, reflect.ValueOf(ctx))
		case paramType.Kind() == reflect.Interface:
			adapter := reflect.ValueOf(newSurfaceAdapter(ctx, surface))
			if !adapter.Type().Implements(paramType) {
				return nil, photonerr.Newf(photonerr.Internal, "method's invocation surface parameter does not match the expected photon.Context shape")
			}
			callArgs = append(callArgs, adapter)
		default:
			if argConsumed || !argValue.IsValid() {
				return nil, photonerr.Newf(photonerr.Internal, "method has more parameters than the analyzer resolved")
			}
			callArgs = append(callArgs, argValue)
			argConsumed = true
		}
	}
	return callArgs, nil
}

// interpretReturn expects the conventional (result, error) or (error)
// return shape; a method with any other shape is an analyzer/loader
// mismatch reported as an Internal error rather than a panic.
func interpretReturn(format catalog.OutputFormat, outs []reflect.Value) (CallResult, error) {
	if len(outs) == 0 {
		return CallResult{}, nil
	}
	last := outs[len(outs)-1]
	if !last.IsNil() {
		if asErr, ok := last.Interface().(error); ok {
			return CallResult{}, asErr
		}
	}
	if len(outs) == 1 {
		return CallResult{}, nil
	}
	return coerceResult(string(format), outs[0].Interface())
}

func (e *Engine) track(inv *Invocation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[inv.ID] = inv
}

func (e *Engine) untrack(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, id)
}

// Cancel requests cancellation of a pending invocation by id. It returns
// false if no such invocation is currently tracked (already completed or
// unknown id).
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	inv, ok := e.pending[id]
	e.mu.Unlock()
	if !ok {
		return false
	}
	inv.Cancel()
	return true
}

// CancelSession cancels every invocation belonging to sessionID, used on
// client disconnect per the Session Manager's cleanup contract.
func (e *Engine) CancelSession(sessionID string) int {
	e.mu.Lock()
	var matched []*Invocation
	for _, inv := range e.pending {
		if inv.SessionID == sessionID {
			matched = append(matched, inv)
		}
	}
	e.mu.Unlock()
	for _, inv := range matched {
		inv.Cancel()
	}
	return len(matched)
}

// timeNow is a seam so InvokeTool's timing fields stay mockable without
// pulling in a full clock interface; production always uses time.Now.
var timeNow = time.Now
