package invocation

import (
	"context"

	"github.com/photon-run/photon/internal/photonerr"
)

// surfaceAdapter is dispatched as a method's "photon.Context"-shaped
// parameter: a value whose method set structurally satisfies the interface
// the photon's own vendored photon package declares, even though that
// package is compiled fresh into every photon's isolated build and shares
// no type identity with this one. reflect.Value.Call only requires the
// method set to line up, so this works across the plugin boundary as long
// as every parameter/return type bottoms out in a stdlib or builtin type.
type surfaceAdapter struct {
	ctx context.Context
	s   Surface
}

// newSurfaceAdapter binds surface to the invocation's context so a method's
// calls to Progress/Log/Elicit/Publish carry it without the method needing
// to pass ctx itself. A nil surface degrades to noopSurface.
func newSurfaceAdapter(ctx context.Context, surface Surface) *surfaceAdapter {
	if surface == nil {
		surface = noopSurface{}
	}
	return &surfaceAdapter{ctx: ctx, s: surface}
}

func (a *surfaceAdapter) Progress(current, total float64, message string) {
	a.s.Progress(a.ctx, Progress{Current: current, Total: total, Message: message})
}

func (a *surfaceAdapter) Log(level, message string) {
	a.s.Log(a.ctx, LogLevel(level), message)
}

func (a *surfaceAdapter) Elicit(message string, schema map[string]any) (map[string]any, error) {
	resp, err := a.s.Elicit(a.ctx, ElicitRequest{Message: message, Schema: schema})
	if err != nil {
		return nil, err
	}
	return resp.Content, nil
}

func (a *surfaceAdapter) Publish(channel, event string, payload any) {
	a.s.Publish(a.ctx, channel, event, payload)
}

func (a *surfaceAdapter) Cancelled() bool {
	return a.ctx.Err() != nil
}

// noopSurface is the Surface a method runs against when no real transport
// session backs the call (a tools/call Request with no Surface set, or a
// prompt/resource read, which spec section 4.D scopes the side channel to
// tools only).
type noopSurface struct{}

func (noopSurface) Progress(context.Context, Progress)          {}
func (noopSurface) Log(context.Context, LogLevel, string)       {}
func (noopSurface) Publish(context.Context, string, string, any) {}

func (noopSurface) Elicit(context.Context, ElicitRequest) (ElicitResponse, error) {
	return ElicitResponse{}, photonerr.New(photonerr.ElicitationNotSupported, "no connected client to elicit from")
}
