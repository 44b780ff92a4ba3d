package bridge

import (
	"context"
	"encoding/json"

	"github.com/cadbridge/cadbridge/pkg/plugin/handlers"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

// GetDesignInfo returns a summary of the active design.
func (b *Bridge) GetDesignInfo(ctx context.Context) Result {
	return b.Execute(ctx, protocol.CommandGetDesignInfo, nil)
}

// GetComponentHierarchy returns the component tree of the active design.
func (b *Bridge) GetComponentHierarchy(ctx context.Context) Result {
	return b.Execute(ctx, protocol.CommandGetComponentHierarchy, nil)
}

// GetSketches lists the sketches of the root component.
func (b *Bridge) GetSketches(ctx context.Context) Result {
	return b.Execute(ctx, protocol.CommandGetSketches, nil)
}

// GetFeatures lists the timeline features of the root component.
func (b *Bridge) GetFeatures(ctx context.Context) Result {
	return b.Execute(ctx, protocol.CommandGetFeatures, nil)
}

func (b *Bridge) CreateSketch(ctx context.Context, p handlers.SketchParams) Result {
	return b.Execute(ctx, protocol.CommandCreateSketch, paramMap(p))
}

func (b *Bridge) CreateRectangle(ctx context.Context, p handlers.RectangleParams) Result {
	return b.Execute(ctx, protocol.CommandCreateRectangle, paramMap(p))
}

func (b *Bridge) CreateCircle(ctx context.Context, p handlers.CircleParams) Result {
	return b.Execute(ctx, protocol.CommandCreateCircle, paramMap(p))
}

func (b *Bridge) CreateExtrude(ctx context.Context, p handlers.ExtrudeParams) Result {
	return b.Execute(ctx, protocol.CommandCreateExtrude, paramMap(p))
}

func (b *Bridge) DrawLine(ctx context.Context, p handlers.LineParams) Result {
	return b.Execute(ctx, protocol.CommandDrawLine, paramMap(p))
}

func (b *Bridge) DrawArc(ctx context.Context, p handlers.ArcParams) Result {
	return b.Execute(ctx, protocol.CommandDrawArc, paramMap(p))
}

func (b *Bridge) DrawPolygon(ctx context.Context, p handlers.PolygonParams) Result {
	return b.Execute(ctx, protocol.CommandDrawPolygon, paramMap(p))
}

// paramMap converts a parameter struct to the bag sent on the wire.
func paramMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}
