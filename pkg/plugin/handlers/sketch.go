package handlers

import (
	"context"
	"strings"

	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

func (t *Table) createSketch(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultSketchParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	sketch, err := t.api.CreateSketch(ctx, host.Plane(p.Plane), strings.TrimSpace(p.Name))
	if err != nil {
		return hostFailure(err, p.Plane)
	}
	return protocol.Success(map[string]any{
		"sketch_name": sketch.Name,
		"plane":       p.Plane,
	}), nil
}

func (t *Table) createRectangle(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultRectangleParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	center := host.Point{X: p.CenterX, Y: p.CenterY}
	if err := t.api.AddRectangle(ctx, p.SketchName, center, p.Width, p.Height); err != nil {
		return hostFailure(err, p.SketchName)
	}
	return protocol.Success(map[string]any{
		"sketch_name":       p.SketchName,
		"rectangle_created": true,
		"width":             p.Width,
		"height":            p.Height,
		"center":            center.Pair(),
	}), nil
}

func (t *Table) createCircle(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultCircleParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	center := host.Point{X: p.CenterX, Y: p.CenterY}
	if err := t.api.AddCircle(ctx, p.SketchName, center, p.Radius); err != nil {
		return hostFailure(err, p.SketchName)
	}
	return protocol.Success(map[string]any{
		"sketch_name":    p.SketchName,
		"circle_created": true,
		"radius":         p.Radius,
		"center":         center.Pair(),
	}), nil
}

func (t *Table) drawLine(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultLineParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	start := host.Point{X: p.StartX, Y: p.StartY}
	end := host.Point{X: p.EndX, Y: p.EndY}
	length, err := t.api.AddLine(ctx, p.SketchName, start, end)
	if err != nil {
		return hostFailure(err, p.SketchName)
	}
	return protocol.Success(map[string]any{
		"sketch_name":  p.SketchName,
		"line_created": true,
		"start_point":  start.Pair(),
		"end_point":    end.Pair(),
		"length":       length,
	}), nil
}

func (t *Table) drawArc(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultArcParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	center := host.Point{X: p.CenterX, Y: p.CenterY}
	if err := t.api.AddArc(ctx, p.SketchName, center, p.Radius, p.StartAngle, p.EndAngle); err != nil {
		return hostFailure(err, p.SketchName)
	}
	return protocol.Success(map[string]any{
		"sketch_name": p.SketchName,
		"arc_created": true,
		"center":      center.Pair(),
		"radius":      p.Radius,
		"start_angle": p.StartAngle,
		"end_angle":   p.EndAngle,
	}), nil
}

func (t *Table) drawPolygon(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultPolygonParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	center := host.Point{X: p.CenterX, Y: p.CenterY}
	lines, err := t.api.AddPolygon(ctx, p.SketchName, center, p.Radius, p.Sides)
	if err != nil {
		return hostFailure(err, p.SketchName)
	}
	return protocol.Success(map[string]any{
		"sketch_name":     p.SketchName,
		"polygon_created": true,
		"center":          center.Pair(),
		"radius":          p.Radius,
		"sides":           p.Sides,
		"lines_count":     lines,
	}), nil
}

func (t *Table) createExtrude(ctx context.Context, params map[string]any) (protocol.Response, error) {
	p := DefaultExtrudeParams()
	if msg := t.bind(params, &p); msg != "" {
		return protocol.Failure(msg), nil
	}

	feature, err := t.api.Extrude(ctx, p.SketchName, p.Distance, host.FeatureOperation(p.Operation))
	if err != nil {
		return hostFailure(err, p.SketchName)
	}
	return protocol.Success(map[string]any{
		"sketch_name":     p.SketchName,
		"extrude_created": true,
		"distance":        p.Distance,
		"operation":       p.Operation,
		"feature_name":    feature.Name,
	}), nil
}
