package handlers

import (
	"context"

	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

func (t *Table) getDesignInfo(ctx context.Context, _ map[string]any) (protocol.Response, error) {
	info, err := t.api.DesignInfo(ctx)
	if err != nil {
		return hostFailure(err, "")
	}
	return protocol.Success(map[string]any{
		"design_name": info.Name,
		"design_info": map[string]any{
			"name":            info.Name,
			"rootComponent":   info.RootComponent,
			"component_count": info.ComponentCount,
			"features":        info.Features,
			"sketches":        info.Sketches,
			"bodies":          info.Bodies,
			"materials":       info.Materials,
			"parameters":      info.Parameters,
			"units":           info.Units,
			"isParametric":    info.Parametric,
		},
	}), nil
}

func (t *Table) getComponentHierarchy(ctx context.Context, _ map[string]any) (protocol.Response, error) {
	root, err := t.api.ComponentTree(ctx)
	if err != nil {
		return hostFailure(err, "")
	}
	return protocol.Success(map[string]any{
		"root_component":   componentMap(root),
		"total_components": countComponents(root),
	}), nil
}

// countComponents counts c and all of its descendants.
func countComponents(c host.Component) int {
	n := 1
	for _, child := range c.Children {
		n += countComponents(child)
	}
	return n
}

func componentMap(c host.Component) map[string]any {
	children := make([]any, 0, len(c.Children))
	for _, child := range c.Children {
		children = append(children, componentMap(child))
	}
	return map[string]any{
		"name":      c.Name,
		"level":     c.Level,
		"isVisible": c.Visible,
		"bodies":    c.Bodies,
		"sketches":  c.Sketches,
		"features":  c.Features,
		"children":  children,
	}
}

func (t *Table) getSketches(ctx context.Context, _ map[string]any) (protocol.Response, error) {
	sketches, err := t.api.Sketches(ctx)
	if err != nil {
		return hostFailure(err, "")
	}
	list := make([]any, 0, len(sketches))
	for _, s := range sketches {
		list = append(list, map[string]any{
			"name":      s.Name,
			"isVisible": s.Visible,
			"profiles":  s.Profiles,
			"curves":    s.Curves,
		})
	}
	return protocol.Success(map[string]any{
		"sketches":    list,
		"total_count": len(list),
	}), nil
}

func (t *Table) getFeatures(ctx context.Context, _ map[string]any) (protocol.Response, error) {
	features, err := t.api.Features(ctx)
	if err != nil {
		return hostFailure(err, "")
	}
	list := make([]any, 0, len(features))
	for _, f := range features {
		list = append(list, map[string]any{
			"name":      f.Name,
			"type":      f.Type,
			"isValid":   f.Valid,
			"isVisible": f.Visible,
		})
	}
	return protocol.Success(map[string]any{
		"features":    list,
		"total_count": len(list),
	}), nil
}
