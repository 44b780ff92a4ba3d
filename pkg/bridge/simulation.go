package bridge

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cadbridge/cadbridge/pkg/host"
	"github.com/cadbridge/cadbridge/pkg/plugin/handlers"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

// simulator answers commands with canned data shaped like the plugin's
// replies. Everything is fixed except generated names: each bridge numbers
// its own sketches and extrude features, so repeated create_sketch calls
// without a name return Sketch1, Sketch2 and so on, and extrudes return
// Extrude1, Extrude2.
type simulator struct {
	sketches atomic.Int64
	features atomic.Int64
}

func (s *simulator) execute(name string, params map[string]any) (protocol.Response, error) {
	switch name {
	case protocol.CommandGetDesignInfo:
		return simulated(simulatedDesign()), nil
	case protocol.CommandGetComponentHierarchy:
		return simulated(map[string]any{
			"root_component":   simulatedTree(),
			"total_components": 2,
		}), nil
	case protocol.CommandGetSketches:
		return simulated(map[string]any{
			"sketches": []map[string]any{
				{"name": "Sketch1", "isVisible": true, "profiles": 1, "curves": 4},
				{"name": "Sketch2", "isVisible": true, "profiles": 0, "curves": 1},
			},
			"total_count": 2,
		}), nil
	case protocol.CommandGetFeatures:
		return simulated(map[string]any{
			"features": []map[string]any{
				{"name": "Extrude1", "type": "extrude", "isValid": true, "isVisible": true},
				{"name": "Extrude2", "type": "extrude", "isValid": true, "isVisible": true},
			},
			"total_count": 2,
		}), nil
	}

	target := handlers.Defaults(name)
	if target == nil {
		return protocol.Failure("Unknown command: %s", name), nil
	}
	if err := protocol.ParseParams(params, target); err != nil {
		return protocol.Failure("Invalid parameters: %v", err), nil
	}

	switch p := target.(type) {
	case *handlers.SketchParams:
		sketchName := p.Name
		if sketchName == "" {
			sketchName = fmt.Sprintf("Sketch%d", s.sketches.Add(1))
		}
		return simulated(map[string]any{
			"sketch_name": sketchName,
			"plane":       p.Plane,
		}), nil
	case *handlers.RectangleParams:
		return simulated(map[string]any{
			"sketch_name":       p.SketchName,
			"rectangle_created": true,
			"width":             p.Width,
			"height":            p.Height,
			"center":            pair(p.CenterX, p.CenterY),
		}), nil
	case *handlers.CircleParams:
		return simulated(map[string]any{
			"sketch_name":    p.SketchName,
			"circle_created": true,
			"radius":         p.Radius,
			"center":         pair(p.CenterX, p.CenterY),
		}), nil
	case *handlers.ExtrudeParams:
		return simulated(map[string]any{
			"sketch_name":     p.SketchName,
			"extrude_created": true,
			"distance":        p.Distance,
			"operation":       p.Operation,
			"feature_name":    fmt.Sprintf("Extrude%d", s.features.Add(1)),
		}), nil
	case *handlers.LineParams:
		return simulated(map[string]any{
			"sketch_name":  p.SketchName,
			"line_created": true,
			"start_point":  pair(p.StartX, p.StartY),
			"end_point":    pair(p.EndX, p.EndY),
			"length":       math.Hypot(p.EndX-p.StartX, p.EndY-p.StartY),
		}), nil
	case *handlers.ArcParams:
		return simulated(map[string]any{
			"sketch_name": p.SketchName,
			"arc_created": true,
			"center":      pair(p.CenterX, p.CenterY),
			"radius":      p.Radius,
			"start_angle": p.StartAngle,
			"end_angle":   p.EndAngle,
		}), nil
	case *handlers.PolygonParams:
		return simulated(map[string]any{
			"sketch_name":     p.SketchName,
			"polygon_created": true,
			"center":          pair(p.CenterX, p.CenterY),
			"radius":          p.Radius,
			"sides":           p.Sides,
			"lines_count":     p.Sides,
		}), nil
	default:
		return protocol.Failure("Unknown command: %s", name), nil
	}
}

func simulated(data map[string]any) protocol.Response {
	data["mode"] = string(ModeSimulation)
	return protocol.Success(data)
}

func pair(x, y float64) []float64 {
	return host.Point{X: x, Y: y}.Pair()
}

func simulatedDesign() map[string]any {
	return map[string]any{
		"design_name": "Simulated Design",
		"design_info": map[string]any{
			"name":            "Simulated Design",
			"rootComponent":   "Simulated Root Component",
			"component_count": 5,
			"features":        8,
			"sketches":        3,
			"bodies":          2,
			"materials":       1,
			"parameters":      10,
			"units":           "mm",
			"isParametric":    true,
		},
	}
}

func simulatedTree() map[string]any {
	return map[string]any{
		"name":      "Simulated Root Component",
		"level":     0,
		"isVisible": true,
		"bodies":    2,
		"sketches":  3,
		"features":  5,
		"children": []map[string]any{
			{
				"name":      "Child Component 1",
				"level":     1,
				"isVisible": true,
				"bodies":    1,
				"sketches":  1,
				"features":  2,
				"children":  []map[string]any{},
			},
		},
	}
}
