package handlers

import "github.com/cadbridge/cadbridge/pkg/plugin/protocol"

// Parameter structs carry their defaults; ParseParams only overwrites the
// fields a request names.

// SketchParams are the parameters of create_sketch.
type SketchParams struct {
	Plane string `json:"plane" validate:"oneof=XY XZ YZ"`
	Name  string `json:"name"`
}

// RectangleParams are the parameters of create_rectangle.
type RectangleParams struct {
	SketchName string  `json:"sketch_name" validate:"required"`
	Width      float64 `json:"width" validate:"gte=0.001,lte=10000"`
	Height     float64 `json:"height" validate:"gte=0.001,lte=10000"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
}

// CircleParams are the parameters of create_circle.
type CircleParams struct {
	SketchName string  `json:"sketch_name" validate:"required"`
	Radius     float64 `json:"radius" validate:"gte=0.001,lte=5000"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
}

// ExtrudeParams are the parameters of create_extrude.
type ExtrudeParams struct {
	SketchName string  `json:"sketch_name" validate:"required"`
	Distance   float64 `json:"distance" validate:"gte=0.001,lte=10000"`
	Operation  string  `json:"operation" validate:"oneof=new join cut intersect"`
}

// LineParams are the parameters of draw_line.
type LineParams struct {
	SketchName string  `json:"sketch_name" validate:"required"`
	StartX     float64 `json:"start_x"`
	StartY     float64 `json:"start_y"`
	EndX       float64 `json:"end_x"`
	EndY       float64 `json:"end_y"`
}

// ArcParams are the parameters of draw_arc. Angles are in radians.
type ArcParams struct {
	SketchName string  `json:"sketch_name" validate:"required"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Radius     float64 `json:"radius" validate:"gte=0.001,lte=5000"`
	StartAngle float64 `json:"start_angle" validate:"gte=-360,lte=360"`
	EndAngle   float64 `json:"end_angle" validate:"gte=-360,lte=360"`
}

// PolygonParams are the parameters of draw_polygon.
type PolygonParams struct {
	SketchName string  `json:"sketch_name" validate:"required"`
	CenterX    float64 `json:"center_x"`
	CenterY    float64 `json:"center_y"`
	Radius     float64 `json:"radius" validate:"gte=0.001,lte=5000"`
	Sides      int     `json:"sides" validate:"gte=3"`
}

// DefaultSketchParams returns sketch parameters filled with their defaults.
func DefaultSketchParams() SketchParams {
	return SketchParams{Plane: "XY"}
}

// DefaultRectangleParams returns rectangle parameters filled with their defaults.
func DefaultRectangleParams() RectangleParams {
	return RectangleParams{Width: 10, Height: 10}
}

// DefaultCircleParams returns circle parameters filled with their defaults.
func DefaultCircleParams() CircleParams {
	return CircleParams{Radius: 5}
}

// DefaultExtrudeParams returns extrude parameters filled with their defaults.
func DefaultExtrudeParams() ExtrudeParams {
	return ExtrudeParams{Distance: 10, Operation: "new"}
}

// DefaultLineParams returns line parameters filled with their defaults.
func DefaultLineParams() LineParams {
	return LineParams{EndX: 10, EndY: 10}
}

// DefaultArcParams returns arc parameters filled with their defaults.
func DefaultArcParams() ArcParams {
	return ArcParams{Radius: 5, EndAngle: 1.57}
}

// DefaultPolygonParams returns polygon parameters filled with their defaults.
func DefaultPolygonParams() PolygonParams {
	return PolygonParams{Radius: 5, Sides: 6}
}

// Defaults returns a pointer to the parameter struct of command filled with
// its defaults. Commands without parameters return nil.
func Defaults(command string) any {
	switch command {
	case protocol.CommandCreateSketch:
		p := DefaultSketchParams()
		return &p
	case protocol.CommandCreateRectangle:
		p := DefaultRectangleParams()
		return &p
	case protocol.CommandCreateCircle:
		p := DefaultCircleParams()
		return &p
	case protocol.CommandCreateExtrude:
		p := DefaultExtrudeParams()
		return &p
	case protocol.CommandDrawLine:
		p := DefaultLineParams()
		return &p
	case protocol.CommandDrawArc:
		p := DefaultArcParams()
		return &p
	case protocol.CommandDrawPolygon:
		p := DefaultPolygonParams()
		return &p
	default:
		return nil
	}
}
