// Package host defines the modeling surface of the CAD application, an
// in-memory reference implementation of it, and an executor that serializes
// calls onto a single goroutine.
package host

import (
	"context"
	"errors"
	"fmt"
)

// Plane is a construction plane a sketch can be placed on.
type Plane string

const (
	PlaneXY Plane = "XY"
	PlaneXZ Plane = "XZ"
	PlaneYZ Plane = "YZ"
)

// Validate checks the plane is supported.
func (p Plane) Validate() error {
	switch p {
	case PlaneXY, PlaneXZ, PlaneYZ:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPlane, string(p))
	}
}

// FeatureOperation is how an extrusion combines with existing bodies.
type FeatureOperation string

const (
	OperationNew       FeatureOperation = "new"
	OperationJoin      FeatureOperation = "join"
	OperationCut       FeatureOperation = "cut"
	OperationIntersect FeatureOperation = "intersect"
)

// Errors reported by API implementations.
var (
	ErrNoActiveDesign   = errors.New("no active product")
	ErrSketchNotFound   = errors.New("sketch not found")
	ErrNoProfiles       = errors.New("no extrudable profiles in sketch")
	ErrUnsupportedPlane = errors.New("unsupported plane")
	ErrHostUnavailable  = errors.New("host API not available in this process")
)

// Point is a 2D sketch coordinate in millimetres.
type Point struct {
	X float64
	Y float64
}

// Pair returns the point as [x, y].
func (p Point) Pair() []float64 {
	return []float64{p.X, p.Y}
}

// DesignInfo summarizes the active design.
type DesignInfo struct {
	Name           string `json:"name"`
	RootComponent  string `json:"rootComponent"`
	ComponentCount int    `json:"component_count"`
	Features       int    `json:"features"`
	Sketches       int    `json:"sketches"`
	Bodies         int    `json:"bodies"`
	Materials      int    `json:"materials"`
	Parameters     int    `json:"parameters"`
	Units          string `json:"units"`
	Parametric     bool   `json:"isParametric"`
}

// Component is one node of the component tree.
type Component struct {
	Name     string      `json:"name"`
	Level    int         `json:"level"`
	Visible  bool        `json:"isVisible"`
	Bodies   int         `json:"bodies"`
	Sketches int         `json:"sketches"`
	Features int         `json:"features"`
	Children []Component `json:"children"`
}

// Sketch describes a sketch in the root component.
type Sketch struct {
	Name     string `json:"name"`
	Plane    Plane  `json:"-"`
	Visible  bool   `json:"isVisible"`
	Profiles int    `json:"profiles"`
	Curves   int    `json:"curves"`
}

// Feature describes a modeling feature in the root component.
type Feature struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Valid   bool   `json:"isValid"`
	Visible bool   `json:"isVisible"`
}

// API is the modeling surface of a host. Implementations are not required to
// be safe for concurrent use; callers serialize through an Executor.
type API interface {
	DesignInfo(ctx context.Context) (DesignInfo, error)
	ComponentTree(ctx context.Context) (Component, error)
	CreateSketch(ctx context.Context, plane Plane, name string) (Sketch, error)
	AddRectangle(ctx context.Context, sketch string, center Point, width, height float64) error
	AddCircle(ctx context.Context, sketch string, center Point, radius float64) error
	// AddLine returns the length of the new line.
	AddLine(ctx context.Context, sketch string, start, end Point) (float64, error)
	AddArc(ctx context.Context, sketch string, center Point, radius, startAngle, endAngle float64) error
	// AddPolygon returns the number of edges drawn.
	AddPolygon(ctx context.Context, sketch string, center Point, radius float64, sides int) (int, error)
	Extrude(ctx context.Context, sketch string, distance float64, op FeatureOperation) (Feature, error)
	Sketches(ctx context.Context) ([]Sketch, error)
	Features(ctx context.Context) ([]Feature, error)
}

// Locator returns an in-process API handle, or ErrHostUnavailable when the
// current process is not running inside a host.
type Locator func(ctx context.Context) (API, error)

// Unavailable is the Locator for processes outside any host.
func Unavailable(context.Context) (API, error) {
	return nil, ErrHostUnavailable
}

// Static returns a Locator that always yields api.
func Static(api API) Locator {
	return func(context.Context) (API, error) {
		return api, nil
	}
}
