package host

import (
	"context"
	"fmt"
	"math"
	"sync"
)

type sketchState struct {
	name     string
	plane    Plane
	curves   int
	profiles int
}

type componentState struct {
	name     string
	visible  bool
	bodies   int
	sketches []*sketchState
	features []Feature
	children []*componentState
}

// Workspace is an in-memory API implementation holding a single design.
// It is used by the plugin server when no real host is attached and by tests.
type Workspace struct {
	mu         sync.Mutex
	designName string
	active     bool
	units      string
	root       *componentState
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithDesignName sets the design's document name.
func WithDesignName(name string) WorkspaceOption {
	return func(w *Workspace) {
		w.designName = name
	}
}

// WithoutDesign starts the workspace with no active design.
func WithoutDesign() WorkspaceOption {
	return func(w *Workspace) {
		w.active = false
	}
}

// NewWorkspace creates a workspace with an empty active design.
func NewWorkspace(opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		designName: "Untitled Design",
		active:     true,
		units:      "mm",
		root:       &componentState{name: "Root Component", visible: true},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open makes a fresh design named name the active one.
func (w *Workspace) Open(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.designName = name
	w.active = true
	w.root = &componentState{name: "Root Component", visible: true}
}

// Close leaves the workspace without an active design.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.active = false
}

// AddComponent adds a child component under the component at path, where
// path is a list of child names starting below the root.
func (w *Workspace) AddComponent(name string, path ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return ErrNoActiveDesign
	}

	parent := w.root
	for _, p := range path {
		var next *componentState
		for _, c := range parent.children {
			if c.name == p {
				next = c
				break
			}
		}
		if next == nil {
			return fmt.Errorf("component %q not found", p)
		}
		parent = next
	}
	parent.children = append(parent.children, &componentState{name: name, visible: true})
	return nil
}

// DesignInfo implements API.
func (w *Workspace) DesignInfo(context.Context) (DesignInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return DesignInfo{}, ErrNoActiveDesign
	}
	return DesignInfo{
		Name:           w.designName,
		RootComponent:  w.root.name,
		ComponentCount: len(w.root.children),
		Features:       len(w.root.features),
		Sketches:       len(w.root.sketches),
		Bodies:         w.root.bodies,
		Units:          w.units,
		Parametric:     true,
	}, nil
}

// ComponentTree implements API.
func (w *Workspace) ComponentTree(context.Context) (Component, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return Component{}, ErrNoActiveDesign
	}
	return buildTree(w.root, 0), nil
}

func buildTree(c *componentState, level int) Component {
	node := Component{
		Name:     c.name,
		Level:    level,
		Visible:  c.visible,
		Bodies:   c.bodies,
		Sketches: len(c.sketches),
		Features: len(c.features),
		Children: []Component{},
	}
	for _, child := range c.children {
		node.Children = append(node.Children, buildTree(child, level+1))
	}
	return node
}

// CreateSketch implements API. An empty name gets the next default name.
func (w *Workspace) CreateSketch(_ context.Context, plane Plane, name string) (Sketch, error) {
	if err := plane.Validate(); err != nil {
		return Sketch{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return Sketch{}, ErrNoActiveDesign
	}
	if name == "" {
		name = fmt.Sprintf("Sketch%d", len(w.root.sketches)+1)
	}
	s := &sketchState{name: name, plane: plane}
	w.root.sketches = append(w.root.sketches, s)
	return s.describe(), nil
}

func (s *sketchState) describe() Sketch {
	return Sketch{Name: s.name, Plane: s.plane, Visible: true, Profiles: s.profiles, Curves: s.curves}
}

// sketch must be called with w.mu held.
func (w *Workspace) sketch(name string) (*sketchState, error) {
	if !w.active {
		return nil, ErrNoActiveDesign
	}
	for _, s := range w.root.sketches {
		if s.name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSketchNotFound, name)
}

func (w *Workspace) addCurves(name string, curves, profiles int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sketch(name)
	if err != nil {
		return err
	}
	s.curves += curves
	s.profiles += profiles
	return nil
}

// AddRectangle implements API.
func (w *Workspace) AddRectangle(_ context.Context, sketch string, _ Point, width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid rectangle size %gx%g", width, height)
	}
	return w.addCurves(sketch, 4, 1)
}

// AddCircle implements API.
func (w *Workspace) AddCircle(_ context.Context, sketch string, _ Point, radius float64) error {
	if radius <= 0 {
		return fmt.Errorf("invalid circle radius %g", radius)
	}
	return w.addCurves(sketch, 1, 1)
}

// AddLine implements API.
func (w *Workspace) AddLine(_ context.Context, sketch string, start, end Point) (float64, error) {
	if err := w.addCurves(sketch, 1, 0); err != nil {
		return 0, err
	}
	return math.Hypot(end.X-start.X, end.Y-start.Y), nil
}

// AddArc implements API.
func (w *Workspace) AddArc(_ context.Context, sketch string, _ Point, radius, _, _ float64) error {
	if radius <= 0 {
		return fmt.Errorf("invalid arc radius %g", radius)
	}
	return w.addCurves(sketch, 1, 0)
}

// AddPolygon implements API.
func (w *Workspace) AddPolygon(_ context.Context, sketch string, _ Point, radius float64, sides int) (int, error) {
	if sides < 3 {
		return 0, fmt.Errorf("invalid polygon: %d sides", sides)
	}
	if radius <= 0 {
		return 0, fmt.Errorf("invalid polygon radius %g", radius)
	}
	if err := w.addCurves(sketch, sides, 1); err != nil {
		return 0, err
	}
	return sides, nil
}

// Extrude implements API. It consumes the first profile of the sketch.
func (w *Workspace) Extrude(_ context.Context, sketch string, distance float64, op FeatureOperation) (Feature, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, err := w.sketch(sketch)
	if err != nil {
		return Feature{}, err
	}
	if s.profiles == 0 {
		return Feature{}, ErrNoProfiles
	}
	if distance <= 0 {
		return Feature{}, fmt.Errorf("invalid extrude distance %g", distance)
	}

	f := Feature{
		Name:    fmt.Sprintf("Extrude%d", len(w.root.features)+1),
		Type:    "extrude",
		Valid:   true,
		Visible: true,
	}
	w.root.features = append(w.root.features, f)
	if op == OperationNew || op == "" {
		w.root.bodies++
	}
	return f, nil
}

// Sketches implements API.
func (w *Workspace) Sketches(context.Context) ([]Sketch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return nil, ErrNoActiveDesign
	}
	out := make([]Sketch, 0, len(w.root.sketches))
	for _, s := range w.root.sketches {
		out = append(out, s.describe())
	}
	return out, nil
}

// Features implements API.
func (w *Workspace) Features(context.Context) ([]Feature, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return nil, ErrNoActiveDesign
	}
	out := make([]Feature, len(w.root.features))
	copy(out, w.root.features)
	return out, nil
}
