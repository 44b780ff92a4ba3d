package host

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestWorkspaceSketchLifecycle(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace(WithDesignName("Bracket"))

	s, err := w.CreateSketch(ctx, PlaneXY, "")
	if err != nil {
		t.Fatalf("CreateSketch() error = %v", err)
	}
	if s.Name != "Sketch1" {
		t.Errorf("default sketch name = %q, want Sketch1", s.Name)
	}

	if _, err := w.Extrude(ctx, "Sketch1", 10, OperationNew); !errors.Is(err, ErrNoProfiles) {
		t.Fatalf("Extrude() on empty sketch error = %v, want ErrNoProfiles", err)
	}

	if err := w.AddRectangle(ctx, "Sketch1", Point{}, 20, 10); err != nil {
		t.Fatalf("AddRectangle() error = %v", err)
	}
	length, err := w.AddLine(ctx, "Sketch1", Point{0, 0}, Point{3, 4})
	if err != nil {
		t.Fatalf("AddLine() error = %v", err)
	}
	if math.Abs(length-5) > 1e-9 {
		t.Errorf("AddLine() length = %v, want 5", length)
	}

	f, err := w.Extrude(ctx, "Sketch1", 10, OperationNew)
	if err != nil {
		t.Fatalf("Extrude() error = %v", err)
	}
	if f.Name != "Extrude1" || f.Type != "extrude" {
		t.Errorf("Extrude() = %+v", f)
	}

	info, err := w.DesignInfo(ctx)
	if err != nil {
		t.Fatalf("DesignInfo() error = %v", err)
	}
	if info.Name != "Bracket" || info.Sketches != 1 || info.Features != 1 || info.Bodies != 1 {
		t.Errorf("DesignInfo() = %+v", info)
	}

	sketches, _ := w.Sketches(ctx)
	if len(sketches) != 1 || sketches[0].Curves != 5 || sketches[0].Profiles != 1 {
		t.Errorf("Sketches() = %+v", sketches)
	}
}

func TestWorkspaceErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func(w *Workspace) error
		wantErr error
	}{
		{
			name: "unsupported plane",
			call: func(w *Workspace) error {
				_, err := w.CreateSketch(ctx, Plane("AB"), "")
				return err
			},
			wantErr: ErrUnsupportedPlane,
		},
		{
			name: "missing sketch",
			call: func(w *Workspace) error {
				return w.AddCircle(ctx, "nope", Point{}, 5)
			},
			wantErr: ErrSketchNotFound,
		},
		{
			name: "closed design",
			call: func(w *Workspace) error {
				w.Close()
				_, err := w.DesignInfo(ctx)
				return err
			},
			wantErr: ErrNoActiveDesign,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(NewWorkspace()); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorkspaceComponentTree(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace()
	if err := w.AddComponent("Arm"); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	if err := w.AddComponent("Bolt", "Arm"); err != nil {
		t.Fatalf("AddComponent() error = %v", err)
	}
	if err := w.AddComponent("Nut", "Missing"); err == nil {
		t.Error("AddComponent() under missing parent error = nil")
	}

	tree, err := w.ComponentTree(ctx)
	if err != nil {
		t.Fatalf("ComponentTree() error = %v", err)
	}
	if len(tree.Children) != 1 || tree.Children[0].Name != "Arm" {
		t.Fatalf("ComponentTree() children = %+v", tree.Children)
	}
	bolt := tree.Children[0].Children[0]
	if bolt.Name != "Bolt" || bolt.Level != 2 {
		t.Errorf("nested component = %+v", bolt)
	}
}

func TestWorkspaceWithoutDesign(t *testing.T) {
	w := NewWorkspace(WithoutDesign())
	if _, err := w.Features(context.Background()); !errors.Is(err, ErrNoActiveDesign) {
		t.Errorf("Features() error = %v, want ErrNoActiveDesign", err)
	}
	w.Open("Fresh")
	info, err := w.DesignInfo(context.Background())
	if err != nil || info.Name != "Fresh" {
		t.Errorf("DesignInfo() after Open = %+v, %v", info, err)
	}
}
