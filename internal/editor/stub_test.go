package editor

import (
	"context"
	"testing"
)

func TestPlaceCubeAndList(t *testing.T) {
	s := NewStub("test")
	ctx := context.Background()

	el, err := s.PlaceCube(ctx, CubeSpec{Name: "head", From: [3]float64{0, 0, 0}, To: [3]float64{8, 8, 8}})
	if err != nil {
		t.Fatalf("PlaceCube() error = %v", err)
	}
	if el.ID == "" {
		t.Error("element has no id")
	}
	if el.Kind != "cube" {
		t.Errorf("Kind = %q, want cube", el.Kind)
	}

	list, err := s.ListElements(ctx)
	if err != nil {
		t.Fatalf("ListElements() error = %v", err)
	}
	if len(list) != 1 || list[0].Name != "head" {
		t.Errorf("ListElements() = %+v", list)
	}
}

func TestPlaceCubeValidation(t *testing.T) {
	s := NewStub("test")
	_, err := s.PlaceCube(context.Background(), CubeSpec{From: [3]float64{8, 0, 0}, To: [3]float64{0, 8, 8}})
	if err == nil {
		t.Error("PlaceCube() accepted from > to")
	}
}

func TestPlaceCubeDefaultName(t *testing.T) {
	s := NewStub("test")
	el, err := s.PlaceCube(context.Background(), CubeSpec{To: [3]float64{1, 1, 1}})
	if err != nil {
		t.Fatalf("PlaceCube() error = %v", err)
	}
	if el.Name == "" {
		t.Error("unnamed cube got no default name")
	}
}

func TestRemoveElement(t *testing.T) {
	s := NewStub("test")
	ctx := context.Background()

	el, _ := s.PlaceCube(ctx, CubeSpec{To: [3]float64{1, 1, 1}})
	if err := s.RemoveElement(ctx, el.ID); err != nil {
		t.Fatalf("RemoveElement() error = %v", err)
	}
	if err := s.RemoveElement(ctx, el.ID); err == nil {
		t.Error("RemoveElement() succeeded for absent id")
	}
	if err := s.RemoveElement(ctx, "not-a-uuid"); err == nil {
		t.Error("RemoveElement() accepted a malformed id")
	}
}

func TestPaintPixelValidation(t *testing.T) {
	s := NewStub("test")
	ctx := context.Background()

	tests := []struct {
		name    string
		edit    PixelEdit
		wantErr bool
	}{
		{"valid", PixelEdit{TextureID: "skin", X: 4, Y: 4, Color: "#ff00aa"}, false},
		{"missing texture", PixelEdit{X: 0, Y: 0, Color: "#ffffff"}, true},
		{"negative coord", PixelEdit{TextureID: "skin", X: -1, Y: 0, Color: "#ffffff"}, true},
		{"bad color", PixelEdit{TextureID: "skin", X: 0, Y: 0, Color: "red"}, true},
		{"short hex", PixelEdit{TextureID: "skin", X: 0, Y: 0, Color: "#fff"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.PaintPixel(ctx, tt.edit)
			if (err != nil) != tt.wantErr {
				t.Errorf("PaintPixel() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunScript(t *testing.T) {
	s := NewStub("test")
	ctx := context.Background()

	if _, err := s.RunScript(ctx, ""); err == nil {
		t.Error("RunScript() accepted empty source")
	}
	out, err := s.RunScript(ctx, "Blockbench.showQuickMessage('hi')")
	if err != nil {
		t.Fatalf("RunScript() error = %v", err)
	}
	if out == "" {
		t.Error("RunScript() returned empty output")
	}
}

func TestCaptureView(t *testing.T) {
	s := NewStub("chair")
	ctx := context.Background()

	_, _ = s.PlaceCube(ctx, CubeSpec{To: [3]float64{1, 1, 1}})
	_ = s.PaintPixel(ctx, PixelEdit{TextureID: "wood", X: 0, Y: 0, Color: "#885522"})
	_ = s.PaintPixel(ctx, PixelEdit{TextureID: "wood", X: 1, Y: 0, Color: "#885522"})

	view, err := s.CaptureView(ctx)
	if err != nil {
		t.Fatalf("CaptureView() error = %v", err)
	}
	if view.ProjectName != "chair" {
		t.Errorf("ProjectName = %q", view.ProjectName)
	}
	if view.Elements != 1 {
		t.Errorf("Elements = %d, want 1", view.Elements)
	}
	if view.Textures != 1 {
		t.Errorf("Textures = %d, want 1", view.Textures)
	}
}
