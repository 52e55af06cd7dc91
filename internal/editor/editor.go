// Package editor defines the narrow boundary to the host application's
// scene and document model. The transport layer never touches it; only the
// tool catalog does.
package editor

import "context"

// CubeSpec describes a cube element to place in the scene
type CubeSpec struct {
	Name     string     `json:"name,omitempty"`
	From     [3]float64 `json:"from"`
	To       [3]float64 `json:"to"`
	Rotation [3]float64 `json:"rotation,omitempty"`
}

// Element summarizes one scene element
type Element struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Kind string     `json:"kind"`
	From [3]float64 `json:"from"`
	To   [3]float64 `json:"to"`
}

// PixelEdit paints one pixel of a texture
type PixelEdit struct {
	TextureID string `json:"texture_id"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Color     string `json:"color"` // #rrggbb
}

// ViewInfo describes the current viewport
type ViewInfo struct {
	ProjectName string `json:"project_name"`
	Elements    int    `json:"elements"`
	Textures    int    `json:"textures"`
}

// Editor is the host editor's object model as seen by the tool catalog
type Editor interface {
	PlaceCube(ctx context.Context, spec CubeSpec) (Element, error)
	RemoveElement(ctx context.Context, id string) error
	ListElements(ctx context.Context) ([]Element, error)
	PaintPixel(ctx context.Context, edit PixelEdit) error
	RunScript(ctx context.Context, source string) (string, error)
	CaptureView(ctx context.Context) (ViewInfo, error)
}
