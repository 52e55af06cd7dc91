package rpc

import (
	"context"

	"github.com/VoxelHaus/voxbridge/internal/editor"
)

// Tool parameter types. Field descriptions feed the generated input schemas.

type placeCubeParams struct {
	Name     string     `json:"name,omitempty" description:"display name for the new cube"`
	From     [3]float64 `json:"from" description:"minimum corner [x, y, z]"`
	To       [3]float64 `json:"to" description:"maximum corner [x, y, z]"`
	Rotation [3]float64 `json:"rotation,omitempty" description:"rotation in degrees [x, y, z]"`
}

type removeElementParams struct {
	ID string `json:"id" description:"element identifier to remove"`
}

type paintPixelParams struct {
	TextureID string `json:"texture_id" description:"texture to edit"`
	X         int    `json:"x" description:"pixel column"`
	Y         int    `json:"y" description:"pixel row"`
	Color     string `json:"color" description:"hex color, #rrggbb"`
}

type runScriptParams struct {
	Source string `json:"source" description:"script to execute in the editor UI context"`
}

type emptyParams struct{}

// RegisterEditorTools registers the editor tool catalog: schema-validated
// thin wrappers around the host editor's object model.
func RegisterEditorTools(r *Registry, ed editor.Editor) {
	Register(r, ToolDef{
		Name:        "place_cube",
		Description: "Place a cube element in the current project",
	}, func(ctx context.Context, p placeCubeParams) (any, error) {
		return ed.PlaceCube(ctx, editor.CubeSpec{
			Name:     p.Name,
			From:     p.From,
			To:       p.To,
			Rotation: p.Rotation,
		})
	})

	Register(r, ToolDef{
		Name:        "remove_element",
		Description: "Remove a scene element by id",
	}, func(ctx context.Context, p removeElementParams) (any, error) {
		if err := ed.RemoveElement(ctx, p.ID); err != nil {
			return nil, err
		}
		return map[string]any{"removed": p.ID}, nil
	})

	Register(r, ToolDef{
		Name:        "list_elements",
		Description: "List all elements in the current project",
	}, func(ctx context.Context, _ emptyParams) (any, error) {
		return ed.ListElements(ctx)
	})

	Register(r, ToolDef{
		Name:        "paint_pixel",
		Description: "Paint a single texture pixel",
	}, func(ctx context.Context, p paintPixelParams) (any, error) {
		err := ed.PaintPixel(ctx, editor.PixelEdit{
			TextureID: p.TextureID,
			X:         p.X,
			Y:         p.Y,
			Color:     p.Color,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"painted": true}, nil
	})

	Register(r, ToolDef{
		Name:        "run_script",
		Description: "Run a script in the editor UI context",
	}, func(ctx context.Context, p runScriptParams) (any, error) {
		out, err := ed.RunScript(ctx, p.Source)
		if err != nil {
			return nil, err
		}
		return map[string]any{"output": out}, nil
	})

	Register(r, ToolDef{
		Name:        "capture_view",
		Description: "Summarize the current viewport and project",
	}, func(ctx context.Context, _ emptyParams) (any, error) {
		return ed.CaptureView(ctx)
	})
}
