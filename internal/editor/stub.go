package editor

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/google/uuid"

	"github.com/VoxelHaus/voxbridge/internal/validation"
)

var colorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Stub is an in-memory Editor used by the dev harness and tests. It applies
// the same validation a real host binding would, so tool behavior matches.
type Stub struct {
	mu       sync.Mutex
	project  string
	elements map[string]Element
	pixels   map[string]string // "texture/x/y" -> color
	scripts  []string
}

// NewStub creates an empty stub editor
func NewStub(projectName string) *Stub {
	return &Stub{
		project:  projectName,
		elements: make(map[string]Element),
		pixels:   make(map[string]string),
	}
}

func (s *Stub) PlaceCube(_ context.Context, spec CubeSpec) (Element, error) {
	for i := 0; i < 3; i++ {
		if spec.From[i] > spec.To[i] {
			return Element{}, fmt.Errorf("cube 'from' exceeds 'to' on axis %d", i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el := Element{
		ID:   uuid.New().String(),
		Name: spec.Name,
		Kind: "cube",
		From: spec.From,
		To:   spec.To,
	}
	if el.Name == "" {
		el.Name = fmt.Sprintf("cube_%d", len(s.elements)+1)
	}
	s.elements[el.ID] = el
	return el, nil
}

func (s *Stub) RemoveElement(_ context.Context, id string) error {
	if err := validation.ValidateUUID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.elements[id]; !ok {
		return fmt.Errorf("element %s not found", id)
	}
	delete(s.elements, id)
	return nil
}

func (s *Stub) ListElements(_ context.Context) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]Element, 0, len(s.elements))
	for _, el := range s.elements {
		list = append(list, el)
	}
	return list, nil
}

func (s *Stub) PaintPixel(_ context.Context, edit PixelEdit) error {
	if edit.TextureID == "" {
		return fmt.Errorf("texture_id is required")
	}
	if edit.X < 0 || edit.Y < 0 {
		return fmt.Errorf("pixel coordinates cannot be negative")
	}
	if !colorRegex.MatchString(edit.Color) {
		return fmt.Errorf("invalid color %q, expected #rrggbb", edit.Color)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pixels[fmt.Sprintf("%s/%d/%d", edit.TextureID, edit.X, edit.Y)] = edit.Color
	return nil
}

func (s *Stub) RunScript(_ context.Context, source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("script source is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, source)
	return fmt.Sprintf("script #%d executed", len(s.scripts)), nil
}

func (s *Stub) CaptureView(_ context.Context) (ViewInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	textures := make(map[string]bool)
	for key := range s.pixels {
		for i := 0; i < len(key); i++ {
			if key[i] == '/' {
				textures[key[:i]] = true
				break
			}
		}
	}

	return ViewInfo{
		ProjectName: s.project,
		Elements:    len(s.elements),
		Textures:    len(textures),
	}, nil
}
