// Package registry holds the spatial registry: fixed floor-plan rectangles keyed
// by floor label and room label. The table is authored data. It is loaded once at
// start and never mutated afterwards; geometry changes ship as a new file.
package registry

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Rect struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

func (r Rect) overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

type Canvas struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

type document struct {
	Canvas Canvas          `yaml:"canvas"`
	Floors []floorDocument `yaml:"floors"`
}

type floorDocument struct {
	Label string         `yaml:"label"`
	Rooms []roomDocument `yaml:"rooms"`
}

type roomDocument struct {
	Label string `yaml:"label"`
	Rect  `yaml:",inline"`
}

// Registry is immutable after construction.
type Registry struct {
	canvas Canvas
	order  []string
	floors map[string]map[string]Rect
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultYAML))
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry %q: %w", path, err)
	}
	defer f.Close()

	reg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load registry %q: %w", path, err)
	}
	return reg, nil
}

func Load(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("registry document is empty")
		}
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return build(doc)
}

func build(doc document) (*Registry, error) {
	if doc.Canvas.Width <= 0 || doc.Canvas.Height <= 0 {
		return nil, fmt.Errorf("canvas must have a positive size, got %vx%v", doc.Canvas.Width, doc.Canvas.Height)
	}

	reg := &Registry{
		canvas: doc.Canvas,
		order:  make([]string, 0, len(doc.Floors)),
		floors: make(map[string]map[string]Rect, len(doc.Floors)),
	}

	for _, fd := range doc.Floors {
		floor := normalizeLabel(fd.Label)
		if floor == "" {
			return nil, errors.New("floor label must not be empty")
		}
		if _, exists := reg.floors[floor]; exists {
			return nil, fmt.Errorf("floor %q declared twice", floor)
		}

		rooms := make(map[string]Rect, len(fd.Rooms))
		placed := make([]roomDocument, 0, len(fd.Rooms))
		for _, rd := range fd.Rooms {
			room := normalizeLabel(rd.Label)
			if room == "" {
				return nil, fmt.Errorf("floor %q: room label must not be empty", floor)
			}
			if _, exists := rooms[room]; exists {
				return nil, fmt.Errorf("floor %q: room %q declared twice", floor, room)
			}
			if rd.Width <= 0 || rd.Height <= 0 {
				return nil, fmt.Errorf("floor %q room %q: rectangle must have a positive size", floor, room)
			}
			if rd.X < 0 || rd.Y < 0 || rd.X+rd.Width > doc.Canvas.Width || rd.Y+rd.Height > doc.Canvas.Height {
				return nil, fmt.Errorf("floor %q room %q: rectangle outside %vx%v canvas", floor, room, doc.Canvas.Width, doc.Canvas.Height)
			}
			for _, other := range placed {
				if rd.Rect.overlaps(other.Rect) {
					return nil, fmt.Errorf("floor %q: rooms %q and %q overlap", floor, room, normalizeLabel(other.Label))
				}
			}
			placed = append(placed, rd)
			rooms[room] = rd.Rect
		}

		reg.order = append(reg.order, floor)
		reg.floors[floor] = rooms
	}

	return reg, nil
}

func normalizeLabel(s string) string {
	return strings.TrimSpace(s)
}

// Lookup returns the rectangle for a room on a floor.
func (r *Registry) Lookup(floorLabel, roomLabel string) (Rect, bool) {
	if r == nil {
		return Rect{}, false
	}
	rooms, ok := r.floors[normalizeLabel(floorLabel)]
	if !ok {
		return Rect{}, false
	}
	rect, ok := rooms[normalizeLabel(roomLabel)]
	return rect, ok
}

// Floors returns the floor labels in declaration order.
func (r *Registry) Floors() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

func (r *Registry) HasFloor(label string) bool {
	if r == nil {
		return false
	}
	_, ok := r.floors[normalizeLabel(label)]
	return ok
}

func (r *Registry) Canvas() Canvas {
	if r == nil {
		return Canvas{}
	}
	return r.canvas
}
