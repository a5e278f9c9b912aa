// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"math"
	"strconv"
	"strings"
)

// LabelMeVersion is the LabelMe format version written into every document.
const LabelMeVersion = "5.2.1"

// ShapeTypePolygon is the only shape type produced.
const ShapeTypePolygon = "polygon"

// Document is a LabelMe annotation file for a single image. Field order is
// the order of keys in the serialized JSON.
type Document struct {
	Version     string          `json:"version"`
	Flags       map[string]bool `json:"flags"`
	Shapes      []Shape         `json:"shapes"`
	ImagePath   string          `json:"imagePath"`
	ImageData   *string         `json:"imageData"`
	ImageHeight int             `json:"imageHeight"`
	ImageWidth  int             `json:"imageWidth"`
}

// NewDocument returns an empty document for the named image. Flags and
// Shapes are non-nil so they serialize as {} and [] rather than null.
func NewDocument(imagePath string, width, height int) Document {
	return Document{
		Version:     LabelMeVersion,
		Flags:       map[string]bool{},
		Shapes:      []Shape{},
		ImagePath:   imagePath,
		ImageHeight: height,
		ImageWidth:  width,
	}
}

// Shape is one labeled polygon of a Document.
type Shape struct {
	Label     string          `json:"label"`
	Points    []Point         `json:"points"`
	GroupID   *int            `json:"group_id"`
	ShapeType string          `json:"shape_type"`
	Flags     map[string]bool `json:"flags"`
}

// NewPolygon returns a polygon shape with the given label and points.
func NewPolygon(label string, points []Point) Shape {
	return Shape{
		Label:     label,
		Points:    points,
		ShapeType: ShapeTypePolygon,
		Flags:     map[string]bool{},
	}
}

// Point is an [x, y] pixel coordinate pair.
type Point [2]Coord

// Coord is a pixel coordinate. It always serializes with a fractional part
// (2 becomes 2.0) as LabelMe readers expect floating-point coordinates.
type Coord float64

// MarshalJSON implements json.Marshaler.
func (c Coord) MarshalJSON() ([]byte, error) {
	f := float64(c)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &UnsupportedCoordError{Value: f}
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return []byte(s), nil
}

// UnsupportedCoordError is returned when a NaN or infinite coordinate is
// serialized; JSON has no representation for either.
type UnsupportedCoordError struct {
	Value float64
}

func (e *UnsupportedCoordError) Error() string {
	return "unsupported coordinate value: " + strconv.FormatFloat(e.Value, 'g', -1, 64)
}
