// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns CVAT XML annotations (images with polygons) into
// one LabelMe JSON document per image.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pdiddy/cvat2labelme/pkg/types"
)

const (
	// defaultImageName is used for images without a name attribute.
	defaultImageName = "unknown.jpg"
	// fallbackLabelFormat names shapes whose polygon has no label attribute.
	fallbackLabelFormat = "object_%04d"
	// outputExt is appended to the truncated image name.
	outputExt = ".json"
)

// Warner receives warning-level notices about input that was skipped.
// *logger.Logger satisfies it.
type Warner interface {
	Warning(format string, v ...any)
}

// ImageSizer reports the pixel size of a named image. It is consulted for
// images that carry neither a width nor a height attribute.
type ImageSizer interface {
	ImageSize(name string) (width, height int, err error)
}

// Converter converts CVAT XML to LabelMe JSON. It holds no state between
// calls and is safe for concurrent use.
type Converter struct {
	warn  Warner
	sizer ImageSizer
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sends warnings about skipped point pairs, duplicate output
// names and failed size lookups to w.
func WithLogger(w Warner) Option {
	return func(c *Converter) {
		if w != nil {
			c.warn = w
		}
	}
}

// WithImageSizer fills in the size of images that have no width and no
// height attribute.
func WithImageSizer(s ImageSizer) Option {
	return func(c *Converter) { c.sizer = s }
}

// New returns a Converter configured by opts.
func New(opts ...Option) *Converter {
	c := &Converter{warn: nopWarner{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert parses data as CVAT XML and returns one JSON document per image
// element, keyed by output file name.
//
// Malformed XML yields a *ParseError. A width or height that is not an
// integer yields a *ProcessingError and no partial result. Individual point
// pairs that do not parse are skipped with a warning; a polygon left with
// no points is dropped. A document without images returns an empty Result.
//
// Polygons without a label are named object_0000, object_0001, ... using a
// counter shared by all images of the call that advances only when a shape
// is emitted. Two images that map to the same file name resolve to the
// later one.
func (c *Converter) Convert(data []byte) (*Result, error) {
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	counter := 0

	for i := range doc.Images {
		img := &doc.Images[i]

		name := attrOr(img.Name, defaultImageName)
		width, height, err := c.imageSize(img, name)
		if err != nil {
			return nil, err
		}

		out := types.NewDocument(name, width, height)
		for _, poly := range img.Polygons {
			points := c.parsePoints(attrOr(poly.Points, ""), name)
			if len(points) == 0 {
				continue
			}
			label := fmt.Sprintf(fallbackLabelFormat, counter)
			if poly.Label != nil {
				label = *poly.Label
			}
			out.Shapes = append(out.Shapes, types.NewPolygon(label, points))
			counter++
		}

		text, err := marshalDocument(out)
		if err != nil {
			return nil, &ProcessingError{Image: name, Err: err}
		}

		filename := OutputName(name)
		if result.set(filename, text) {
			c.warn.Warning("image %q overwrites earlier output %s", name, filename)
		}
	}

	return result, nil
}

// OutputName returns the JSON file name for an image name: everything
// before the first dot, plus ".json". "scene.v2.png" becomes "scene.json".
func OutputName(imageName string) string {
	base, _, _ := strings.Cut(imageName, ".")
	return base + outputExt
}

// imageSize returns the width and height attributes of img, defaulting to
// zero. Non-integer values abort the conversion.
func (c *Converter) imageSize(img *types.Image, name string) (int, int, error) {
	if img.Width == nil && img.Height == nil && c.sizer != nil {
		w, h, err := c.sizer.ImageSize(name)
		if err != nil {
			c.warn.Warning("no size for image %q: %v", name, err)
			return 0, 0, nil
		}
		return w, h, nil
	}

	width, err := parseDimension(img.Width, name, "width")
	if err != nil {
		return 0, 0, err
	}
	height, err := parseDimension(img.Height, name, "height")
	if err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func parseDimension(raw *string, image, attr string) (int, error) {
	if raw == nil {
		return 0, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return 0, &ProcessingError{Image: image, Attr: attr, Value: *raw, Err: err}
	}
	return v, nil
}

// parsePoints parses a "x1,y1;x2,y2;..." list. Empty segments are ignored
// and malformed pairs are skipped with a warning.
func (c *Converter) parsePoints(raw, image string) []types.Point {
	var points []types.Point
	for _, pair := range strings.Split(strings.TrimSpace(raw), ";") {
		if pair == "" {
			continue
		}
		p, err := parsePoint(pair)
		if err != nil {
			c.warn.Warning("invalid point pair %q in image %q: %v", pair, image, err)
			continue
		}
		points = append(points, p)
	}
	return points
}

func parsePoint(pair string) (types.Point, error) {
	fields := strings.Split(pair, ",")
	if len(fields) != 2 {
		return types.Point{}, fmt.Errorf("want 2 comma-separated values, got %d", len(fields))
	}

	var p types.Point
	for i, f := range fields {
		v, err := parseCoord(f)
		if err != nil {
			return types.Point{}, err
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return types.Point{}, fmt.Errorf("non-finite coordinate %q", f)
		}
		p[i] = types.Coord(v)
	}
	return p, nil
}

// parseCoord parses a decimal coordinate. Underscores are allowed between
// digits ("1_000"); hexadecimal forms such as "0x1p3" are rejected.
func parseCoord(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX") {
		return 0, fmt.Errorf("invalid coordinate %q", s)
	}
	if strings.Contains(s, "_") {
		for i := 0; i < len(s); i++ {
			if s[i] == '_' && (i == 0 || i == len(s)-1 || !isDigit(s[i-1]) || !isDigit(s[i+1])) {
				return 0, fmt.Errorf("invalid coordinate %q", s)
			}
		}
		s = strings.ReplaceAll(s, "_", "")
	}
	return strconv.ParseFloat(s, 64)
}

func isDigit(b byte) bool { return '0' <= b && b <= '9' }

// marshalDocument renders doc as 2-space indented JSON without a trailing
// newline.
func marshalDocument(doc types.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func attrOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

type nopWarner struct{}

func (nopWarner) Warning(string, ...any) {}
