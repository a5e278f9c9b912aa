// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/cvat2labelme/pkg/types"
)

// recordingWarner collects warnings for assertions.
type recordingWarner struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingWarner) Warning(format string, v ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, fmt.Sprintf(format, v...))
}

func (r *recordingWarner) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.messages, "\n")
}

// decode converts input and unmarshals the named output document.
func decode(t *testing.T, res *Result, name string) types.Document {
	t.Helper()
	data, ok := res.Lookup(name)
	require.True(t, ok, "missing output %s, have %v", name, res.Names())
	var doc types.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc
}

func labels(doc types.Document) []string {
	out := make([]string, len(doc.Shapes))
	for i, s := range doc.Shapes {
		out[i] = s.Label
	}
	return out
}

const e2eInput = `<root><image name="a.jpg" width="10" height="20"><polygon label="cat" points="0,0;1,1;2,2"/><polygon points="x,y"/></image></root>`

const e2eOutput = `{
  "version": "5.2.1",
  "flags": {},
  "shapes": [
    {
      "label": "cat",
      "points": [
        [
          0.0,
          0.0
        ],
        [
          1.0,
          1.0
        ],
        [
          2.0,
          2.0
        ]
      ],
      "group_id": null,
      "shape_type": "polygon",
      "flags": {}
    }
  ],
  "imagePath": "a.jpg",
  "imageData": null,
  "imageHeight": 20,
  "imageWidth": 10
}`

func TestConvert_EndToEnd(t *testing.T) {
	w := &recordingWarner{}
	res, err := New(WithLogger(w)).Convert([]byte(e2eInput))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json"}, res.Names())
	data, ok := res.Lookup("a.json")
	require.True(t, ok)
	assert.Equal(t, e2eOutput, string(data))
	assert.Contains(t, w.joined(), `invalid point pair "x,y" in image "a.jpg"`)
}

func TestConvert_Deterministic(t *testing.T) {
	input := []byte(`<annotations>
  <image name="b.png" width="4" height="3">
    <polygon points="1,2;3,4"/>
    <polygon label="dog" points="5.5,6.25;7,8"/>
  </image>
  <image name="a.png" width="4" height="3">
    <polygon points="0,0;1,0;1,1"/>
  </image>
</annotations>`)

	c := New()
	first, err := c.Convert(input)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := c.Convert(input)
		require.NoError(t, err)
		assert.Equal(t, first.Names(), again.Names())
		for _, f := range first.Files() {
			data, ok := again.Lookup(f.Name)
			require.True(t, ok)
			assert.Equal(t, string(f.Data), string(data))
		}
	}
	assert.Equal(t, []string{"b.json", "a.json"}, first.Names())
}

func TestConvert_FallbackLabels(t *testing.T) {
	input := []byte(`<root>
  <image name="one.jpg">
    <polygon points="1,1"/>
    <polygon points=""/>
    <polygon label="tree" points="2,2"/>
    <polygon points="bad"/>
    <polygon points="3,3"/>
  </image>
  <image name="two.jpg">
    <polygon points="4,4"/>
    <polygon points=";;"/>
    <polygon points="5,5"/>
  </image>
</root>`)

	res, err := New().Convert(input)
	require.NoError(t, err)

	// The counter is shared across images and advances on every emitted
	// shape, labeled or not, never on dropped polygons.
	assert.Equal(t, []string{"object_0000", "tree", "object_0002"}, labels(decode(t, res, "one.json")))
	assert.Equal(t, []string{"object_0003", "object_0004"}, labels(decode(t, res, "two.json")))
}

func TestConvert_FallbackLabelWidth(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<root><image name="many.jpg">`)
	for i := 0; i < 10001; i++ {
		b.WriteString(`<polygon points="1,1"/>`)
	}
	b.WriteString(`</image></root>`)

	res, err := New().Convert([]byte(b.String()))
	require.NoError(t, err)

	got := labels(decode(t, res, "many.json"))
	require.Len(t, got, 10001)
	assert.Equal(t, "object_0000", got[0])
	assert.Equal(t, "object_9999", got[9999])
	assert.Equal(t, "object_10000", got[10000])
}

func TestConvert_PointPairs(t *testing.T) {
	tests := []struct {
		name     string
		points   string
		want     []types.Point
		warnings int
	}{
		{"skips one malformed pair", "1,2;bad;3,4", []types.Point{{1, 2}, {3, 4}}, 1},
		{"trailing separator", "1,2;3,4;", []types.Point{{1, 2}, {3, 4}}, 0},
		{"leading separator", ";1,2", []types.Point{{1, 2}}, 0},
		{"surrounding whitespace", "  1.5, 2.5 ;3,4  ", []types.Point{{1.5, 2.5}, {3, 4}}, 0},
		{"three fields", "1,2,3;4,5", []types.Point{{4, 5}}, 1},
		{"one field", "7;8,9", []types.Point{{8, 9}}, 1},
		{"blank segment", "1,2; ;3,4", []types.Point{{1, 2}, {3, 4}}, 1},
		{"non-finite", "nan,1;inf,2;3,4", []types.Point{{3, 4}}, 2},
		{"negative and exponent", "-1.5,2e2", []types.Point{{-1.5, 200}}, 0},
		{"hex float rejected", "0x1p3,1;2,3", []types.Point{{2, 3}}, 1},
		{"digit underscores", "1_0,2_5.5", []types.Point{{10, 25.5}}, 0},
		{"misplaced underscores", "_1,2;1_,2;1__0,2;3,4", []types.Point{{3, 4}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &recordingWarner{}
			input := fmt.Sprintf(`<root><image name="p.jpg"><polygon label="x" points=%q/></image></root>`, tt.points)

			res, err := New(WithLogger(w)).Convert([]byte(input))
			require.NoError(t, err)

			doc := decode(t, res, "p.json")
			require.Len(t, doc.Shapes, 1)
			assert.Equal(t, tt.want, doc.Shapes[0].Points)
			assert.Len(t, w.messages, tt.warnings)
		})
	}
}

func TestConvert_EmptyPolygonDropped(t *testing.T) {
	for _, points := range []string{"", "bad", ";", "  ", "a,b;c,d"} {
		t.Run(fmt.Sprintf("%q", points), func(t *testing.T) {
			input := fmt.Sprintf(`<root><image name="e.jpg"><polygon points=%q/><polygon points="1,1"/></image></root>`, points)
			res, err := New().Convert([]byte(input))
			require.NoError(t, err)

			doc := decode(t, res, "e.json")
			assert.Equal(t, []string{"object_0000"}, labels(doc))
		})
	}
}

func TestConvert_MissingPointsAttribute(t *testing.T) {
	res, err := New().Convert([]byte(`<root><image name="m.jpg"><polygon label="x"/></image></root>`))
	require.NoError(t, err)
	assert.Empty(t, decode(t, res, "m.json").Shapes)
}

func TestConvert_ImageDefaults(t *testing.T) {
	res, err := New().Convert([]byte(`<root><image><polygon points="1,1"/></image></root>`))
	require.NoError(t, err)

	doc := decode(t, res, "unknown.json")
	assert.Equal(t, "unknown.jpg", doc.ImagePath)
	assert.Equal(t, 0, doc.ImageWidth)
	assert.Equal(t, 0, doc.ImageHeight)
	assert.Equal(t, types.LabelMeVersion, doc.Version)
	assert.Nil(t, doc.ImageData)
	assert.Empty(t, doc.Flags)

	require.Len(t, doc.Shapes, 1)
	assert.Equal(t, types.ShapeTypePolygon, doc.Shapes[0].ShapeType)
	assert.Nil(t, doc.Shapes[0].GroupID)
	assert.Empty(t, doc.Shapes[0].Flags)
}

func TestConvert_EmptyLabelIsKept(t *testing.T) {
	res, err := New().Convert([]byte(`<root><image name="l.jpg"><polygon label="" points="1,1"/><polygon points="2,2"/></image></root>`))
	require.NoError(t, err)

	// A present but empty label is used as is and still advances the counter.
	assert.Equal(t, []string{"", "object_0001"}, labels(decode(t, res, "l.json")))
}

func TestConvert_EmptyShapesSerialization(t *testing.T) {
	res, err := New().Convert([]byte(`<root><image name="n.jpg" width="1" height="2"/></root>`))
	require.NoError(t, err)

	data, ok := res.Lookup("n.json")
	require.True(t, ok)
	assert.Contains(t, string(data), `"shapes": []`)
	assert.Contains(t, string(data), `"flags": {}`)
	assert.False(t, strings.HasSuffix(string(data), "\n"))
}

func TestConvert_NoHTMLEscaping(t *testing.T) {
	res, err := New().Convert([]byte(`<root><image name="a&amp;b.jpg"><polygon label="&lt;car&gt;" points="1,1"/></image></root>`))
	require.NoError(t, err)

	data, ok := res.Lookup("a&b.json")
	require.True(t, ok)
	assert.Contains(t, string(data), `"label": "<car>"`)
	assert.Contains(t, string(data), `"imagePath": "a&b.jpg"`)
}

func TestConvert_FilenameTruncation(t *testing.T) {
	tests := []struct {
		image string
		want  string
	}{
		{"scene.v2.png", "scene.json"},
		{"img.jpg", "img.json"},
		{"noext", "noext.json"},
		{"frames/0001.jpg", "frames/0001.json"},
		{".hidden.jpg", ".json"},
	}
	for _, tt := range tests {
		t.Run(tt.image, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.image))

			input := fmt.Sprintf(`<root><image name=%q/></root>`, tt.image)
			res, err := New().Convert([]byte(input))
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, res.Names())
			assert.Equal(t, tt.image, decode(t, res, tt.want).ImagePath)
		})
	}
}

func TestConvert_DuplicateNamesLastWins(t *testing.T) {
	w := &recordingWarner{}
	input := []byte(`<root>
  <image name="x.jpg" width="1" height="1"/>
  <image name="y.jpg"/>
  <image name="x.png" width="2" height="2"/>
</root>`)

	res, err := New(WithLogger(w)).Convert(input)
	require.NoError(t, err)

	assert.Equal(t, []string{"x.json", "y.json"}, res.Names())
	doc := decode(t, res, "x.json")
	assert.Equal(t, "x.png", doc.ImagePath)
	assert.Equal(t, 2, doc.ImageWidth)
	assert.Contains(t, w.joined(), "overwrites earlier output x.json")
}

func TestConvert_ZeroImages(t *testing.T) {
	for _, input := range []string{
		`<root/>`,
		`<root></root>`,
		`<?xml version="1.0"?><annotations><version>1.1</version><meta/></annotations>`,
		`<root><group><image name="nested.jpg"/></group></root>`,
	} {
		t.Run(input, func(t *testing.T) {
			res, err := New().Convert([]byte(input))
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, 0, res.Len())
		})
	}
}

func TestConvert_UnknownContentIgnored(t *testing.T) {
	input := []byte(`<?xml version="1.0" encoding="utf-8"?>
<!-- exported -->
<annotations>
  <version>1.1</version>
  <image id="0" name="a.jpg" width="3" height="4" subset="default">
    <box label="car" xtl="1" ytl="1" xbr="2" ybr="2"/>
    <polygon label="road" occluded="0" source="manual" points="0,0;1,1" z_order="0">
      <attribute name="kind">asphalt</attribute>
    </polygon>
  </image>
</annotations>
`)
	res, err := New().Convert(input)
	require.NoError(t, err)

	doc := decode(t, res, "a.json")
	assert.Equal(t, []string{"road"}, labels(doc))
	assert.Equal(t, 3, doc.ImageWidth)
	assert.Equal(t, 4, doc.ImageHeight)
}

func TestConvert_ParseFailure(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed tag", `<root><image name="a.jpg">`},
		{"mismatched tag", `<root><image></polygon></root>`},
		{"empty input", ``},
		{"whitespace only", "  \n "},
		{"not xml", `hello world`},
		{"junk after root", `<root/><root/>`},
		{"text after root", `<root/>trailing`},
		{"bad attribute quoting", `<root><image name=a.jpg/></root>`},
		{"undefined entity", `<root><image name="&nope;"/></root>`},
		{"duplicate attribute", `<root><image name="a.jpg" name="b.jpg"/></root>`},
		{"unbound prefix", `<root><p:image name="a.jpg"/></root>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Convert([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, res)

			assert.True(t, errors.Is(err, ErrParse), "want ErrParse, got %v", err)
			assert.False(t, errors.Is(err, ErrProcessing))
			assert.Equal(t, types.FailureParse, Kind(err))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.NotEmpty(t, pe.Msg)
		})
	}
}

func TestConvert_ParseFailureLine(t *testing.T) {
	_, err := New().Convert([]byte("<root>\n<image>\n</root>"))
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.Line)
	assert.Contains(t, pe.Error(), "line 3")
}

func TestConvert_ProcessingFailure(t *testing.T) {
	tests := []struct {
		name  string
		input string
		attr  string
	}{
		{"non-integer width", `<root><image name="a.jpg" width="ten" height="1"/></root>`, "width"},
		{"float height", `<root><image name="a.jpg" width="1" height="1.5"/></root>`, "height"},
		{"empty width", `<root><image name="a.jpg" width="" height="1"/></root>`, "width"},
		{"fails on a later image", `<root><image name="ok.jpg" width="1" height="1"><polygon points="1,1"/></image><image name="a.jpg" width="x"/></root>`, "width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New().Convert([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, res, "no partial result")

			assert.True(t, errors.Is(err, ErrProcessing))
			assert.False(t, errors.Is(err, ErrParse))
			assert.Equal(t, types.FailureProcessing, Kind(err))

			var pe *ProcessingError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, "a.jpg", pe.Image)
			assert.Equal(t, tt.attr, pe.Attr)
		})
	}
}

func TestConvert_DimensionWhitespaceAndSign(t *testing.T) {
	res, err := New().Convert([]byte(`<root><image name="a.jpg" width=" 640 " height="+480"/></root>`))
	require.NoError(t, err)

	doc := decode(t, res, "a.json")
	assert.Equal(t, 640, doc.ImageWidth)
	assert.Equal(t, 480, doc.ImageHeight)
}

// fixedSizer returns canned sizes or an error for unknown names.
type fixedSizer map[string][2]int

func (f fixedSizer) ImageSize(name string) (int, int, error) {
	if s, ok := f[name]; ok {
		return s[0], s[1], nil
	}
	return 0, 0, errors.New("not found")
}

func TestConvert_ImageSizer(t *testing.T) {
	sizer := fixedSizer{"a.jpg": {640, 480}, "b.jpg": {10, 10}}
	w := &recordingWarner{}
	input := []byte(`<root>
  <image name="a.jpg"/>
  <image name="b.jpg" width="5"/>
  <image name="c.jpg"/>
</root>`)

	res, err := New(WithImageSizer(sizer), WithLogger(w)).Convert(input)
	require.NoError(t, err)

	a := decode(t, res, "a.json")
	assert.Equal(t, 640, a.ImageWidth)
	assert.Equal(t, 480, a.ImageHeight)

	// An explicit attribute disables the lookup.
	b := decode(t, res, "b.json")
	assert.Equal(t, 5, b.ImageWidth)
	assert.Equal(t, 0, b.ImageHeight)

	c := decode(t, res, "c.json")
	assert.Equal(t, 0, c.ImageWidth)
	assert.Contains(t, w.joined(), `no size for image "c.jpg"`)
}

func TestConvert_Concurrent(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Convert([]byte(`<root><image name="a.jpg"><polygon points="1,1"/><polygon points="2,2"/></image></root>`))
			if err != nil {
				errs <- err
				return
			}
			data, _ := res.Lookup("a.json")
			if !strings.Contains(string(data), "object_0001") {
				errs <- fmt.Errorf("counter leaked between calls: %s", data)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
