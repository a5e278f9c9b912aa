// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for cvat2labelme: the CVAT
// XML input elements, the LabelMe JSON output documents, configuration and
// conversion reports.
package types

import "encoding/xml"

// Annotations is the root element of a CVAT annotation file. Only the direct
// image children are read; any other element is ignored.
type Annotations struct {
	XMLName xml.Name
	Images  []Image `xml:"image"`
}

// Image is one annotated image. Attributes are pointers so that an absent
// attribute can be told apart from an empty one.
type Image struct {
	Name     *string   `xml:"name,attr"`
	Width    *string   `xml:"width,attr"`
	Height   *string   `xml:"height,attr"`
	Polygons []Polygon `xml:"polygon"`
}

// Polygon is one polygon shape within an image. Points holds the raw
// "x1,y1;x2,y2;..." list.
type Polygon struct {
	Label  *string `xml:"label,attr"`
	Points *string `xml:"points,attr"`
}
