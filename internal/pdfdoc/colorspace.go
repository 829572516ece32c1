// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"fmt"

	"github.com/tsawler/tabula/core"
)

// maxColorSpaceDepth bounds named and Indexed colour space indirection.
const maxColorSpaceDepth = 4

// colorSpace is the part of a PDF colour space needed to unpack samples.
type colorSpace struct {
	family string
	comps  int

	// Indexed only.
	base   *colorSpace
	hival  int
	lookup []byte
}

// channels returns the number of colour channels a decoded pixel has.
// Indexed images expand to their base space.
func (cs *colorSpace) channels() int {
	if cs.base != nil {
		return cs.base.comps
	}
	return cs.comps
}

// sampleComps returns the number of components stored per pixel in the
// image stream.
func (cs *colorSpace) sampleComps() int {
	if cs.base != nil {
		return 1
	}
	return cs.comps
}

var grayColorSpace = &colorSpace{family: "DeviceGray", comps: 1}

// deviceColorSpace maps the colour space families that are fully described
// by their name.
func deviceColorSpace(name string) *colorSpace {
	switch name {
	case "DeviceGray", "G", "CalGray":
		return &colorSpace{family: name, comps: 1}
	case "DeviceRGB", "RGB", "CalRGB", "Lab":
		return &colorSpace{family: name, comps: 3}
	case "DeviceCMYK", "CMYK":
		return &colorSpace{family: name, comps: 4}
	}
	return nil
}

// colorSpace resolves a /ColorSpace value. Names that are not device
// families are looked up in the page's /ColorSpace resources.
func (d *Document) colorSpace(obj core.Object, res core.Dict, depth int) (*colorSpace, error) {
	if depth > maxColorSpaceDepth {
		return nil, fmt.Errorf("colour space nested too deeply")
	}
	resolved, err := d.objs.resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("resolving colour space: %w", err)
	}

	switch v := resolved.(type) {
	case core.Name:
		if cs := deviceColorSpace(string(v)); cs != nil {
			return cs, nil
		}
		if res != nil {
			named, err := d.objs.resolveDict(res.Get("ColorSpace"))
			if err != nil {
				return nil, fmt.Errorf("resolving colour space resources: %w", err)
			}
			if named != nil && named.Get(string(v)) != nil {
				return d.colorSpace(named.Get(string(v)), res, depth+1)
			}
		}
		return nil, fmt.Errorf("unknown colour space %s", v)

	case core.Array:
		family, ok := v.GetName(0)
		if !ok {
			return nil, fmt.Errorf("colour space array has no family name")
		}
		return d.arrayColorSpace(string(family), v, res, depth)

	default:
		return nil, fmt.Errorf("invalid colour space type %T", resolved)
	}
}

func (d *Document) arrayColorSpace(family string, arr core.Array, res core.Dict, depth int) (*colorSpace, error) {
	switch family {
	case "ICCBased":
		stream, err := d.objs.resolveStream(arr.Get(1))
		if err != nil {
			return nil, fmt.Errorf("resolving ICC profile: %w", err)
		}
		if stream == nil {
			return nil, fmt.Errorf("ICCBased colour space without profile stream")
		}
		if n, ok := stream.Dict.GetInt("N"); ok && n > 0 {
			return &colorSpace{family: family, comps: int(n)}, nil
		}
		if alt := stream.Dict.Get("Alternate"); alt != nil {
			return d.colorSpace(alt, res, depth+1)
		}
		return nil, fmt.Errorf("ICCBased colour space without /N")

	case "Indexed", "I":
		base, err := d.colorSpace(arr.Get(1), res, depth+1)
		if err != nil {
			return nil, fmt.Errorf("indexed base: %w", err)
		}
		if base.base != nil {
			return nil, fmt.Errorf("indexed colour space over another indexed space")
		}
		hival, ok := arr.GetInt(2)
		if !ok || hival < 0 {
			return nil, fmt.Errorf("indexed colour space without valid hival")
		}
		lookup, err := d.lookupTable(arr.Get(3))
		if err != nil {
			return nil, err
		}
		return &colorSpace{family: "Indexed", base: base, hival: int(hival), lookup: lookup}, nil

	case "Separation":
		return &colorSpace{family: family, comps: 1}, nil

	case "DeviceN":
		names, err := d.objs.resolve(arr.Get(1))
		if err != nil {
			return nil, fmt.Errorf("resolving DeviceN colorants: %w", err)
		}
		colorants, ok := names.(core.Array)
		if !ok || colorants.Len() == 0 {
			return nil, fmt.Errorf("DeviceN colour space without colorants")
		}
		return &colorSpace{family: family, comps: colorants.Len()}, nil

	case "Pattern":
		return nil, fmt.Errorf("pattern colour space is not valid for images")
	}

	if cs := deviceColorSpace(family); cs != nil {
		return cs, nil
	}
	return nil, fmt.Errorf("unsupported colour space %s", family)
}

// lookupTable reads the palette of an Indexed colour space, stored either
// as a string or as a stream.
func (d *Document) lookupTable(obj core.Object) ([]byte, error) {
	resolved, err := d.objs.resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("resolving palette: %w", err)
	}
	switch v := resolved.(type) {
	case core.String:
		return []byte(v), nil
	case *core.Stream:
		data, err := v.Decode()
		if err != nil {
			return nil, fmt.Errorf("decoding palette: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("invalid palette type %T", resolved)
	}
}
