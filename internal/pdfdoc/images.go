// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"fmt"
	"sort"

	"github.com/tsawler/tabula/core"
)

// maxFormDepth bounds recursion into nested Form XObjects.
const maxFormDepth = 8

// ImageRef identifies an image XObject used by a page.
type ImageRef struct {
	// Page is the 0-based index of the page that uses the image.
	Page int

	// Name is the resource name the image was first found under (e.g. "Im1").
	Name string

	// XRef is the object number of the image stream, unique in the document.
	XRef int

	gen int
}

// PageImages lists the image XObjects drawn by the page at index, including
// images nested inside Form XObjects. Each image appears once, in ascending
// xref order.
func (d *Document) PageImages(index int) ([]ImageRef, error) {
	if d.objs == nil {
		return nil, ErrImagesDisabled
	}
	if err := d.checkIndex(index); err != nil {
		return nil, err
	}

	res, err := d.pageResources(index)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}

	w := &imageWalker{
		doc:   d,
		page:  index,
		seen:  make(map[int]bool),
		forms: make(map[int]bool),
	}
	if err := w.walk(res, 0); err != nil {
		return nil, err
	}

	sort.SliceStable(w.refs, func(i, j int) bool {
		return w.refs[i].XRef < w.refs[j].XRef
	})
	return w.refs, nil
}

// pageResources returns the resource dictionary of a page, own or
// inherited, or nil when neither the page nor any ancestor has one.
func (d *Document) pageResources(index int) (core.Dict, error) {
	page, err := d.objs.page(index)
	if err != nil {
		return nil, fmt.Errorf("loading page: %w", err)
	}
	if page.resources == nil {
		return nil, nil
	}
	resolved, err := d.objs.resolve(page.resources)
	if err != nil {
		return nil, fmt.Errorf("resolving page resources: %w", err)
	}
	switch v := resolved.(type) {
	case core.Dict:
		return v, nil
	case core.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("page resources are %T, not a dictionary", resolved)
	}
}

// imageWalker collects image XObjects reachable from a resource dictionary.
type imageWalker struct {
	doc   *Document
	page  int
	seen  map[int]bool // image xrefs already listed
	forms map[int]bool // form xrefs already visited
	refs  []ImageRef
}

func (w *imageWalker) walk(res core.Dict, depth int) error {
	xobjects, err := w.doc.objs.resolveDict(res.Get("XObject"))
	if err != nil {
		return fmt.Errorf("resolving XObject resources: %w", err)
	}
	if xobjects == nil {
		return nil
	}

	names := xobjects.Keys()
	sort.Strings(names)

	for _, name := range names {
		ref, ok := xobjects.Get(name).(core.IndirectRef)
		if !ok {
			// XObjects must be indirect; anything else has no xref to key on.
			continue
		}
		obj, err := w.doc.objs.object(ref)
		if err != nil {
			return fmt.Errorf("resolving XObject %s (%s): %w", name, ref, err)
		}
		stream, ok := obj.(*core.Stream)
		if !ok {
			continue
		}

		subtype, _ := stream.Dict.GetName("Subtype")
		switch subtype {
		case "Image":
			if w.seen[ref.Number] {
				continue
			}
			w.seen[ref.Number] = true
			w.refs = append(w.refs, ImageRef{
				Page: w.page,
				Name: name,
				XRef: ref.Number,
				gen:  ref.Generation,
			})
		case "Form":
			if depth >= maxFormDepth || w.forms[ref.Number] {
				continue
			}
			w.forms[ref.Number] = true
			formRes, err := w.doc.objs.resolveDict(stream.Dict.Get("Resources"))
			if err != nil {
				return fmt.Errorf("resolving resources of form %s: %w", name, err)
			}
			if formRes == nil {
				continue
			}
			if err := w.walk(formRes, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
