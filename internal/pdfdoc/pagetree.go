// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/tsawler/tabula/core"
)

// maxPageTreeDepth bounds recursion into /Kids.
const maxPageTreeDepth = 64

// pageNode is a leaf of the page tree.
type pageNode struct {
	dict core.Dict

	// resources is the page's own /Resources entry or the nearest one
	// inherited from an ancestor, unresolved. Nil means none.
	resources core.Object
}

// page returns the page at index (0-based) in page tree order.
func (s *objectStore) page(index int) (pageNode, error) {
	if s.pages == nil {
		pages, err := s.loadPages()
		if err != nil {
			return pageNode{}, err
		}
		s.pages = pages
	}
	if index < 0 || index >= len(s.pages) {
		return pageNode{}, fmt.Errorf("page %d not found in page tree (%d pages)", index+1, len(s.pages))
	}
	return s.pages[index], nil
}

func (s *objectStore) loadPages() ([]pageNode, error) {
	catalog, err := s.r.GetCatalog()
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	root, err := s.resolveDict(catalog.Get("Pages"))
	if err != nil {
		return nil, fmt.Errorf("loading page tree: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("catalog has no page tree")
	}

	pages := []pageNode{}
	if err := s.collectPages(root, nil, make(map[int]bool), 0, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *objectStore) collectPages(node core.Dict, resources core.Object, seen map[int]bool, depth int, out *[]pageNode) error {
	if depth > maxPageTreeDepth {
		return fmt.Errorf("page tree nested too deeply")
	}
	if r := node.Get("Resources"); r != nil {
		resources = r
	}

	typ, _ := node.GetName("Type")
	kidsObj := node.Get("Kids")
	if typ != "Pages" && kidsObj == nil {
		*out = append(*out, pageNode{dict: node, resources: resources})
		return nil
	}

	resolved, err := s.resolve(kidsObj)
	if err != nil {
		return fmt.Errorf("resolving /Kids: %w", err)
	}
	kids, _ := resolved.(core.Array)
	for i := 0; i < kids.Len(); i++ {
		kid := kids.Get(i)
		if ref, ok := kid.(core.IndirectRef); ok {
			if seen[ref.Number] {
				return fmt.Errorf("page tree revisits %s", ref)
			}
			seen[ref.Number] = true
		}
		child, err := s.resolveDict(kid)
		if err != nil {
			return fmt.Errorf("resolving page tree node: %w", err)
		}
		if child == nil {
			continue
		}
		if err := s.collectPages(child, resources, seen, depth+1, out); err != nil {
			return err
		}
	}
	return nil
}

// drawsText reports whether any content stream of the page at index
// contains a text object. Pages without /Contents draw nothing.
func (s *objectStore) drawsText(index int) (bool, error) {
	node, err := s.page(index)
	if err != nil {
		return false, err
	}
	contents, err := s.resolve(node.dict.Get("Contents"))
	if err != nil {
		return false, fmt.Errorf("resolving /Contents: %w", err)
	}

	var streams []core.Object
	switch v := contents.(type) {
	case nil:
		return false, nil
	case core.Array:
		for i := 0; i < v.Len(); i++ {
			streams = append(streams, v.Get(i))
		}
	default:
		streams = append(streams, v)
	}

	for _, obj := range streams {
		stream, err := s.resolveStream(obj)
		if err != nil {
			return false, fmt.Errorf("resolving content stream: %w", err)
		}
		if stream == nil {
			continue
		}
		data, err := stream.Decode()
		if err != nil {
			return false, fmt.Errorf("decoding content stream: %w", err)
		}
		if bytes.Contains(data, []byte("BT")) {
			return true, nil
		}
	}
	return false, nil
}
