// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/reader"
)

var (
	streamKeyword = []byte("stream")
	endobjKeyword = []byte("endobj")
)

// objectStore resolves the objects of one PDF file. Plain objects come from
// tabula's reader. Stream objects are sliced out of the file at their xref
// offset using /Length, because tabula's object parser loses the first
// token of a stream payload.
type objectStore struct {
	r     *reader.Reader
	data  []byte
	pages []pageNode
}

func openObjectStore(path string) (*objectStore, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.Close()
		return nil, err
	}
	return &objectStore{r: r, data: data}, nil
}

func (s *objectStore) close() error {
	s.data, s.pages = nil, nil
	return s.r.Close()
}

// object loads the indirect object ref.
func (s *objectStore) object(ref core.IndirectRef) (core.Object, error) {
	stream, ok, err := s.stream(ref)
	if err != nil {
		return nil, err
	}
	if ok {
		return stream, nil
	}
	return s.r.ResolveReference(ref)
}

// resolve follows obj when it is an indirect reference and returns it
// unchanged otherwise.
func (s *objectStore) resolve(obj core.Object) (core.Object, error) {
	ref, ok := obj.(core.IndirectRef)
	if !ok {
		return obj, nil
	}
	return s.object(ref)
}

// stream reads ref as a stream object stored at its xref offset. ok is false
// when the object there is not a stream, or when ref has no usable offset
// (objects packed in object streams), so the caller can fall back to the
// reader.
func (s *objectStore) stream(ref core.IndirectRef) (*core.Stream, bool, error) {
	entry, found := s.r.XRefTable().Get(ref.Number)
	if !found || !entry.InUse || entry.Offset <= 0 || entry.Offset >= int64(len(s.data)) {
		return nil, false, nil
	}
	obj := s.data[entry.Offset:]

	kw := streamStart(obj)
	if kw < 0 {
		return nil, false, nil
	}

	header := make([]byte, 0, kw+len(endobjKeyword)+1)
	header = append(header, obj[:kw]...)
	header = append(header, '\n')
	header = append(header, endobjKeyword...)
	ind, err := core.NewParser(bytes.NewReader(header)).ParseIndirectObject()
	if err != nil || ind.Ref.Number != ref.Number {
		return nil, false, nil
	}
	dict, ok := ind.Object.(core.Dict)
	if !ok {
		return nil, false, fmt.Errorf("object %s: stream keyword after %T", ref, ind.Object)
	}

	length, err := s.streamLength(dict.Get("Length"))
	if err != nil {
		return nil, false, fmt.Errorf("object %s: %w", ref, err)
	}

	start := kw + len(streamKeyword)
	switch {
	case bytes.HasPrefix(obj[start:], []byte("\r\n")):
		start += 2
	case bytes.HasPrefix(obj[start:], []byte("\n")), bytes.HasPrefix(obj[start:], []byte("\r")):
		start++
	}
	if start+length > len(obj) {
		return nil, false, fmt.Errorf("object %s: /Length %d runs past the end of the file", ref, length)
	}
	return &core.Stream{Dict: dict, Data: obj[start : start+length]}, true, nil
}

func (s *objectStore) streamLength(obj core.Object) (int, error) {
	if obj == nil {
		return 0, fmt.Errorf("stream dictionary has no /Length")
	}
	resolved, err := s.r.Resolve(obj)
	if err != nil {
		return 0, fmt.Errorf("resolving /Length: %w", err)
	}
	n, ok := resolved.(core.Int)
	if !ok || n < 0 {
		return 0, fmt.Errorf("invalid /Length %v", resolved)
	}
	return int(n), nil
}

// streamStart returns the offset of the stream keyword that follows the
// dictionary of the object at the start of obj, or -1 when the object ends
// without one.
func streamStart(obj []byte) int {
	end := bytes.Index(obj, endobjKeyword)
	for off := 0; ; {
		i := bytes.Index(obj[off:], streamKeyword)
		if i < 0 {
			return -1
		}
		i += off
		if end >= 0 && i > end {
			return -1
		}
		if bytes.HasSuffix(bytes.TrimRight(obj[:i], "\x00\t\n\f\r "), []byte(">>")) {
			return i
		}
		off = i + len(streamKeyword)
	}
}

// resolveDict resolves obj and returns it as a dictionary. A nil or
// non-dictionary object yields a nil Dict.
func (s *objectStore) resolveDict(obj core.Object) (core.Dict, error) {
	if obj == nil {
		return nil, nil
	}
	resolved, err := s.resolve(obj)
	if err != nil {
		return nil, err
	}
	dict, _ := resolved.(core.Dict)
	return dict, nil
}

// resolveStream resolves obj and returns it as a stream, or nil.
func (s *objectStore) resolveStream(obj core.Object) (*core.Stream, error) {
	if obj == nil {
		return nil, nil
	}
	resolved, err := s.resolve(obj)
	if err != nil {
		return nil, err
	}
	stream, _ := resolved.(*core.Stream)
	return stream, nil
}
