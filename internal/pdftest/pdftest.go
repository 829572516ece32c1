// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftest writes small, well-formed PDF files for tests. Text is set
// in Helvetica and images are stored as image XObjects with exact /Length
// values and a classic xref table, so every reader in the module can open
// them.
package pdftest

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Page describes one page of a generated document.
type Page struct {
	// Text is drawn one line per "\n"-separated line. Empty means no text
	// operators at all.
	Text string

	// Images are drawn in order, each under its own resource name.
	Images []Image

	// Resources, when set, is written verbatim as the page's /Resources
	// value in place of the generated dictionary, e.g. "99 0 R".
	Resources string

	// NoResources leaves /Resources out of the page dictionary.
	NoResources bool
}

// Image is an image XObject.
type Image struct {
	Width            int
	Height           int
	ColorSpace       string // raw PDF syntax, e.g. "/DeviceRGB" or "[/Indexed /DeviceRGB 1 <ff000000ff00>]"
	BitsPerComponent int    // 0 means 8
	Filter           string // e.g. "DCTDecode"; empty stores Data unfiltered
	Data             []byte
	SMask            *Image
}

// Gray returns a width x height DeviceGray image filled with v.
func Gray(width, height int, v byte) Image {
	return Image{Width: width, Height: height, ColorSpace: "/DeviceGray", Data: bytes.Repeat([]byte{v}, width*height)}
}

// RGB returns a width x height DeviceRGB image filled with one colour.
func RGB(width, height int, r, g, b byte) Image {
	return Image{Width: width, Height: height, ColorSpace: "/DeviceRGB", Data: bytes.Repeat([]byte{r, g, b}, width*height)}
}

// CMYK returns a width x height DeviceCMYK image.
func CMYK(width, height int) Image {
	return Image{Width: width, Height: height, ColorSpace: "/DeviceCMYK", Data: bytes.Repeat([]byte{0, 0xff, 0xff, 0}, width*height)}
}

// JPEG returns img encoded as a DCTDecode image XObject.
func JPEG(t testing.TB, img image.Image, colorSpace string) Image {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encoding JPEG: %v", err)
	}
	b := img.Bounds()
	return Image{Width: b.Dx(), Height: b.Dy(), ColorSpace: colorSpace, Filter: "DCTDecode", Data: buf.Bytes()}
}

// Write builds a PDF from pages and writes it to dir/name.
func Write(t testing.TB, dir, name string, pages ...Page) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Build returns the bytes of a PDF containing pages.
func Build(pages ...Page) []byte {
	b := &builder{}
	catalog := b.reserve()
	root := b.reserve()
	font := b.reserve()
	b.set(catalog, fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", root))
	b.set(font, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	kids := make([]string, 0, len(pages))
	for _, p := range pages {
		pageObj := b.reserve()

		var content bytes.Buffer
		if p.Text != "" {
			for i, line := range strings.Split(p.Text, "\n") {
				fmt.Fprintf(&content, "BT /F1 12 Tf 72 %d Td (%s) Tj ET\n", 720-14*i, escape(line))
			}
		}

		var xobjects []string
		for i, img := range p.Images {
			name := fmt.Sprintf("Im%d", i+1)
			ref := b.image(img)
			xobjects = append(xobjects, fmt.Sprintf("/%s %d 0 R", name, ref))
			fmt.Fprintf(&content, "q 50 0 0 50 %d 400 cm /%s Do Q\n", 72+60*i, name)
		}
		contents := b.stream("", content.Bytes())

		resources := fmt.Sprintf("/Font << /F1 %d 0 R >>", font)
		if len(xobjects) > 0 {
			resources += " /XObject << " + strings.Join(xobjects, " ") + " >>"
		}
		resources = " /Resources << " + resources + " >>"
		switch {
		case p.NoResources:
			resources = ""
		case p.Resources != "":
			resources = " /Resources " + p.Resources
		}
		b.set(pageObj, fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792]%s /Contents %d 0 R >>",
			root, resources, contents))
		kids = append(kids, fmt.Sprintf("%d 0 R", pageObj))
	}
	b.set(root, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)))

	return b.bytes(catalog)
}

type builder struct {
	objs [][]byte
}

func (b *builder) reserve() int {
	b.objs = append(b.objs, nil)
	return len(b.objs)
}

func (b *builder) set(num int, body string) {
	b.objs[num-1] = []byte(body)
}

func (b *builder) stream(dict string, data []byte) int {
	num := b.reserve()
	var body bytes.Buffer
	fmt.Fprintf(&body, "<< /Length %d%s >>\nstream\n", len(data), dict)
	body.Write(data)
	body.WriteString("\nendstream")
	b.objs[num-1] = body.Bytes()
	return num
}

func (b *builder) image(img Image) int {
	num := b.reserve()

	bpc := img.BitsPerComponent
	if bpc == 0 {
		bpc = 8
	}
	dict := fmt.Sprintf(" /Type /XObject /Subtype /Image /Width %d /Height %d /BitsPerComponent %d", img.Width, img.Height, bpc)
	if img.ColorSpace != "" {
		dict += " /ColorSpace " + img.ColorSpace
	}
	if img.Filter != "" {
		dict += " /Filter /" + img.Filter
	}
	if img.SMask != nil {
		dict += fmt.Sprintf(" /SMask %d 0 R", b.image(*img.SMask))
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "<< /Length %d%s >>\nstream\n", len(img.Data), dict)
	body.Write(img.Data)
	body.WriteString("\nendstream")
	b.objs[num-1] = body.Bytes()
	return num
}

func (b *builder) bytes(root int) []byte {
	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, len(b.objs))
	for i, body := range b.objs {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(b.objs)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(b.objs)+1, root, xref)
	return out.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
