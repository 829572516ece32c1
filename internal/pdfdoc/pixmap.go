// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfdoc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/tsawler/tabula/core"
)

// Pixmap is a decoded image. Channels counts every channel including alpha.
type Pixmap struct {
	XRef       int
	Width      int
	Height     int
	Channels   int
	Alpha      int
	ColorSpace string

	img image.Image
}

// ColorChannels returns the channel count excluding alpha: 1 for gray,
// 3 for RGB, 4 for CMYK.
func (p *Pixmap) ColorChannels() int {
	return p.Channels - p.Alpha
}

// Simple reports whether the image is grayscale or RGB and can be saved
// as a plain PNG.
func (p *Pixmap) Simple() bool {
	return p.ColorChannels() < 4
}

// WritePNG encodes the pixmap as PNG.
func (p *Pixmap) WritePNG(w io.Writer) error {
	if p.img == nil {
		return fmt.Errorf("no raster for %d-channel %s image", p.Channels, p.ColorSpace)
	}
	if err := png.Encode(w, p.img); err != nil {
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return nil
}

// Release drops the decoded pixel buffer.
func (p *Pixmap) Release() {
	p.img = nil
}

// PixmapFromImage wraps an already decoded image, deriving the channel
// layout from its colour model.
func PixmapFromImage(img image.Image) *Pixmap {
	b := img.Bounds()
	p := &Pixmap{Width: b.Dx(), Height: b.Dy(), img: img}
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		p.Channels, p.ColorSpace = 1, "DeviceGray"
	case *image.CMYK:
		p.Channels, p.ColorSpace = 4, "DeviceCMYK"
	case *image.NRGBA, *image.RGBA, *image.NRGBA64, *image.RGBA64:
		p.Channels, p.Alpha, p.ColorSpace = 4, 1, "DeviceRGB"
	default:
		p.Channels, p.ColorSpace = 3, "DeviceRGB"
	}
	return p
}

// DecodeImage decodes the image stream behind ref.
func (d *Document) DecodeImage(ref ImageRef) (*Pixmap, error) {
	if d.objs == nil {
		return nil, ErrImagesDisabled
	}

	obj, err := d.objs.object(core.IndirectRef{Number: ref.XRef, Generation: ref.gen})
	if err != nil {
		return nil, fmt.Errorf("loading xref %d: %w", ref.XRef, err)
	}
	stream, ok := obj.(*core.Stream)
	if !ok {
		return nil, fmt.Errorf("xref %d is %T, not an image stream", ref.XRef, obj)
	}

	res, err := d.pageResources(ref.Page)
	if err != nil {
		return nil, err
	}

	p, err := d.decodeImageStream(stream, res)
	if err != nil {
		return nil, err
	}
	p.XRef = ref.XRef
	return p, nil
}

func (d *Document) decodeImageStream(stream *core.Stream, res core.Dict) (*Pixmap, error) {
	dict := stream.Dict
	width, height, err := imageSize(dict)
	if err != nil {
		return nil, err
	}

	filter := lastFilter(dict)
	switch filter {
	case "JPXDecode", "JBIG2Decode":
		return nil, fmt.Errorf("unsupported image filter %s", filter)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding image stream: %w", err)
	}

	var p *Pixmap
	if filter == "DCTDecode" || filter == "DCT" {
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding JPEG: %w", err)
		}
		p = PixmapFromImage(img)
	} else {
		p, err = d.decodeSamples(data, dict, width, height, res)
		if err != nil {
			return nil, err
		}
	}

	smask, err := d.objs.resolveStream(dict.Get("SMask"))
	if err != nil {
		return nil, fmt.Errorf("resolving soft mask: %w", err)
	}
	if smask != nil {
		if err := p.applySoftMask(smask); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// decodeSamples unpacks raw image samples into a Go image. Images with four
// or more colour channels are described but not rasterised.
func (d *Document) decodeSamples(data []byte, dict core.Dict, width, height int, res core.Dict) (*Pixmap, error) {
	bpc := 8
	if v, ok := dict.GetInt("BitsPerComponent"); ok {
		bpc = int(v)
	}

	cs := grayColorSpace
	if mask, _ := dict.GetBool("ImageMask"); mask {
		bpc = 1
	} else if obj := dict.Get("ColorSpace"); obj != nil {
		var err error
		cs, err = d.colorSpace(obj, res, 0)
		if err != nil {
			return nil, err
		}
	}

	s, err := newSamples(data, bpc, cs.sampleComps(), width, height)
	if err != nil {
		return nil, err
	}

	p := &Pixmap{
		Width:      width,
		Height:     height,
		Channels:   cs.channels(),
		ColorSpace: cs.family,
	}
	if !p.Simple() {
		return p, nil
	}

	switch {
	case cs.base != nil:
		p.img, err = s.indexed(cs)
	case cs.comps == 1:
		p.img = s.gray(decodeInversion(dict, 1))
	case cs.comps == 3:
		p.img = s.rgb(decodeInversion(dict, 3))
	default:
		err = fmt.Errorf("unsupported %d-component colour space %s", cs.comps, cs.family)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// applySoftMask adds the /SMask stream as an alpha channel.
func (p *Pixmap) applySoftMask(smask *core.Stream) error {
	mw, mh, err := imageSize(smask.Dict)
	if err != nil {
		return fmt.Errorf("soft mask: %w", err)
	}
	data, err := smask.Decode()
	if err != nil {
		return fmt.Errorf("decoding soft mask: %w", err)
	}
	bpc := 8
	if v, ok := smask.Dict.GetInt("BitsPerComponent"); ok {
		bpc = int(v)
	}
	s, err := newSamples(data, bpc, 1, mw, mh)
	if err != nil {
		return fmt.Errorf("soft mask: %w", err)
	}

	p.Channels++
	p.Alpha = 1
	if p.img == nil {
		return nil
	}

	out := image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height))
	for y := 0; y < p.Height; y++ {
		my := y * mh / p.Height
		for x := 0; x < p.Width; x++ {
			c := color.NRGBAModel.Convert(p.img.At(x, y)).(color.NRGBA)
			c.A = s.value(x*mw/p.Width, my, 0)
			out.SetNRGBA(x, y, c)
		}
	}
	p.img = out
	return nil
}

func imageSize(dict core.Dict) (int, int, error) {
	w, wok := dict.GetInt("Width")
	h, hok := dict.GetInt("Height")
	if !wok || !hok {
		return 0, 0, fmt.Errorf("image missing /Width or /Height")
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid image size %dx%d", w, h)
	}
	return int(w), int(h), nil
}

// lastFilter returns the final filter applied to a stream, which determines
// the encoding of the decoded bytes.
func lastFilter(dict core.Dict) string {
	switch f := dict.Get("Filter").(type) {
	case core.Name:
		return string(f)
	case core.Array:
		if f.Len() == 0 {
			return ""
		}
		if name, ok := f.GetName(f.Len() - 1); ok {
			return string(name)
		}
	}
	return ""
}

// decodeInversion reports, per component, whether the /Decode array maps
// samples from 1 down to 0.
func decodeInversion(dict core.Dict, comps int) []bool {
	inv := make([]bool, comps)
	arr, ok := dict.GetArray("Decode")
	if !ok {
		return inv
	}
	for c := 0; c < comps && 2*c+1 < arr.Len(); c++ {
		inv[c] = number(arr.Get(2*c)) > number(arr.Get(2*c+1))
	}
	return inv
}

func number(obj core.Object) float64 {
	switch v := obj.(type) {
	case core.Int:
		return float64(v)
	case core.Real:
		return float64(v)
	}
	return 0
}

// samples gives random access to packed image samples.
type samples struct {
	data   []byte
	bpc    int
	comps  int
	width  int
	height int
	stride int
}

func newSamples(data []byte, bpc, comps, width, height int) (samples, error) {
	switch bpc {
	case 1, 2, 4, 8, 16:
	default:
		return samples{}, fmt.Errorf("unsupported bits per component: %d", bpc)
	}
	stride := (width*comps*bpc + 7) / 8
	if want := stride * height; len(data) < want {
		return samples{}, fmt.Errorf("image data too short: got %d bytes, want %d", len(data), want)
	}
	return samples{data: data, bpc: bpc, comps: comps, width: width, height: height, stride: stride}, nil
}

// raw returns the unscaled sample for component c of pixel (x, y).
func (s samples) raw(x, y, c int) int {
	bit := (x*s.comps + c) * s.bpc
	row := s.data[y*s.stride:]
	switch s.bpc {
	case 8:
		return int(row[bit/8])
	case 16:
		return int(row[bit/8])<<8 | int(row[bit/8+1])
	default:
		shift := 8 - s.bpc - bit%8
		return int(row[bit/8]>>shift) & (1<<s.bpc - 1)
	}
}

// value returns the sample scaled to 8 bits.
func (s samples) value(x, y, c int) uint8 {
	top := 1<<s.bpc - 1
	return uint8(s.raw(x, y, c) * 255 / top)
}

func (s samples) gray(invert []bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			v := s.value(x, y, 0)
			if invert[0] {
				v = 255 - v
			}
			img.Pix[y*img.Stride+x] = v
		}
	}
	return img
}

func (s samples) rgb(invert []bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			off := y*img.Stride + x*4
			for c := 0; c < 3; c++ {
				v := s.value(x, y, c)
				if invert[c] {
					v = 255 - v
				}
				img.Pix[off+c] = v
			}
			img.Pix[off+3] = 0xff
		}
	}
	return img
}

// indexed expands palette indices through the lookup table of cs.
func (s samples) indexed(cs *colorSpace) (image.Image, error) {
	nb := cs.base.comps
	entry := func(x, y int) []byte {
		idx := min(s.raw(x, y, 0), cs.hival)
		off := idx * nb
		if off+nb > len(cs.lookup) {
			return make([]byte, nb)
		}
		return cs.lookup[off : off+nb]
	}

	switch nb {
	case 1:
		img := image.NewGray(image.Rect(0, 0, s.width, s.height))
		for y := 0; y < s.height; y++ {
			for x := 0; x < s.width; x++ {
				img.Pix[y*img.Stride+x] = entry(x, y)[0]
			}
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
		for y := 0; y < s.height; y++ {
			for x := 0; x < s.width; x++ {
				e := entry(x, y)
				off := y*img.Stride + x*4
				copy(img.Pix[off:off+3], e)
				img.Pix[off+3] = 0xff
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported indexed base with %d components", nb)
	}
}
