package main

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	goruntime "runtime"
)

const iconSize = 32

// kosmiPurple is the glyph fill. The loader spinner uses it too.
var kosmiPurple = color.NRGBA{R: 0x8b, G: 0x5c, B: 0xf6, A: 0xff}

// CreateIconRGBA draws the Kosmi glyph: a filled disc with a white ring
// and a small white dot off centre. Edges are antialiased.
func CreateIconRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	c := float64(iconSize) / 2

	cover := func(d, r float64) float64 {
		switch {
		case d <= r-0.5:
			return 1
		case d >= r+0.5:
			return 0
		}
		return r + 0.5 - d
	}

	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			fx := float64(x) + 0.5
			fy := float64(y) + 0.5
			d := math.Hypot(fx-c, fy-c)

			disc := cover(d, c-1)
			if disc == 0 {
				continue
			}

			// Ring between radius 7 and 10, and a dot up and to the right.
			white := math.Max(cover(d, 10)-cover(d, 7), 0)
			dd := math.Hypot(fx-(c+5), fy-(c-5))
			white = math.Max(white, cover(dd, 3))

			px := color.NRGBA{
				R: blend(kosmiPurple.R, 0xff, white),
				G: blend(kosmiPurple.G, 0xff, white),
				B: blend(kosmiPurple.B, 0xff, white),
				A: uint8(disc * 255),
			}
			img.SetNRGBA(x, y, px)
		}
	}
	return img
}

func blend(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a)*(1-t) + float64(b)*t))
}

// iconPNG returns the glyph encoded as PNG.
func iconPNG() []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, CreateIconRGBA()); err != nil {
		return nil
	}
	return buf.Bytes()
}

// trayIconBytes returns the icon in the format the tray expects on this
// platform. Windows wants an ICO container, which may hold a PNG directly.
func trayIconBytes() []byte {
	data := iconPNG()
	if goruntime.GOOS != "windows" || data == nil {
		return data
	}
	return wrapICO(data, iconSize)
}

func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(byte(size))
	buf.WriteByte(byte(size))
	buf.WriteByte(0)
	buf.WriteByte(0)
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(32))
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	binary.Write(&buf, binary.LittleEndian, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}

// writeIconFile stores the PNG glyph in dir for notifications that need an
// icon path. It returns the path written.
func writeIconFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "kosmi.png")
	if err := os.WriteFile(path, iconPNG(), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
