package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	boxLineWidth     = 2
	labelStripHeight = 35
)

var (
	boxColor  = color.RGBA{0, 255, 0, 255}
	textColor = color.RGBA{255, 255, 255, 255}
)

// annotate draws one face onto the canvas: a green rectangle, a filled label
// strip along the inside bottom edge with the name in white, and for known
// faces the confidence percentage above the box.
func annotate(dst *image.RGBA, face DetectedFace) {
	drawBox(dst, face.Box, boxLineWidth, boxColor)

	strip := image.Rect(
		face.Box.Min.X,
		face.Box.Max.Y-labelStripHeight,
		face.Box.Max.X,
		face.Box.Max.Y,
	).Intersect(dst.Bounds())
	draw.Draw(dst, strip, image.NewUniform(boxColor), image.Point{}, draw.Src)

	drawText(dst, face.Box.Min.X+6, face.Box.Max.Y-12, face.Label, textColor)

	if face.Known {
		conf := fmt.Sprintf("%.1f%%", face.Confidence*100)
		drawText(dst, face.Box.Min.X+6, face.Box.Min.Y-6, conf, boxColor)
	}
}

// drawText renders a string with the fixed 7x13 bitmap face. Text falling
// outside the canvas is clipped by the drawer.
func drawText(dst *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawBox draws a rectangle outline with the given line width.
func drawBox(dst *image.RGBA, r image.Rectangle, lineWidth int, c color.RGBA) {
	for w := range lineWidth {
		drawHLine(dst, r.Min.X, r.Max.X, r.Min.Y+w, c)
		drawHLine(dst, r.Min.X, r.Max.X, r.Max.Y-w, c)
		drawVLine(dst, r.Min.Y, r.Max.Y, r.Min.X+w, c)
		drawVLine(dst, r.Min.Y, r.Max.Y, r.Max.X-w, c)
	}
}

// drawHLine draws a horizontal line on the image.
func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	bounds := dst.Bounds()
	if y < 0 || y >= bounds.Dy() {
		return
	}
	for x := x1; x <= x2; x++ {
		if x >= 0 && x < bounds.Dx() {
			dst.Set(x, y, c)
		}
	}
}

// drawVLine draws a vertical line on the image.
func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	bounds := dst.Bounds()
	if x < 0 || x >= bounds.Dx() {
		return
	}
	for y := y1; y <= y2; y++ {
		if y >= 0 && y < bounds.Dy() {
			dst.Set(x, y, c)
		}
	}
}
