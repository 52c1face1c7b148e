// Package test - Synthetic register fixtures shared by the package tests.
package test

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	// Paper is the background color of generated registers.
	Paper = gocv.NewScalar(255, 255, 255, 0)
	// Ink is the color of ruling lines and marks.
	Ink = gocv.NewScalar(0, 0, 0, 0)
)

// RegisterGenerator creates deterministic photographs of ruled registers.
//
// Cells are laid out on a regular lattice starting at Origin. Each cell is
// outlined with ruling lines of LineWidth pixels centered on the cell edge, so
// a Gap of zero produces a classic table with shared borders and a positive
// Gap produces free-standing boxes.
//
// @example
// gen := NewRegisterGenerator(400, 300)
// frame := gen.Grid(2, 3)
// defer frame.Close()
type RegisterGenerator struct {
	Width, Height         int
	Origin                image.Point
	CellWidth, CellHeight int
	Gap                   int
	LineWidth             int
}

// NewRegisterGenerator creates a new generator with 100x100 cells spaced 10px
// apart and 2px ruling lines.
//
// Arguments:
// - width: Image width in pixels.
// - height: Image height in pixels.
//
// Returns:
// - A configured RegisterGenerator instance.
func NewRegisterGenerator(width, height int) *RegisterGenerator {
	return &RegisterGenerator{
		Width:      width,
		Height:     height,
		CellWidth:  100,
		CellHeight: 100,
		Gap:        10,
		LineWidth:  2,
	}
}

// Blank creates a white 3-channel page.
func (g *RegisterGenerator) Blank() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(Paper, g.Height, g.Width, gocv.MatTypeCV8UC3)
}

// CellOrigin returns the top-left corner of the outline of the cell at (row, col).
func (g *RegisterGenerator) CellOrigin(row, col int) image.Point {
	return image.Pt(
		g.Origin.X+col*(g.CellWidth+g.Gap),
		g.Origin.Y+row*(g.CellHeight+g.Gap),
	)
}

// Interior returns the expected enclosed region of the cell at (row, col),
// clipped to the page.
func (g *RegisterGenerator) Interior(row, col int) image.Rectangle {
	half := g.LineWidth / 2
	rest := g.LineWidth - half
	o := g.CellOrigin(row, col)
	r := image.Rect(o.X+rest, o.Y+rest, o.X+g.CellWidth-half, o.Y+g.CellHeight-half)
	return r.Intersect(image.Rect(0, 0, g.Width, g.Height))
}

// Grid draws a rows x cols register on a blank page.
//
// Returns:
// - A BGR Mat. The caller must Close it.
func (g *RegisterGenerator) Grid(rows, cols int) gocv.Mat {
	frame := g.Blank()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Outline(&frame, r, c)
		}
	}
	return frame
}

// Outline draws the four ruling lines of one cell.
func (g *RegisterGenerator) Outline(frame *gocv.Mat, row, col int) {
	half := g.LineWidth / 2
	rest := g.LineWidth - half
	o := g.CellOrigin(row, col)
	w, h := g.CellWidth, g.CellHeight

	FillRect(frame, image.Rect(o.X-half, o.Y-half, o.X+w+rest, o.Y+rest), Ink)     // top
	FillRect(frame, image.Rect(o.X-half, o.Y+h-half, o.X+w+rest, o.Y+h+rest), Ink) // bottom
	FillRect(frame, image.Rect(o.X-half, o.Y-half, o.X+rest, o.Y+h+rest), Ink)     // left
	FillRect(frame, image.Rect(o.X+w-half, o.Y-half, o.X+w+rest, o.Y+h+rest), Ink) // right
}

// FillRect paints r (clipped to the frame) with a solid color.
func FillRect(frame *gocv.Mat, r image.Rectangle, s gocv.Scalar) {
	r = r.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if r.Empty() {
		return
	}
	region := frame.Region(r)
	defer region.Close()
	region.SetTo(s)
}

// DrawBlob draws a filled ink disk, standing in for a handwritten mark.
func DrawBlob(frame *gocv.Mat, center image.Point, radius int) {
	gocv.Circle(frame, center, radius, color.RGBA{0, 0, 0, 0}, -1)
}

// DrawStroke draws a short diagonal pen stroke.
func DrawStroke(frame *gocv.Mat, from, to image.Point, thickness int) {
	gocv.Line(frame, from, to, color.RGBA{0, 0, 0, 0}, thickness)
}

// Shade darkens the page linearly from left to right by up to amount (0..1),
// simulating uneven illumination across a photographed page.
func Shade(frame *gocv.Mat, amount float64) {
	cols, rows, ch := frame.Cols(), frame.Rows(), frame.Channels()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			factor := 1 - amount*float64(x)/float64(cols)
			for c := 0; c < ch; c++ {
				v := frame.GetUCharAt(y, x*ch+c)
				frame.SetUCharAt(y, x*ch+c, uint8(float64(v)*factor))
			}
		}
	}
}
