package test

import "github.com/nvr-ai/go-register/common"

// Intersection returns the overlapping area of two boxes in pixels.
//
// @example
// a := common.BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}
// b := common.BoundingBox{X: 50, Y: 50, Width: 100, Height: 100}
// test.Intersection(a, b) // 2500
func Intersection(a, b common.BoundingBox) int {
	size := a.ToRect().Intersect(b.ToRect()).Size()
	return size.X * size.Y
}

// IoU scores how closely a detected box matches an expected one.
//
// Returns:
// - The intersection over union in [0, 1]. Two empty boxes score 0.
func IoU(a, b common.BoundingBox) float64 {
	inter := Intersection(a, b)
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
