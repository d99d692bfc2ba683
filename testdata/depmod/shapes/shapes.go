package shapes

type Shape interface {
	Area() int
}

type Rect struct {
	W, H int
}

func (r Rect) Area() int {
	return r.W * r.H
}

type Circle struct {
	R int
}

func (c Circle) Area() int {
	return 3 * c.R * c.R
}

// Measure is called with both shapes, so its Area call has two callees.
func Measure(sh Shape) int {
	area := sh.Area()
	return area
}

func Both() int {
	return Measure(Rect{W: 2, H: 3}) + Measure(Circle{R: 1})
}
