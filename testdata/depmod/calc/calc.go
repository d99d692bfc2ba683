package calc

import "strings"

// Limit caps totals.
var Limit = 100

type Shape interface {
	Area() int
}

type Square struct {
	Side int
}

func (s Square) Area() int {
	return s.Side * s.Side
}

type Counter struct {
	n int
}

func (c *Counter) Next() int {
	c.n = c.n + 1
	return c.n
}

func double(v int) int {
	return v * 2
}

func Total(xs []int, sh Shape) int {
	sum := 0
	for _, x := range xs {
		sum = sum + x
	}
	scaled := double(sum)
	area := sh.Area()
	var capped = scaled + Limit
	name := strings.ToUpper("x")
	_ = name
	a, b := split(capped)
	c := Counter{}
	next := c.Next()
	return a + b + area + next
}

func split(v int) (int, int) {
	return v / 2, v - v/2
}

func Use() int {
	return Total([]int{1, 2}, Square{Side: 3})
}

func fill(buf []int, v int) {
	buf[0] = v
}
