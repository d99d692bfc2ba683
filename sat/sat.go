// Package sat provides saturating integer arithmetic. Results that would
// overflow are clamped to the bounds of the operand type instead of wrapping.
package sat

import "unsafe"

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

func signed[T Integer]() bool {
	var zero T
	return ^zero < zero
}

// Bounds returns the smallest and largest values of T.
func Bounds[T Integer]() (lo, hi T) {
	var zero T
	if !signed[T]() {
		return 0, ^zero
	}
	lo = T(1) << (unsafe.Sizeof(zero)*8 - 1)
	return lo, ^lo
}

// Add returns x + y clamped to the range of T.
func Add[T Integer](x, y T) T {
	lo, hi := Bounds[T]()
	s := x + y
	if !signed[T]() {
		if s < x {
			return hi
		}
		return s
	}
	switch {
	case x > 0 && y > 0 && s < 0:
		return hi
	case x < 0 && y < 0 && s >= 0:
		return lo
	}
	return s
}

// Sub returns x - y clamped to the range of T.
func Sub[T Integer](x, y T) T {
	lo, hi := Bounds[T]()
	if !signed[T]() {
		if y > x {
			return lo
		}
		return x - y
	}
	d := x - y
	switch {
	case x >= 0 && y < 0 && d < 0:
		return hi
	case x < 0 && y > 0 && d >= 0:
		return lo
	}
	return d
}

// Abs returns |x|. The minimum of a signed type maps to its maximum.
func Abs[T Integer](x T) T {
	lo, hi := Bounds[T]()
	if !signed[T]() || x >= 0 {
		return x
	}
	if x == lo {
		return hi
	}
	return -x
}
