package sat

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBounds(t *testing.T) {
	lo8, hi8 := Bounds[int8]()
	assert.Equal(t, int8(math.MinInt8), lo8)
	assert.Equal(t, int8(math.MaxInt8), hi8)

	lo64, hi64 := Bounds[int64]()
	assert.Equal(t, int64(math.MinInt64), lo64)
	assert.Equal(t, int64(math.MaxInt64), hi64)

	ulo, uhi := Bounds[uint16]()
	assert.Equal(t, uint16(0), ulo)
	assert.Equal(t, uint16(math.MaxUint16), uhi)

	type myInt int32
	lo, hi := Bounds[myInt]()
	assert.Equal(t, myInt(math.MinInt32), lo)
	assert.Equal(t, myInt(math.MaxInt32), hi)
}

func TestAdd(t *testing.T) {
	assert.Equal(t, 5, Add(2, 3))
	assert.Equal(t, int8(127), Add[int8](100, 100))
	assert.Equal(t, int8(-128), Add[int8](-100, -100))
	assert.Equal(t, int8(-1), Add[int8](-128, 127))
	assert.Equal(t, uint8(255), Add[uint8](200, 100))
	assert.Equal(t, uint64(math.MaxUint64), Add[uint64](math.MaxUint64, 1))
	assert.Equal(t, int64(math.MaxInt64), Add[int64](math.MaxInt64, math.MaxInt64))
}

func TestSub(t *testing.T) {
	assert.Equal(t, -1, Sub(2, 3))
	assert.Equal(t, int8(-128), Sub[int8](-100, 100))
	assert.Equal(t, int8(127), Sub[int8](100, -100))
	assert.Equal(t, int8(127), Sub[int8](0, -128))
	assert.Equal(t, int8(-1), Sub[int8](-1, 0))
	assert.Equal(t, uint8(0), Sub[uint8](3, 5))
	assert.Equal(t, uint32(2), Sub[uint32](5, 3))
}

func TestAbs(t *testing.T) {
	assert.Equal(t, 4, Abs(-4))
	assert.Equal(t, 4, Abs(4))
	assert.Equal(t, int8(127), Abs[int8](math.MinInt8))
	assert.Equal(t, int16(math.MaxInt16), Abs[int16](math.MinInt16))
	assert.Equal(t, uint8(200), Abs[uint8](200))
}

func clamp(v *big.Int, lo, hi int64) int64 {
	switch {
	case v.Cmp(big.NewInt(lo)) < 0:
		return lo
	case v.Cmp(big.NewInt(hi)) > 0:
		return hi
	}
	return v.Int64()
}

// Every int8 pair agrees with the exact result clamped to the type range.
func TestInt8Exhaustive(t *testing.T) {
	for x := math.MinInt8; x <= math.MaxInt8; x++ {
		for y := math.MinInt8; y <= math.MaxInt8; y++ {
			sum := clamp(big.NewInt(int64(x+y)), math.MinInt8, math.MaxInt8)
			diff := clamp(big.NewInt(int64(x-y)), math.MinInt8, math.MaxInt8)
			if got := Add(int8(x), int8(y)); int64(got) != sum {
				t.Fatalf("Add(%d, %d) = %d, want %d", x, y, got, sum)
			}
			if got := Sub(int8(x), int8(y)); int64(got) != diff {
				t.Fatalf("Sub(%d, %d) = %d, want %d", x, y, got, diff)
			}
		}
	}
}

func TestUint8Exhaustive(t *testing.T) {
	for x := 0; x <= math.MaxUint8; x++ {
		for y := 0; y <= math.MaxUint8; y++ {
			sum := clamp(big.NewInt(int64(x+y)), 0, math.MaxUint8)
			diff := clamp(big.NewInt(int64(x-y)), 0, math.MaxUint8)
			assert.Equal(t, uint8(sum), Add(uint8(x), uint8(y)))
			assert.Equal(t, uint8(diff), Sub(uint8(x), uint8(y)))
		}
	}
}
