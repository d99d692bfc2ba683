package calc

func noop() {}

func lookup(m map[string]int) int {
	return m["k"] + Limit
}
