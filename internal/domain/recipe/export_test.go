package recipe

// WrapLineScan calls before with every line the extractor consumes
// until restore is called.
func WrapLineScan(before func(line string)) (restore func()) {
	prev := consumeLine
	consumeLine = func(ex *extraction, line string) {
		before(line)
		prev(ex, line)
	}
	return func() { consumeLine = prev }
}
