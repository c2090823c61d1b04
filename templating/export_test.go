package templating

// Exported aliases for testing internal functions from
// the templating_test package.

// SplitTrimForTest exposes splitTrim.
var SplitTrimForTest = splitTrim

// TrimBuffer drives an outBuffer the way render
// primitives do.
type TrimBuffer struct {
	ob outBuffer
}

// Write appends a text chunk.
func (tb *TrimBuffer) Write(s string) { tb.ob.write(s) }

// StripPrev appends a strip-previous marker.
func (tb *TrimBuffer) StripPrev() { tb.ob.mark(chunkStripPrev) }

// StripNext appends a strip-next marker.
func (tb *TrimBuffer) StripNext() { tb.ob.mark(chunkStripNext) }

func (tb *TrimBuffer) String() string { return tb.ob.String() }
