package mbquery

import (
	"sort"
)

// Modbus allows at most 125 holding registers per read request
// (see MODBUS Application Protocol Specification v1.1b3, section 6.3).
const maxSpanLength uint = 125

// DefaultMaxGapWaste is the default number of unrequested registers
// tolerated inside a merged read span.
const DefaultMaxGapWaste uint16 = 10

// ReadSpan is a contiguous run of register addresses serviced by a single
// read holding registers request.
type ReadSpan struct {
	Start uint16
	Count uint16
}

// BatchReadSpans partitions a set of register addresses into contiguous,
// protocol-legal read spans. Sorted neighbors are greedily merged into the
// current span as long as the hole between them does not exceed
// maxGapWaste registers and the merged span stays within the 125 register
// per-request limit. Registers inside a tolerated hole are fetched and
// discarded, trading a little wire waste for one less round trip.
func BatchReadSpans(addrs []uint16, maxGapWaste uint16) (spans []ReadSpan) {
	var sorted []uint16
	var span ReadSpan

	if len(addrs) == 0 {
		return
	}

	sorted = make([]uint16, len(addrs))
	copy(sorted, addrs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	span = ReadSpan{Start: sorted[0], Count: 1}

	for _, addr := range sorted[1:] {
		var spanEnd uint16
		var merged uint

		spanEnd = span.Start + span.Count - 1
		if addr == spanEnd {
			// duplicate address
			continue
		}

		// span length if extended to cover addr, gap included
		merged = uint(addr) - uint(span.Start) + 1

		if uint(addr)-uint(spanEnd)-1 <= uint(maxGapWaste) &&
			merged <= maxSpanLength {
			span.Count = uint16(merged)
			continue
		}

		spans = append(spans, span)
		span = ReadSpan{Start: addr, Count: 1}
	}

	spans = append(spans, span)

	return
}
