package mbquery

import (
	"fmt"
	"strconv"
	"strings"
)

type Mode uint

const (
	READ_MODE  Mode = 0
	WRITE_MODE Mode = 1
)

// RegisterSetEntry is a single requested register, with a value attached
// in write mode.
type RegisterSetEntry struct {
	Addr     uint16
	Value    uint16
	HasValue bool
}

// ParseRegisterSet parses a comma-separated register set expression into
// an ordered, deduplicated list of entries.
//
// Accepted tokens are:
//   - N     a single address (read mode),
//   - N-M   an inclusive ascending address range (read mode),
//   - N=V   an address with a value, V being decimal or 0x-prefixed
//     hexadecimal (write mode).
//
// Duplicate addresses collapse onto their first occurrence, which also
// determines their position and, in write mode, their value.
func ParseRegisterSet(text string, mode Mode) (entries []RegisterSetEntry, err error) {
	var seen map[uint16]bool

	seen = make(map[uint16]bool)

	for _, token := range strings.Split(text, ",") {
		if token == "" {
			err = fmt.Errorf("%w: empty register group", ErrParseError)
			return
		}

		switch {
		case strings.Contains(token, "="):
			var entry RegisterSetEntry

			if mode != WRITE_MODE {
				err = fmt.Errorf("%w: value assignment '%s' is only valid "+
					"in write mode", ErrParseError, token)
				return
			}

			entry, err = parseAssignment(token)
			if err != nil {
				return
			}

			if !seen[entry.Addr] {
				seen[entry.Addr] = true
				entries = append(entries, entry)
			}

		case strings.Contains(token, "-"):
			var start, end uint16

			if mode != READ_MODE {
				err = fmt.Errorf("%w: ranges are not supported in write "+
					"mode ('%s')", ErrParseError, token)
				return
			}

			start, end, err = parseRange(token)
			if err != nil {
				return
			}

			for addr := uint(start); addr <= uint(end); addr++ {
				if !seen[uint16(addr)] {
					seen[uint16(addr)] = true
					entries = append(entries, RegisterSetEntry{Addr: uint16(addr)})
				}
			}

		default:
			var addr uint16

			if mode != READ_MODE {
				err = fmt.Errorf("%w: write target '%s' is missing a "+
					"=value assignment", ErrParseError, token)
				return
			}

			addr, err = parseAddress(token)
			if err != nil {
				return
			}

			if !seen[addr] {
				seen[addr] = true
				entries = append(entries, RegisterSetEntry{Addr: addr})
			}
		}
	}

	if len(entries) == 0 {
		err = fmt.Errorf("%w: empty register set", ErrParseError)
		return
	}

	return
}

// Parses an N-M range token.
func parseRange(token string) (start uint16, end uint16, err error) {
	var fields []string

	fields = strings.Split(token, "-")
	if len(fields) != 2 {
		err = fmt.Errorf("%w: malformed register range '%s'",
			ErrParseError, token)
		return
	}

	start, err = parseAddress(fields[0])
	if err != nil {
		return
	}

	end, err = parseAddress(fields[1])
	if err != nil {
		return
	}

	if end < start {
		err = fmt.Errorf("%w: descending register range '%s'",
			ErrParseError, token)
		return
	}

	return
}

// Parses an N=V assignment token.
func parseAssignment(token string) (entry RegisterSetEntry, err error) {
	var fields []string

	fields = strings.Split(token, "=")
	if len(fields) != 2 {
		err = fmt.Errorf("%w: malformed register assignment '%s'",
			ErrParseError, token)
		return
	}

	entry.Addr, err = parseAddress(fields[0])
	if err != nil {
		return
	}

	entry.Value, err = parseValue(fields[1])
	if err != nil {
		return
	}

	entry.HasValue = true

	return
}

// Parses a decimal register address in [0, 65535].
func parseAddress(s string) (addr uint16, err error) {
	var u64 uint64

	u64, err = strconv.ParseUint(s, 10, 16)
	if err != nil {
		err = fmt.Errorf("%w: invalid register address '%s'",
			ErrParseError, s)
		return
	}

	addr = uint16(u64)

	return
}

// Parses a decimal or 0x-prefixed hexadecimal register value in [0, 65535].
func parseValue(s string) (value uint16, err error) {
	var u64 uint64

	if strings.HasPrefix(s, "0x") {
		u64, err = strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	} else {
		u64, err = strconv.ParseUint(s, 10, 16)
	}
	if err != nil {
		err = fmt.Errorf("%w: invalid register value '%s'",
			ErrParseError, s)
		return
	}

	value = uint16(u64)

	return
}
