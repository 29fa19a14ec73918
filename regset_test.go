package mbquery

import (
	"errors"
	"testing"
)

func TestParseRegisterSetRead(t *testing.T) {
	var entries []RegisterSetEntry
	var err error

	entries, err = ParseRegisterSet("1-3,5", READ_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	assertAddrs(t, entries, []uint16{1, 2, 3, 5})
	for _, entry := range entries {
		if entry.HasValue {
			t.Errorf("read entries should not carry values (register %v)",
				entry.Addr)
		}
	}

	// a single address
	entries, err = ParseRegisterSet("40123", READ_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	assertAddrs(t, entries, []uint16{40123})

	// a one-register range
	entries, err = ParseRegisterSet("7-7", READ_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	assertAddrs(t, entries, []uint16{7})

	// overlapping ranges and singletons: duplicates collapse onto their
	// first occurrence, which fixes their position
	entries, err = ParseRegisterSet("5,1-3,2-4,5", READ_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	assertAddrs(t, entries, []uint16{5, 1, 2, 3, 4})

	// full address range endpoints
	entries, err = ParseRegisterSet("0,65535", READ_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	assertAddrs(t, entries, []uint16{0, 65535})

	return
}

func TestParseRegisterSetWrite(t *testing.T) {
	var entries []RegisterSetEntry
	var err error

	entries, err = ParseRegisterSet("17=0x2A,42=17", WRITE_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %v", len(entries))
	}
	if entries[0].Addr != 17 || entries[0].Value != 42 || !entries[0].HasValue {
		t.Errorf("expected (17, 42), got (%v, %v)",
			entries[0].Addr, entries[0].Value)
	}
	if entries[1].Addr != 42 || entries[1].Value != 17 || !entries[1].HasValue {
		t.Errorf("expected (42, 17), got (%v, %v)",
			entries[1].Addr, entries[1].Value)
	}

	// duplicate write targets: first occurrence wins, value included
	entries, err = ParseRegisterSet("17=1,17=2", WRITE_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %v", len(entries))
	}
	if entries[0].Addr != 17 || entries[0].Value != 1 {
		t.Errorf("expected (17, 1), got (%v, %v)",
			entries[0].Addr, entries[0].Value)
	}

	// boundary value
	entries, err = ParseRegisterSet("9=65535", WRITE_MODE)
	if err != nil {
		t.Errorf("ParseRegisterSet() should have succeeded, got %v", err)
	}
	if entries[0].Value != 65535 {
		t.Errorf("expected value 65535, got %v", entries[0].Value)
	}

	return
}

func TestParseRegisterSetErrors(t *testing.T) {
	var testCases = []struct {
		text string
		mode Mode
	}{
		{"", READ_MODE},          // empty expression
		{"5-2", READ_MODE},       // descending range
		{"70000", READ_MODE},     // address out of range
		{"1-70000", READ_MODE},   // range endpoint out of range
		{"1-2-3", READ_MODE},     // malformed range
		{"1,,2", READ_MODE},      // empty group
		{"a", READ_MODE},         // not a number
		{"0x10", READ_MODE},      // addresses are decimal only
		{"17=42", READ_MODE},     // assignment in read mode
		{"5-10=1", WRITE_MODE},   // range with value in write mode
		{"5-10", WRITE_MODE},     // range in write mode
		{"17", WRITE_MODE},       // write target without value
		{"17==2", WRITE_MODE},    // malformed assignment
		{"17=65536", WRITE_MODE}, // value out of range
		{"17=-1", WRITE_MODE},    // negative value
		{"17=0x", WRITE_MODE},    // empty hex value
	}

	for _, tc := range testCases {
		var err error

		_, err = ParseRegisterSet(tc.text, tc.mode)
		if !errors.Is(err, ErrParseError) {
			t.Errorf("ParseRegisterSet(%q, %v) should have failed with "+
				"ErrParseError, got %v", tc.text, tc.mode, err)
		}
	}

	return
}

func assertAddrs(t *testing.T, entries []RegisterSetEntry, expected []uint16) {
	t.Helper()

	if len(entries) != len(expected) {
		t.Errorf("expected %v entries, got %v", len(expected), len(entries))
		return
	}

	for i, addr := range expected {
		if entries[i].Addr != addr {
			t.Errorf("expected address %v at position %v, got %v",
				addr, i, entries[i].Addr)
		}
	}

	return
}
