package mbquery

// Uint16ToInt16 reinterprets a raw 16-bit register value as a signed
// 16-bit integer (two's complement).
func Uint16ToInt16(v uint16) (i int16) {
	i = int16(v)

	return
}

// Int16ToUint16 turns a signed 16-bit integer into its raw register
// representation.
func Int16ToUint16(i int16) (v uint16) {
	v = uint16(i)

	return
}

// RegisterChars renders the two bytes of a register value as characters,
// high byte first, separated by a space. Non-printable control characters
// render as empty strings.
func RegisterChars(v uint16) (s string) {
	s = charForByte(uint8(v>>8)) + " " + charForByte(uint8(v))

	return
}

func charForByte(b uint8) (s string) {
	if b < 0x20 {
		return
	}

	s = string(rune(b))

	return
}
