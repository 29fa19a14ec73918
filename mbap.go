package mbquery

import (
	"encoding/binary"
)

const (
	maxTCPFrameLength int = 260
	mbapHeaderLength  int = 7
)

func uint16ToBytes(in uint16) (out []byte) {
	out = make([]byte, 2)
	binary.BigEndian.PutUint16(out, in)

	return
}

func bytesToUint16(in []byte) (out uint16) {
	out = binary.BigEndian.Uint16(in)

	return
}

func bytesToUint16s(in []byte) (out []uint16) {
	for i := 0; i < len(in); i += 2 {
		out = append(out, binary.BigEndian.Uint16(in[i:i+2]))
	}

	return
}

// Turns a PDU into an MBAP frame (MBAP header + PDU) and returns it as bytes.
func assembleMBAPFrame(txnID uint16, p *pdu) (adu []byte) {
	// transaction identifier
	adu = uint16ToBytes(txnID)
	// protocol identifier (always 0x0000)
	adu = append(adu, 0x00, 0x00)
	// length (covers unit identifier + function code + payload fields)
	adu = append(adu, uint16ToBytes(uint16(2+len(p.payload)))...)
	// unit identifier
	adu = append(adu, p.unitID)
	// function code
	adu = append(adu, p.functionCode)
	// payload
	adu = append(adu, p.payload...)

	return
}

// Builds a read holding registers (0x03) request PDU for the given span.
func readRegistersRequest(unitID uint8, span ReadSpan) (p *pdu, err error) {
	if span.Count == 0 || uint(span.Count) > maxSpanLength {
		err = ErrUnexpectedParameters
		return
	}

	if uint32(span.Start)+uint32(span.Count)-1 > 0xffff {
		err = ErrUnexpectedParameters
		return
	}

	p = &pdu{
		unitID:       unitID,
		functionCode: fcReadHoldingRegisters,
	}

	// start address
	p.payload = uint16ToBytes(span.Start)
	// quantity of registers
	p.payload = append(p.payload, uint16ToBytes(span.Count)...)

	return
}

// Builds a write single register (0x06) request PDU.
func writeRegisterRequest(unitID uint8, addr uint16, value uint16) (p *pdu) {
	p = &pdu{
		unitID:       unitID,
		functionCode: fcWriteSingleRegister,
	}

	// register address
	p.payload = uint16ToBytes(addr)
	// register value
	p.payload = append(p.payload, uint16ToBytes(value)...)

	return
}

// Decodes a read holding registers response and returns the register
// values. An exception response surfaces as the error matching its
// exception code.
func decodeReadRegistersResponse(quantity uint16, res *pdu) (values []uint16, err error) {
	switch {
	case res.functionCode == fcReadHoldingRegisters:
		// expect 1 byte of byte count + 2 bytes per register
		if len(res.payload) != 1+2*int(quantity) {
			err = ErrShortFrame
			return
		}

		// validate the byte count field
		if uint(res.payload[0]) != 2*uint(quantity) {
			err = ErrProtocolError
			return
		}

		values = bytesToUint16s(res.payload[1:])

	case res.functionCode == (fcReadHoldingRegisters | 0x80):
		err = decodeException(res)

	default:
		err = ErrProtocolError
	}

	return
}

// Decodes a write single register response, which echoes the request's
// address and value on success.
func decodeWriteRegisterResponse(addr uint16, value uint16, res *pdu) (err error) {
	switch {
	case res.functionCode == fcWriteSingleRegister:
		// expect 2 bytes of address + 2 bytes of value
		if len(res.payload) != 4 {
			err = ErrShortFrame
			return
		}

		if bytesToUint16(res.payload[0:2]) != addr ||
			bytesToUint16(res.payload[2:4]) != value {
			err = ErrProtocolError
			return
		}

	case res.functionCode == (fcWriteSingleRegister | 0x80):
		err = decodeException(res)

	default:
		err = ErrProtocolError
	}

	return
}

// Decodes the single-byte exception code of a response whose function code
// has its high bit set.
func decodeException(res *pdu) (err error) {
	if len(res.payload) < 1 {
		err = ErrShortFrame
		return
	}

	err = mapExceptionCodeToError(res.payload[0])

	return
}
