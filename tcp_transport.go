package mbquery

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"
)

type tcpTransport struct {
	logger    zerolog.Logger
	socket    net.Conn
	timeout   time.Duration
	lastTxnID uint16
}

// Returns a new TCP transport wrapping an open socket.
func newTCPTransport(socket net.Conn, timeout time.Duration, logger zerolog.Logger) (tt *tcpTransport) {
	tt = &tcpTransport{
		socket:  socket,
		timeout: timeout,
		logger:  logger.With().Str("component", "tcp-transport").Logger(),
	}

	return
}

// Closes the underlying tcp socket.
func (tt *tcpTransport) Close() (err error) {
	err = tt.socket.Close()

	return
}

// Runs a request across the socket and returns a response.
func (tt *tcpTransport) ExecuteRequest(req *pdu) (res *pdu, err error) {
	// set an i/o deadline on the socket (read and write).
	// a timeout of zero waits indefinitely.
	if tt.timeout > 0 {
		err = tt.socket.SetDeadline(time.Now().Add(tt.timeout))
	} else {
		err = tt.socket.SetDeadline(time.Time{})
	}
	if err != nil {
		return
	}

	// increase the transaction ID counter
	tt.lastTxnID++

	tt.logger.Debug().
		Uint16("txn_id", tt.lastTxnID).
		Uint8("function_code", req.functionCode).
		Msg("sending request")

	_, err = tt.socket.Write(assembleMBAPFrame(tt.lastTxnID, req))
	if err != nil {
		err = mapNetworkError(err)
		return
	}

	res, err = tt.readResponse()

	return
}

// Reads as many MBAP+modbus frames as necessary until either the response
// matching tt.lastTxnID is received or an error occurs.
func (tt *tcpTransport) readResponse() (res *pdu, err error) {
	var txnID uint16

	for {
		// grab a frame
		res, txnID, err = tt.readMBAPFrame()

		// ignore unknown protocol identifiers
		if err == ErrUnknownProtocolID {
			continue
		}

		// abort on any other error
		if err != nil {
			return
		}

		// ignore unknown transaction identifiers
		if tt.lastTxnID != txnID {
			tt.logger.Warn().
				Uint16("expected", tt.lastTxnID).
				Uint16("received", txnID).
				Msg("ignoring unexpected transaction id")
			continue
		}

		break
	}

	return
}

// Reads an entire frame (MBAP header + modbus PDU) from the socket.
func (tt *tcpTransport) readMBAPFrame() (p *pdu, txnID uint16, err error) {
	var rxbuf []byte
	var bytesNeeded int
	var protocolID uint16
	var unitID uint8

	// read the MBAP header
	rxbuf = make([]byte, mbapHeaderLength)
	_, err = io.ReadFull(tt.socket, rxbuf)
	if err != nil {
		err = mapNetworkError(err)
		return
	}

	// decode the transaction identifier
	txnID = bytesToUint16(rxbuf[0:2])
	// decode the protocol identifier
	protocolID = bytesToUint16(rxbuf[2:4])
	// store the source unit id
	unitID = rxbuf[6]

	// determine how many more bytes we need to read
	bytesNeeded = int(bytesToUint16(rxbuf[4:6]))

	// the byte count includes the unit ID field, which we already have
	bytesNeeded--

	// never read more than the max allowed frame length
	if bytesNeeded+mbapHeaderLength > maxTCPFrameLength {
		err = ErrProtocolError
		return
	}

	// an MBAP length of 0 is illegal
	if bytesNeeded <= 0 {
		err = ErrProtocolError
		return
	}

	// read the PDU
	rxbuf = make([]byte, bytesNeeded)
	_, err = io.ReadFull(tt.socket, rxbuf)
	if err != nil {
		err = mapNetworkError(err)
		return
	}

	// validate the protocol identifier
	if protocolID != 0x0000 {
		err = ErrUnknownProtocolID
		tt.logger.Warn().
			Uint16("protocol_id", protocolID).
			Msg("received unexpected protocol id")
		return
	}

	// store unit id, function code and payload in the PDU object
	p = &pdu{
		unitID:       unitID,
		functionCode: rxbuf[0],
		payload:      rxbuf[1:],
	}

	return
}

// Turns i/o deadline expirations into ErrRequestTimedOut and leaves any
// other network error untouched.
func mapNetworkError(err error) error {
	var netErr net.Error

	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrRequestTimedOut
	}

	return err
}
