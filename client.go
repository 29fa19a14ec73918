package mbquery

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ClientConfiguration holds the connection parameters of a ModbusClient.
type ClientConfiguration struct {
	// URL is the server address as host:port, with an optional tcp://
	// scheme prefix.
	URL string
	// UnitID is the target unit (slave) identifier.
	UnitID uint8
	// Timeout bounds the connection attempt and each request/response
	// exchange. A timeout of zero waits indefinitely.
	Timeout time.Duration
	// MaxGapWaste is the number of unrequested registers tolerated
	// inside a merged read span (see BatchReadSpans). Defaults to
	// DefaultMaxGapWaste when zero.
	MaxGapWaste uint16
	// Logger receives protocol-level events. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// ModbusClient services logical read/write register set operations over a
// single Modbus TCP connection.
type ModbusClient struct {
	conf      ClientConfiguration
	logger    zerolog.Logger
	lock      sync.Mutex
	transport *tcpTransport
}

// RegisterResult is the per-address outcome of a read or write operation:
// either a raw 16-bit register value or the error which prevented its
// retrieval.
type RegisterResult struct {
	Value uint16
	Err   error
}

// Result maps each requested register address to its outcome. It covers
// exactly the addresses of the requested set.
type Result map[uint16]RegisterResult

// HasErrors returns true if any address of the set failed to resolve.
func (r Result) HasErrors() (failed bool) {
	for _, rr := range r {
		if rr.Err != nil {
			failed = true
			return
		}
	}

	return
}

// NewClient creates a Modbus TCP client from its configuration.
// The connection is established by Open.
func NewClient(conf *ClientConfiguration) (mc *ModbusClient, err error) {
	mc = &ModbusClient{
		conf: *conf,
	}

	mc.conf.URL = strings.TrimPrefix(mc.conf.URL, "tcp://")
	if mc.conf.URL == "" {
		err = ErrConfigurationError
		return
	}

	if mc.conf.MaxGapWaste == 0 {
		mc.conf.MaxGapWaste = DefaultMaxGapWaste
	}

	if mc.conf.Logger == nil {
		nop := zerolog.Nop()
		mc.conf.Logger = &nop
	}
	mc.logger = mc.conf.Logger.With().
		Str("component", "modbus-client").
		Str("server", mc.conf.URL).
		Logger()

	return
}

// Open dials the configured server.
func (mc *ModbusClient) Open() (err error) {
	var sock net.Conn

	mc.lock.Lock()
	defer mc.lock.Unlock()

	if mc.transport != nil {
		err = fmt.Errorf("%w: already connected", ErrConfigurationError)
		return
	}

	if mc.conf.Timeout > 0 {
		sock, err = net.DialTimeout("tcp", mc.conf.URL, mc.conf.Timeout)
	} else {
		sock, err = net.Dial("tcp", mc.conf.URL)
	}
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrConnectionFailed, err)
		return
	}

	mc.transport = newTCPTransport(sock, mc.conf.Timeout, mc.logger)
	mc.logger.Debug().Msg("connected")

	return
}

// Close releases the underlying socket.
func (mc *ModbusClient) Close() (err error) {
	mc.lock.Lock()
	defer mc.lock.Unlock()

	if mc.transport == nil {
		return
	}

	err = mc.transport.Close()
	mc.transport = nil

	return
}

// ReadRegisterSet reads all registers of the requested set, batching them
// into as few read holding registers requests as the protocol allows.
// Requests are issued sequentially; a failed exchange marks every address
// of its span with the error while the remaining spans still proceed. Only
// a raw socket-level error aborts the remaining spans as a batch, as a
// corrupted connection cannot safely continue.
func (mc *ModbusClient) ReadRegisterSet(entries []RegisterSetEntry) (res Result, err error) {
	var addrs []uint16
	var requested map[uint16]bool
	var spans []ReadSpan
	var fatal error

	mc.lock.Lock()
	defer mc.lock.Unlock()

	if mc.transport == nil {
		err = fmt.Errorf("%w: not connected", ErrConnectionFailed)
		return
	}

	if len(entries) == 0 {
		err = fmt.Errorf("%w: empty register set", ErrUnexpectedParameters)
		return
	}

	requested = make(map[uint16]bool, len(entries))
	for _, entry := range entries {
		addrs = append(addrs, entry.Addr)
		requested[entry.Addr] = true
	}

	spans = BatchReadSpans(addrs, mc.conf.MaxGapWaste)
	res = make(Result, len(entries))

	mc.logger.Debug().
		Int("registers", len(requested)).
		Int("spans", len(spans)).
		Msg("reading register set")

	for _, span := range spans {
		var values []uint16
		var spanErr error

		if fatal != nil {
			// connection is unusable, fail the remaining spans as a batch
			markSpan(res, span, requested, fatal)
			continue
		}

		values, spanErr = mc.readSpan(span)
		if spanErr != nil {
			mc.logger.Warn().
				Uint16("start", span.Start).
				Uint16("count", span.Count).
				Err(spanErr).
				Msg("read span failed")

			if !isRecoverable(spanErr) {
				fatal = fmt.Errorf("%w: %v", ErrConnectionFailed, spanErr)
				spanErr = fatal
			}
			markSpan(res, span, requested, spanErr)
			continue
		}

		// distribute returned values onto the requested addresses,
		// discarding gap-waste registers
		for i, value := range values {
			addr := span.Start + uint16(i)
			if requested[addr] {
				res[addr] = RegisterResult{Value: value}
			}
		}
	}

	return
}

// WriteRegisterSet writes each (address, value) entry of the requested set
// with one write single register request per entry. Entries fail
// independently; as with reads, only a socket-level error aborts the
// remaining entries.
func (mc *ModbusClient) WriteRegisterSet(entries []RegisterSetEntry) (res Result, err error) {
	var fatal error

	mc.lock.Lock()
	defer mc.lock.Unlock()

	if mc.transport == nil {
		err = fmt.Errorf("%w: not connected", ErrConnectionFailed)
		return
	}

	if len(entries) == 0 {
		err = fmt.Errorf("%w: empty register set", ErrUnexpectedParameters)
		return
	}

	res = make(Result, len(entries))

	for _, entry := range entries {
		var entryErr error

		if !entry.HasValue {
			res[entry.Addr] = RegisterResult{
				Err: fmt.Errorf("%w: no value for register %v",
					ErrUnexpectedParameters, entry.Addr),
			}
			continue
		}

		if fatal != nil {
			res[entry.Addr] = RegisterResult{Err: fatal}
			continue
		}

		entryErr = mc.writeRegister(entry.Addr, entry.Value)
		if entryErr != nil {
			mc.logger.Warn().
				Uint16("register", entry.Addr).
				Uint16("value", entry.Value).
				Err(entryErr).
				Msg("write failed")

			if !isRecoverable(entryErr) {
				fatal = fmt.Errorf("%w: %v", ErrConnectionFailed, entryErr)
				entryErr = fatal
			}
			res[entry.Addr] = RegisterResult{Err: entryErr}
			continue
		}

		res[entry.Addr] = RegisterResult{Value: entry.Value}
	}

	return
}

/*** unexported methods ***/

// Runs a single read holding registers exchange for the given span.
func (mc *ModbusClient) readSpan(span ReadSpan) (values []uint16, err error) {
	var req, res *pdu

	req, err = readRegistersRequest(mc.conf.UnitID, span)
	if err != nil {
		return
	}

	res, err = mc.executeRequest(req)
	if err != nil {
		return
	}

	values, err = decodeReadRegistersResponse(span.Count, res)

	return
}

// Runs a single write single register exchange.
func (mc *ModbusClient) writeRegister(addr uint16, value uint16) (err error) {
	var res *pdu

	res, err = mc.executeRequest(writeRegisterRequest(mc.conf.UnitID, addr, value))
	if err != nil {
		return
	}

	err = decodeWriteRegisterResponse(addr, value, res)

	return
}

func (mc *ModbusClient) executeRequest(req *pdu) (res *pdu, err error) {
	res, err = mc.transport.ExecuteRequest(req)
	if err != nil {
		return
	}

	// make sure the source unit id matches that of the request
	if (res.functionCode&0x80) == 0x00 && res.unitID != req.unitID {
		err = ErrBadUnitID
		return
	}
	// accept errors from gateway devices (using special unit id #255)
	if (res.functionCode&0x80) == 0x80 &&
		(res.unitID != req.unitID && res.unitID != 0xff) {
		err = ErrBadUnitID
		return
	}

	return
}

// Records err on every requested address covered by the span.
func markSpan(res Result, span ReadSpan, requested map[uint16]bool, err error) {
	for i := uint16(0); i < span.Count; i++ {
		addr := span.Start + i
		if requested[addr] {
			res[addr] = RegisterResult{Err: err}
		}
	}

	return
}

// isRecoverable tells whether an exchange error is confined to its
// span/entry. Timeouts, malformed frames and server exceptions leave the
// connection usable; anything else (i/o errors, resets) does not.
func isRecoverable(err error) (ok bool) {
	for _, kind := range []Error{
		ErrRequestTimedOut,
		ErrShortFrame,
		ErrProtocolError,
		ErrBadUnitID,
		ErrIllegalFunction,
		ErrIllegalDataAddress,
		ErrIllegalDataValue,
		ErrServerDeviceFailure,
		ErrAcknowledge,
		ErrServerDeviceBusy,
		ErrMemoryParityError,
		ErrGWPathUnavailable,
		ErrGWTargetFailedToRespond,
		ErrUnknownExceptionCode,
	} {
		if errors.Is(err, kind) {
			ok = true
			return
		}
	}

	return
}
