package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mbtools/mbquery"
)

const (
	exitOK          = 0
	exitFailedRegs  = 1
	exitUsage       = 2
	exitConnFailure = 3
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	var err error
	var server string
	var port uint
	var unitID uint
	var timeout uint
	var output string
	var datatype string
	var gapWaste uint
	var verbose bool
	var mode mbquery.Mode
	var entries []mbquery.RegisterSetEntry
	var client *mbquery.ModbusClient
	var res mbquery.Result
	var logger zerolog.Logger

	flag.StringVar(&server, "server", "localhost", "modbus server to connect to")
	flag.UintVar(&port, "port", 502, "TCP port to connect to")
	flag.UintVar(&unitID, "unit-id", 1, "modbus unit id to address")
	flag.UintVar(&timeout, "timeout", 5,
		"timeout in seconds for each single modbus query to complete, 0-60 (0: no timeout)")
	flag.StringVar(&output, "output", "table",
		"output format: just the 'plain' results or a nice 'table'")
	flag.StringVar(&datatype, "datatype", "uint",
		"datatype to interpret results as <int|uint|char|hex> (plain output only)")
	flag.UintVar(&gapWaste, "gap-waste", uint(mbquery.DefaultMaxGapWaste),
		"max unrequested registers fetched to merge adjacent read requests")
	flag.BoolVar(&verbose, "verbose", false, "increase output verbosity")
	flag.Usage = displayUsage
	flag.Parse()

	if flag.NArg() != 2 {
		displayUsage()
		code = exitUsage
		return
	}

	if port == 0 || port > 0xffff {
		fmt.Fprintf(os.Stderr, "port %v is out of range (1-65535)\n", port)
		code = exitUsage
		return
	}

	if unitID > 0xff {
		fmt.Fprintf(os.Stderr, "unit id %v is out of range (0-255)\n", unitID)
		code = exitUsage
		return
	}

	if timeout > 60 {
		fmt.Fprintf(os.Stderr, "timeout %v is out of range (0-60 seconds)\n", timeout)
		code = exitUsage
		return
	}

	if gapWaste > 0xffff {
		fmt.Fprintf(os.Stderr, "gap-waste %v is out of range (0-65535)\n", gapWaste)
		code = exitUsage
		return
	}

	if output != "table" && output != "plain" {
		fmt.Fprintf(os.Stderr, "unknown output format '%s' (should either be table or plain)\n",
			output)
		code = exitUsage
		return
	}

	switch flag.Arg(0) {
	case "read":
		mode = mbquery.READ_MODE
	case "write":
		mode = mbquery.WRITE_MODE
	default:
		fmt.Fprintf(os.Stderr, "unknown operation '%s' (should either be read or write)\n",
			flag.Arg(0))
		code = exitUsage
		return
	}

	entries, err = mbquery.ParseRegisterSet(flag.Arg(1), mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid register set '%s': %v\n", flag.Arg(1), err)
		code = exitUsage
		return
	}

	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	client, err = mbquery.NewClient(&mbquery.ClientConfiguration{
		URL:         fmt.Sprintf("%s:%v", server, port),
		UnitID:      uint8(unitID),
		Timeout:     time.Duration(timeout) * time.Second,
		MaxGapWaste: uint16(gapWaste),
		Logger:      &logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create modbus client: %v\n", err)
		code = exitUsage
		return
	}

	err = client.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr,
			"could not connect to server! please check connection details (%v)\n", err)
		code = exitConnFailure
		return
	}
	defer client.Close()

	if mode == mbquery.READ_MODE {
		res, err = client.ReadRegisterSet(entries)
	} else {
		res, err = client.WriteRegisterSet(entries)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "operation failed: %v\n", err)
		code = exitConnFailure
		return
	}

	switch output {
	case "table":
		fmt.Print(mbquery.RenderTable(entries, res))
	case "plain":
		var line string

		line, err = mbquery.RenderPlain(entries, res, datatype)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			code = exitUsage
			return
		}
		fmt.Println(line)
	}

	if res.HasErrors() {
		code = exitFailedRegs
	}

	return
}

func displayUsage() {
	fmt.Fprintf(os.Stderr,
		"usage: %s [options] <read|write> <registers[=values]>\n\n"+
			"Performs a read or write operation on some modbus TCP server.\n\n"+
			"Registers are given as a comma-separated list of addresses and\n"+
			"inclusive address ranges, e.g. 1-10,42-99,101,40123. Write operations\n"+
			"take one value per register (no ranges), e.g. 17=42,42=0x2a.\n\n"+
			"Examples:\n"+
			"%s -server plc1 read 1-10,42-99,101,40123   read all these registers\n"+
			"%s write 17=42                              write 42 to register 17\n"+
			"%s write 17=0x42,42=17                      write 0x42 to reg. 17 and 17 to reg. 42\n\n"+
			"Options:\n",
		os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	flag.PrintDefaults()

	return
}
