package mbquery

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	tableHeaderColor = color.New(color.FgYellow)
	tableErrorColor  = color.New(color.FgRed)
)

const tableRule = "---------------------------------------"

// RenderTable formats a result as a table, one row per requested register,
// in requested order. Failed registers render their error in place of the
// value columns.
func RenderTable(entries []RegisterSetEntry, res Result) (out string) {
	var sb strings.Builder

	sb.WriteString(tableRule + "\n")
	sb.WriteString(tableHeaderColor.Sprint("Reg.  |   Hex  | uint16 | int16  | char") + "\n")
	sb.WriteString(tableRule + "\n")

	for _, entry := range entries {
		var rr RegisterResult

		rr = res[entry.Addr]
		if rr.Err != nil {
			sb.WriteString(tableErrorColor.Sprintf("%5d | %v", entry.Addr, rr.Err) + "\n")
			continue
		}

		sb.WriteString(fmt.Sprintf("%5d | 0x%04x | %6d | %6d | %s\n",
			entry.Addr, rr.Value, rr.Value,
			Uint16ToInt16(rr.Value), RegisterChars(rr.Value)))
	}

	out = sb.String()

	return
}

// RenderPlain formats a result as a single comma-separated line, values in
// requested order, interpreted per datatype (uint, int, hex or char; uint
// when empty). Failed registers render as "error".
func RenderPlain(entries []RegisterSetEntry, res Result, datatype string) (out string, err error) {
	var fields []string

	for _, entry := range entries {
		var rr RegisterResult

		rr = res[entry.Addr]
		if rr.Err != nil {
			fields = append(fields, "error")
			continue
		}

		switch datatype {
		case "", "uint":
			fields = append(fields, fmt.Sprintf("%d", rr.Value))
		case "int":
			fields = append(fields, fmt.Sprintf("%d", Uint16ToInt16(rr.Value)))
		case "hex":
			fields = append(fields, fmt.Sprintf("0x%04x", rr.Value))
		case "char":
			fields = append(fields, RegisterChars(rr.Value))
		default:
			err = fmt.Errorf("%w: unknown datatype '%s'",
				ErrUnexpectedParameters, datatype)
			return
		}
	}

	out = strings.Join(fields, ",")

	return
}
