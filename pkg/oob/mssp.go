package oob

import "sort"

// EncodeMSSP builds IAC SB MSSP (VAR key VAL value)... IAC SE with keys
// in sorted order.
func EncodeMSSP(data map[string]string) []byte {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{IAC, SB, TeloptMSSP}
	for _, k := range keys {
		buf = append(buf, MSSPVar)
		buf = append(buf, k...)
		buf = append(buf, MSSPVal)
		buf = append(buf, data[k]...)
	}
	return append(buf, IAC, SE)
}
