package gms

import (
	"fmt"
	"io"
)

// Disassemble writes a listing of one code entry, one instruction per line.
// Used by the instruction tracer and the debug CLI surface.
func Disassemble(w io.Writer, d *Data, codeIndex int) error {
	if codeIndex < 0 || codeIndex >= len(d.CodeEntries) {
		return fmt.Errorf("gms: no code entry %d", codeIndex)
	}
	entry := &d.CodeEntries[codeIndex]
	code := entry.Bytecode(d)

	fmt.Fprintf(w, "%s (args=%d locals=%d %d bytes)\n", entry.Name, entry.Args, entry.Locals, entry.Length)
	for ip := 0; ip < len(code); {
		in, err := Decode(code, ip)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %04d  %s\n", ip, in.String())
		ip += in.Size
	}
	return nil
}
