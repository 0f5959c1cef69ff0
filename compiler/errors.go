package compiler

import "fmt"

// CompileError reports that otherwise-valid IR could not be lowered on the
// target ISA (spec §7: "the IR is valid but cannot be lowered on this
// target"). No partial artifact is ever returned alongside one.
type CompileError struct {
	Func   string
	Inst   int
	Opcode string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler: %s: instruction #%d (%s): %s", e.Func, e.Inst, e.Opcode, e.Reason)
}

// Diagnostic is a non-fatal, collected-alongside-the-result failure: spec
// §7's "unreachable rule" kind, or any other local recoverable issue a
// future pass wants to surface without aborting compilation.
type Diagnostic struct {
	Pos     string
	Message string
}

func (d Diagnostic) String() string {
	if d.Pos == "" {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}
