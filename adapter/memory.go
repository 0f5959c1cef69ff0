package adapter

import "github.com/wazevocore/codegen/ir"

// memOperand names a location in linear memory: a base address value, a
// static byte offset baked into load/store immediates, and the heap it
// belongs to (carried only as a downstream fact-annotation hint, per
// ir.Inst.HeapRef's own doc comment — left at its zero value for operands,
// like the instance-flags word, that aren't a declared heap access).
type memOperand struct {
	addr   ir.Value
	offset uint32
	heap   ir.Heap
}

func (m memOperand) bump(delta uint32) memOperand {
	return memOperand{addr: m.addr, offset: m.offset + delta, heap: m.heap}
}

// source is where translate reads a component value from: the function's
// own flattened SSA values, or a region of linear memory. Mirrors
// fact/trampoline.rs's Source, minus the wasm-locals indirection.
type source struct {
	stack  []ir.Value
	memory memOperand
	isMem  bool
}

func stackSource(vals []ir.Value) source { return source{stack: vals} }
func memSource(m memOperand) source      { return source{memory: m, isMem: true} }

// destination is where translate writes a component value to.
type destination struct {
	memory memOperand
	isMem  bool
}

func stackDestination() destination           { return destination{} }
func memDestination(m memOperand) destination { return destination{memory: m, isMem: true} }

// fieldSources slices src into one source per element of tys, in order:
// a stack source is sliced by each element's flattened value count, a
// memory source is bumped by each element's own aligned size. Mirrors
// Source::record_field_sources.
func fieldSources(src source, tys []InterfaceType) []source {
	out := make([]source, len(tys))
	if src.isMem {
		var offset uint32
		for i, ty := range tys {
			size, align := SizeAlign(ty)
			offset = alignTo(offset, align) + size
			out[i] = memSource(src.memory.bump(offset - size))
		}
		return out
	}
	var cursor int
	for i, ty := range tys {
		n := FlatCount(ty)
		out[i] = stackSource(src.stack[cursor : cursor+n])
		cursor += n
	}
	return out
}

// fieldDestinations is fieldSources's Destination counterpart.
func fieldDestinations(dst destination, tys []InterfaceType) []destination {
	out := make([]destination, len(tys))
	if dst.isMem {
		var offset uint32
		for i, ty := range tys {
			size, align := SizeAlign(ty)
			offset = alignTo(offset, align) + size
			out[i] = memDestination(dst.memory.bump(offset - size))
		}
		return out
	}
	for i := range tys {
		out[i] = stackDestination()
	}
	return out
}
