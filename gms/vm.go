package gms

import (
	"errors"
	"fmt"
	"math"
)

// VMError is a fatal interpreter error with the diagnostic context §7 of the
// runtime contract requires: code entry, ip, and the event being dispatched.
type VMError struct {
	Entry    string
	IP       int
	Instance InstanceID
	Object   string
	Event    string
	Err      error
}

func (e *VMError) Error() string {
	return fmt.Sprintf("gms: vm error in %s at ip=%d (instance %d, object %s, event %s): %s",
		e.Entry, e.IP, e.Instance, e.Object, e.Event, e.Err)
}

func (e *VMError) Unwrap() error { return e.Err }

var (
	errStackUnderflow = errors.New("stack underflow")
)

// withEnv is one iteration frame of a with body.
type withEnv struct {
	ids      []InstanceID
	idx      int
	prevSelf InstanceID
	prevOther InstanceID
}

// vmFrame is one call frame. The value stack is shared across frames.
type vmFrame struct {
	entry  *CodeEntry
	code   []byte
	ip     int
	locals []Value
	args   []Value
	self   InstanceID
	other  InstanceID
	envs   []withEnv
}

// vm runs one dispatch to completion. The runtime is single threaded, so a
// single vm per Game is reused across events.
type vm struct {
	g     *Game
	stack []Value
	depth int
}

func (v *vm) push(val Value) { v.stack = append(v.stack, val) }

func (v *vm) pop() (Value, error) {
	if len(v.stack) == 0 {
		return Undefined, errStackUnderflow
	}
	val := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return val, nil
}

func (v *vm) popReal() (float64, error) {
	val, err := v.pop()
	if err != nil {
		return 0, err
	}
	return val.ToReal()
}

func (v *vm) popInt() (int32, error) {
	val, err := v.pop()
	if err != nil {
		return 0, err
	}
	return val.ToInt()
}

const maxCallDepth = 128

// run executes a code entry and returns its result value.
func (v *vm) run(codeIndex int, self, other InstanceID, args []Value) (Value, error) {
	g := v.g
	if codeIndex < 0 || codeIndex >= len(g.data.CodeEntries) {
		return Undefined, fmt.Errorf("gms: no code entry %d", codeIndex)
	}
	v.depth++
	defer func() { v.depth-- }()
	if v.depth > maxCallDepth {
		return Undefined, fmt.Errorf("gms: call depth limit exceeded in %s", g.data.CodeEntries[codeIndex].Name)
	}

	entry := &g.data.CodeEntries[codeIndex]
	f := &vmFrame{
		entry:  entry,
		code:   entry.Bytecode(g.data),
		locals: make([]Value, entry.Locals),
		args:   args,
		self:   self,
		other:  other,
	}

	trace := g.traceInstructions(entry.Name)
	stackFloor := len(v.stack)

	fail := func(ip int, err error) (Value, error) {
		v.stack = v.stack[:stackFloor]
		if vmErr, ok := err.(*VMError); ok {
			return Undefined, vmErr
		}
		objName := ""
		if inst := g.Instance(f.self); inst != nil {
			objName = g.data.Objects[inst.Object].Name
		}
		return Undefined, &VMError{
			Entry:    entry.Name,
			IP:       ip,
			Instance: f.self,
			Object:   objName,
			Event:    g.currentEventName(),
			Err:      err,
		}
	}

	for f.ip < len(f.code) {
		ip := f.ip
		in, err := Decode(f.code, ip)
		if err != nil {
			return fail(ip, err)
		}
		if trace {
			g.tracef("%s+%04d  %s", entry.Name, ip, in.String())
		}
		f.ip += in.Size

		switch in.Opcode {
		case opConv:
			top, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			conv, err := convert(top, in.Type2)
			if err != nil {
				return fail(ip, err)
			}
			v.push(conv)

		case opAdd, opSub, opMul, opDiv, opRem, opMod, opAnd, opOr, opXor, opShl, opShr:
			b, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			a, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			res, err := v.arith(&in, a, b)
			if err != nil {
				return fail(ip, err)
			}
			v.push(res)

		case opNeg:
			r, err := v.popReal()
			if err != nil {
				return fail(ip, err)
			}
			v.push(Real(-r))

		case opNot:
			val, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			v.push(Bool(!val.IsTrue()))

		case opCmp:
			b, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			a, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			res, err := compare(in.CmpKind(), a, b)
			if err != nil {
				return fail(ip, err)
			}
			v.push(Bool(res))

		case opDup:
			n := int(in.Operand16&0xFF) + 1
			if len(v.stack) < n {
				return fail(ip, errStackUnderflow)
			}
			v.stack = append(v.stack, v.stack[len(v.stack)-n:]...)

		case opPushI:
			v.push(Real(float64(in.Operand16)))

		case opPush, opPushLoc, opPushGlb, opPushBltn:
			if in.Type1 == typeVar {
				val, err := v.readVar(f, &in)
				if err != nil {
					return fail(ip, err)
				}
				v.push(val)
				break
			}
			switch in.Type1 {
			case typeDouble, typeFloat:
				v.push(Real(in.Real))
			case typeInt32:
				v.push(Real(float64(in.Int)))
			case typeBool:
				v.push(Bool(in.Int != 0))
			case typeInt64:
				v.push(Real(in.Real))
			case typeString:
				if int(in.StrID) >= len(g.data.Strings) {
					return fail(ip, fmt.Errorf("string id %d out of range", in.StrID))
				}
				v.push(Str(g.data.Strings[in.StrID]))
			case typeInt16:
				v.push(Real(float64(in.Operand16)))
			}

		case opPop:
			if err := v.writeVar(f, &in); err != nil {
				return fail(ip, err)
			}

		case opPopz:
			if _, err := v.pop(); err != nil {
				return fail(ip, err)
			}

		case opB:
			f.ip = ip + int(in.Operand24)

		case opBt, opBf:
			cond, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			if cond.IsTrue() == (in.Opcode == opBt) {
				f.ip = ip + int(in.Operand24)
			}

		case opPushEnv:
			target, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			ids, err := v.withTargets(f, target)
			if err != nil {
				return fail(ip, err)
			}
			if len(ids) == 0 {
				f.ip = ip + int(in.Operand24)
				break
			}
			f.envs = append(f.envs, withEnv{ids: ids, prevSelf: f.self, prevOther: f.other})
			f.other = f.self
			f.self = ids[0]

		case opPopEnv:
			if len(f.envs) == 0 {
				return fail(ip, errors.New("popenv with no environment"))
			}
			env := &f.envs[len(f.envs)-1]
			if in.Operand24 == popEnvBreak {
				f.self = env.prevSelf
				f.other = env.prevOther
				f.envs = f.envs[:len(f.envs)-1]
				break
			}
			next := -1
			for i := env.idx + 1; i < len(env.ids); i++ {
				if inst := g.Instance(env.ids[i]); inst != nil && !inst.destroyed {
					next = i
					break
				}
			}
			if next >= 0 {
				env.idx = next
				f.self = env.ids[next]
				f.ip = ip + int(in.Operand24)
			} else {
				f.self = env.prevSelf
				f.other = env.prevOther
				f.envs = f.envs[:len(f.envs)-1]
			}

		case opCall:
			if int(in.FuncID) >= len(g.data.Functions) {
				return fail(ip, fmt.Errorf("call to unknown function id %d", in.FuncID))
			}
			name := g.data.Functions[in.FuncID].Name
			res, err := v.call(f, name, int(in.Operand16))
			if err != nil {
				return fail(ip, err)
			}
			v.push(res)

		case opCallV:
			fn, err := v.popReal()
			if err != nil {
				return fail(ip, err)
			}
			args, err := v.popArgs(int(in.Operand16))
			if err != nil {
				return fail(ip, err)
			}
			script := int(fn)
			if script < 0 || script >= len(g.data.Scripts) {
				return fail(ip, fmt.Errorf("callv with bad script index %d", script))
			}
			res, err := v.run(g.data.Scripts[script].Code, f.self, f.other, args)
			if err != nil {
				return fail(ip, err)
			}
			v.push(res)

		case opRet:
			res, err := v.pop()
			if err != nil {
				return fail(ip, err)
			}
			v.stack = v.stack[:stackFloor]
			return res, nil

		case opExit:
			v.stack = v.stack[:stackFloor]
			return Undefined, nil

		case opBreak:
			// debugger signal, ignored

		default:
			return fail(ip, fmt.Errorf("unknown opcode 0x%02X", in.Opcode))
		}
	}

	v.stack = v.stack[:stackFloor]
	return Undefined, nil
}

func convert(val Value, to byte) (Value, error) {
	switch to {
	case typeDouble, typeFloat:
		r, err := val.ToReal()
		if err != nil {
			return Undefined, err
		}
		return Real(r), nil
	case typeInt32, typeInt64, typeInt16:
		r, err := val.ToReal()
		if err != nil {
			return Undefined, err
		}
		return Real(math.Trunc(r)), nil
	case typeBool:
		return Bool(val.IsTrue()), nil
	case typeString:
		s, err := val.ToString()
		if err != nil {
			return Undefined, err
		}
		return Str(s), nil
	default:
		return val, nil
	}
}

func isIntType(t byte) bool {
	return t == typeInt32 || t == typeInt64 || t == typeInt16 || t == typeBool
}

func (v *vm) arith(in *Instruction, a, b Value) (Value, error) {
	if in.Opcode == opAdd && a.Kind() == KindStr && b.Kind() == KindStr {
		as, _ := a.ToString()
		bs, _ := b.ToString()
		return Str(as + bs), nil
	}

	ar, err := a.ToReal()
	if err != nil {
		return Undefined, err
	}
	br, err := b.ToReal()
	if err != nil {
		return Undefined, err
	}

	switch in.Opcode {
	case opAdd:
		return Real(ar + br), nil
	case opSub:
		return Real(ar - br), nil
	case opMul:
		return Real(ar * br), nil
	case opDiv:
		if br == 0 {
			// integer division by zero yields 0, real yields infinity
			if isIntType(in.Type1) && isIntType(in.Type2) {
				return Real(0), nil
			}
			return Real(math.Inf(sign(ar))), nil
		}
		if isIntType(in.Type1) && isIntType(in.Type2) {
			return Real(math.Trunc(ar / br)), nil
		}
		return Real(ar / br), nil
	case opRem:
		if br == 0 {
			return Real(0), nil
		}
		return Real(remTrunc(ar, br)), nil
	case opMod:
		if br == 0 {
			return Real(0), nil
		}
		m := math.Mod(ar, br)
		if m != 0 && (m < 0) != (br < 0) {
			m += br
		}
		return Real(m), nil
	case opAnd:
		return Real(float64(int64(ar) & int64(br))), nil
	case opOr:
		return Real(float64(int64(ar) | int64(br))), nil
	case opXor:
		return Real(float64(int64(ar) ^ int64(br))), nil
	case opShl:
		return Real(float64(int64(ar) << (uint64(br) & 63))), nil
	case opShr:
		return Real(float64(int64(ar) >> (uint64(br) & 63))), nil
	}
	return Undefined, fmt.Errorf("unhandled arithmetic opcode 0x%02X", in.Opcode)
}

func remTrunc(a, b float64) float64 {
	return a - math.Trunc(a/b)*b
}

func sign(f float64) int {
	if f < 0 {
		return -1
	}
	return 1
}

func compare(kind int, a, b Value) (bool, error) {
	if kind == cmpEQ {
		return a.Equals(b), nil
	}
	if kind == cmpNE {
		return !a.Equals(b), nil
	}
	c, err := a.Compare(b)
	if err != nil {
		return false, err
	}
	switch kind {
	case cmpLT:
		return c < 0, nil
	case cmpLE:
		return c <= 0, nil
	case cmpGE:
		return c >= 0, nil
	case cmpGT:
		return c > 0, nil
	default:
		return false, fmt.Errorf("unknown comparison kind %d", kind)
	}
}

// popArgs pops argc call arguments. Arguments are pushed right to left, so
// argument 0 is on top.
func (v *vm) popArgs(argc int) ([]Value, error) {
	args := make([]Value, argc)
	for i := 0; i < argc; i++ {
		a, err := v.pop()
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	return args, nil
}

func (v *vm) call(f *vmFrame, name string, argc int) (Value, error) {
	g := v.g
	args, err := v.popArgs(argc)
	if err != nil {
		return Undefined, err
	}

	if g.traceCall(name) {
		g.tracef("call %s(%s) self=%d", name, formatArgs(args), f.self)
	}

	if si := g.data.ScriptByName(name); si >= 0 {
		return v.run(g.data.Scripts[si].Code, f.self, f.other, args)
	}

	if fn, ok := g.builtins[name]; ok {
		return fn(g, f.self, f.other, args)
	}

	return Undefined, fmt.Errorf("call to unknown function %q with %d args", name, argc)
}

func formatArgs(args []Value) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += a.String()
	}
	return s
}

// withTargets resolves the operand of a with statement into a snapshot of
// instance ids. Instances created after this point are not visited.
func (v *vm) withTargets(f *vmFrame, target Value) ([]InstanceID, error) {
	r, err := target.ToReal()
	if err != nil {
		return nil, err
	}
	n := int64(r)
	g := v.g
	switch {
	case n == instSelf:
		return []InstanceID{f.self}, nil
	case n == instOther:
		return []InstanceID{f.other}, nil
	case n == instNoone:
		return nil, nil
	case n == instAll:
		return g.liveIDs(-1), nil
	case n >= int64(firstInstanceID):
		if inst := g.Instance(InstanceID(n)); inst != nil && !inst.destroyed {
			return []InstanceID{InstanceID(n)}, nil
		}
		return nil, nil
	case n >= 0 && n < int64(len(g.data.Objects)):
		return g.liveIDs(int(n)), nil
	default:
		return nil, fmt.Errorf("with target %d is neither an instance nor an object", n)
	}
}

// resolveInstance maps a scope code (or popped stacktop id) to one
// instance for variable access.
func (v *vm) resolveInstance(f *vmFrame, scope int) (*Instance, error) {
	g := v.g
	switch scope {
	case scopeSelf:
		if inst := g.Instance(f.self); inst != nil {
			return inst, nil
		}
		return nil, fmt.Errorf("self (%d) is not a live instance", f.self)
	case scopeOther:
		if inst := g.Instance(f.other); inst != nil {
			return inst, nil
		}
		return nil, fmt.Errorf("other (%d) is not a live instance", f.other)
	default:
		if scope >= 0 {
			if inst := g.firstOfObject(scope); inst != nil {
				return inst, nil
			}
			return nil, fmt.Errorf("no live instance of object %d", scope)
		}
	}
	return nil, fmt.Errorf("unhandled variable scope %d", scope)
}

func (v *vm) popIndices(ref *Instruction) (int32, int32, error) {
	if ref.RefKind != refArray {
		return 0, 0, nil
	}
	col, err := v.popInt()
	if err != nil {
		return 0, 0, err
	}
	row, err := v.popInt()
	if err != nil {
		return 0, 0, err
	}
	return row, col, nil
}

// readVar implements the push side of variable resolution.
func (v *vm) readVar(f *vmFrame, in *Instruction) (Value, error) {
	g := v.g
	scope := int(in.Operand16)
	slot := in.RefSlot

	row, col, err := v.popIndices(in)
	if err != nil {
		return Undefined, err
	}

	switch scope {
	case scopeLocal:
		if int(slot) >= len(f.locals) {
			return Undefined, fmt.Errorf("local slot %d out of range", slot)
		}
		return indexInto(f.locals[slot], in, row, col), nil

	case scopeArgument:
		if int(slot) >= len(f.args) {
			return Undefined, nil
		}
		return indexInto(f.args[slot], in, row, col), nil

	case scopeGlobal, scopeBuiltin:
		b := g.binding(slot)
		if b.global != nil {
			if in.RefKind == refArray && b.global.getIdx != nil {
				return b.global.getIdx(g, col), nil
			}
			if b.global.get != nil {
				return b.global.get(g), nil
			}
			if b.global.getIdx != nil {
				return b.global.getIdx(g, 0), nil
			}
		}
		return indexInto(g.globals[slot], in, row, col), nil

	case scopeStacktop:
		targetVal, err := v.pop()
		if err != nil {
			return Undefined, err
		}
		inst, err := v.stacktopInstance(f, targetVal)
		if err != nil {
			return Undefined, err
		}
		return g.readInstanceVar(inst, slot, in, row, col)

	default:
		inst, err := v.resolveInstance(f, scope)
		if err != nil {
			return Undefined, err
		}
		return g.readInstanceVar(inst, slot, in, row, col)
	}
}

func (v *vm) stacktopInstance(f *vmFrame, target Value) (*Instance, error) {
	r, err := target.ToReal()
	if err != nil {
		return nil, err
	}
	n := int64(r)
	switch {
	case n == instSelf:
		return v.resolveInstance(f, scopeSelf)
	case n == instOther:
		return v.resolveInstance(f, scopeOther)
	case n >= int64(firstInstanceID):
		if inst := v.g.Instance(InstanceID(n)); inst != nil {
			return inst, nil
		}
		return nil, fmt.Errorf("instance %d does not exist", n)
	case n >= 0:
		return v.resolveInstance(f, int(n))
	default:
		return nil, fmt.Errorf("bad dot-access target %d", n)
	}
}

// indexInto applies array indexing for plain bag values.
func indexInto(val Value, in *Instruction, row, col int32) Value {
	if in.RefKind != refArray {
		return val
	}
	if val.Kind() != KindArray {
		return Undefined
	}
	return val.ArrayGet(row, col)
}

// writeVar implements the pop side. Stack order for arrays is
// [row, col, value]; for stacktop scope the target id comes before that.
func (v *vm) writeVar(f *vmFrame, in *Instruction) error {
	g := v.g
	scope := int(in.Operand16)
	slot := in.RefSlot

	val, err := v.pop()
	if err != nil {
		return err
	}
	row, col, err := v.popIndices(in)
	if err != nil {
		return err
	}

	switch scope {
	case scopeLocal:
		if int(slot) >= len(f.locals) {
			return fmt.Errorf("local slot %d out of range", slot)
		}
		f.locals[slot] = storeInto(f.locals[slot], in, row, col, val, func(nv Value) { f.locals[slot] = nv })
		return nil

	case scopeArgument:
		if int(slot) >= len(f.args) {
			return fmt.Errorf("argument slot %d out of range", slot)
		}
		f.args[slot] = storeInto(f.args[slot], in, row, col, val, func(nv Value) { f.args[slot] = nv })
		return nil

	case scopeGlobal, scopeBuiltin:
		b := g.binding(slot)
		if b.global != nil {
			if in.RefKind == refArray && b.global.setIdx != nil {
				return b.global.setIdx(g, col, val)
			}
			if b.global.set != nil {
				return b.global.set(g, val)
			}
			if b.global.setIdx != nil {
				return b.global.setIdx(g, 0, val)
			}
		}
		cur := g.globals[slot]
		g.globals[slot] = storeInto(cur, in, row, col, val, func(nv Value) { g.globals[slot] = nv })
		return nil

	case scopeStacktop:
		targetVal, err := v.pop()
		if err != nil {
			return err
		}
		inst, err := v.stacktopInstance(f, targetVal)
		if err != nil {
			return err
		}
		return g.writeInstanceVar(inst, slot, in, row, col, val)

	default:
		inst, err := v.resolveInstance(f, scope)
		if err != nil {
			return err
		}
		return g.writeInstanceVar(inst, slot, in, row, col, val)
	}
}

// storeInto writes a plain value or an array cell, auto-creating the array
// when an indexed store hits a non-array slot.
func storeInto(cur Value, in *Instruction, row, col int32, val Value, replace func(Value)) Value {
	if in.RefKind != refArray {
		return val
	}
	if cur.Kind() != KindArray {
		cur = NewArray()
		replace(cur)
	}
	cur.ArraySet(row, col, val)
	return cur
}
