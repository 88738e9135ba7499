package vm

// Trapframe is the per-process trap save area: one page mapped at
// TRAPFRAME just below the trampoline in every user address space.
// Field order and names follow
// original_source/kernel/arch/riscv/arch/context.h's struct trapframe
// byte-for-byte (kernel_page_table, kernel_sp, kernel_trap, epc,
// kernel_hartid, then ra/sp/gp/tp/t0-t2/s0-s1/a0-a7/s2-s11/t3-t6); here
// it is plain Go state rather than an assembly save/restore target,
// since there is no trap-vector assembly to share the layout with.
type Trapframe struct {
	KernelPageTable uint64 // root of kernel_pagetable_root, for trap entry
	KernelSP        uint64
	KernelTrap      uint64
	Epc             uint64
	KernelHartid    uint64

	Ra, Sp, Gp, Tp     uint64
	T0, T1, T2         uint64
	S0, S1             uint64
	A0, A1, A2, A3     uint64
	A4, A5, A6, A7     uint64
	S2, S3, S4, S5     uint64
	S6, S7, S8, S9     uint64
	S10, S11           uint64
	T3, T4, T5, T6     uint64
}

// Arg returns argument register index (0 == a0, per the ABI in
// spec.md 6: "a0-a5" hold syscall arguments, syscall number in a7).
func (tf *Trapframe) Arg(i int) uint64 {
	switch i {
	case 0:
		return tf.A0
	case 1:
		return tf.A1
	case 2:
		return tf.A2
	case 3:
		return tf.A3
	case 4:
		return tf.A4
	case 5:
		return tf.A5
	default:
		panic("vm: argument register index out of range")
	}
}

// SetArg writes argument register index i.
func (tf *Trapframe) SetArg(i int, v uint64) {
	switch i {
	case 0:
		tf.A0 = v
	case 1:
		tf.A1 = v
	case 2:
		tf.A2 = v
	case 3:
		tf.A3 = v
	case 4:
		tf.A4 = v
	case 5:
		tf.A5 = v
	default:
		panic("vm: argument register index out of range")
	}
}

// Sysno returns the syscall number, held in a7 by ABI convention.
func (tf *Trapframe) Sysno() uint64 { return tf.A7 }

// SetReturn writes the syscall return value into a0.
func (tf *Trapframe) SetReturn(v int64) { tf.A0 = uint64(v) }

// Context holds the callee-saved kernel registers for a cooperative
// kernel-thread switch, matching
// original_source/kernel/arch/riscv/arch/context.h's struct context
// (ra, sp, s0-s11). Since process execution here runs on a goroutine
// rather than a hand-switched kernel stack, nothing saves into or
// switches on a Context: Proc_t does not embed one, there is no per-CPU
// scheduler state, and no code or test in this module uses the type.
type Context struct {
	Ra, Sp                                 uint64
	S0, S1, S2, S3, S4, S5, S6, S7, S8, S9 uint64
	S10, S11                               uint64
}
