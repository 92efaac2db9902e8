package emu

// TrapCause identifies the reason a trap was raised, using the standard
// mcause/scause exception code. Interrupt codes share the same numeric
// range as exception codes; Trap.IsInterrupt tells them apart, and Enter
// sets bit 63 of xcause for an interrupt.
type TrapCause uint8

// Exception causes (scause/mcause, interrupt bit clear).
const (
	TrapInstAddrMisaligned TrapCause = iota
	TrapInstAccessFault
	TrapIllegalInst
	TrapBreakpoint
	TrapLoadAddrMisaligned
	TrapLoadAccessFault
	TrapStoreAddrMisaligned
	TrapStoreAccessFault
	TrapEcallU
	TrapEcallS
	_ // 10 is reserved
	TrapEcallM
	TrapInstPageFault
	TrapLoadPageFault
	_ // 14 is reserved
	TrapStorePageFault
)

// Interrupt causes, reported with Trap.IsInterrupt set.
const (
	InterruptSupervisorSoftware TrapCause = 2*iota + 1
	InterruptMachineSoftware
	InterruptSupervisorTimer
	InterruptMachineTimer
	InterruptSupervisorExternal
	InterruptMachineExternal
)

// Trap describes an architectural trap (exception or interrupt) raised
// during instruction execution. It is not a Go error: traps are expected
// control flow, handled by the trap controller, not bubbled up as failures.
type Trap struct {
	Cause       TrapCause
	IsInterrupt bool
	Tval        uint64 // faulting address or offending instruction bits
}

// delegated reports whether this trap should be handled at S-mode per the
// medeleg/mideleg delegation registers, given the hart is currently at or
// below S-mode (M-mode traps are never delegated downward).
func delegated(csr *CSRFile, t Trap) bool {
	if t.IsInterrupt {
		return csr.regs[CsrMideleg]&(1<<uint(t.Cause)) != 0
	}
	return csr.regs[CsrMedeleg]&(1<<uint(t.Cause)) != 0
}

// TrapController dispatches traps to the correct privilege level and
// updates the CSR/PC state accordingly, mirroring the standard RISC-V trap
// entry/exit sequence (save epc/cause/tval, switch mode, jump to *tvec).
type TrapController struct {
	regs *RegFile
	csr  *CSRFile
}

// NewTrapController creates a trap controller bound to the given
// architectural state.
func NewTrapController(regs *RegFile, csr *CSRFile) *TrapController {
	return &TrapController{regs: regs, csr: csr}
}

// Enter redirects control flow to the appropriate trap handler and returns
// the new PC.
func (tc *TrapController) Enter(t Trap) uint64 {
	fromPriv := tc.regs.Priv
	toPriv := PrivM
	if fromPriv != PrivM && delegated(tc.csr, t) {
		toPriv = PrivS
	}

	causeField := uint64(t.Cause)
	if t.IsInterrupt {
		causeField |= 1 << 63
	}

	var tvec uint64
	if toPriv == PrivM {
		tc.csr.regs[CsrMepc] = tc.regs.PC
		tc.csr.regs[CsrMcause] = causeField
		tc.csr.regs[CsrMtval] = t.Tval
		tvec = tc.csr.regs[CsrMtvec]
	} else {
		tc.csr.regs[CsrSepc] = tc.regs.PC
		tc.csr.regs[CsrScause] = causeField
		tc.csr.regs[CsrStval] = t.Tval
		tvec = tc.csr.regs[CsrStvec]
	}

	tc.csr.PushTrap(fromPriv, toPriv)
	tc.regs.Priv = toPriv

	base := tvec &^ 0x3
	mode := tvec & 0x3
	if mode == 1 && t.IsInterrupt {
		// Vectored mode: base + 4*cause.
		return base + 4*uint64(t.Cause)
	}
	return base
}

// Return performs MRET/SRET: restores the privilege level and PC saved at
// trap entry.
func (tc *TrapController) Return(from Priv) uint64 {
	resume := tc.csr.PopTrap(from)
	tc.regs.Priv = resume
	if from == PrivM {
		return tc.csr.regs[CsrMepc]
	}
	return tc.csr.regs[CsrSepc]
}
