package transform

import (
	"sort"

	"specbmc/internal/environment"
	"specbmc/internal/expr"
	"specbmc/internal/hir"
)

// InitMemory sets up the initial memory state (§4.C.4). Memory is havoced
// wholesale, then one security policy is applied depending on
// DefaultSecurityLevel:
//   - Low: memory is attacker-visible by default, so it is declared low
//     equivalent outright; the caller's HighSecurityAddresses then carve
//     out specific secret bytes, each overwritten with a fresh nondet
//     value so its content cannot leak through the declared-low memory
//     variable itself.
//   - High: memory is secret by default, so only the caller's
//     LowSecurityAddresses are declared low equivalent individually.
type InitMemory struct {
	DefaultSecurityLevel  environment.SecurityLevel
	LowSecurityAddresses  []uint64
	HighSecurityAddresses []uint64
}

// NewInitMemory returns an InitMemory with the original implementation's
// default policy: memory is secret unless named.
func NewInitMemory() InitMemory {
	return InitMemory{DefaultSecurityLevel: environment.SecurityHigh}
}

func (InitMemory) Name() string { return "InitMemory" }

func (InitMemory) Description() string { return "set up initial memory state" }

func (t InitMemory) Apply(program *hir.Program) error {
	entry, err := program.ControlFlowGraph().EntryBlock()
	if err != nil {
		return err
	}

	memory := expr.NewVariable("memory", expr.MemorySort())
	havocVariable(entry, memory)

	switch t.DefaultSecurityLevel {
	case environment.SecurityLow:
		lowEquivalent(entry, expr.VariableExpr(memory))

		for _, address := range sortedAddresses(t.HighSecurityAddresses) {
			secret := expr.NewVariable("_secret", expr.BitVectorSort(8))
			havocVariable(entry, secret)

			addr := bvConstant(address, environment.WordSize)
			storeInst := entry.Store(memory, memory, addr, expr.VariableExpr(secret))
			storeInst.Pseudo = true
		}
	default:
		for _, address := range sortedAddresses(t.LowSecurityAddresses) {
			addr := bvConstant(address, environment.WordSize)
			contentAtAddress, err := expr.MemLoad(8, expr.VariableExpr(memory), addr)
			if err != nil {
				return err
			}
			lowEquivalent(entry, contentAtAddress)
		}
	}

	return nil
}

func sortedAddresses(addresses []uint64) []uint64 {
	out := append([]uint64(nil), addresses...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
