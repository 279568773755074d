// Package abi stamps the entry point attributes and module flags the QIR
// runtime expects.
package abi

import (
	"errors"
	"fmt"
	"strconv"

	"fortio.org/safecast"

	"hugrqir/internal/llir"
)

var ErrMissingEntryFunction = errors.New("entry function not found")

// Entry point attribute keys.
const (
	AttrEntryPoint      = "entry_point"
	AttrOutputLabeling  = "output_labeling_schema"
	AttrProfiles        = "qir_profiles"
	AttrRequiredQubits  = "required_num_qubits"
	AttrRequiredResults = "required_num_results"

	ProfileCustom = "custom"
)

// Module flag keys.
const (
	FlagMajorVersion   = "qir_major_version"
	FlagMinorVersion   = "qir_minor_version"
	FlagDynamicQubits  = "dynamic_qubit_management"
	FlagDynamicResults = "dynamic_result_management"
)

// llvm.module.flags merge behaviors
const (
	behaviorError = 1
	behaviorMax   = 7
)

const (
	qirMajor = 1
	qirMinor = 0
)

// Stamp marks the function called entry as the program entry point and
// records the resource counts. Running it twice leaves the same result.
func Stamp(m *llir.Module, entry string, qubits, results int) error {
	fn := m.Func(entry)
	if fn == nil || fn.IsDeclaration() {
		return fmt.Errorf("%w: @%s", ErrMissingEntryFunction, entry)
	}
	nq, err := safecast.Conv[uint32](qubits)
	if err != nil {
		return fmt.Errorf("qubit count: %w", err)
	}
	nr, err := safecast.Conv[uint32](results)
	if err != nil {
		return fmt.Errorf("result count: %w", err)
	}

	fn.SetAttr(AttrEntryPoint, "", false)
	fn.SetAttr(AttrOutputLabeling, "", false)
	fn.SetAttr(AttrProfiles, ProfileCustom, true)
	fn.SetAttr(AttrRequiredQubits, strconv.FormatUint(uint64(nq), 10), true)
	fn.SetAttr(AttrRequiredResults, strconv.FormatUint(uint64(nr), 10), true)

	setFlag(m, behaviorError, FlagMajorVersion, llir.Int(llir.I32, qirMajor))
	setFlag(m, behaviorMax, FlagMinorVersion, llir.Int(llir.I32, qirMinor))
	setFlag(m, behaviorError, FlagDynamicQubits, llir.Bool(false))
	setFlag(m, behaviorError, FlagDynamicResults, llir.Bool(false))
	return nil
}

func setFlag(m *llir.Module, behavior int, key string, v *llir.ConstInt) {
	for i := range m.Flags {
		if m.Flags[i].Key == key {
			m.Flags[i] = llir.ModuleFlag{Behavior: behavior, Key: key, Value: v}
			return
		}
	}
	m.AddFlag(behavior, key, v)
}
