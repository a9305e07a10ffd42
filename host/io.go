package host

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kstephano/svm/vm"
)

// registerIO wires the stdout/stdin catalog entries (indices 5-8, 20):
// print_i64, print_str, print_endl, read_i64, print_f32. Grounded on
// the teacher's console device (devices.go's newConsoleIO), translated
// from its async request/response channel into direct synchronous
// handlers since the syscall ABI here is itself the synchronization
// point -- no separate interrupt delivery is needed for stdio.
func registerIO(tbl *vm.SyscallTable) {
	tbl.Register(vm.SyscallRecord{
		Index: 5, Name: "print_i64", Args: []vm.ArgType{vm.TypeI64}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemIO,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			fmt.Fprintf(i.Stdout, "%d", int64(args[0]))
			return 0, nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 6, Name: "print_str", Args: []vm.ArgType{vm.TypePtr}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemIO,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			s, err := i.Heap().CString(args[0])
			if err != nil {
				return 0, err
			}
			fmt.Fprint(i.Stdout, s)
			return 0, nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 7, Name: "print_endl", Args: nil, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemIO,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			fmt.Fprintln(i.Stdout)
			return 0, nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 8, Name: "read_i64", Args: nil, Ret: vm.TypeI64,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemIO,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			if i.Stdin == nil {
				return 0, nil
			}
			line, err := i.Stdin.ReadString('\n')
			if err != nil && line == "" {
				return 0, vm.Kind(vm.HostError)
			}
			n, convErr := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
			if convErr != nil {
				return 0, nil
			}
			return uint64(n), nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 20, Name: "print_f32", Args: []vm.ArgType{vm.TypeF32}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemIO,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			f := math.Float32frombits(uint32(args[0]))
			fmt.Fprintf(i.Stdout, "%g", f)
			return 0, nil
		},
	})
}

