package host

import (
	"encoding/binary"

	"github.com/kstephano/svm/vm"
)

// registerMemory wires the vm/io bulk-memory catalog entries (indices
// 3, 4, 14, 16, 17): memcpy, memset, vm_heap_size, memset32,
// vm_resize_heap. All operate through Heap.Slice/Resize, which carry
// their own bounds checks -- grounded on the teacher's
// newMemoryManagement device (devices.go), generalized from its
// privilege-gated region checks to this spec's flat, permissionless
// heap.
func registerMemory(tbl *vm.SyscallTable) {
	tbl.Register(vm.SyscallRecord{
		Index: 3, Name: "memcpy", Args: []vm.ArgType{vm.TypePtr, vm.TypePtr, vm.TypeU64}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemVM,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			dst, src, n := args[0], args[1], args[2]
			srcBytes, err := i.Heap().Slice(src, n)
			if err != nil {
				return 0, err
			}
			buf := make([]byte, len(srcBytes))
			copy(buf, srcBytes)
			dstBytes, err := i.Heap().Slice(dst, n)
			if err != nil {
				return 0, err
			}
			copy(dstBytes, buf)
			return 0, nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 4, Name: "memset", Args: []vm.ArgType{vm.TypePtr, vm.TypeU8, vm.TypeU64}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemVM,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			dst, v, n := args[0], byte(args[1]), args[2]
			region, err := i.Heap().Slice(dst, n)
			if err != nil {
				return 0, err
			}
			for k := range region {
				region[k] = v
			}
			return 0, nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 16, Name: "memset32", Args: []vm.ArgType{vm.TypePtr, vm.TypeU32, vm.TypeU64}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemVM,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			dst, word, n := args[0], uint32(args[1]), args[2]
			region, err := i.Heap().Slice(dst, n*4)
			if err != nil {
				return 0, err
			}
			for k := uint64(0); k < n; k++ {
				binary.LittleEndian.PutUint32(region[k*4:], word)
			}
			return 0, nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 14, Name: "vm_heap_size", Args: nil, Ret: vm.TypeU64,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemVM,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			return i.Heap().Size(), nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 17, Name: "vm_resize_heap", Args: []vm.ArgType{vm.TypeU64}, Ret: vm.TypeBool,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemVM,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			ok := i.Heap().Resize(args[0])
			if ok {
				return 1, nil
			}
			return 0, nil
		},
	})
}
