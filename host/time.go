package host

import (
	"time"

	"github.com/kstephano/svm/vm"
)

// registerTime wires time_current_ms and time_delay_cb (indices 0, 2).
// Grounded on the teacher's newSystemTimer (devices.go), which runs a
// goroutine around time.NewTimer in a select loop and posts a response
// once it fires; this keeps that shape but posts directly onto the
// Scheduler's event queue instead of a device response bus, and
// targets the callback offset the program supplied rather than a
// fixed interrupt vector.
func registerTime(tbl *vm.SyscallTable) {
	tbl.Register(vm.SyscallRecord{
		Index: 0, Name: "time_current_ms", Args: nil, Ret: vm.TypeU64,
		Permission: PermTimeGetTime, Subsystem: vm.SubsystemTime,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			return uint64(time.Now().UnixMilli()), nil
		},
	})

	tbl.Register(vm.SyscallRecord{
		Index: 2, Name: "time_delay_cb", Args: []vm.ArgType{vm.TypeU64, vm.TypePtr}, Ret: vm.TypeNone,
		Permission: vm.DefaultAllowed, Subsystem: vm.SubsystemTime,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			ms, cb := args[0], uint32(args[1])
			if !i.Program().ValidCodeOffset(cb) {
				return 0, vm.Kind(vm.BadLabel)
			}
			sched := i.Scheduler()
			time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
				sched.Push(vm.Event{Class: vm.EventTimer, CallbackOffset: cb})
			})
			return 0, nil
		},
	})
}
