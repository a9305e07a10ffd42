package host

import (
	"testing"

	"github.com/kstephano/svm/vm"
)

// Regression: NewCatalog must register every gated syscall index
// (window/audio included) regardless of whether the matching host
// service was constructed, since dispatchSyscall resolves by index
// before it checks permission. Registering conditionally made an
// ungranted-permission call fault BadSyscall instead of Denied.
func TestNewCatalogRegistersGatedSyscallsRegardlessOfServices(t *testing.T) {
	tbl := NewCatalog(Services{})
	for _, idx := range []uint8{1, 9, 10, 11, 12, 13, 15, 18, 19} {
		if _, ok := tbl.Lookup(idx); !ok {
			t.Fatalf("syscall index %d missing from catalog when its service is nil", idx)
		}
	}
}

func TestWindowSyscallWithoutPermissionFaultsDeniedNotBadSyscall(t *testing.T) {
	tbl := NewCatalog(Services{})
	code := []byte{byte(vm.Syscall), 1} // syscall window_create (index 1)
	prog := &vm.Program{Code: code, Labels: map[string]vm.Label{}, Funcs: map[uint32]vm.FuncMeta{}}
	it := vm.NewInterpreter(prog, tbl, vm.Config{Permissions: vm.NewPermissionSet()})

	err := it.Run()
	f, ok := err.(*vm.Fault)
	if !ok || f.Kind != vm.Denied {
		t.Fatalf("expected Denied, got %v", err)
	}
}
