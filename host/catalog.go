package host

import (
	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/kstephano/svm/vm"
)

// Services bundles the host-side singletons a catalog entry may need:
// the window manager (nil if the process was launched headless) and
// an oto context (nil if audio output isn't permitted/available).
type Services struct {
	Window *WindowManager
	Audio  *oto.Context
	Logger *zap.Logger
}

// NewCatalog builds the full syscall table from SPEC_FULL.md #4.3:
// every one of indices 0-20 is registered unconditionally, plus the
// window_copy_pixels/window_show aliases, regardless of which
// permissions were granted at startup. dispatchSyscall resolves by
// index before it ever checks permission (vm/syscall.go), so omitting
// a record here for an ungranted permission would make the call fault
// BadSyscall instead of the spec-mandated Denied. Services.Window/Audio
// are nil when the matching permission wasn't granted (or the device
// failed to open); the window/audio handlers guard on that and fault
// HostError rather than touching a nil receiver.
func NewCatalog(svc Services) *vm.SyscallTable {
	tbl := vm.NewSyscallTable()

	registerIO(tbl)
	registerMemory(tbl)
	registerTime(tbl)
	registerWindow(tbl, svc.Window)
	registerAudio(tbl, svc.Audio, svc.Logger)

	return tbl
}
