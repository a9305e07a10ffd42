package host

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"go.uber.org/zap"
	"golang.org/x/image/font/basicfont"

	"github.com/kstephano/svm/vm"
)

// Window scanline format is BGRA8 per spec.md #4.3/#6; ebiten images
// want RGBA8, so Draw channel-swaps the registered buffer through
// convBuf on every frame.
type windowState struct {
	id            uint32
	width, height uint32
	pixelsAddr    uint64
	pixelsValid   bool
	convBuf       []byte
}

// WindowManager owns the single OS window ebiten can actually open
// (ebiten is a single-window toolkit) and multiplexes the catalog's
// window_id concept onto it: the first window_create call becomes the
// real window; later ones are accepted (so programs written against
// multiple logical surfaces still run) but only the first is ever
// drawn, and a warning is logged. Grounded on the teacher's
// newConsoleIO/newSystemTimer device pattern (devices.go) of an async
// input source feeding a single delivery queue, translated into
// ebiten's per-frame Update/Draw polling loop.
type WindowManager struct {
	mu      sync.Mutex
	windows map[uint32]*windowState
	primary uint32
	nextID  uint32
	it      *vm.Interpreter
	logger  *zap.Logger

	// ShowHUD overlays PC/heap-size/stack-depth text each frame using
	// golang.org/x/image's bundled basicfont, via ebiten's text
	// package -- on by default under `svm debug`.
	ShowHUD bool
}

func NewWindowManager(it *vm.Interpreter, logger *zap.Logger) *WindowManager {
	return &WindowManager{
		windows: make(map[uint32]*windowState),
		it:      it,
		logger:  logger,
	}
}

func (wm *WindowManager) HasWindows() bool {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	return len(wm.windows) > 0
}

// Run blocks the calling goroutine in ebiten's game loop; must be
// called from the process's main goroutine (an ebiten/OS constraint),
// while the interpreter runs on a separate goroutine started by main.
func (wm *WindowManager) Run(title string) error {
	ebiten.SetWindowTitle(title)
	return ebiten.RunGame(wm)
}

func (wm *WindowManager) Update() error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	primary, ok := wm.windows[wm.primary]
	if !ok {
		return nil
	}

	for _, k := range inpututil.AppendJustPressedKeys(nil) {
		if code, ok := mapEbitenKey(k); ok {
			wm.it.Scheduler().Push(vm.Event{Class: vm.EventKeyDown, WindowID: primary.id, Args: []vm.Value{uint64(primary.id), uint64(code)}})
		}
	}
	for _, k := range inpututil.AppendJustReleasedKeys(nil) {
		if code, ok := mapEbitenKey(k); ok {
			wm.it.Scheduler().Push(vm.Event{Class: vm.EventKeyUp, WindowID: primary.id, Args: []vm.Value{uint64(primary.id), uint64(code)}})
		}
	}

	x, y := ebiten.CursorPosition()
	wm.it.Scheduler().Push(vm.Event{Class: vm.EventMouseMove, WindowID: primary.id, Args: []vm.Value{
		uint64(primary.id), uint64(uint32(int32(x))), uint64(uint32(int32(y))),
	}})

	for btn, code := range mouseButtons {
		if inpututil.IsMouseButtonJustPressed(btn) {
			wm.it.Scheduler().Push(vm.Event{Class: vm.EventMouseDown, WindowID: primary.id, Args: []vm.Value{
				uint64(primary.id), uint64(uint32(int32(x))), uint64(uint32(int32(y))), uint64(code),
			}})
		}
		if inpututil.IsMouseButtonJustReleased(btn) {
			wm.it.Scheduler().Push(vm.Event{Class: vm.EventMouseUp, WindowID: primary.id, Args: []vm.Value{
				uint64(primary.id), uint64(uint32(int32(x))), uint64(uint32(int32(y))), uint64(code),
			}})
		}
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		for _, b := range []byte(string(r)) {
			wm.it.Scheduler().Push(vm.Event{Class: vm.EventTextInput, WindowID: primary.id, Args: []vm.Value{uint64(primary.id), uint64(b)}})
		}
	}

	if wm.it.Halted() {
		return ebiten.Termination
	}
	return nil
}

func (wm *WindowManager) Draw(screen *ebiten.Image) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	w, ok := wm.windows[wm.primary]
	if !ok || !w.pixelsValid {
		return
	}
	bgra, err := wm.it.Heap().Slice(w.pixelsAddr, uint64(w.width)*uint64(w.height)*4)
	if err != nil {
		wm.logger.Warn("window_draw_frame: pixel buffer out of range", zap.Error(err))
		return
	}
	if len(w.convBuf) != len(bgra) {
		w.convBuf = make([]byte, len(bgra))
	}
	for i := 0; i+3 < len(bgra); i += 4 {
		w.convBuf[i+0] = bgra[i+2] // R
		w.convBuf[i+1] = bgra[i+1] // G
		w.convBuf[i+2] = bgra[i+0] // B
		w.convBuf[i+3] = bgra[i+3] // A
	}
	screen.WritePixels(w.convBuf)

	if wm.ShowHUD {
		hud := fmt.Sprintf("pc=%d heap=%d stack=%d", wm.it.PC(), wm.it.Heap().Size(), wm.it.Stack().Depth())
		text.Draw(screen, hud, basicfont.Face7x13, 4, 14, color.White)
	}
}

func (wm *WindowManager) Layout(outsideWidth, outsideHeight int) (int, int) {
	wm.mu.Lock()
	defer wm.mu.Unlock()
	if w, ok := wm.windows[wm.primary]; ok {
		return int(w.width), int(w.height)
	}
	return outsideWidth, outsideHeight
}

var mouseButtons = map[ebiten.MouseButton]uint8{
	ebiten.MouseButtonLeft:   0,
	ebiten.MouseButtonRight:  1,
	ebiten.MouseButtonMiddle: 2,
}

// mapEbitenKey translates ebiten's key enum into the catalog's KEY_*
// numbering (spec.md #4.3): ASCII-compatible for letters/digits/basic
// control keys, a vendor range (16000+) for arrows/modifiers.
func mapEbitenKey(k ebiten.Key) (uint16, bool) {
	switch {
	case k >= ebiten.KeyA && k <= ebiten.KeyZ:
		return uint16('A' + (k - ebiten.KeyA)), true
	case k >= ebiten.KeyDigit0 && k <= ebiten.KeyDigit9:
		return uint16('0' + (k - ebiten.KeyDigit0)), true
	}
	switch k {
	case ebiten.KeyBackspace:
		return 8, true
	case ebiten.KeyTab:
		return 9, true
	case ebiten.KeyEnter:
		return 10, true
	case ebiten.KeyEscape:
		return 27, true
	case ebiten.KeySpace:
		return 32, true
	case ebiten.KeyArrowLeft:
		return 16001, true
	case ebiten.KeyArrowRight:
		return 16002, true
	case ebiten.KeyArrowUp:
		return 16003, true
	case ebiten.KeyArrowDown:
		return 16004, true
	case ebiten.KeyShiftLeft, ebiten.KeyShiftRight:
		return 16005, true
	}
	return 0, false
}

// registerWindow wires indices 1, 9-13, 15, 19 and the legacy
// window_copy_pixels/window_show aliases onto window_draw_frame
// (spec.md #4.3/#9). wm is nil when the process was launched without
// window_display granted; the catalog still registers every index
// (dispatch must resolve by index independent of permission, per
// spec.md #4.3's two-step algorithm) and each handler here faults
// HostError if it ever runs against a nil wm -- which only happens if
// the permission check that gates on PermWindowDisplay is itself
// missing or wrong, since Denied is supposed to stop the call first.
func registerWindow(tbl *vm.SyscallTable, wm *WindowManager) {
	tbl.Register(vm.SyscallRecord{
		Index: 1, Name: "window_create", Args: []vm.ArgType{vm.TypeU32, vm.TypeU32, vm.TypePtr, vm.TypeU64}, Ret: vm.TypeU32,
		Permission: PermWindowDisplay, Subsystem: vm.SubsystemWindow,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			if wm == nil {
				return 0, vm.Kind(vm.HostError)
			}
			title, err := i.Heap().CString(args[2])
			if err != nil {
				return 0, err
			}
			wm.mu.Lock()
			defer wm.mu.Unlock()
			wm.nextID++
			id := wm.nextID
			wm.windows[id] = &windowState{id: id, width: uint32(args[0]), height: uint32(args[1])}
			if wm.primary == 0 {
				wm.primary = id
				ebiten.SetWindowSize(int(args[0]), int(args[1]))
				ebiten.SetWindowTitle(title)
			} else {
				wm.logger.Warn("window_create: additional window requested, only the first is displayed", zap.Uint32("window_id", id))
			}
			return uint64(id), nil
		},
	})

	drawFrame := vm.SyscallRecord{
		Index: 10, Name: "window_draw_frame", Args: []vm.ArgType{vm.TypeU32, vm.TypePtr}, Ret: vm.TypeNone,
		Permission: PermWindowDisplay, Subsystem: vm.SubsystemWindow,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			if wm == nil {
				return 0, vm.Kind(vm.HostError)
			}
			wm.mu.Lock()
			defer wm.mu.Unlock()
			w, ok := wm.windows[uint32(args[0])]
			if !ok {
				return 0, fmt.Errorf("window_draw_frame: unknown window id %d", args[0])
			}
			w.pixelsAddr = args[1]
			w.pixelsValid = true
			return 0, nil
		},
	}
	tbl.Register(drawFrame)
	tbl.Alias("window_copy_pixels", drawFrame.Index)
	tbl.Alias("window_show", drawFrame.Index)

	registerOn := func(idx uint8, name string, class vm.EventClass) {
		tbl.Register(vm.SyscallRecord{
			Index: idx, Name: name, Args: []vm.ArgType{vm.TypeU32, vm.TypePtr}, Ret: vm.TypeNone,
			Permission: PermWindowDisplay, Subsystem: vm.SubsystemWindow,
			Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
				if wm == nil {
					return 0, vm.Kind(vm.HostError)
				}
				return 0, i.Scheduler().Register(class, uint32(args[0]), uint32(args[1]))
			},
		})
	}
	registerOn(9, "window_on_keydown", vm.EventKeyDown)
	registerOn(11, "window_on_mousemove", vm.EventMouseMove)
	registerOn(12, "window_on_mousedown", vm.EventMouseDown)
	registerOn(13, "window_on_mouseup", vm.EventMouseUp)
	registerOn(15, "window_on_keyup", vm.EventKeyUp)
	registerOn(19, "window_on_textinput", vm.EventTextInput)
}
