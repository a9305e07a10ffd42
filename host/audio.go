package host

import (
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/kstephano/svm/vm"
)

const audioFormatI16 = 0

// fillDeadline bounds how long the audio-fill handshake waits for the
// VM thread to run its callback before the host substitutes silence,
// per spec.md #5's underrun rule.
const fillDeadline = 40 * time.Millisecond

// samplesPerFill is the chunk size the host asks the callback to
// produce per invocation; oto's player pulls in whatever increments
// its own internal buffering wants, so Read below clamps to whole
// frames regardless of what oto actually requests.
const samplesPerFill = 1024

// audioSource bridges oto's pull-based io.Reader player to the
// scheduler's push-based event queue: each Read blocks on a per-call
// Done channel that the scheduler closes once the program's callback
// (or its absence) has been handled.
type audioSource struct {
	it         *vm.Interpreter
	logger     *zap.Logger
	cb         uint32
	bufAddr    uint64
	frameBytes int
}

func (a *audioSource) Read(p []byte) (int, error) {
	n := len(p) - (len(p) % a.frameBytes)
	if limit := samplesPerFill * a.frameBytes; n > limit {
		n = limit
	}
	if n <= 0 {
		return 0, nil
	}
	numSamples := uint64(n / a.frameBytes)
	done := make(chan struct{})
	a.it.Scheduler().Push(vm.Event{
		Class:          vm.EventAudioFill,
		Args:           []vm.Value{a.bufAddr, numSamples},
		CallbackOffset: a.cb,
		Done:           done,
	})

	select {
	case <-done:
	case <-time.After(fillDeadline):
		a.logger.Warn("audio buffer underrun, substituting silence")
		for i := range p[:n] {
			p[i] = 0
		}
		return n, nil
	}

	region, err := a.it.Heap().Slice(a.bufAddr, uint64(n))
	if err != nil {
		return 0, err
	}
	copy(p, region)
	return n, nil
}

// registerAudio wires audio_open_output (index 18). Grounded on the
// teacher's device-registration shape (devices.go's HardwareDevice
// slots), adapted to oto's context/player API: opening a device here
// means standing up an oto.Context once per process and a Player per
// call, since oto only supports one context per process.
//
// The output buffer the callback fills is host-allocated at the tail
// of the heap (spec.md #4.4: "the host has pre-allocated the output
// buffer inside the heap") rather than supplied by the program, since
// the syscall's declared signature carries no buffer pointer argument.
func registerAudio(tbl *vm.SyscallTable, otoCtx *oto.Context, logger *zap.Logger) {
	// oto keeps playing only as long as its Player isn't collected;
	// pin every opened stream here for the process lifetime (programs
	// don't close audio streams in this catalog).
	var players []*oto.Player

	tbl.Register(vm.SyscallRecord{
		Index: 18, Name: "audio_open_output", Args: []vm.ArgType{vm.TypeU32, vm.TypeU16, vm.TypeU16, vm.TypePtr}, Ret: vm.TypeU32,
		Permission: PermAudioOutput, Subsystem: vm.SubsystemAudio,
		Handler: func(i *vm.Interpreter, args []vm.Value) (vm.Value, error) {
			rate, channels, format, cb := uint32(args[0]), uint16(args[1]), uint16(args[2]), uint32(args[3])
			if format != audioFormatI16 {
				return 0, vm.Kind(vm.HostError)
			}
			if !i.Program().ValidCodeOffset(cb) {
				return 0, vm.Kind(vm.BadLabel)
			}
			if otoCtx == nil {
				return 0, vm.Kind(vm.HostError)
			}

			frameBytes := int(channels) * 2 // I16 per channel
			bufAddr := i.Heap().Size()
			if !i.Heap().Resize(bufAddr + uint64(samplesPerFill*frameBytes)) {
				return 0, vm.Kind(vm.HostError)
			}

			src := &audioSource{it: i, logger: logger, cb: cb, frameBytes: frameBytes, bufAddr: bufAddr}
			player := otoCtx.NewPlayer(src)
			players = append(players, player)
			player.Play()

			_ = rate
			return 1, nil
		},
	})
}
