package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/ebitengine/oto/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.design/x/clipboard"
	"golang.org/x/term"

	"github.com/kstephano/svm/host"
	"github.com/kstephano/svm/vm"
)

func main() {
	app := &cli.App{
		Name:  "svm",
		Usage: "run sandboxed stack-machine bytecode images",
		Commands: []*cli.Command{
			runCommand(),
			debugCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{Name: "perm", Usage: "grant a permission tag (repeatable); accepts time_get_time, window_display, audio_output"},
		&cli.Uint64Flag{Name: "heap-size", Usage: "override initial heap size in bytes (defaults to the image's data section length)"},
		&cli.IntFlag{Name: "max-stack", Value: vm.DefaultMaxStackDepth, Usage: "operand/call stack depth limit, in cells"},
		&cli.StringFlag{Name: "title", Value: "svm", Usage: "window title, if window_display is granted"},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "load and execute a program image",
		ArgsUsage: "<image.svm>",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			return launch(c, false)
		},
	}
}

func debugCommand() *cli.Command {
	return &cli.Command{
		Name:      "debug",
		Usage:     "execute a program image under the single-step console",
		ArgsUsage: "<image.svm>",
		Flags:     commonFlags(),
		Action: func(c *cli.Context) error {
			return launch(c, true)
		},
	}
}

func launch(c *cli.Context, debug bool) error {
	if c.NArg() < 1 {
		return cli.Exit("missing program image path", 2)
	}
	path := c.Args().Get(0)

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer f.Close()

	prog, err := vm.Load(f)
	if err != nil {
		return cli.Exit(fmt.Sprintf("loading %s: %v", path, err), 1)
	}
	if hs := c.Uint64("heap-size"); hs > 0 {
		h := vm.NewHeap(prog.Data)
		h.Resize(hs)
		prog.Data = h.Dump(hs)
	}

	logger := host.NewLogger(debug)
	defer logger.Sync()

	perms := vm.NewPermissionSet(c.StringSlice("perm")...)

	cfg := vm.Config{
		MaxStackDepth: c.Int("max-stack"),
		Permissions:   perms,
		Stdout:        os.Stdout,
		Stdin:         os.Stdin,
	}

	// The window manager and an interpreter reference each other
	// (window_create/draw_frame close over it.Heap()/Scheduler(); the
	// Update loop needs it.Halted() to know when to stop polling), so
	// the interpreter is built first against an empty table and the
	// real catalog is swapped in once wm exists.
	it := vm.NewInterpreter(prog, vm.NewSyscallTable(), cfg)

	var wm *host.WindowManager
	if perms.Allows(host.PermWindowDisplay) {
		wm = host.NewWindowManager(it, logger)
		wm.ShowHUD = debug
	}

	var otoCtx *oto.Context
	if perms.Allows(host.PermAudioOutput) {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   44100,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			logger.Warn("audio_output granted but device init failed; audio syscalls will fault", zap.Error(err))
		} else {
			<-ready
			otoCtx = ctx
		}
	}

	it.SetSyscalls(host.NewCatalog(host.Services{Window: wm, Audio: otoCtx, Logger: logger}))

	runErr := make(chan error, 1)
	go func() {
		if debug {
			runErr <- runDebugConsole(it)
		} else {
			runErr <- it.Run()
		}
	}()

	if wm != nil {
		if err := wm.Run(c.String("title")); err != nil {
			return cli.Exit(err, 1)
		}
	}

	if err := <-runErr; err != nil {
		return cli.Exit(err, 1)
	}
	return nil
}

// runDebugConsole drives the interpreter one instruction at a time,
// reading single raw keystrokes the way the teacher's
// RunProgramDebugMode REPL reads line commands (run.go), but without
// needing Enter: 'n' steps, 'r' runs to completion, 'd' dumps the
// first 64 heap bytes, 'c' copies the current PC to the clipboard for
// pasting into an issue report, 'q' quits.
func runDebugConsole(it *vm.Interpreter) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err == nil {
		defer term.Restore(fd, oldState)
	}
	clipboardReady := clipboard.Init() == nil

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprintln(os.Stdout, "svm debug console: n=step r=run d=heap-dump c=copy-pc q=quit\r")
	for !it.Halted() {
		b, rerr := reader.ReadByte()
		if rerr != nil {
			return it.Run()
		}
		switch b {
		case 'n':
			if err := it.Step(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "pc=%d\r\n", it.PC())
		case 'r':
			return it.Run()
		case 'd':
			fmt.Fprintf(os.Stdout, "%x\r\n", it.Heap().Dump(64))
		case 'c':
			if clipboardReady {
				clipboard.Write(clipboard.FmtText, []byte(fmt.Sprintf("pc=%d", it.PC())))
			}
		case 'q':
			return nil
		}
	}
	return nil
}
