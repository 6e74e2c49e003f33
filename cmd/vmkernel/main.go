// Command vmkernel is the host-service entry point: it owns no logic of
// its own beyond argv handling and the exit-code mapping spec.md §6
// describes, deferring everything else to package supervisor.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/djp952/vm-linux-sub000/supervisor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	sup, parsed, err := supervisor.New(args, supervisor.Options{Console: consoleWriter(args)})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return mapExitCode(err)
	}

	sup.Logger().Infof("init argv: %v", parsed.InitArgs)
	sup.Logger().Infof("init env: %v", parsed.InitEnv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh

	code := 0
	if err := sup.Shutdown(); err != nil {
		sup.Logger().WithError(err).Error("shutdown failed")
		code = 1
	}
	if sup.Mode == supervisor.ModeConsole {
		runConsole()
	}
	return code
}

// runConsole finishes the "-console[:name]" mode: any break event has
// already initiated shutdown, and after stop it waits for a keypress
// before releasing the console.
func runConsole() {
	fmt.Println("press any key to release the console...")
	_, _ = bufio.NewReader(os.Stdin).ReadByte()
}

func consoleWriter(args []string) io.Writer {
	for _, a := range args {
		if a == "-console" || len(a) > len("-console:") && a[:len("-console:")] == "-console:" {
			return os.Stdout
		}
	}
	return nil
}

// mapExitCode maps a fatal startup failure to a non-zero host error
// code; spec.md §6 leaves the exact mapping to the host platform, so
// every startup failure maps to the same sentinel here.
func mapExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
