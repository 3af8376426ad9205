// Command yalnixd boots the kernel against a driver machine and runs it
// until interrupted. It exists to give the kernel package a runnable
// entry point outside of tests; the driver machine it wires up is a
// software stand-in for the interrupt sources a real hardware harness
// would supply (a periodic clock, a program loader, a console).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rice-cs422/goyalnix/bootcfg"
	"github.com/rice-cs422/goyalnix/driver"
	"github.com/rice-cs422/goyalnix/kernel"
	"github.com/rice-cs422/goyalnix/klog"
)

func main() {
	configPath := flag.String("config", "", "path to a JSON boot configuration (defaults built in if omitted)")
	initProgram := flag.String("init", "", "override the init program path from the config")
	logLevel := flag.String("log", "info", "log level: debug, info, warn, error")
	tickInterval := flag.Duration("tick", 10*time.Millisecond, "simulated clock tick interval")
	flag.Parse()

	klog.Init(*logLevel)

	cfg, err := bootcfg.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yalnixd: loading config: %v\n", err)
		os.Exit(1)
	}
	if *initProgram != "" {
		cfg.InitProgram = *initProgram
	}

	machine := driver.NewSimMachine(cfg)

	k, initCtx, err := kernel.Start(cfg, machine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "yalnixd: booting kernel: %v\n", err)
		os.Exit(1)
	}
	klog.Info("init process resumed", "pc", initCtx.PC, "sp", initCtx.SP)

	ticker := time.NewTicker(*tickInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	klog.Info("yalnixd running", "tickInterval", tickInterval.String())
	for {
		select {
		case <-ticker.C:
			k.ReceiveInterrupt(0)
			for _, tty := range machine.DrainTransmitDone() {
				k.TransmitInterrupt(tty)
			}
			k.Tick()
		case sig := <-sigCh:
			klog.Info("shutting down", "signal", sig.String())
			return
		}
	}
}
