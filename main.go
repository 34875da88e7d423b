// main.go - Main entry point for the NEXUS bridge host

/*
NEXUS Bridge - real-time WASM DSP bridge

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NexusBridge
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func boilerPlate() {
	fmt.Println("\nNEXUS Bridge - real-time WASM DSP bridge")
	fmt.Println("(c) 2025 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/NexusBridge")
	fmt.Println("License: GPLv3 or later")
	fmt.Println()
}

func main() {
	boilerPlate()

	var (
		wasmPath   string
		rackPath   string
		watch      bool
		sampleRate int
		runFor     float64
		verbose    bool
	)
	flag.StringVar(&wasmPath, "wasm", "", "Path to the NEXUS-X engine module (.wasm)")
	flag.StringVar(&rackPath, "rack", "", "Path to a YAML rack file applied once the engine is ready")
	flag.BoolVar(&watch, "watch", false, "Reload the engine when the module file changes")
	flag.IntVar(&sampleRate, "rate", SAMPLE_RATE, "Host sample rate in Hz")
	flag.Float64Var(&runFor, "run", 0, "Run for this many seconds, then exit (0 = until interrupted)")
	flag.BoolVar(&verbose, "v", false, "Debug logging")
	flag.Parse()

	if wasmPath == "" {
		fmt.Println("Usage: nexusbridge -wasm engine.wasm [-rack rack.yaml] [-watch] [-rate 44100] [-run seconds]")
		os.Exit(1)
	}

	logger, err := newLogger(verbose)
	if err != nil {
		fmt.Printf("Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	blob, err := os.ReadFile(wasmPath)
	if err != nil {
		fmt.Printf("Error loading engine module: %v\n", err)
		os.Exit(1)
	}

	var rack *RackConfig
	if rackPath != "" {
		if rack, err = LoadRackFile(rackPath); err != nil {
			fmt.Printf("Error loading rack file: %v\n", err)
			os.Exit(1)
		}
	}

	bridge := NewBridge(logger, float32(sampleRate), BLOCK_SIZE)
	defer bridge.Close()

	output, err := NewAudioOutput(sampleRate)
	if err != nil {
		fmt.Printf("Failed to initialize audio: %v\n", err)
		os.Exit(1)
	}
	defer output.Close()
	output.SetupPlayer(bridge)
	output.Start()

	bridge.LoadEngine(blob)

	if watch {
		watcher, err := WatchEngineFile(wasmPath, bridge)
		if err != nil {
			fmt.Printf("Failed to watch engine file: %v\n", err)
			os.Exit(1)
		}
		defer watcher.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	var deadline <-chan time.Time
	if runFor > 0 {
		deadline = time.After(time.Duration(runFor * float64(time.Second)))
	}

	for {
		select {
		case n := <-bridge.Notifications():
			switch n.Kind {
			case NOTIFY_WASM_READY:
				fmt.Printf("Engine ready (%d Hz, %d frame blocks)\n", sampleRate, BLOCK_SIZE)
				if rack != nil {
					rack.Apply(bridge)
				}
			case NOTIFY_INSTRUMENT_READY:
				fmt.Printf("Instrument %d ready\n", n.InstrumentID)
			case NOTIFY_METER_UPDATE:
				fmt.Printf("Meter: L=%.3f R=%.3f\n", n.PeakLeft, n.PeakRight)
			case NOTIFY_PEAK_DETECTED:
				fmt.Println("Peak detected")
			}
		case <-sig:
			fmt.Println("\nShutting down")
			output.Stop()
			return
		case <-deadline:
			output.Stop()
			return
		}
	}
}
