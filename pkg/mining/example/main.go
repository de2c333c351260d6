package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"

	"cuckoominer/pkg/mining/core"
	"cuckoominer/pkg/mining/discovery"
	"cuckoominer/pkg/mining/factory"
	"cuckoominer/pkg/mining/methods/reference"
	"cuckoominer/pkg/mining/worker"
)

func main() {
	fmt.Println("Cuckoo Mining Engines Example")
	fmt.Println("=============================")

	params, err := core.NewCycleParameters(50, 12)
	if err != nil {
		log.Fatalf("invalid parameters: %v", err)
	}

	baseDir, err := os.MkdirTemp("", "cuckoo-example")
	if err != nil {
		log.Fatalf("temp dir: %v", err)
	}
	defer os.RemoveAll(baseDir)

	// Example 1: plugin-only selection, nothing installed
	fmt.Println("\n1. Default Plugin-Only Configuration:")
	runMiningExample(params, baseDir, factory.DefaultSelectionConfig(), "Plugin-Only")

	// Example 2: plugin first, reference engine as fallback
	fmt.Println("\n2. Fallback Configuration:")
	runMiningExample(params, baseDir, factory.FallbackSelectionConfig(), "Fallback")

	// Example 3: reference engine only, two threads requested
	fmt.Println("\n3. Custom Configuration:")
	customConfig := &factory.SelectionConfig{
		PreferredOrder: []string{
			reference.Kind, // force the in-process search
		},
		PluginSubdir:   discovery.DefaultSubdir,
		ThreadCount:    2,
		EnableFallback: false,
	}
	runMiningExample(params, baseDir, customConfig, "Reference-Only")
}

func runMiningExample(params core.CycleParameters, baseDir string, config *factory.SelectionConfig, mode string) {
	fact := factory.NewEngineFactory(config, discovery.NewDirHost(nil))

	w, err := worker.New(params, worker.WithFactory(fact), worker.WithBaseDir(baseDir), worker.WithProofSize(6))
	if err != nil {
		fmt.Printf("%s Mode - no engine: %v\n", mode, err)
		printReport(fact.GetDetectionReport(params))
		return
	}
	defer w.Close()

	printReport(fact.GetDetectionReport(params))
	fmt.Printf("Engine Selected: %s (%s)\n", w.EngineName(), w.Config().EnginePath)

	demonstrateMining(w)
}

func printReport(report *factory.DetectionReport) {
	fmt.Printf("\nDetection Results for %s:\n", report.Tag)
	for _, engine := range report.Engines {
		status := "UNAVAILABLE"
		if engine.Available {
			status = "AVAILABLE"
		}
		fmt.Printf("  %-12s %-12s %s\n", engine.Kind, status, engine.Description)
		if !engine.Available && engine.Reason != "" {
			fmt.Printf("    Reason: %s\n", engine.Reason)
		}
	}
	fmt.Println()
}

func demonstrateMining(w *worker.Worker) {
	fmt.Println("\nMining Demonstration:")
	fmt.Println("=====================")

	header := make([]byte, 80)
	for nonce := uint64(0); nonce < 64; nonce++ {
		binary.BigEndian.PutUint64(header[72:], nonce)

		proof, err := w.Mine(header)
		if errors.Is(err, core.ErrNoSolution) {
			continue
		}
		if err != nil {
			fmt.Printf("Engine fault: %v\n", err)
			return
		}

		fmt.Printf("Nonce %d: %s\n", nonce, proof)
		if err := reference.Verify(header, w.Params(), proof.Nonces()); err != nil {
			fmt.Printf("  verification failed: %v\n", err)
		} else {
			fmt.Println("  verified")
		}
		return
	}
	fmt.Println("No cycle in 64 headers")
}
