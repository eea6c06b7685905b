package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/invoiceguard/backend/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		vendors     = flag.Int("vendors", cfg.NumVendors, "number of vendors to generate")
		invoices    = flag.Int("invoices", cfg.NumInvoices, "number of invoices to generate")
		paid        = flag.Float64("paid-fraction", cfg.PaidFraction, "fraction of invoices marked as paid")
		dupChance   = flag.Float64("duplicate-chance", cfg.DuplicateChance, "probability of injecting a near duplicate")
		ibanChance  = flag.Float64("iban-swap-chance", cfg.IBANSwapChance, "probability of swapping the bank account")
		outChance   = flag.Float64("outlier-chance", cfg.OutlierChance, "probability of inflating the amount")
		seed        = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir   = flag.String("output-dir", "data", "directory to write invoices.json")
		writeStdout = flag.Bool("stdout", false, "write dataset to stdout instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumVendors:      *vendors,
		NumInvoices:     *invoices,
		PaidFraction:    clampProbability(*paid),
		DuplicateChance: clampProbability(*dupChance),
		IBANSwapChance:  clampProbability(*ibanChance),
		OutlierChance:   clampProbability(*outChance),
		Seed:            *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset.Items); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d invoices into %s\n", len(dataset.Items), *outputDir)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
