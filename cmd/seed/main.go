// Seed tool that writes a demo artifact bundle for local development.
//
// Usage:
//   go run cmd/seed/main.go -dir ./model
//
// The bundle contains an identity scaler, a small hand-built decision tree
// over the night-time / balance-ratio / cross-border features, and encoder
// class lists for every categorical field. It exists so the service can be
// exercised end to end without the real trained artifacts; predictions from
// it are for demos only.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func main() {
	dir := flag.String("dir", "./model", "Directory to write the artifact bundle into")
	force := flag.Bool("force", false, "Overwrite existing artifact files")
	flag.Parse()

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		fmt.Printf("ERROR: failed to create %s: %v\n", *dir, err)
		os.Exit(1)
	}

	files := map[string]any{
		artifact.ClassifierFile: demoClassifier(),
		artifact.ScalerFile:     demoScaler(),
		artifact.EncodersFile:   demoEncoders(),
	}

	for name, v := range files {
		path := filepath.Join(*dir, name)
		if !*force {
			if _, err := os.Stat(path); err == nil {
				fmt.Printf("ERROR: %s already exists (use -force to overwrite)\n", path)
				os.Exit(1)
			}
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Printf("ERROR: failed to encode %s: %v\n", name, err)
			os.Exit(1)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			fmt.Printf("ERROR: failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("✓ wrote %s\n", path)
	}

	// Load the bundle back to prove the three files are consistent.
	if _, err := artifact.Load(*dir); err != nil {
		fmt.Printf("ERROR: written bundle does not load: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDemo bundle ready. Start the service with:\n")
	fmt.Printf("  KESTREL_MODEL_DIR=%s go run cmd/kestrel/main.go\n", *dir)
}

// demoClassifier builds a seven-node tree:
//
//	node 0: IsNightTime <= 0.5 ? node 1 : node 2
//	node 1: AmountToBalanceRatio <= 0.5 ? p=0.05 : p=0.60
//	node 2: IsCrossBorder <= 0.5 ? p=0.30 : p=0.95
func demoClassifier() *artifact.DecisionTree {
	return &artifact.DecisionTree{
		NumFeatures:   domain.FeatureCount,
		ChildrenLeft:  []int{1, 3, 5, -1, -1, -1, -1},
		ChildrenRight: []int{2, 4, 6, -1, -1, -1, -1},
		Feature:       []int{21, 23, 24, -2, -2, -2, -2},
		Threshold:     []float64{0.5, 0.5, 0.5, -2, -2, -2, -2},
		Values: [][]float64{
			{0, 0}, {0, 0}, {0, 0},
			{950, 50}, {40, 60}, {70, 30}, {5, 95},
		},
	}
}

// demoScaler is the identity transform over the canonical feature order, so
// the demo tree thresholds operate on raw feature values.
func demoScaler() *artifact.Scaler {
	mean := make([]float64, domain.FeatureCount)
	scale := make([]float64, domain.FeatureCount)
	for i := range scale {
		scale[i] = 1
	}
	return &artifact.Scaler{
		FeatureNames: domain.FeatureNames,
		Mean:         mean,
		Scale:        scale,
	}
}

func demoEncoders() map[string][]string {
	return map[string][]string{
		"TransactionType":    {"Credit", "Debit", "Transfer", "Withdrawal"},
		"Location":           {"Berlin", "London", "New York", "Tokyo"},
		"Channel":            {"ATM", "Branch", "Online"},
		"CustomerOccupation": {"Doctor", "Engineer", "Retired", "Student"},
		"Sender Country":     {"DE", "GB", "JP", "US"},
		"Receiver Country":   {"DE", "GB", "JP", "US"},
		"Sender Currency":    {"EUR", "GBP", "JPY", "USD"},
		"Receiver Currency":  {"EUR", "GBP", "JPY", "USD"},
		"Account Status":     {"Active", "Dormant", "Frozen"},
		"Invalid Pin Status": {"Invalid", "Valid"},
	}
}
