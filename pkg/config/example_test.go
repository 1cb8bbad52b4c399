package config_test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ajitpratap0/strata/pkg/config"
)

// ExampleNew demonstrates the defaults of a new configuration.
func ExampleNew() {
	cfg := config.New("DecayTree")

	fmt.Printf("Print Every: %d\n", cfg.Reader.PrintEvery)
	fmt.Printf("Write Mode: %s\n", cfg.Writer.Mode)
	fmt.Printf("Compression: %s\n", cfg.Writer.Compression)
	fmt.Printf("Valid: %v\n", cfg.Validate() == nil)

	// Output:
	// Print Every: 1000
	// Write Mode: create
	// Compression: snappy
	// Valid: true
}

// ExampleLoadFile demonstrates loading a run configuration with environment
// variable substitution.
func ExampleLoadFile() {
	dir, _ := os.MkdirTemp("", "strata-config")
	defer os.RemoveAll(dir)

	os.Setenv("STRATA_EXAMPLE_BUCKET", "lhcb-data")
	defer os.Unsetenv("STRATA_EXAMPLE_BUCKET")

	path := filepath.Join(dir, "run.yaml")
	os.WriteFile(path, []byte(`
reader:
  files:
    - s3://${STRATA_EXAMPLE_BUCKET}/run1.parquet
  selection: B_PT > 2000
writer:
  path: scored.parquet
  mode: extend
`), 0o600)

	cfg, err := config.LoadFile(path, "DecayTree")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(cfg.Reader.Files[0])
	fmt.Println(cfg.Reader.Selection)
	fmt.Println(cfg.Writer.Mode, cfg.Reader.PrintEvery)

	// Output:
	// s3://lhcb-data/run1.parquet
	// B_PT > 2000
	// extend 1000
}
