package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invoiceguard/backend/internal/service"
)

// WriteDataset serializes the dataset into invoices.json under the provided
// directory.
func WriteDataset(dataset Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	return writeJSON(filepath.Join(dir, "invoices.json"), dataset.Items)
}

// ReadDataset loads a dataset previously written by WriteDataset.
func ReadDataset(path string) (Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	var items []service.IngestItem
	if err := json.NewDecoder(file).Decode(&items); err != nil {
		return Dataset{}, fmt.Errorf("decode json from %s: %w", path, err)
	}
	return Dataset{Items: items}, nil
}

func writeJSON(path string, data any) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode json for %s: %w", path, err)
	}
	return nil
}
