package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/invoiceguard/backend/internal/domain"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	expected := map[domain.FlagKind]int{
		domain.FlagAlreadyPaid:       85,
		domain.FlagDuplicateHard:     70,
		domain.FlagDuplicateSoft:     45,
		domain.FlagTaxIDMismatch:     35,
		domain.FlagIBANMismatch:      55,
		domain.FlagAmountLowOutlier:  15,
		domain.FlagAmountHighOutlier: 25,
	}
	for kind, want := range expected {
		if got := w.Points(kind); got != want {
			t.Errorf("Points(%s) = %d, want %d", kind, got, want)
		}
	}
	if got := w.Points(domain.FlagNone); got != 0 {
		t.Errorf("NO_FLAGS must carry no weight, got %d", got)
	}
}

func TestLoadWeightsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	content := "duplicate_hard: 60\niban_mismatch: 90\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWeightsFile(path)
	if err != nil {
		t.Fatalf("LoadWeightsFile: %v", err)
	}
	if w.DuplicateHard != 60 || w.IBANMismatch != 90 {
		t.Errorf("overrides not applied: %+v", w)
	}
	// Keys absent from the file keep their defaults.
	if w.AlreadyPaid != 85 || w.DuplicateSoft != 45 {
		t.Errorf("defaults lost: %+v", w)
	}
}

func TestLoadWeightsFileRejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("already_paid: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeightsFile(path); err == nil {
		t.Fatal("expected an error for a negative weight")
	}
}

func TestLoadWeightsFileMissing(t *testing.T) {
	if _, err := LoadWeightsFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
