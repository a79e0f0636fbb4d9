package artifact

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRegistryEncode(t *testing.T) {
	registry, err := NewRegistry(map[string][]string{
		"TransactionType": {"Deposit", "Transfer", "Withdrawal"},
		"Account Status":  {"Active", "Dormant", "Flagged"},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	t.Run("KnownValue", func(t *testing.T) {
		code, err := registry.Encode("TransactionType", "Withdrawal")
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if code != 2 {
			t.Errorf("expected code 2 for Withdrawal, got %d", code)
		}
	})

	t.Run("UnseenValueFallsBack", func(t *testing.T) {
		fallback, _ := registry.Fallback("TransactionType")
		want, _ := registry.Encode("TransactionType", fallback)

		// Unseen values substitute the fallback silently, with no error,
		// and deterministically across repeated calls.
		for i := 0; i < 3; i++ {
			code, err := registry.Encode("TransactionType", "CryptoSwap")
			if err != nil {
				t.Fatalf("Encode returned error for unseen value: %v", err)
			}
			if code != want {
				t.Errorf("expected fallback code %d, got %d", want, code)
			}
		}
	})

	t.Run("MissingFieldIsConfigurationError", func(t *testing.T) {
		_, err := registry.Encode("Channel", "ATM")
		if !errors.Is(err, ErrMissingEncoder) {
			t.Errorf("expected ErrMissingEncoder, got %v", err)
		}
	})

	t.Run("EmptyClassListRejected", func(t *testing.T) {
		_, err := NewRegistry(map[string][]string{"Channel": {}})
		if !errors.Is(err, ErrBadArtifact) {
			t.Errorf("expected ErrBadArtifact, got %v", err)
		}
	})
}

func TestScalerTransform(t *testing.T) {
	scaler := &Scaler{
		Mean:  []float64{10, 0},
		Scale: []float64{2, 1},
	}
	if err := scaler.validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	t.Run("Affine", func(t *testing.T) {
		out, err := scaler.Transform([]float64{14, 3})
		if err != nil {
			t.Fatalf("Transform failed: %v", err)
		}
		if out[0] != 2 || out[1] != 3 {
			t.Errorf("expected [2 3], got %v", out)
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		_, err := scaler.Transform([]float64{1, 2, 3})
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) {
			t.Fatalf("expected ShapeError, got %v", err)
		}
		if shapeErr.Want != 2 || shapeErr.Got != 3 {
			t.Errorf("unexpected shape error detail: %+v", shapeErr)
		}
	})

	t.Run("ZeroScaleRejected", func(t *testing.T) {
		bad := &Scaler{Mean: []float64{0}, Scale: []float64{0}}
		if err := bad.validate(); !errors.Is(err, ErrBadArtifact) {
			t.Errorf("expected ErrBadArtifact, got %v", err)
		}
	})
}

// testTree returns a small tree: root splits on feature 0 at 0.5,
// left leaf is mostly legitimate, right leaf mostly fraud.
func testTree() *DecisionTree {
	return &DecisionTree{
		NumFeatures:   2,
		ChildrenLeft:  []int{1, -1, -1},
		ChildrenRight: []int{2, -1, -1},
		Feature:       []int{0, leafMarker, leafMarker},
		Threshold:     []float64{0.5, leafMarker, leafMarker},
		Values:        [][]float64{{0, 0}, {90, 10}, {20, 80}},
	}
}

func TestDecisionTreePredict(t *testing.T) {
	tree := testTree()
	if err := tree.validate(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}

	t.Run("LeftLeaf", func(t *testing.T) {
		label, proba, err := tree.Predict([]float64{0.2, 0})
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if label {
			t.Error("expected label=false on left leaf")
		}
		if proba != 0.1 {
			t.Errorf("expected probability 0.1, got %v", proba)
		}
	})

	t.Run("RightLeaf", func(t *testing.T) {
		label, proba, err := tree.Predict([]float64{0.9, 0})
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}
		if !label {
			t.Error("expected label=true on right leaf")
		}
		if proba != 0.8 {
			t.Errorf("expected probability 0.8, got %v", proba)
		}
	})

	t.Run("ShapeMismatch", func(t *testing.T) {
		_, _, err := tree.Predict([]float64{0.9})
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) {
			t.Errorf("expected ShapeError, got %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	writeArtifact := func(name string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	writeArtifact(ClassifierFile, testTree())
	writeArtifact(ScalerFile, &Scaler{
		FeatureNames: []string{"a", "b"},
		Mean:         []float64{0, 0},
		Scale:        []float64{1, 1},
	})
	writeArtifact(EncodersFile, map[string][]string{
		"Channel": {"ATM", "Branch", "Online"},
	})

	t.Run("Complete", func(t *testing.T) {
		bundle, err := Load(dir)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if bundle.Classifier == nil || bundle.Scaler == nil || bundle.Encoders == nil {
			t.Error("expected all three artifacts loaded")
		}
		if code, _ := bundle.Encoders.Encode("Channel", "Online"); code != 2 {
			t.Errorf("expected Online code 2, got %d", code)
		}
	})

	t.Run("MissingFileIsFatal", func(t *testing.T) {
		if err := os.Remove(filepath.Join(dir, ScalerFile)); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(dir); err == nil {
			t.Error("expected error when scaler artifact is missing")
		}
	})
}
