// Package artifact loads the immutable model artifacts: the fitted
// classifier, the feature scaler and the categorical encoder registry.
// Artifacts are loaded once at process start and shared read-only; there is
// no runtime mutation or retraining.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names within the model directory.
const (
	ClassifierFile = "classifier.json"
	ScalerFile     = "scaler.json"
	EncodersFile   = "encoders.json"
)

var (
	// ErrBadArtifact means an artifact file was present but malformed or
	// internally inconsistent.
	ErrBadArtifact = errors.New("invalid model artifact")

	// ErrMissingEncoder means a categorical field required by the feature
	// record has no registry entry at all.
	ErrMissingEncoder = errors.New("missing encoder")
)

// Bundle holds the three loaded artifacts.
type Bundle struct {
	Classifier *DecisionTree
	Scaler     *Scaler
	Encoders   *Registry
}

// Load reads the artifact bundle from dir. Failure to load any artifact is
// fatal to scoring: the caller must keep the service unready rather than
// serve predictions.
func Load(dir string) (*Bundle, error) {
	var tree DecisionTree
	if err := readJSON(filepath.Join(dir, ClassifierFile), &tree); err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	if err := tree.validate(); err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}

	var scaler Scaler
	if err := readJSON(filepath.Join(dir, ScalerFile), &scaler); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}
	if err := scaler.validate(); err != nil {
		return nil, fmt.Errorf("load scaler: %w", err)
	}

	var classes map[string][]string
	if err := readJSON(filepath.Join(dir, EncodersFile), &classes); err != nil {
		return nil, fmt.Errorf("load encoders: %w", err)
	}
	registry, err := NewRegistry(classes)
	if err != nil {
		return nil, fmt.Errorf("load encoders: %w", err)
	}

	if tree.NumFeatures > 0 && tree.NumFeatures != scaler.NumFeatures() {
		return nil, fmt.Errorf("%w: classifier expects %d features, scaler %d",
			ErrBadArtifact, tree.NumFeatures, scaler.NumFeatures())
	}

	return &Bundle{
		Classifier: &tree,
		Scaler:     &scaler,
		Encoders:   registry,
	}, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadArtifact, filepath.Base(path), err)
	}
	return nil
}
