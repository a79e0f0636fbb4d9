// Package scoring combines the canonical feature record with the loaded
// model artifacts to produce fraud predictions, and applies the fixed
// risk/action policy around them.
package scoring

import (
	"errors"

	"github.com/opensource-finance/kestrel/internal/artifact"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ErrModelUnavailable means the artifact bundle failed to load at startup.
// This is a service-level condition (503), never a per-request one.
var ErrModelUnavailable = errors.New("model artifacts not loaded")

// Engine applies the fitted scaler and classifier to canonical feature
// records. The bundle is immutable shared state; the engine is safe for
// concurrent use.
type Engine struct {
	bundle *artifact.Bundle
}

// NewEngine creates a scoring engine. bundle may be nil when artifact
// loading failed; Score then reports ErrModelUnavailable.
func NewEngine(bundle *artifact.Bundle) *Engine {
	return &Engine{bundle: bundle}
}

// Ready reports whether the artifacts are loaded.
func (e *Engine) Ready() bool {
	return e.bundle != nil
}

// Bundle exposes the loaded artifacts (nil when unready).
func (e *Engine) Bundle() *artifact.Bundle {
	return e.bundle
}

// Score runs the scaler and classifier over a feature record and returns
// the classifier's own label and the fraud probability.
//
// A feature-shape mismatch (artifact.ShapeError) indicates normalizer or
// encoder drift against the fitted artifacts; it must surface with full
// detail, never be coerced.
func (e *Engine) Score(rec *domain.FeatureRecord) (bool, float64, error) {
	if e.bundle == nil {
		return false, 0, ErrModelUnavailable
	}

	scaled, err := e.bundle.Scaler.Transform(rec.Vector())
	if err != nil {
		return false, 0, err
	}
	return e.bundle.Classifier.Predict(scaled)
}
