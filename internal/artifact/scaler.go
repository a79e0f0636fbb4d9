package artifact

import (
	"fmt"
)

// Scaler is the fitted affine feature scaler. Transform applies
// (x - mean) / scale element-wise in the fixed feature order.
type Scaler struct {
	FeatureNames []string  `json:"feature_names"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// ShapeError reports a feature count mismatch between a vector and the
// fitted scaler. It indicates normalizer/artifact drift that would corrupt
// every prediction, so it is never coerced or downgraded.
type ShapeError struct {
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("feature shape mismatch: scaler expects %d features, got %d", e.Want, e.Got)
}

func (s *Scaler) validate() error {
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Scale) {
		return fmt.Errorf("%w: scaler mean/scale length mismatch (%d vs %d)", ErrBadArtifact, len(s.Mean), len(s.Scale))
	}
	if len(s.FeatureNames) != 0 && len(s.FeatureNames) != len(s.Mean) {
		return fmt.Errorf("%w: scaler has %d feature names but %d means", ErrBadArtifact, len(s.FeatureNames), len(s.Mean))
	}
	for i, sc := range s.Scale {
		if sc == 0 {
			return fmt.Errorf("%w: scaler scale[%d] is zero", ErrBadArtifact, i)
		}
	}
	return nil
}

// NumFeatures returns the expected input width.
func (s *Scaler) NumFeatures() int {
	return len(s.Mean)
}

// Transform scales a feature vector. The input is not modified.
func (s *Scaler) Transform(vec []float64) ([]float64, error) {
	if len(vec) != len(s.Mean) {
		return nil, &ShapeError{Want: len(s.Mean), Got: len(vec)}
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = (v - s.Mean[i]) / s.Scale[i]
	}
	return out, nil
}
