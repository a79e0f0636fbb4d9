package artifact

import (
	"fmt"
)

// leafMarker is the sentinel used in the feature/threshold arrays for leaf
// nodes, matching the exported training representation.
const leafMarker = -2

// DecisionTree is the opaque fitted classifier, stored as parallel node
// arrays. Node 0 is the root; ChildrenLeft[i] == -1 marks a leaf. Values
// holds the per-class sample counts at each node: [not-fraud, fraud].
//
// The tree is evaluated as-is. Its thresholded decision (argmax at the
// leaf) is the label; the label is NOT re-derived from the probability.
type DecisionTree struct {
	NumFeatures   int         `json:"n_features"`
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Values        [][]float64 `json:"value"`
}

func (t *DecisionTree) validate() error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return fmt.Errorf("%w: classifier has no nodes", ErrBadArtifact)
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Values) != n {
		return fmt.Errorf("%w: classifier node arrays have inconsistent lengths", ErrBadArtifact)
	}
	for i := 0; i < n; i++ {
		if t.ChildrenLeft[i] == -1 {
			if len(t.Values[i]) != 2 {
				return fmt.Errorf("%w: leaf %d has %d class counts, want 2", ErrBadArtifact, i, len(t.Values[i]))
			}
			continue
		}
		if t.ChildrenLeft[i] < 0 || t.ChildrenLeft[i] >= n ||
			t.ChildrenRight[i] < 0 || t.ChildrenRight[i] >= n {
			return fmt.Errorf("%w: node %d has out-of-range children", ErrBadArtifact, i)
		}
		if t.Feature[i] < 0 || (t.NumFeatures > 0 && t.Feature[i] >= t.NumFeatures) {
			return fmt.Errorf("%w: node %d splits on out-of-range feature %d", ErrBadArtifact, i, t.Feature[i])
		}
	}
	return nil
}

// Predict walks the tree for a scaled feature vector and returns the
// classifier's own label and the positive-class probability at the leaf.
func (t *DecisionTree) Predict(vec []float64) (bool, float64, error) {
	if t.NumFeatures > 0 && len(vec) != t.NumFeatures {
		return false, 0, &ShapeError{Want: t.NumFeatures, Got: len(vec)}
	}

	i := 0
	for t.ChildrenLeft[i] != -1 {
		if vec[t.Feature[i]] <= t.Threshold[i] {
			i = t.ChildrenLeft[i]
		} else {
			i = t.ChildrenRight[i]
		}
	}

	neg, pos := t.Values[i][0], t.Values[i][1]
	total := neg + pos
	if total == 0 {
		return false, 0, nil
	}
	return pos > neg, pos / total, nil
}
