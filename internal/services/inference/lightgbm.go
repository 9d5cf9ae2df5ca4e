package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domsvc "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/service"
)

// zeroThreshold mirrors the LightGBM notion of "zero" for missing_type Zero.
const zeroThreshold = 1e-35

// TreeEnsemble evaluates a gradient-boosted regression model exported with
// LightGBM's dump_model() (JSON). Only numerical splits are supported.
type TreeEnsemble struct {
	trees       []*treeNode
	numFeatures int
	average     bool
	expOutput   bool
}

type treeNode struct {
	SplitFeature int         `json:"split_feature"`
	Threshold    interface{} `json:"threshold"`
	DecisionType string      `json:"decision_type"`
	DefaultLeft  bool        `json:"default_left"`
	MissingType  string      `json:"missing_type"`
	LeftChild    *treeNode   `json:"left_child"`
	RightChild   *treeNode   `json:"right_child"`
	LeafValue    *float64    `json:"leaf_value"`

	threshold float64
}

type treeDump struct {
	NumClass      int    `json:"num_class"`
	MaxFeatureIdx int    `json:"max_feature_idx"`
	Objective     string `json:"objective"`
	AverageOutput bool   `json:"average_output"`
	TreeInfo      []struct {
		TreeIndex     int       `json:"tree_index"`
		TreeStructure *treeNode `json:"tree_structure"`
	} `json:"tree_info"`
}

// LoadTreeEnsemble reads a LightGBM JSON dump from disk.
func LoadTreeEnsemble(path string) (*TreeEnsemble, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree model: %w", err)
	}
	return ParseTreeEnsemble(b)
}

// ParseTreeEnsemble decodes and validates a LightGBM JSON dump.
func ParseTreeEnsemble(b []byte) (*TreeEnsemble, error) {
	var d treeDump
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode tree model: %w", err)
	}
	if d.NumClass > 1 {
		return nil, fmt.Errorf("tree model has %d classes, want a regressor", d.NumClass)
	}
	if len(d.TreeInfo) == 0 {
		return nil, fmt.Errorf("tree model has no trees")
	}
	te := &TreeEnsemble{
		numFeatures: d.MaxFeatureIdx + 1,
		average:     d.AverageOutput,
		expOutput:   expObjective(d.Objective),
	}
	for _, ti := range d.TreeInfo {
		if ti.TreeStructure == nil {
			return nil, fmt.Errorf("tree %d has no structure", ti.TreeIndex)
		}
		if err := ti.TreeStructure.prepare(); err != nil {
			return nil, fmt.Errorf("tree %d: %w", ti.TreeIndex, err)
		}
		te.trees = append(te.trees, ti.TreeStructure)
	}
	return te, nil
}

func expObjective(obj string) bool {
	for _, p := range []string{"poisson", "gamma", "tweedie"} {
		if strings.HasPrefix(obj, p) {
			return true
		}
	}
	return false
}

func (n *treeNode) prepare() error {
	if n.LeafValue != nil {
		return nil
	}
	if n.LeftChild == nil || n.RightChild == nil {
		return fmt.Errorf("split on feature %d is missing a child", n.SplitFeature)
	}
	if n.DecisionType != "" && n.DecisionType != "<=" {
		return fmt.Errorf("unsupported decision type %q", n.DecisionType)
	}
	th, ok := n.Threshold.(float64)
	if !ok {
		return fmt.Errorf("non-numeric threshold %v", n.Threshold)
	}
	n.threshold = th
	if err := n.LeftChild.prepare(); err != nil {
		return err
	}
	return n.RightChild.prepare()
}

// NumFeatures returns the input width the model was trained with.
func (te *TreeEnsemble) NumFeatures() int { return te.numFeatures }

func (te *TreeEnsemble) predictOne(x []float64) float64 {
	sum := 0.0
	for _, t := range te.trees {
		sum += t.eval(x)
	}
	if te.average {
		sum /= float64(len(te.trees))
	}
	if te.expOutput {
		sum = math.Exp(sum)
	}
	return sum
}

func (n *treeNode) eval(x []float64) float64 {
	for n.LeafValue == nil {
		v := x[n.SplitFeature]
		if math.IsNaN(v) && n.MissingType != "NaN" {
			v = 0
		}
		switch {
		case n.MissingType == "Zero" && math.Abs(v) <= zeroThreshold,
			n.MissingType == "NaN" && math.IsNaN(v):
			if n.DefaultLeft {
				n = n.LeftChild
			} else {
				n = n.RightChild
			}
		case v <= n.threshold:
			n = n.LeftChild
		default:
			n = n.RightChild
		}
	}
	return *n.LeafValue
}

// Predict returns one prediction per row.
func (te *TreeEnsemble) Predict(ctx context.Context, batch [][]float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(batch))
	for i, x := range batch {
		if len(x) < te.numFeatures {
			return nil, fmt.Errorf("%w: tree model expects %d features, row %d has %d",
				models.ErrComputation, te.numFeatures, i, len(x))
		}
		out[i] = te.predictOne(x)
	}
	return out, nil
}

var _ domsvc.TabularRegressor = (*TreeEnsemble)(nil)
