package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/prixkit/core"
)

func init() {
	Register("forest", loadForest)
	Register("boosting", loadBoosting)
}

// leaf 是 sklearn tree_.children_left 中叶子节点的标记
const leaf = -1

// Tree 是 sklearn tree_ 的数组表示：节点 i 在 Feature[i] 上与 Threshold[i] 比较，
// x <= Threshold 走左子树，否则走右子树；ChildrenLeft[i] == -1 时为叶子，输出 Value[i]。
type Tree struct {
	Feature       []int     `json:"feature"`
	Threshold     []float64 `json:"threshold"`
	ChildrenLeft  []int     `json:"children_left"`
	ChildrenRight []int     `json:"children_right"`
	Value         []float64 `json:"value"`
}

// validate 检查数组长度一致、子节点下标合法且严格大于父节点（保证遍历终止）。
func (t *Tree) validate(width int) error {
	n := len(t.Value)
	if n == 0 {
		return fmt.Errorf("empty tree")
	}
	if len(t.Feature) != n || len(t.Threshold) != n || len(t.ChildrenLeft) != n || len(t.ChildrenRight) != n {
		return fmt.Errorf("tree arrays have different lengths")
	}
	for i := 0; i < n; i++ {
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf {
			continue
		}
		if l <= i || l >= n || r <= i || r >= n {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, l, r)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= width {
			return fmt.Errorf("node %d splits on feature %d, model has %d features", i, t.Feature[i], width)
		}
	}
	return nil
}

func (t *Tree) predict(x []float64) float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// TreeEnsemble 是树模型集成。
//
//   - forest（RandomForestRegressor）：y = mean(tree_i(x))
//   - boosting（GradientBoostingRegressor）：y = Init + LearningRate * sum(tree_i(x))
type TreeEnsemble struct {
	name         string
	kind         string
	Features     []string
	Trees        []Tree
	Init         float64
	LearningRate float64
}

type treeParams struct {
	Features     []string `json:"features"`
	Trees        []Tree   `json:"trees"`
	Init         float64  `json:"init"`
	LearningRate float64  `json:"learning_rate"`
}

func decodeTrees(params json.RawMessage) (*treeParams, error) {
	var p treeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if len(p.Trees) == 0 {
		return nil, fmt.Errorf("no trees")
	}
	for i := range p.Trees {
		if err := p.Trees[i].validate(len(p.Features)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &p, nil
}

func loadForest(name string, params json.RawMessage) (Regressor, error) {
	p, err := decodeTrees(params)
	if err != nil {
		return nil, err
	}
	return &TreeEnsemble{name: name, kind: "forest", Features: p.Features, Trees: p.Trees}, nil
}

func loadBoosting(name string, params json.RawMessage) (Regressor, error) {
	p, err := decodeTrees(params)
	if err != nil {
		return nil, err
	}
	return &TreeEnsemble{
		name: name, kind: "boosting", Features: p.Features, Trees: p.Trees,
		Init: p.Init, LearningRate: p.LearningRate,
	}, nil
}

func (m *TreeEnsemble) Name() string { return m.name }

// Kind 返回 forest 或 boosting
func (m *TreeEnsemble) Kind() string { return m.kind }

func (m *TreeEnsemble) Predict(ctx context.Context, x *core.Matrix) ([]float64, error) {
	idx, err := align(x, m.Features)
	if err != nil {
		return nil, err
	}
	out := make([]float64, x.Rows())
	buf := make([]float64, 0, len(idx))
	for i, row := range x.Data {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		in := gather(row, idx, buf)
		sum := 0.0
		for t := range m.Trees {
			sum += m.Trees[t].predict(in)
		}
		if m.kind == "forest" {
			out[i] = sum / float64(len(m.Trees))
		} else {
			out[i] = m.Init + m.LearningRate*sum
		}
	}
	return out, nil
}
