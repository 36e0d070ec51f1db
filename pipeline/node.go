package pipeline

import (
	"context"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/ensemble"
	"github.com/rushteam/prixkit/eval"
	"github.com/rushteam/prixkit/feature"
)

// Kind 用于标记 Node 类型，方便观测/编排（例如按阶段打点）。
type Kind string

const (
	KindPreprocess Kind = "preprocess" // 预处理：清洗原始行
	KindQuality    Kind = "quality"    // 质量闸门：剔除不合格的行
	KindEncode     Kind = "encode"     // 特征编码：按已拟合状态转换为矩阵
	KindPredict    Kind = "predict"    // 预测：逐模型 + 集成 + 置信区间
	KindEvaluate   Kind = "evaluate"   // 评估：有真实值时计算误差指标
)

// Batch 是在节点之间流转的一批数据，每个节点读取上游字段并填充自己的输出。
type Batch struct {
	Raw        *core.Table // 原始行
	Cleaned    *core.Table // 预处理（及闸门）之后的行
	Rejected   *core.Table // 被质量闸门剔除的行
	Features   *feature.Result
	Prediction *ensemble.Prediction
	Scores     map[string]eval.Metrics
}

// NewBatch 以原始表创建批次
func NewBatch(raw *core.Table) *Batch {
	return &Batch{Raw: raw}
}

// rows 返回当前有效的表：优先 Cleaned
func (b *Batch) rows() *core.Table {
	if b.Cleaned != nil {
		return b.Cleaned
	}
	return b.Raw
}

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"读写同一个 Batch"的形态，节点之间只通过 Batch 传递数据。
type Node interface {
	Name() string
	Kind() Kind

	Process(ctx context.Context, b *Batch) error
}
