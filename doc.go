// Package prixkit 是房源估价工具包：把抓取的房源行整理成定宽特征矩阵，
// 再组合多个回归模型的输出得到点估计与置信区间。
//
// 设计要点：
//   - Fit / Transform 契约：离线拟合的转换器状态是唯一的生产制品，在线转换逐列复现训练时的特征空间
//   - Pipeline-first: 批量预测通过 Node 串联（Preprocess → Quality → Encode → Predict → Evaluate）
//   - 数据质量问题从不报错：格式错误、缺失值一律降级为缺失或默认值
//   - 单个模型失败只影响它自己的输出列
package prixkit

import (
	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pipeline"
)

// 轻量 facade：便于用户直接 import "prixkit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind
type Batch = pipeline.Batch

type Table = core.Table
type Row = core.Row

const (
	KindPreprocess = pipeline.KindPreprocess
	KindQuality    = pipeline.KindQuality
	KindEncode     = pipeline.KindEncode
	KindPredict    = pipeline.KindPredict
	KindEvaluate   = pipeline.KindEvaluate
)
