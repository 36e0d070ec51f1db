package validate

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/prixkit/core"
)

// DefaultGateExpr 是默认的质量闸门表达式
const DefaultGateExpr = "valid.price && valid.surface && valid.rooms"

// Gate 是基于 CEL (Common Expression Language) 的行级质量闸门。
//
// 表达式可访问的变量：
//   - row：清洗后的整行，例如 row.ville == "Casablanca"、row["pièces"] >= 2
//   - valid：Validator 的逐项结论，valid.price / valid.surface / valid.rooms
//
// 示例：
//   - `valid.price && valid.surface`
//   - `valid.price && row.ville != "Unknown"`
//
// 表达式在 NewGate 中编译一次，Program 线程安全，可重复执行。
type Gate struct {
	expr      string
	prg       cel.Program
	validator *Validator
	schema    core.Schema
}

// NewGate 编译表达式；expr 为空时使用 DefaultGateExpr
func NewGate(expr string, validator *Validator, schema core.Schema) (*Gate, error) {
	if expr == "" {
		expr = DefaultGateExpr
	}
	if validator == nil {
		validator = New()
	}
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("valid", cel.MapType(cel.StringType, cel.BoolType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %v", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate expression must return bool, got %v", ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %v", err)
	}
	return &Gate{expr: expr, prg: prg, validator: validator, schema: schema}, nil
}

// Expr 返回表达式文本
func (g *Gate) Expr() string { return g.expr }

// Admit 判断一行是否通过闸门。执行出错（如访问不存在的字段）视为不通过并返回错误。
func (g *Gate) Admit(row core.Row) (bool, error) {
	verdict := g.validator.Check(row, g.schema)
	out, _, err := g.prg.Eval(map[string]any{
		"row":   map[string]any(row),
		"valid": verdict.asMap(),
	})
	if err != nil {
		return false, fmt.Errorf("eval error: %v", err)
	}
	admitted, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return admitted, nil
}

// Split 把表拆为通过与未通过两部分；行 map 与原表共享。
func (g *Gate) Split(t *core.Table) (kept, rejected *core.Table) {
	admitted := make([]bool, t.Len())
	for i, r := range t.Rows {
		admitted[i], _ = g.Admit(r)
	}
	kept = t.Filter(func(i int, _ core.Row) bool { return admitted[i] })
	rejected = t.Filter(func(i int, _ core.Row) bool { return !admitted[i] })
	return kept, rejected
}
