package sheet

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/rushteam/prixkit/core"
	"github.com/rushteam/prixkit/pkg/conv"
)

// 支持的 SQL 驱动名
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// sqlBatchSize 是单条 INSERT 携带的行数
const sqlBatchSize = 50

type dialect struct {
	numericType string
	placeholder func(n int) string
}

var dialects = map[string]dialect{
	DriverPostgres: {
		numericType: "DOUBLE PRECISION",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	},
	DriverSQLite: {
		numericType: "REAL",
		placeholder: func(int) string { return "?" },
	},
}

// SQLSink 把表格写入数据库表。
//
// 默认先 DROP 再 CREATE，等价于替换整张表；Append 为 true 时表不存在才创建。
// 全部数值（或缺失）的列建为数值类型，其余为 TEXT。所有批次在同一个事务中提交。
type SQLSink struct {
	Table  string
	Append bool

	db      *sql.DB
	driver  string
	dialect dialect
	logger  *slog.Logger
}

// NewSQLSink 打开数据库连接（惰性，不做 ping）
func NewSQLSink(driver, dsn, table string, opts ...Option) (*SQLSink, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, core.NewDomainError(core.ModuleSheet, core.ErrorCodeNotSupported, fmt.Sprintf("sheet: unsupported sql driver %q", driver))
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sheet: %s: open: %w", driver, err)
	}
	return NewSQLSinkWithDB(db, driver, table, opts...)
}

// NewSQLSinkWithDB 使用已有连接
func NewSQLSinkWithDB(db *sql.DB, driver, table string, opts ...Option) (*SQLSink, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, core.NewDomainError(core.ModuleSheet, core.ErrorCodeNotSupported, fmt.Sprintf("sheet: unsupported sql driver %q", driver))
	}
	if table == "" {
		return nil, core.NewDomainError(core.ModuleSheet, core.ErrorCodeInvalidInput, "sheet: sql table name is required")
	}
	o := buildOptions(opts)
	return &SQLSink{Table: table, db: db, driver: driver, dialect: d, logger: o.logger}, nil
}

// Close 关闭数据库连接
func (s *SQLSink) Close() error {
	return s.db.Close()
}

// Write 在一个事务中重建表并分批插入
func (s *SQLSink) Write(ctx context.Context, t *core.Table) error {
	if len(t.Columns) == 0 {
		return core.NewDomainError(core.ModuleSheet, core.ErrorCodeInvalidInput, "sheet: table has no columns")
	}
	numeric := make([]bool, len(t.Columns))
	for j, c := range t.Columns {
		numeric[j] = isNumericColumn(t, c)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sheet: %s: begin: %w", s.driver, err)
	}
	defer tx.Rollback()

	if !s.Append {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(s.Table)); err != nil {
			return fmt.Errorf("sheet: %s: drop: %w", s.driver, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.createStatement(t.Columns, numeric)); err != nil {
		return fmt.Errorf("sheet: %s: create: %w", s.driver, err)
	}

	for i := 0; i < len(t.Rows); i += sqlBatchSize {
		end := min(i+sqlBatchSize, len(t.Rows))
		query, args := s.insertStatement(t.Columns, numeric, t.Rows[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("sheet: %s: insert batch at row %d: %w", s.driver, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sheet: %s: commit: %w", s.driver, err)
	}
	s.logger.Info("sql table written",
		slog.String("driver", s.driver),
		slog.String("table", s.Table),
		slog.Int("rows", t.Len()),
		slog.Bool("append", s.Append))
	return nil
}

func (s *SQLSink) createStatement(columns []string, numeric []bool) string {
	defs := make([]string, len(columns))
	for j, c := range columns {
		typ := "TEXT"
		if numeric[j] {
			typ = s.dialect.numericType
		}
		defs[j] = quoteIdent(c) + " " + typ
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(s.Table), strings.Join(defs, ", "))
}

func (s *SQLSink) insertStatement(columns []string, numeric []bool, rows []core.Row) (string, []any) {
	names := make([]string, len(columns))
	for j, c := range columns {
		names[j] = quoteIdent(c)
	}
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	n := 0
	for _, r := range rows {
		ph := make([]string, len(columns))
		for j, c := range columns {
			n++
			ph[j] = s.dialect.placeholder(n)
			args = append(args, sqlValue(r[c], numeric[j]))
		}
		values = append(values, "("+strings.Join(ph, ",")+")")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(s.Table), strings.Join(names, ", "), strings.Join(values, ","))
	return query, args
}

func sqlValue(v any, numeric bool) any {
	v = exportValue(v)
	if v == nil {
		return nil
	}
	if numeric {
		f, _ := conv.ToFloat64(v)
		return f
	}
	s, _ := conv.ToString(v)
	return s
}

// isNumericColumn 非缺失值全部为数值类型（bool 不算）
func isNumericColumn(t *core.Table, column string) bool {
	for _, r := range t.Rows {
		v := exportValue(r[column])
		if v == nil {
			continue
		}
		if _, isBool := v.(bool); isBool {
			return false
		}
		if _, ok := conv.ToFloat64(v); !ok {
			return false
		}
	}
	return true
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
