package sheet

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rushteam/prixkit/config"
	"github.com/rushteam/prixkit/core"
)

func sampleTable() *core.Table {
	return core.NewTable(
		[]string{"prix", "surface", "localisation", "Ascenseur"},
		core.Row{"prix": "1 200 000 DH", "surface": 85.0, "localisation": "Maarif à Casablanca", "Ascenseur": "TRUE"},
		core.Row{"prix": nil, "surface": math.NaN(), "localisation": "Agdal à Rabat", "Ascenseur": "FALSE"},
	)
}

func TestParseCell(t *testing.T) {
	assert.Nil(t, parseCell(""))
	assert.Nil(t, parseCell("   "))
	assert.Equal(t, 85.0, parseCell("85"))
	assert.Equal(t, 1.5, parseCell(" 1.5 "))
	assert.Equal(t, "85 m²", parseCell("85 m²"))
	assert.Equal(t, "NaN", parseCell("NaN"))
	assert.Equal(t, "TRUE", parseCell("TRUE"))
}

func TestFromRecords(t *testing.T) {
	tbl := fromRecords([][]string{
		{"a", "", "b"},
		{"1", "ignored", "x"},
		{"", "", ""},
		{"2"},
	})
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, core.Row{"a": 1.0, "b": "x"}, tbl.Rows[0])
	assert.Equal(t, core.Row{"a": 2.0, "b": nil}, tbl.Rows[1])

	assert.Equal(t, 0, fromRecords(nil).Len())
}

func TestXLSX_WriteRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "properties.xlsx")

	x := NewXLSX(path, "Predictions")
	require.NoError(t, x.Write(ctx, sampleTable()))

	got, err := NewXLSX(path, "Predictions").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prix", "surface", "localisation", "Ascenseur"}, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "1 200 000 DH", got.Rows[0]["prix"])
	assert.Equal(t, 85.0, got.Rows[0]["surface"])
	assert.Equal(t, "TRUE", got.Rows[0]["Ascenseur"])
	assert.Nil(t, got.Rows[1]["prix"])
	assert.Nil(t, got.Rows[1]["surface"])

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Predictions"}, f.GetSheetList())
	require.NoError(t, f.Close())
}

func TestXLSX_ReplaceKeepsOtherSheets(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.xlsx")

	input := core.NewTable([]string{"titre"}, core.Row{"titre": "Appartement"})
	require.NoError(t, NewXLSX(path, "Feuille 1").Write(ctx, input))

	out := NewXLSX(path, "Predictions")
	require.NoError(t, out.Write(ctx, sampleTable()))
	smaller := core.NewTable([]string{"prix_reel"}, core.Row{"prix_reel": 900000.0})
	require.NoError(t, out.Write(ctx, smaller))

	got, err := NewXLSX(path, "Predictions").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prix_reel"}, got.Columns)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, 900000.0, got.Rows[0]["prix_reel"])

	kept, err := NewXLSX(path, "Feuille 1").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Appartement", kept.Rows[0]["titre"])
}

func TestXLSX_Append(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "book.xlsx")

	x := NewXLSX(path, "Feuille 1")
	x.Append = true
	require.NoError(t, x.Write(ctx, sampleTable()))
	require.NoError(t, x.Write(ctx, sampleTable()))

	got, err := NewXLSX(path, "Feuille 1").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
	assert.Equal(t, "Agdal à Rabat", got.Rows[3]["localisation"])
}

func TestXLSX_ReadErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := NewXLSX(filepath.Join(dir, "missing.xlsx"), "Feuille 1").Read(ctx)
	assert.True(t, core.IsNotFound(err))

	path := filepath.Join(dir, "book.xlsx")
	require.NoError(t, NewXLSX(path, "Feuille 1").Write(ctx, sampleTable()))
	_, err = NewXLSX(path, "Autre").Read(ctx)
	assert.True(t, core.IsNotFound(err))

	got, err := NewXLSX(path, "").Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())

	assert.True(t, core.IsInvalidInput(NewXLSX(path, "").Write(ctx, sampleTable())))
}

func TestCSV_WriteReadAppend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed", "prepared_data.csv")

	c := NewCSV(path)
	require.NoError(t, c.Write(ctx, sampleTable()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prix,surface,localisation,Ascenseur\n"+
		"1 200 000 DH,85,Maarif à Casablanca,TRUE\n"+
		",,Agdal à Rabat,FALSE\n", string(raw))

	c.Append = true
	require.NoError(t, c.Write(ctx, sampleTable()))

	got, err := NewCSV(path).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Len())
	assert.Equal(t, 85.0, got.Rows[2]["surface"])

	_, err = NewCSV(filepath.Join(t.TempDir(), "nope.csv")).Read(ctx)
	assert.True(t, core.IsNotFound(err))
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open(DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLSink_SQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	sink, err := NewSQLSinkWithDB(db, DriverSQLite, "predictions")
	require.NoError(t, err)

	rows := make([]core.Row, 0, 120)
	for i := range 120 {
		rows = append(rows, core.Row{"prix_reel": float64(i * 1000), "ville": "Casablanca", "pièces": i % 5})
	}
	rows[7]["prix_reel"] = math.NaN()
	tbl := core.NewTable([]string{"prix_reel", "ville", "pièces"}, rows...)

	require.NoError(t, sink.Write(ctx, tbl))
	// 第二次写入替换整张表
	require.NoError(t, sink.Write(ctx, tbl))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "predictions"`).Scan(&count))
	assert.Equal(t, 120, count)

	var nulls int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "predictions" WHERE "prix_reel" IS NULL`).Scan(&nulls))
	assert.Equal(t, 1, nulls)

	var sum float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT SUM("pièces") FROM "predictions"`).Scan(&sum))
	assert.Equal(t, 240.0, sum)

	sink.Append = true
	require.NoError(t, sink.Write(ctx, tbl))
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "predictions"`).Scan(&count))
	assert.Equal(t, 240, count)
}

func TestSQLSink_Statements(t *testing.T) {
	pg := &SQLSink{Table: "out", dialect: dialects[DriverPostgres]}
	q, args := pg.insertStatement([]string{"a", "b"}, []bool{true, false}, []core.Row{
		{"a": 1.0, "b": "x"},
		{"a": nil, "b": 2.0},
	})
	assert.Equal(t, `INSERT INTO "out" ("a", "b") VALUES ($1,$2),($3,$4)`, q)
	assert.Equal(t, []any{1.0, "x", nil, "2"}, args)

	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "out" ("a" DOUBLE PRECISION, "b" TEXT)`,
		pg.createStatement([]string{"a", "b"}, []bool{true, false}))
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}

func TestSQLSink_Errors(t *testing.T) {
	_, err := NewSQLSink("mysql", "dsn", "t")
	assert.True(t, core.IsNotSupported(err))

	_, err = NewSQLSinkWithDB(openSQLite(t), DriverSQLite, "")
	assert.True(t, core.IsInvalidInput(err))
}

func TestWebhookSink(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, time.Second)
	require.NoError(t, sink.Write(context.Background(), sampleTable()))
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "1 200 000 DH", got.Rows[0]["prix"])
	assert.Nil(t, got.Rows[1]["surface"])
}

func TestWebhookSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL, time.Second).Write(context.Background(), sampleTable())
	assert.True(t, core.IsUnavailable(err))
}

func TestOpen(t *testing.T) {
	src, err := OpenSource(config.SheetConfig{Kind: config.SheetCSV, Path: "a.csv"})
	require.NoError(t, err)
	assert.IsType(t, &CSV{}, src)

	_, err = OpenSource(config.SheetConfig{Kind: config.SheetSQL})
	assert.True(t, core.IsNotSupported(err))

	sink, err := OpenSink(config.SheetConfig{Kind: config.SheetXLSX, Path: "a.xlsx", Sheet: "S", Append: true})
	require.NoError(t, err)
	assert.True(t, sink.(*XLSX).Append)

	sink, err = OpenSink(config.SheetConfig{Kind: config.SheetSQL, Driver: DriverSQLite, DSN: ":memory:", Table: "t"})
	require.NoError(t, err)
	require.NoError(t, sink.(*SQLSink).Close())
}
