package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheetName string, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", sheetName))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheetName, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return buf.Bytes()
}

func statementHeader() []interface{} {
	return []interface{}{"Fecha", "Referencia", "Tipo", "Descripción", "Débito", "Crédito", "Saldo"}
}

func TestXLSXParser_Detect(t *testing.T) {
	p := NewXLSXParser(XLSXConfig{})

	t.Run("claims workbook by sheet name", func(t *testing.T) {
		content := buildWorkbook(t, "Movimientos", [][]interface{}{{"Banco General"}})
		assert.True(t, p.Detect(content))
	})

	t.Run("claims workbook by header row", func(t *testing.T) {
		content := buildWorkbook(t, "Hoja1", [][]interface{}{
			{"Banco General - Estado"},
			statementHeader(),
		})
		assert.True(t, p.Detect(content))
	})

	t.Run("rejects non-zip content", func(t *testing.T) {
		assert.False(t, p.Detect([]byte("OFXHEADER:100")))
	})

	t.Run("rejects workbook without statement shape", func(t *testing.T) {
		content := buildWorkbook(t, "Hoja1", [][]interface{}{{"Inventario", "Cantidad"}})
		assert.False(t, p.Detect(content))
	})

	t.Run("rejects date and amount columns without a description", func(t *testing.T) {
		content := buildWorkbook(t, "Hoja1", [][]interface{}{{"Fecha", "Débito"}})
		assert.False(t, p.Detect(content))
	})
}

func TestXLSXParser_Parse(t *testing.T) {
	p := NewXLSXParser(XLSXConfig{})
	loc, err := time.LoadLocation("America/Panama")
	require.NoError(t, err)

	content := buildWorkbook(t, "Movimientos", [][]interface{}{
		{"Banco General, S.A."},
		{"Cuenta corriente 04-99-123456"},
		{},
		statementHeader(),
		{"12/01/2025", "REF-001", "POS", "COMPRA EN FARMACIA EL REY 12 DE OCT", "18.75", "", "4,981.25"},
		{"2025-01-13", "REF-002", "ACH", "ACH DE CLIENTE PANAFOTO", "", "2,500.00", "7,481.25"},
		{"14/01/2025", "REF-003", "AJUSTE", "AJUSTE POR RECLAMO", "100.00", "500.00", "7,881.25"},
		{"", "", "", "Saldo final", "", "", "7,881.25"},
		{},
		{"15/01/2025", "REF-999", "POS", "FILA DESPUES DEL CORTE", "1.00", "", ""},
	})

	result, err := p.Parse(content, Options{Location: loc, DefaultCurrency: "USD"})
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows, "rows after the blank cutoff are never read")
	assert.Equal(t, 1, result.SkippedRows, "the summary row is skipped")
	assert.Empty(t, result.Errors)
	require.Len(t, result.Rows, 3)

	// Source order is preserved.
	debit := result.Rows[0]
	assert.Equal(t, "2025-01-12", debit.PostedAt.String(), "DD/MM/YYYY parses day first")
	assert.Equal(t, "-18.75", debit.Amount.String())
	assert.Equal(t, "Farmacia El Rey", debit.MerchantName)
	assert.Equal(t, "REF-001", debit.Reference)
	assert.Equal(t, "USD", debit.Currency)
	require.NotNil(t, debit.BalanceAfter)
	assert.Equal(t, "4981.25", debit.BalanceAfter.String())
	assert.False(t, debit.IsInternalTransfer)

	credit := result.Rows[1]
	assert.Equal(t, "2025-01-13", credit.PostedAt.String())
	assert.Equal(t, "2500", credit.Amount.String())

	both := result.Rows[2]
	assert.Equal(t, "400", both.Amount.String(), "both columns present means credit minus debit")
	assert.Equal(t, "xlsx", both.Raw["parser"])
}

func TestXLSXParser_Parse_RowErrors(t *testing.T) {
	p := NewXLSXParser(XLSXConfig{})

	content := buildWorkbook(t, "Movimientos", [][]interface{}{
		statementHeader(),
		{"01-15-2025", "REF-001", "POS", "FECHA AMBIGUA", "10.00", "", ""},
		{"16/01/2025", "REF-002", "POS", "SIN MONTO", "", "", ""},
		{"17/01/2025", "REF-003", "POS", "", "5.00", "", ""},
		{"18/01/2025", "REF-004", "POS", "PAGO A PROVEEDOR", "25.00", "", ""},
	})

	result, err := p.Parse(content, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.TotalRows)
	require.Len(t, result.Errors, 3)
	require.Len(t, result.Rows, 1)

	assert.Contains(t, result.Errors[0].Message, "unsupported date format")
	assert.Equal(t, "01-15-2025", result.Errors[0].Data)
	assert.Contains(t, result.Errors[1].Message, "no determinable amount")
	assert.Contains(t, result.Errors[2].Message, "empty description")

	assert.Equal(t, "-25", result.Rows[0].Amount.String())
}

func TestXLSXParser_Parse_NoHeaderFailsWhole(t *testing.T) {
	p := NewXLSXParser(XLSXConfig{})

	t.Run("banner rows only", func(t *testing.T) {
		content := buildWorkbook(t, "Movimientos", [][]interface{}{
			{"Banco General"},
			{"Listado sin encabezado"},
		})

		_, err := p.Parse(content, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no header row")
	})

	// A row naming only a date and an amount column never qualifies: the
	// description/transaction column is part of the required shape.
	t.Run("date and amount columns without a description", func(t *testing.T) {
		content := buildWorkbook(t, "Movimientos", [][]interface{}{
			{"Fecha", "Débito"},
			{"12/01/2025", "18.75"},
		})

		_, err := p.Parse(content, Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no header row")
	})
}

func TestXLSXParser_Parse_CustomLayout(t *testing.T) {
	p := NewXLSXParser(XLSXConfig{
		Layout: &ColumnLayout{Date: 1, Reference: 0, TxnType: 2, Description: 3, Debit: 5, Credit: 4, Balance: 6},
	})

	content := buildWorkbook(t, "Movimientos", [][]interface{}{
		{"Ref", "Fecha", "Tipo", "Descripción", "Crédito", "Débito", "Saldo"},
		{"REF-001", "20/01/2025", "ACH", "ACH DE CLIENTE", "300.00", "", ""},
	})

	result, err := p.Parse(content, Options{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "300", result.Rows[0].Amount.String())
	assert.Equal(t, "REF-001", result.Rows[0].Reference)
}
