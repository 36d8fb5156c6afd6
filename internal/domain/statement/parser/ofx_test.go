package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ofxFixture = `OFXHEADER:100
DATA:OFXSGML
VERSION:102

<OFX>
<BANKMSGSRSV1>
<STMTTRNRS>
<STMTRS>
<CURDEF>BALBOA
<BANKACCTFROM>
<ACCTID>04-99-123456
</BANKACCTFROM>
<BANKTRANLIST>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250110120000
<TRNAMT>-45.20
<FITID>FT-2025-0001
<MEMO>COMPRA EN SUPER 99 VIA ESPANA
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250115
<TRNAMT>+1200.00
<FITID>FT-2025-0002
<NAME>ACH DE CLIENTE CONSTRUCTORA DEL ISTMO
</STMTTRN>
<STMTTRN>
<TRNTYPE>XFER
<DTPOSTED>20250112
<TRNAMT>-300.00
<FITID>FT-2025-0003
<MEMO>TRANSFERENCIA ENTRE CUENTAS PROPIAS
</STMTTRN>
</BANKTRANLIST>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>
`

func TestOFXParser_Detect(t *testing.T) {
	p := NewOFXParser(OFXConfig{})

	assert.True(t, p.Detect([]byte(ofxFixture)))
	assert.True(t, p.Detect([]byte("<ofx><banktranlist>")))
	assert.False(t, p.Detect([]byte("Fecha,Descripcion,Debito")))
}

func TestOFXParser_Parse(t *testing.T) {
	p := NewOFXParser(OFXConfig{})
	loc, err := time.LoadLocation("America/Panama")
	require.NoError(t, err)

	result, err := p.Parse([]byte(ofxFixture), Options{Location: loc, DefaultCurrency: "USD"})
	require.NoError(t, err)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, 3, result.TotalRows)
	assert.Empty(t, result.Errors)
	assert.Zero(t, result.SkippedRows)

	// Most recent first.
	assert.Equal(t, "2025-01-15", result.Rows[0].PostedAt.String())
	assert.Equal(t, "2025-01-12", result.Rows[1].PostedAt.String())
	assert.Equal(t, "2025-01-10", result.Rows[2].PostedAt.String())

	credit := result.Rows[0]
	assert.Equal(t, "1200", credit.Amount.String())
	assert.Equal(t, "PAB", credit.Currency, "CURDEF alias should map to the ISO code")
	assert.Equal(t, "FT-2025-0002", credit.Reference)
	assert.Equal(t, "ACH DE CLIENTE CONSTRUCTORA DEL ISTMO", credit.Description)
	assert.False(t, credit.IsInternalTransfer)

	transfer := result.Rows[1]
	assert.True(t, transfer.IsInternalTransfer)
	assert.Equal(t, "Internal Transfer", transfer.MerchantName)

	purchase := result.Rows[2]
	assert.Equal(t, "-45.2", purchase.Amount.String())
	assert.Equal(t, "Super 99 Via Espana", purchase.MerchantName)
	assert.Equal(t, "ofx", purchase.Raw["parser"])
	assert.Equal(t, "04-99-123456", purchase.Raw["acct_id"])
}

func TestOFXParser_Parse_UnknownCurrencyFallsBack(t *testing.T) {
	doc := `<OFX><CURDEF>EUR
<BANKTRANLIST>
<STMTTRN>
<DTPOSTED>20250201
<TRNAMT>-10.00
<MEMO>PAGO A PROVEEDOR
</STMTTRN>
</BANKTRANLIST></OFX>`

	result, err := NewOFXParser(OFXConfig{}).Parse([]byte(doc), Options{DefaultCurrency: "USD"})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "USD", result.Rows[0].Currency)
}

func TestOFXParser_Parse_IncompleteBlockIsNoise(t *testing.T) {
	doc := `<OFX><CURDEF>USD
<BANKTRANLIST>
<STMTTRN>
<DTPOSTED>20250201
<MEMO>BLOQUE SIN MONTO
</STMTTRN>
<STMTTRN>
<DTPOSTED>20250202
<TRNAMT>-5.00
<MEMO>PAGO A PROVEEDOR
</STMTTRN>
</BANKTRANLIST></OFX>`

	result, err := NewOFXParser(OFXConfig{}).Parse([]byte(doc), Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.SkippedRows)
	assert.Empty(t, result.Errors, "noise blocks are skipped, not reported")
	require.Len(t, result.Rows, 1)
}

func TestOFXParser_Parse_MalformedDateIsRowError(t *testing.T) {
	doc := `<OFX><CURDEF>USD
<BANKTRANLIST>
<STMTTRN>
<DTPOSTED>ayer
<TRNAMT>-5.00
<MEMO>FECHA ROTA
</STMTTRN>
<STMTTRN>
<DTPOSTED>20250203
<TRNAMT>-7.50
<MEMO>PAGO A PROVEEDOR
</STMTTRN>
</BANKTRANLIST></OFX>`

	result, err := NewOFXParser(OFXConfig{}).Parse([]byte(doc), Options{})
	require.NoError(t, err)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "posted date")
	assert.Equal(t, "ayer", result.Errors[0].Data)

	require.Len(t, result.Rows, 1, "remaining blocks still parse")
	assert.Equal(t, "2025-02-03", result.Rows[0].PostedAt.String())
}

func TestOFXParser_Parse_RowLimitCapsTotals(t *testing.T) {
	result, err := NewOFXParser(OFXConfig{}).Parse([]byte(ofxFixture), Options{MaxRows: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalRows, "blocks past the row limit are never counted")
	require.Len(t, result.Rows, 2)
}

func TestOFXParser_Parse_ReferenceFallsBackToRefnum(t *testing.T) {
	doc := `<OFX>
<BANKTRANLIST>
<STMTTRN>
<DTPOSTED>20250203
<TRNAMT>-7.50
<REFNUM>R-778899
<MEMO>PAGO A PROVEEDOR
</STMTTRN>
</BANKTRANLIST></OFX>`

	result, err := NewOFXParser(OFXConfig{}).Parse([]byte(doc), Options{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "R-778899", result.Rows[0].Reference)
}
