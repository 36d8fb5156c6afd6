package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDescription(t *testing.T) {
	assert.Equal(t, "COMPRA EN SUPER 99", CleanDescription("  COMPRA  EN \t SUPER   99 "))
	assert.Equal(t, "", CleanDescription("   "))
}

func TestFoldForMatch(t *testing.T) {
	assert.Equal(t, "debito credito descripcion", FoldForMatch("Débito  Crédito Descripción"))
	assert.Equal(t, "saldo", FoldForMatch("SALDO"))
}

func TestFromStatementRow(t *testing.T) {
	extractor := NewMerchantExtractor(ExtractorConfig{})

	tests := []struct {
		name        string
		description string
		want        string
	}{
		{
			name:        "prefix and trailing date fragment stripped",
			description: "COMPRA EN FARMACIA EL REY 12 DE OCT",
			want:        "Farmacia El Rey",
		},
		{
			name:        "payment prefix",
			description: "PAGO A SUPERMERCADOS XTRA",
			want:        "Supermercados Xtra",
		},
		{
			name:        "leading segment before separator",
			description: "COMPRA EN EL MACHETAZO / PANAMA CENTRO",
			want:        "El Machetazo",
		},
		{
			name:        "trailing reference code stripped",
			description: "ACH A DISTRIBUIDORA COMERCIAL REF98213",
			want:        "Distribuidora Comercial",
		},
		{
			name:        "slash date stripped",
			description: "COMPRA EN CAFE DURAN 05/11",
			want:        "Cafe Duran",
		},
		{
			name:        "nothing meaningful left",
			description: "COMPRA EN 123456",
			want:        "",
		},
		{
			name:        "diacritics folded before casing",
			description: "COMPRA EN PANADERÍA DON JOSÉ",
			want:        "Panaderia Don Jose",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractor.FromStatementRow(tt.description))
		})
	}
}

func TestFromBankRecord(t *testing.T) {
	extractor := NewMerchantExtractor(ExtractorConfig{})

	tests := []struct {
		name string
		memo string
		want string
	}{
		{
			name: "masked card and long id removed",
			memo: "COMPRA VISA ****1234 RESTAURANTE LUNG FUNG 000482913",
			want: "Restaurante Lung Fung",
		},
		{
			name: "kept to first tokens",
			memo: "PAGO A EMPRESA DE DISTRIBUCION ELECTRICA METRO OESTE SA",
			want: "Empresa De Distribucion Electrica",
		},
		{
			name: "only numbers yields empty",
			memo: "0003821 99100",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractor.FromBankRecord(tt.memo))
		})
	}
}

func TestIsInternalTransfer(t *testing.T) {
	extractor := NewMerchantExtractor(ExtractorConfig{})

	assert.True(t, extractor.IsInternalTransfer("TRANSFERENCIA ENTRE CUENTAS PROPIAS"))
	assert.True(t, extractor.IsInternalTransfer("Transferencia entre cuentas"))
	assert.True(t, extractor.IsInternalTransfer("TRASPASO ENTRE CUENTAS 00123"))
	assert.True(t, extractor.IsInternalTransfer("transfer between own accounts"))
	assert.False(t, extractor.IsInternalTransfer("TRANSFERENCIA A JUAN PEREZ"))
	assert.False(t, extractor.IsInternalTransfer("COMPRA EN SUPER 99"))
}

func TestIsInternalTransferCustomPatterns(t *testing.T) {
	extractor := NewMerchantExtractor(ExtractorConfig{
		TransferPatterns: []string{`movimiento interno`},
	})

	assert.True(t, extractor.IsInternalTransfer("MOVIMIENTO INTERNO CTA 2"))
	assert.False(t, extractor.IsInternalTransfer("TRANSFERENCIA ENTRE CUENTAS PROPIAS"))
}
