package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func fingerprintRow(day int, reference, description string) NormalizedRow {
	return NormalizedRow{
		PostedAt:    NewDate(time.Date(2025, time.March, day, 0, 0, 0, 0, time.UTC)),
		Description: description,
		Reference:   reference,
		Amount:      decimal.NewFromFloat(-12.50),
		Currency:    "USD",
	}
}

func TestFingerprint(t *testing.T) {
	accountID := uuid.New()

	t.Run("is stable across runs", func(t *testing.T) {
		row := fingerprintRow(3, "REF-001", gofakeit.Sentence(4))
		assert.Equal(t, Fingerprint(row, accountID), Fingerprint(row, accountID))
	})

	t.Run("has the expected shape", func(t *testing.T) {
		fp := Fingerprint(fingerprintRow(3, "REF-001", "PAGO A PROVEEDOR"), accountID)
		assert.True(t, strings.HasPrefix(fp, "fp_"))
		assert.Len(t, fp, len("fp_")+16)
	})

	t.Run("distinguishes accounts", func(t *testing.T) {
		row := fingerprintRow(3, "REF-001", "PAGO A PROVEEDOR")
		assert.NotEqual(t, Fingerprint(row, accountID), Fingerprint(row, uuid.New()))
	})

	t.Run("distinguishes references on the same day", func(t *testing.T) {
		a := fingerprintRow(3, "REF-001", "COMPRA EN SUPER 99")
		b := fingerprintRow(3, "REF-002", "COMPRA EN SUPER 99")
		assert.NotEqual(t, Fingerprint(a, accountID), Fingerprint(b, accountID))
	})

	t.Run("falls back to the description without a reference", func(t *testing.T) {
		a := fingerprintRow(3, "", "COMPRA EN SUPER 99")
		b := fingerprintRow(3, "", "COMPRA EN FARMACIA EL REY")
		c := fingerprintRow(3, "", "COMPRA EN SUPER 99")
		assert.NotEqual(t, Fingerprint(a, accountID), Fingerprint(b, accountID))
		assert.Equal(t, Fingerprint(a, accountID), Fingerprint(c, accountID))
	})
}
