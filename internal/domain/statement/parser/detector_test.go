package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector(t *testing.T) {
	d := DefaultDetector()

	t.Run("ofx content resolves to the ofx parser", func(t *testing.T) {
		p, err := d.Detect([]byte(ofxFixture))
		require.NoError(t, err)
		assert.Equal(t, "ofx", p.Name())
	})

	t.Run("workbook content resolves to the xlsx parser", func(t *testing.T) {
		content := buildWorkbook(t, "Movimientos", [][]interface{}{statementHeader()})
		p, err := d.Detect(content)
		require.NoError(t, err)
		assert.Equal(t, "xlsx", p.Name())
	})

	t.Run("unclaimed content fails whole", func(t *testing.T) {
		_, err := d.Detect([]byte("fecha;descripcion;monto\n01/01/2025;algo;1.00"))
		require.ErrorIs(t, err, ErrNoParser)
	})

	t.Run("registration order breaks ties", func(t *testing.T) {
		// A bare transaction-list marker is enough for the ofx parser, which
		// runs first.
		p, err := d.Detect([]byte("<BANKTRANLIST><STMTTRN>"))
		require.NoError(t, err)
		assert.Equal(t, "ofx", p.Name())
	})
}
