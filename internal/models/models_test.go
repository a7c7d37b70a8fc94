package models

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCtx = CollectorContext{PanelID: "p1", CollectorID: "cob7", UserID: "u9"}

func TestNewTempID_Format(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	id := NewTempID(KindPayment, now)

	assert.True(t, strings.HasPrefix(id, "offline_payment_1700000000000_"), id)
	assert.True(t, IsTempID(id))
}

func TestIsTempID(t *testing.T) {
	assert.True(t, IsTempID("offline_client_123_abc"))
	assert.False(t, IsTempID("42"))
	assert.False(t, IsTempID(float64(42)))
	assert.False(t, IsTempID(nil))
}

func TestIdempotencyKey_DeterministicAndStable(t *testing.T) {
	at := time.UnixMilli(1700000000000)

	k1 := IdempotencyKey(testCtx, KindPayment, "L1", at)
	k2 := IdempotencyKey(testCtx, KindPayment, "L1", at)
	require.Equal(t, k1, k2, "same inputs must derive the same key")
	assert.Equal(t, "cob7-L1-1700000000000", k1)

	assert.Equal(t, "cob7-L1-collect-1700000000000", IdempotencyKey(testCtx, KindCollection, "L1", at))
	assert.Equal(t, "cob7-C1-loan-1700000000000", IdempotencyKey(testCtx, KindLoan, "C1", at))
}

func TestPaymentInput_Document(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	in := PaymentInput{ClienteID: "10", PrestamoID: "L1", Monto: decimal.NewFromInt(50000)}

	d := in.Document(testCtx, now)

	assert.Equal(t, "p1", d["panel_id"])
	assert.Equal(t, "L1", d["prestamo_id"])
	assert.Equal(t, "u9", d["created_by"], "author falls back to user id when present")
	assert.Equal(t, float64(50000), d["monto"])
	assert.Equal(t, "2026-03-15", d["fecha_pago"])
	assert.Equal(t, "09:30:00", d["hora_pago"])
	assert.Equal(t, "registrado", d["estado"])
	assert.Nil(t, d["lat"])
}

func TestPaymentInput_Validate(t *testing.T) {
	assert.Error(t, PaymentInput{Monto: decimal.NewFromInt(5)}.Validate(), "missing loan ref")
	assert.Error(t, PaymentInput{PrestamoID: "L1"}.Validate(), "zero amount")
	assert.NoError(t, PaymentInput{PrestamoID: "L1", Monto: decimal.NewFromInt(5)}.Validate())
}

func TestCollectionInput_Document_NestedCredit(t *testing.T) {
	now := time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)
	in := CollectionInput{
		ClienteID:  "10",
		PrestamoID: "L1",
		MontoPago:  decimal.NewFromInt(120000),
		NuevoCredito: &LoanInput{
			MontoPrestado: decimal.NewFromInt(200000),
			CuotaDiaria:   decimal.NewFromInt(8000),
			TotalDias:     30,
		},
	}
	require.NoError(t, in.Validate())

	d := in.Document(testCtx, now)
	nc, ok := d["nuevo_credito"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "10", nc["cliente_id"], "nested credit inherits the client")
	assert.Equal(t, float64(200000), nc["monto_prestado"])
	assert.Equal(t, "2026-03-15", nc["fecha_inicio"])
}

func TestDocument_Clone_IsDeep(t *testing.T) {
	d := Document{"a": "x", "nested": map[string]any{"k": "v"}}
	c := d.Clone()
	c["a"] = "y"
	c["nested"].(map[string]any)["k"] = "w"

	assert.Equal(t, "x", d["a"])
	assert.Equal(t, "v", d["nested"].(map[string]any)["k"])
}

func TestSyncOrder(t *testing.T) {
	assert.Equal(t, []Kind{KindClient, KindLoan, KindCollection, KindPayment}, SyncOrder)
}
