package zatca_test

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/zatca"
)

// ──────────────────────────────────────────────────────────────────────────────
// ContentHash: base64(SHA-256(uuid || issueDate || issueTime)).
// ──────────────────────────────────────────────────────────────────────────────

func TestContentHash_VectorConocido(t *testing.T) {
	inv := sampleInvoice()
	sum := sha256.Sum256([]byte(inv.UUID + inv.IssueDate + inv.IssueTime))
	expected := base64.StdEncoding.EncodeToString(sum[:])

	h, err := zatca.ContentHash(inv)
	require.NoError(t, err)
	assert.Equal(t, expected, h, "el hash debe concatenar uuid, fecha y hora en ese orden")

	raw, err := base64.StdEncoding.DecodeString(h)
	require.NoError(t, err)
	assert.Len(t, raw, sha256.Size, "el digest decodificado debe tener 32 bytes")
}

func TestContentHash_Determinista(t *testing.T) {
	h1, err1 := zatca.ContentHash(sampleInvoice())
	h2, err2 := zatca.ContentHash(sampleInvoice())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, h1, h2, "la misma factura siempre produce el mismo hash")
}

func TestContentHash_SensibleAlUUID(t *testing.T) {
	a := sampleInvoice()
	b := sampleInvoice()
	b.UUID = "8e6000cf-1a98-4174-b3e7-b5d5954bc10d"

	ha, _ := zatca.ContentHash(a)
	hb, _ := zatca.ContentHash(b)
	assert.NotEqual(t, ha, hb, "cambiar el UUID debe cambiar el hash")
}

func TestContentHash_CamposFaltantes(t *testing.T) {
	_, err := zatca.ContentHash(nil)
	assert.ErrorIs(t, err, zatca.ErrInvalidInvoice)

	inv := sampleInvoice()
	inv.IssueTime = ""
	_, err = zatca.ContentHash(inv)
	require.ErrorIs(t, err, zatca.ErrInvalidInvoice)
	ve, ok := zatca.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "issueTime", ve.Field)
}

// ──────────────────────────────────────────────────────────────────────────────
// Encadenamiento
// ──────────────────────────────────────────────────────────────────────────────

func TestGenesisHash_EsBase64DelHexDeSHA256Cero(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(zatca.GenesisHash)
	require.NoError(t, err)
	assert.Equal(t, "5feceb66ffc86f38d952786c6d696c79c2dbc239dd4e91b46729d73a27fb57e9", string(raw))
}

func TestExpectedLink_SinEstadoEsGenesis(t *testing.T) {
	h, c := zatca.ExpectedLink(nil)
	assert.Equal(t, zatca.GenesisHash, h)
	assert.Equal(t, int64(1), c)

	h, c = zatca.ExpectedLink(&entity.ChainState{LastHash: "abc", LastCounter: 7})
	assert.Equal(t, "abc", h)
	assert.Equal(t, int64(8), c)
}

// buildChain emite n facturas encadenadas a partir del génesis.
func buildChain(t *testing.T, n int) []entity.Invoice {
	t.Helper()
	uuids := []string{
		"3cf5ee18-ee25-44ea-a444-2c37ba7f28be",
		"8e6000cf-1a98-4174-b3e7-b5d5954bc10d",
		"16e78469-64af-406d-9cfd-895e724198f0",
	}
	out := make([]entity.Invoice, 0, n)
	var state *entity.ChainState
	for i := 0; i < n; i++ {
		inv := sampleInvoice()
		inv.UUID = uuids[i%len(uuids)]
		inv.PreviousInvoiceHash, inv.CounterValue = zatca.ExpectedLink(state)
		require.NoError(t, zatca.CheckLink(inv, state))
		h, err := zatca.ContentHash(inv)
		require.NoError(t, err)
		next := zatca.Next("device-1", inv, h)
		state = &next
		out = append(out, *inv)
	}
	return out
}

func TestVerifyChain_SecuenciaABC(t *testing.T) {
	invs := buildChain(t, 3)

	assert.Equal(t, zatca.GenesisHash, invs[0].PreviousInvoiceHash, "A debe apuntar al génesis")
	hA, _ := zatca.ContentHash(&invs[0])
	hB, _ := zatca.ContentHash(&invs[1])
	assert.True(t, zatca.VerifyChain(&invs[1], hA), "B debe encadenar con A")
	assert.True(t, zatca.VerifyChain(&invs[2], hB), "C debe encadenar con B")
	assert.Equal(t, []int64{1, 2, 3}, []int64{invs[0].CounterValue, invs[1].CounterValue, invs[2].CounterValue})
	require.NoError(t, zatca.VerifySequence(invs))
}

func TestVerifySequence_MutacionRompeCadena(t *testing.T) {
	invs := buildChain(t, 3)
	invs[1].IssueTime = "10:00:01Z" // cambia el hash de B, C queda huérfana

	hB, _ := zatca.ContentHash(&invs[1])
	assert.False(t, zatca.VerifyChain(&invs[2], hB))

	err := zatca.VerifySequence(invs)
	require.ErrorIs(t, err, zatca.ErrChainBreak)
	ve, ok := zatca.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "invoices[2].previousInvoiceHash", ve.Field)
}

func TestCheckLink_HashIncorrecto(t *testing.T) {
	inv := sampleInvoice()
	inv.PreviousInvoiceHash = "otro"
	err := zatca.CheckLink(inv, nil)
	require.ErrorIs(t, err, zatca.ErrChainBreak)
	ve, _ := zatca.AsValidationError(err)
	assert.Equal(t, zatca.GenesisHash, ve.Expected)
	assert.Equal(t, "otro", ve.Actual)
}

func TestCheckLink_ContadorConHueco(t *testing.T) {
	state := &entity.ChainState{LastHash: "h5", LastCounter: 5}
	inv := sampleInvoice()
	inv.PreviousInvoiceHash = "h5"
	inv.CounterValue = 7

	err := zatca.CheckLink(inv, state)
	require.ErrorIs(t, err, zatca.ErrChainBreak)
	ve, _ := zatca.AsValidationError(err)
	assert.Equal(t, "counterValue", ve.Field)
	assert.Equal(t, "6", ve.Expected)
}

func TestNext_AvanzaEstado(t *testing.T) {
	inv := sampleInvoice()
	inv.CounterValue = 4
	st := zatca.Next("pos-01", inv, "hash-4")
	assert.Equal(t, entity.ChainState{DeviceID: "pos-01", LastHash: "hash-4", LastCounter: 4}, st)
}
