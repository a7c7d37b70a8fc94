package cryptox

import (
	"context"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/logging"
	"github.com/JohnF-code/financeflow-app-cobrador/internal/models"
)

// Markers tagged onto encrypted documents. Fields not declared sensitive
// for the document's kind pass through untouched, so foreign keys,
// timestamps and sync flags stay queryable.
const (
	markerEncrypted = "__encrypted"
	markerKind      = "__kind"
)

// sensitiveFields declares, per entity kind, which fields are protected at
// rest. The sets are fixed by the remote schema.
var sensitiveFields = map[models.Kind][]string{
	models.KindClient:     {"nombre", "telefono", "cedula", "email"},
	models.KindLoan:       {"monto_prestado", "cuota_diaria", "total_dias", "saldo_pendiente"},
	models.KindPayment:    {"monto"},
	models.KindCollection: {"monto_pago", "monto_prestado", "cuota_diaria"},
}

// FieldCodec applies the per-kind sensitive-field policy on whole
// documents using a Cipher.
type FieldCodec struct {
	cipher *Cipher
	log    logging.Logger
}

func NewFieldCodec(cipher *Cipher, log logging.Logger) *FieldCodec {
	return &FieldCodec{cipher: cipher, log: log}
}

// Enabled reports whether documents are actually encrypted. When false
// (no key material available) both methods are identity functions.
func (f *FieldCodec) Enabled() bool {
	return f.cipher.Enabled()
}

// EncryptEntity returns a copy of doc with the declared sensitive fields
// for kind replaced by sealed envelopes, tagged with the encrypted marker
// and the kind. A field that fails to seal stays plaintext and is logged;
// capture must not be blocked by a crypto failure.
func (f *FieldCodec) EncryptEntity(ctx context.Context, doc models.Document, kind models.Kind) models.Document {
	if !f.cipher.Enabled() || doc == nil {
		return doc
	}

	out := doc.Clone()
	out[markerEncrypted] = true
	out[markerKind] = string(kind)

	for _, field := range sensitiveFields[kind] {
		v, ok := out[field]
		if !ok || v == nil {
			continue
		}
		sealed, err := f.cipher.SealField(v)
		if err != nil {
			f.log.Error(ctx, "sealing field failed", "kind", kind, "field", field, "error", err)
			continue
		}
		out[field] = sealed
	}
	return out
}

// DecryptEntity reverses EncryptEntity when the encrypted marker is
// present, and strips the markers. A field that fails to open keeps its
// sealed value and the failure is logged; decryption is partial-failure
// tolerant and never aborts the whole entity.
func (f *FieldCodec) DecryptEntity(ctx context.Context, doc models.Document) models.Document {
	if !f.cipher.Enabled() || doc == nil {
		return doc
	}
	if enc, _ := doc[markerEncrypted].(bool); !enc {
		return doc
	}

	out := doc.Clone()
	kind := models.Kind(out.StringField(markerKind))
	delete(out, markerEncrypted)
	delete(out, markerKind)

	for _, field := range sensitiveFields[kind] {
		sealed, ok := out[field].(string)
		if !ok || sealed == "" {
			continue
		}
		v, err := f.cipher.OpenField(sealed)
		if err != nil {
			f.log.Error(ctx, "opening field failed", "kind", kind, "field", field, "error", err)
			continue
		}
		out[field] = v
	}
	return out
}
