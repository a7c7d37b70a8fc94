// Package models defines the entity kinds, document payloads and pending
// mutation records shared by the local store, the outbox and the sync engine.
package models

// Kind classifies a pending mutation by the entity it creates.
type Kind string

const (
	KindClient     Kind = "client"
	KindLoan       Kind = "loan"
	KindPayment    Kind = "payment"
	KindCollection Kind = "collection"
)

// SyncOrder is the fixed dependency order of a sync pass: clients first
// (loans and payments may reference a client by temporary id), then loans,
// then collections (settle old loan + open new one), then payments.
var SyncOrder = []Kind{KindClient, KindLoan, KindCollection, KindPayment}

func (k Kind) Valid() bool {
	switch k {
	case KindClient, KindLoan, KindPayment, KindCollection:
		return true
	}
	return false
}
