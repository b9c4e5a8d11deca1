// Package ingest turns raw transfers into immutable ledger transactions.
// Classification is a pure function of the transfer's endpoints relative
// to the owner; ingestion is idempotent per (owner, hash, source),
// tolerant of malformed records within a batch, and serialized per
// (owner, source) so two concurrent syncs can never race on the same
// holdings.
package ingest

import (
	"strings"

	"github.com/cryptfolio/pnl-engine/internal/model"
)

// Classify determines the economic effect of a raw transfer for one
// owner. Transfers matching neither direction classify as self-transfer,
// the conservative default: no economic effect.
func Classify(owner string, t model.RawTransfer) model.TxKind {
	fromOwner := strings.EqualFold(t.From, owner)
	toOwner := strings.EqualFold(t.To, owner)

	switch {
	case fromOwner && toOwner:
		return model.KindSelfTransfer
	case t.Value.IsZero():
		return model.KindFee
	case toOwner:
		return model.KindAcquisition
	case fromOwner:
		return model.KindDisposal
	default:
		return model.KindSelfTransfer
	}
}
