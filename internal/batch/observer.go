package batch

import (
	"context"

	"shortforge/internal/ledger"
	"shortforge/internal/pipeline"
	"shortforge/internal/stage"
)

// LedgerObserver persists stage transitions so `status` can show where an
// in-flight or failed item stopped.
func LedgerObserver(store *ledger.Store) pipeline.Observer {
	return ledgerObserver{store: store}
}

type ledgerObserver struct {
	store *ledger.Store
}

func (o ledgerObserver) StageStarted(ctx context.Context, inferenceID string, name stage.Name) error {
	if o.store == nil {
		return nil
	}
	return o.store.RecordStage(ctx, inferenceID, name.String())
}
