package core

import (
	"context"
	"errors"

	"github.com/storahq/stora/internal/db"
)

// listen pumps snapshots of q into apply until ctx ends. A listener error is
// handed to fail and ends the loop; there is no retry.
func listen(ctx context.Context, store db.DocumentStore, q db.Query, apply func(*db.Snapshot), fail func(error)) {
	it := store.Listen(ctx, q)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if !errors.Is(err, db.ErrListenerStopped) {
				fail(err)
			}
			return
		}
		apply(snap)
	}
}
