package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/storahq/stora/internal/db"
)

// Shared mutation errors.
var (
	ErrFreeTierLimit = errors.New("free plan limit reached")
	ErrItemNotFound  = errors.New("item not found")
)

// checkFreeTier rejects a new item in collection when uid is not pro and
// already holds limit items.
func checkFreeTier(ctx context.Context, store db.DocumentStore, entitlement EntitlementChecker, uid, collection string, limit int) error {
	pro, err := entitlement.IsPro(ctx, uid)
	if err != nil {
		return err
	}
	if pro {
		return nil
	}
	docs, err := store.List(ctx, db.Query{Collection: db.UserCollection(uid, collection)})
	if err != nil {
		return fmt.Errorf("failed to count %s of %s: %w", collection, uid, err)
	}
	if len(docs) >= limit {
		return fmt.Errorf("%w: %d of %d %s used", ErrFreeTierLimit, len(docs), limit, collection)
	}
	return nil
}

// getExisting loads a user document, mapping absence to ErrItemNotFound.
func getExisting(ctx context.Context, store db.DocumentStore, uid, collection, id string) (*db.Document, error) {
	doc, err := store.Get(ctx, db.UserCollection(uid, collection), id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrItemNotFound, collection, id)
		}
		return nil, err
	}
	return doc, nil
}
