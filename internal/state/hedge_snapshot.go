package state

import (
	"context"
	"encoding/base64"

	"github.com/vmihailenco/msgpack/v5"
)

const HedgeSnapshotKey = "hedge:open"

// HedgeSnapshot is the persisted form of an open hedge, written on open and
// deleted on close so a restart can resume the holding state.
type HedgeSnapshot struct {
	Direction   string  `msgpack:"direction"`
	EntryPriceA float64 `msgpack:"entry_price_a"`
	EntryPriceB float64 `msgpack:"entry_price_b"`
	SideA       string  `msgpack:"side_a"`
	SideB       string  `msgpack:"side_b"`
	Size        float64 `msgpack:"size"`
	OpenedAtMS  int64   `msgpack:"opened_at_ms"`
}

func LoadHedgeSnapshot(ctx context.Context, store Store) (HedgeSnapshot, bool, error) {
	if store == nil {
		return HedgeSnapshot{}, false, nil
	}
	raw, ok, err := store.Get(ctx, HedgeSnapshotKey)
	if err != nil || !ok {
		return HedgeSnapshot{}, false, err
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return HedgeSnapshot{}, false, err
	}
	var snapshot HedgeSnapshot
	if err := msgpack.Unmarshal(data, &snapshot); err != nil {
		return HedgeSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveHedgeSnapshot(ctx context.Context, store Store, snapshot HedgeSnapshot) error {
	if store == nil {
		return nil
	}
	data, err := msgpack.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, HedgeSnapshotKey, base64.StdEncoding.EncodeToString(data))
}

func ClearHedgeSnapshot(ctx context.Context, store Store) error {
	if store == nil {
		return nil
	}
	return store.Delete(ctx, HedgeSnapshotKey)
}
