package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/lorawan-ns/network-server"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
)

// Lock acquires the per-device lease lock that serializes the
// read-modify-write of a DeviceSession across concurrent uplinks for the
// same device (e.g. two gateways relaying the same frame, or an uplink
// racing a downlink draining the queue). Callers must call unlock via the
// returned release func once the session has been saved.
func (st *Store) Lock(ctx context.Context, devEUI lorawan.EUI64) (release func(), err error) {
	key := fmt.Sprintf(deviceLockKeyTempl, devEUI)

	ok, err := st.Redis.SetNX(ctx, key, 1, lockTTL).Result()
	if err != nil {
		return nil, errors.Wrap(err, "setnx error")
	}
	if !ok {
		return nil, nserrors.ErrLocked
	}

	return func() {
		st.Redis.Del(context.Background(), key)
	}, nil
}

// LockWithRetry retries Lock until it succeeds, the deadline embedded in ctx
// expires, or interval*attempts has elapsed — used by handlers that must
// not silently drop a frame on lock contention (e.g. a scheduler tick).
func (st *Store) LockWithRetry(ctx context.Context, devEUI lorawan.EUI64, attempts int, interval time.Duration) (func(), error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		release, err := st.Lock(ctx, devEUI)
		if err == nil {
			return release, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
	return nil, lastErr
}
