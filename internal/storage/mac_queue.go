package storage

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/lorawan-ns/network-server"
)

const macQueueKeyTempl = "device:%s:mac:queue"

// QueueMACCommand appends a MAC command to the device's outbound queue,
// drained by the downlink planner (internal/downlink) on the next Class-A
// response or scheduler tick. Distinct from SetPendingMACCommand/
// GetPendingMACCommand, which pair a sent *Req with its returned *Ans.
func (st *Store) QueueMACCommand(ctx context.Context, devEUI lorawan.EUI64, cmd lorawan.MACCommand) error {
	b, err := cmd.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal mac-command error")
	}

	key := fmt.Sprintf(macQueueKeyTempl, devEUI)
	pipe := st.Redis.TxPipeline()
	pipe.RPush(ctx, key, b)
	pipe.Expire(ctx, key, deviceSessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "exec error")
	}
	return nil
}

// PendingMACCommands drains and returns every MAC command queued for
// devEUI's next downlink, implementing internal/downlink's MACProvider.
func (st *Store) PendingMACCommands(ctx context.Context, devEUI lorawan.EUI64) ([]lorawan.MACCommand, error) {
	key := fmt.Sprintf(macQueueKeyTempl, devEUI)

	raw, err := st.Redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "lrange error")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	out := make([]lorawan.MACCommand, 0, len(raw))
	for _, r := range raw {
		b := []byte(r)
		if len(b) == 0 {
			continue
		}
		var cmd lorawan.MACCommand
		if err := cmd.UnmarshalBinary(false, b); err != nil {
			return nil, errors.Wrap(err, "unmarshal mac-command error")
		}
		out = append(out, cmd)
	}

	if err := st.Redis.Del(ctx, key).Err(); err != nil {
		return nil, errors.Wrap(err, "del error")
	}

	return out, nil
}
