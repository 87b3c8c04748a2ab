package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/lorawan-ns/network-server"
)

// pendingMACTTL bounds how long a MAC-command request sent in a downlink
// waits for the paired answer in an uplink before the handler registry
// (internal/maccommand) treats it as unanswered and lets it expire.
const pendingMACTTL = time.Hour * 24

// SetPendingMACCommand records a MAC command sent downlink so the matching
// CID's handler can pair it with the answer on the next uplink from the
// same device (LinkADRReq/Ans, NewChannelReq/Ans, ...).
func (st *Store) SetPendingMACCommand(ctx context.Context, devEUI lorawan.EUI64, cmd lorawan.MACCommand) error {
	b, err := cmd.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "marshal mac-command error")
	}

	key := fmt.Sprintf(pendingMACKeyTempl, devEUI, cmd.CID)
	if err := st.Redis.Set(ctx, key, b, pendingMACTTL).Err(); err != nil {
		return errors.Wrap(err, "set error")
	}
	return nil
}

// GetPendingMACCommand returns and clears the pending request for cid, if
// one exists, so a single answer is never paired twice.
func (st *Store) GetPendingMACCommand(ctx context.Context, devEUI lorawan.EUI64, cid lorawan.CID) (*lorawan.MACCommand, error) {
	key := fmt.Sprintf(pendingMACKeyTempl, devEUI, cid)

	b, err := st.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "get error")
	}
	st.Redis.Del(ctx, key)

	cmd := lorawan.MACCommand{CID: cid}
	if err := cmd.UnmarshalBinary(false, b); err != nil {
		return nil, errors.Wrap(err, "unmarshal mac-command error")
	}

	return &cmd, nil
}
