package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/lorawan-ns/network-server"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
)

// DeviceKeys mirrors internal/join.DeviceKeys; kept as its own type here so
// this package does not import internal/join (storage sits below join in
// the dependency graph).
type DeviceKeys struct {
	DevEUI lorawan.EUI64
	NwkKey lorawan.AES128Key
	AppKey lorawan.AES128Key
}

// GetDeviceKeys fetches a device's OTAA root keys, implementing
// internal/join's KeyStore.
func (st *Store) GetDeviceKeys(ctx context.Context, devEUI lorawan.EUI64) (DeviceKeys, error) {
	row := st.DB.QueryRow(ctx, `
		select dev_eui, nwk_key, app_key from device_keys where dev_eui = $1
	`, devEUI[:])

	var dk DeviceKeys
	var devEUIB, nwkKeyB, appKeyB []byte
	if err := row.Scan(&devEUIB, &nwkKeyB, &appKeyB); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dk, nserrors.ErrNotFound
		}
		return dk, errors.Wrap(err, "select device_keys error")
	}
	copy(dk.DevEUI[:], devEUIB)
	copy(dk.NwkKey[:], nwkKeyB)
	copy(dk.AppKey[:], appKeyB)
	return dk, nil
}

// NextJoinNonce atomically increments and returns devEUI's join-nonce
// counter, the 1.1 replacement for the 1.0 AppNonce's random draw: §4.11
// requires it strictly increase across activations so a DevNonce replay
// check can reject any JoinRequest the counter has already moved past.
func (st *Store) NextJoinNonce(ctx context.Context, devEUI lorawan.EUI64) (lorawan.JoinNonce, error) {
	row := st.DB.QueryRow(ctx, `
		update device_keys set join_nonce = join_nonce + 1 where dev_eui = $1 returning join_nonce
	`, devEUI[:])

	var nonce uint32
	if err := row.Scan(&nonce); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nserrors.ErrNotFound
		}
		return 0, errors.Wrap(err, "update device_keys join_nonce error")
	}
	return lorawan.JoinNonce(nonce), nil
}

// IsDevNonceSeen reports whether devNonce has already been used by devEUI,
// per §4.11's 1.1 "monotonically seen" replay model (1.0 devices never
// reuse a DevNonce across the lifetime of their root keys either, so the
// same table serves both).
func (st *Store) IsDevNonceSeen(ctx context.Context, devEUI lorawan.EUI64, devNonce lorawan.DevNonce) (bool, error) {
	row := st.DB.QueryRow(ctx, `
		select exists(select 1 from device_dev_nonce where dev_eui = $1 and dev_nonce = $2)
	`, devEUI[:], uint16(devNonce))

	var seen bool
	if err := row.Scan(&seen); err != nil {
		return false, errors.Wrap(err, "select device_dev_nonce error")
	}
	return seen, nil
}

// RecordDevNonce marks devNonce as used for devEUI.
func (st *Store) RecordDevNonce(ctx context.Context, devEUI lorawan.EUI64, devNonce lorawan.DevNonce) error {
	_, err := st.DB.Exec(ctx, `
		insert into device_dev_nonce (dev_eui, dev_nonce) values ($1, $2)
		on conflict do nothing
	`, devEUI[:], uint16(devNonce))
	if err != nil {
		return errors.Wrap(err, "insert device_dev_nonce error")
	}
	return nil
}
