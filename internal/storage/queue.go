package storage

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/lorawan-ns/network-server"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
)

// QueueItem is one application-layer downlink queued for a device. Ordering
// is FIFO by CreatedAt; the relational mirror (pgx), not the redis hot copy,
// owns this table since downlink ordering must survive a redis eviction.
type QueueItem struct {
	ID        uuid.UUID
	DevEUI    lorawan.EUI64
	FPort     uint8
	Data      []byte
	Confirmed bool
	IsPending bool
	FCntDown  uint32
	CreatedAt time.Time
}

// EnqueueDownlink appends item to the tail of devEUI's downlink queue.
func (s *Store) EnqueueDownlink(ctx context.Context, item QueueItem) error {
	if item.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return errors.Wrap(err, "generate queue-item id error")
		}
		item.ID = id
	}

	_, err := s.DB.Exec(ctx, `
		insert into device_queue_item (id, dev_eui, f_port, data, confirmed, is_pending, f_cnt_down, created_at)
		values ($1, $2, $3, $4, $5, false, 0, now())
	`, item.ID, item.DevEUI[:], item.FPort, item.Data, item.Confirmed)
	if err != nil {
		return errors.Wrap(err, "insert device_queue_item error")
	}
	return nil
}

// PeekDownlinkQueue returns the head of devEUI's downlink queue without
// removing it, so the planner can size it against the remaining payload
// budget before committing to send it.
func (s *Store) PeekDownlinkQueue(ctx context.Context, devEUI lorawan.EUI64) (*QueueItem, error) {
	row := s.DB.QueryRow(ctx, `
		select id, dev_eui, f_port, data, confirmed, is_pending, f_cnt_down, created_at
		from device_queue_item
		where dev_eui = $1
		order by created_at asc
		limit 1
	`, devEUI[:])

	var item QueueItem
	var devEUIB []byte
	if err := row.Scan(&item.ID, &devEUIB, &item.FPort, &item.Data, &item.Confirmed, &item.IsPending, &item.FCntDown, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nserrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "select device_queue_item error")
	}
	copy(item.DevEUI[:], devEUIB)

	return &item, nil
}

// MarkDownlinkQueueItemPending records that item has been transmitted and is
// awaiting confirmation, stamping the frame-counter it was sent under.
func (s *Store) MarkDownlinkQueueItemPending(ctx context.Context, id uuid.UUID, fCntDown uint32) error {
	_, err := s.DB.Exec(ctx, `
		update device_queue_item set is_pending = true, f_cnt_down = $2 where id = $1
	`, id, fCntDown)
	if err != nil {
		return errors.Wrap(err, "mark device_queue_item pending error")
	}
	return nil
}

// RemoveDownlinkQueueItem deletes item from the queue, either because it was
// sent unconfirmed or because its ACK was received.
func (s *Store) RemoveDownlinkQueueItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `delete from device_queue_item where id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete device_queue_item error")
	}
	return nil
}

// PendingQueueDevices returns every device with at least one item not yet
// pending confirmation, for the scheduler's device-queue tick to scan.
func (s *Store) PendingQueueDevices(ctx context.Context) ([]lorawan.EUI64, error) {
	rows, err := s.DB.Query(ctx, `
		select distinct dev_eui from device_queue_item where is_pending = false
	`)
	if err != nil {
		return nil, errors.Wrap(err, "select device_queue_item devices error")
	}
	defer rows.Close()

	var out []lorawan.EUI64
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, errors.Wrap(err, "scan dev_eui error")
		}
		var devEUI lorawan.EUI64
		copy(devEUI[:], b)
		out = append(out, devEUI)
	}
	return out, rows.Err()
}

// MulticastQueueItem is one group downlink queued for transmission to every
// member of a multicast group in its next Class-B/C ping slot.
type MulticastQueueItem struct {
	ID              uuid.UUID
	MulticastGroupID uuid.UUID
	FPort           uint8
	Data            []byte
	FCntDown        uint32
	CreatedAt       time.Time
}

// PendingMulticastGroups returns every multicast group with at least one
// queued item, for the scheduler's multicast-queue tick to scan.
func (s *Store) PendingMulticastGroups(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.DB.Query(ctx, `select distinct multicast_group_id from multicast_group_queue_item`)
	if err != nil {
		return nil, errors.Wrap(err, "select multicast_group_queue_item groups error")
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan multicast_group_id error")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PeekMulticastQueue returns the head of group's queue without removing it.
func (s *Store) PeekMulticastQueue(ctx context.Context, group uuid.UUID) (*MulticastQueueItem, error) {
	row := s.DB.QueryRow(ctx, `
		select id, multicast_group_id, f_port, data, f_cnt_down, created_at
		from multicast_group_queue_item
		where multicast_group_id = $1
		order by created_at asc
		limit 1
	`, group)

	var item MulticastQueueItem
	if err := row.Scan(&item.ID, &item.MulticastGroupID, &item.FPort, &item.Data, &item.FCntDown, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nserrors.ErrNotFound
		}
		return nil, errors.Wrap(err, "select multicast_group_queue_item error")
	}
	return &item, nil
}

// RemoveMulticastQueueItem deletes item after it has been sent, since
// multicast downlinks are always unconfirmed (there is no single device to
// ACK against).
func (s *Store) RemoveMulticastQueueItem(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `delete from multicast_group_queue_item where id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "delete multicast_group_queue_item error")
	}
	return nil
}

// MulticastGroupMembers returns the DevEUIs belonging to group, used to
// pick a session (for frame counter and keys) to encode the group's
// shared-key downlink under.
func (s *Store) MulticastGroupMembers(ctx context.Context, group uuid.UUID) ([]lorawan.EUI64, error) {
	rows, err := s.DB.Query(ctx, `select dev_eui from device_multicast_group where multicast_group_id = $1`, group)
	if err != nil {
		return nil, errors.Wrap(err, "select device_multicast_group error")
	}
	defer rows.Close()

	var out []lorawan.EUI64
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, errors.Wrap(err, "scan dev_eui error")
		}
		var devEUI lorawan.EUI64
		copy(devEUI[:], b)
		out = append(out, devEUI)
	}
	return out, rows.Err()
}

// MulticastGroup holds the shared downlink session parameters a multicast
// group's members must agree on: address and key space is per-group, not
// per-device, per spec.md's multicast model.
type MulticastGroup struct {
	ID          uuid.UUID
	MCAddr      lorawan.DevAddr
	McNwkSKey   lorawan.AES128Key
	McAppSKey   lorawan.AES128Key
	FCntDown    uint32
	DR          int
	Frequency   int
	PingSlotPeriod int
}

// GetMulticastGroup fetches a group's shared session parameters.
func (s *Store) GetMulticastGroup(ctx context.Context, group uuid.UUID) (MulticastGroup, error) {
	row := s.DB.QueryRow(ctx, `
		select id, mc_addr, mc_nwk_s_key, mc_app_s_key, f_cnt_down, dr, frequency, ping_slot_period
		from multicast_group where id = $1
	`, group)

	var g MulticastGroup
	var addrB, nwkKeyB, appKeyB []byte
	if err := row.Scan(&g.ID, &addrB, &nwkKeyB, &appKeyB, &g.FCntDown, &g.DR, &g.Frequency, &g.PingSlotPeriod); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return g, nserrors.ErrNotFound
		}
		return g, errors.Wrap(err, "select multicast_group error")
	}
	copy(g.MCAddr[:], addrB)
	copy(g.McNwkSKey[:], nwkKeyB)
	copy(g.McAppSKey[:], appKeyB)
	return g, nil
}

// IncrMulticastFCntDown atomically reserves the next frame counter for
// group's shared downlink session.
func (s *Store) IncrMulticastFCntDown(ctx context.Context, group uuid.UUID) (uint32, error) {
	row := s.DB.QueryRow(ctx, `
		update multicast_group set f_cnt_down = f_cnt_down + 1 where id = $1 returning f_cnt_down
	`, group)
	var fCnt uint32
	if err := row.Scan(&fCnt); err != nil {
		return 0, errors.Wrap(err, "update multicast_group f_cnt_down error")
	}
	return fCnt, nil
}
