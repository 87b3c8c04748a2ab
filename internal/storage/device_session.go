// Package storage implements the device-session store and the relational
// tables around it. Device sessions are kept in redis only, as an expiring
// hot copy used on the uplink/downlink path; they are not written to or read
// back from the pgx database, which holds the downlink queue, multicast and
// OTAA key tables.
package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/gob"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lorawan-ns/network-server"
	"github.com/lorawan-ns/network-server/band"
	nserrors "github.com/lorawan-ns/network-server/internal/errors"
)

const (
	devAddrKeyTempl       = "device:%s:addr" // set of DevEUIs sharing this DevAddr
	deviceSessionKeyTempl = "device:%s:ds"    // hot-copy of a DevEUI's session
	deviceLockKeyTempl    = "device:%s:lock"  // lease lock serializing read-modify-write
	pendingMACKeyTempl    = "device:%s:mac:pending:%d"

	// deviceSessionTTL bounds how long a hot session survives without a
	// refreshing uplink before redis reclaims it; no database copy of the
	// session is kept, so an expired session is gone.
	deviceSessionTTL = time.Hour * 24 * 31

	// lockTTL bounds how long a stuck goroutine can hold a device lease
	// before another uplink for the same device is allowed to proceed.
	lockTTL = time.Millisecond * 1000

	// UplinkHistorySize is the number of uplink frames retained for
	// packet-loss and ADR history purposes.
	UplinkHistorySize = 20
)

// RXWindow defines the RX window option last used for a downlink.
type RXWindow int8

// Available RX window options.
const (
	RX1 RXWindow = iota
	RX2
)

// UplinkHistory records the metadata of a single accepted uplink frame,
// used by GetPacketLossPercentage and by internal/adr's history-based step.
type UplinkHistory struct {
	FCnt         uint32
	MaxSNR       float64
	TXPowerIndex int
	GatewayCount int
}

// RelayState carries the relay-mode configuration and token-bucket state for
// a device acting as a relay or being served through one (internal/relay).
type RelayState struct {
	Enabled         bool
	DevIdx          uint8
	RootWorSKey     lorawan.AES128Key
	LimitReloadRate int
	LimitBucketSize int

	// Tokens and LastRefill hold the live token-bucket state; Tokens is
	// allowed to be fractional between refills.
	Tokens     float64
	LastRefill time.Time
}

// DeviceSession is the full runtime state the uplink/downlink/ADR/join
// packages operate on for a single activated device.
type DeviceSession struct {
	// identity
	DevEUI  lorawan.EUI64
	JoinEUI lorawan.EUI64
	DevAddr lorawan.DevAddr

	// graph identifiers, resolved through loader functions rather than
	// embedded pointers to keep the session acyclic and cheaply encodable.
	DeviceProfileID  uuid.UUID
	RoutingProfileID uuid.UUID
	TenantID         uuid.UUID

	MACVersion string

	// session keys. For 1.0 sessions FNwkSIntKey, SNwkSIntKey and NwkSEncKey
	// all hold the same key (the legacy NwkSKey). AppSKey is held by the
	// application server, not here.
	FNwkSIntKey lorawan.AES128Key
	SNwkSIntKey lorawan.AES128Key
	NwkSEncKey  lorawan.AES128Key

	FCntUp    uint32
	NFCntDown uint32
	AFCntDown uint32
	ConfFCnt  uint32

	SkipFCntValidation bool

	RXWindow     RXWindow
	RXDelay      uint8
	RX1DROffset  uint8
	RX2DR        uint8
	RX2Frequency int

	TXPowerIndex             int
	DR                       int
	ADR                      bool
	MinSupportedTXPowerIndex int
	MaxSupportedTXPowerIndex int
	NbTrans                  uint8

	EnabledUplinkChannels []int
	ChannelFrequencies    []int
	UplinkHistory         []UplinkHistory

	LastDevStatusRequested time.Time
	LastDownlinkTX         time.Time
	LastGatewayID          lorawan.EUI64

	// Class-B
	BeaconLocked      bool
	PingSlotNb        int
	PingSlotDR        int
	PingSlotFrequency int

	RejoinRequestEnabled   bool
	RejoinRequestMaxCountN int
	RejoinRequestMaxTimeN  int
	RejoinCount0           uint16

	Relay RelayState
}

// sessionGOB is the wire shape persisted to redis. New fields must be added
// with a zero value that gob decodes sensibly for old blobs — this is the
// forward-compatible migration path described for the session store.
type sessionGOB = DeviceSession

// AppendUplinkHistory appends an accepted uplink, ignoring re-transmissions
// and keeping only the most recent UplinkHistorySize entries.
func (s *DeviceSession) AppendUplinkHistory(up UplinkHistory) {
	if n := len(s.UplinkHistory); n > 0 && s.UplinkHistory[n-1].FCnt == up.FCnt {
		return
	}

	s.UplinkHistory = append(s.UplinkHistory, up)
	if n := len(s.UplinkHistory); n > UplinkHistorySize {
		s.UplinkHistory = s.UplinkHistory[n-UplinkHistorySize : n]
	}
}

// GetPacketLossPercentage returns 0 until the history table has filled, to
// avoid reporting misleading percentages from a handful of samples.
func (s DeviceSession) GetPacketLossPercentage() float64 {
	if len(s.UplinkHistory) < UplinkHistorySize {
		return 0
	}

	var lost uint32
	var prev uint32
	for i, uh := range s.UplinkHistory {
		if i == 0 {
			prev = uh.FCnt
			continue
		}
		lost += uh.FCnt - prev - 1
		prev = uh.FCnt
	}

	return float64(lost) / float64(len(s.UplinkHistory)) * 100
}

// GetMACVersion returns the parsed LoRaWAN MAC version for the session.
func (s DeviceSession) GetMACVersion() lorawan.MACVersion {
	if strings.HasPrefix(s.MACVersion, "1.1") {
		return lorawan.LoRaWAN1_1
	}
	return lorawan.LoRaWAN1_0
}

// ResetToBootParameters resets channel plan, TX power, NbTrans and class-B
// ping-slot state to the device profile's boot values, as happens after a
// join-accept or after a device-profile update is pushed to an ABP device.
func (s *DeviceSession) ResetToBootParameters(b band.Band, pingSlotPeriod, pingSlotDR int, pingSlotFreq uint32, rxDelay1, rxDROffset1, rxDataRate2 int, rxFreq2 uint32) {
	s.EnabledUplinkChannels = b.GetStandardUplinkChannelIndices()
	s.TXPowerIndex = 0
	s.MinSupportedTXPowerIndex = 0
	s.MaxSupportedTXPowerIndex = 0
	s.RXDelay = uint8(rxDelay1)
	s.RX1DROffset = uint8(rxDROffset1)
	s.RX2DR = uint8(rxDataRate2)
	s.RX2Frequency = int(rxFreq2)
	s.PingSlotDR = pingSlotDR
	s.PingSlotFrequency = int(pingSlotFreq)
	s.NbTrans = 1

	if pingSlotPeriod != 0 {
		s.PingSlotNb = (1 << 12) / pingSlotPeriod
	}
}

// GetRandomDevAddr returns a random DevAddr with the NwkID prefix derived
// from netID, per LoRaWAN §6.1.1.
func GetRandomDevAddr(netID lorawan.NetID) (lorawan.DevAddr, error) {
	var d lorawan.DevAddr
	if _, err := rand.Read(d[:]); err != nil {
		return d, errors.Wrap(err, "read random bytes error")
	}
	d.SetAddrPrefix(netID)

	return d, nil
}

// Store bundles the redis client (device sessions, locks, MAC-command keys)
// and the pgx pool (queue, multicast and key tables); device sessions are
// not written to the pgx pool.
type Store struct {
	Redis *redis.Client
	DB    *pgxpool.Pool
}

// New builds a Store from already-configured clients.
func New(rdb *redis.Client, db *pgxpool.Pool) *Store {
	return &Store{Redis: rdb, DB: db}
}

// Save writes the session to the redis hot copy and records the DevAddr ->
// DevEUI association used by C6 stage 2 (candidate-session fan-out).
func (st *Store) Save(ctx context.Context, s DeviceSession) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sessionGOB(s)); err != nil {
		return errors.Wrap(err, "gob encode error")
	}

	pipe := st.Redis.TxPipeline()
	pipe.Set(ctx, keyFor(deviceSessionKeyTempl, s.DevEUI), buf.Bytes(), deviceSessionTTL)
	pipe.SAdd(ctx, keyFor(devAddrKeyTempl, s.DevAddr), s.DevEUI[:])
	pipe.Expire(ctx, keyFor(devAddrKeyTempl, s.DevAddr), deviceSessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "exec error")
	}

	log.WithFields(log.Fields{
		"dev_eui":  s.DevEUI,
		"dev_addr": s.DevAddr,
	}).Debug("storage: device-session saved")

	return nil
}

// Lock acquires the per-device lease serializing read-modify-write access
// to a session, per §5's KV-lease critical section. A failure to acquire
// returns nserrors.ErrLocked and must not be retried inside the task; the
// next duplicate copy of the frame, or the next uplink, will retry.
func (st *Store) Lock(ctx context.Context, devEUI lorawan.EUI64) error {
	ok, err := st.Redis.SetNX(ctx, keyFor(deviceLockKeyTempl, devEUI), 1, lockTTL).Result()
	if err != nil {
		return errors.Wrap(err, "setnx error")
	}
	if !ok {
		return nserrors.ErrLocked
	}
	return nil
}

// Unlock releases the lease acquired by Lock.
func (st *Store) Unlock(ctx context.Context, devEUI lorawan.EUI64) error {
	if err := st.Redis.Del(ctx, keyFor(deviceLockKeyTempl, devEUI)).Err(); err != nil {
		return errors.Wrap(err, "del error")
	}
	return nil
}

// Get fetches the hot session for devEUI.
func (st *Store) Get(ctx context.Context, devEUI lorawan.EUI64) (DeviceSession, error) {
	var s DeviceSession

	b, err := st.Redis.Get(ctx, keyFor(deviceSessionKeyTempl, devEUI)).Bytes()
	if err == redis.Nil {
		return s, nserrors.ErrNotFound
	} else if err != nil {
		return s, errors.Wrap(err, "get error")
	}

	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&s); err != nil {
		return s, errors.Wrap(err, "gob decode error")
	}

	return s, nil
}

// Delete removes the hot session and its DevAddr association.
func (st *Store) Delete(ctx context.Context, devEUI lorawan.EUI64) error {
	s, err := st.Get(ctx, devEUI)
	if err != nil {
		return err
	}

	pipe := st.Redis.TxPipeline()
	pipe.Del(ctx, keyFor(deviceSessionKeyTempl, devEUI))
	pipe.SRem(ctx, keyFor(devAddrKeyTempl, s.DevAddr), devEUI[:])
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "exec error")
	}

	return nil
}

// GetDeviceSessionsForDevAddr returns every session currently advertising
// devAddr, the candidate set C6 stage 2 walks to find the frame's MIC match.
func (st *Store) GetDeviceSessionsForDevAddr(ctx context.Context, devAddr lorawan.DevAddr) ([]DeviceSession, error) {
	devEUIStrs, err := st.Redis.SMembers(ctx, keyFor(devAddrKeyTempl, devAddr)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "smembers error")
	}

	out := make([]DeviceSession, 0, len(devEUIStrs))
	for _, raw := range devEUIStrs {
		var devEUI lorawan.EUI64
		copy(devEUI[:], []byte(raw))

		s, err := st.Get(ctx, devEUI)
		if err != nil {
			// the DevAddr set entry survived longer than the session TTL;
			// drop it lazily rather than failing the whole fan-out.
			st.Redis.SRem(ctx, keyFor(devAddrKeyTempl, devAddr), raw)
			continue
		}
		out = append(out, s)
	}

	return out, nil
}

func keyFor(tmpl string, v fmt.Stringer) string {
	return fmt.Sprintf(tmpl, v.String())
}
