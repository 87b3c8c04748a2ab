// Package dedup turns N copies of the same over-the-air frame, received by N
// gateways, into exactly one UplinkFrameSet. It is the redis-backed
// equivalent of the collectAndCallOnce helper the teacher's uplink package
// calls into: every receiving goroutine appends its gateway metadata to a
// shared key, and whichever goroutine created that key sleeps out the
// dedup window and invokes the callback once with every gateway's metadata.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	fingerprintKeyTempl = "dedup:%x"
	lockKeyTempl        = "dedup:lock:%x"
)

// RXMeta is the per-gateway metadata collected for a single received frame.
// Frequency and DR are reported by every receiving gateway and are expected
// to agree across a frame's RXInfoSet, since they describe the transmission
// itself rather than the reception.
type RXMeta struct {
	GatewayID [8]byte
	RSSI      int
	LoRaSNR   float64
	Frequency int
	DR        int
	Context   []byte
}

// Frame bundles the raw PHYPayload bytes with the metadata of every gateway
// that reported receiving it within the dedup window.
type Frame struct {
	PHYPayload []byte
	RXInfoSet  []RXMeta
}

// Callback is invoked exactly once per unique PHYPayload, by whichever
// goroutine created the redis key first.
type Callback func(ctx context.Context, frame Frame) error

// Deduplicator collects frames for window and calls back once per frame.
type Deduplicator struct {
	Redis  *redis.Client
	Window time.Duration
}

// New returns a Deduplicator using the given dedup window.
func New(rdb *redis.Client, window time.Duration) *Deduplicator {
	return &Deduplicator{Redis: rdb, Window: window}
}

// Fingerprint returns the key used to group copies of the same frame: the
// leading 16 bytes of sha256(phyPayload). MHDR+MACPayload+MIC is enough to
// disambiguate unrelated frames while staying short as a redis key.
func Fingerprint(phyPayload []byte) [16]byte {
	sum := sha256.Sum256(phyPayload)
	var fp [16]byte
	copy(fp[:], sum[:16])
	return fp
}

// Collect registers one gateway's copy of phyPayload/meta. The first
// goroutine to observe a given fingerprint becomes the window owner: it
// sleeps out d.Window, re-reads every copy collected in the meantime, and
// invokes cb exactly once. Every other goroutine returns immediately once
// it has appended its own copy.
func (d *Deduplicator) Collect(ctx context.Context, phyPayload []byte, meta RXMeta, cb Callback) error {
	fp := Fingerprint(phyPayload)
	fpKey := fmtKey(fingerprintKeyTempl, fp)
	lockKey := fmtKey(lockKeyTempl, fp)

	metaB, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrap(err, "marshal rx-meta error")
	}

	pipe := d.Redis.TxPipeline()
	pipe.RPush(ctx, fpKey, metaB)
	pipe.PExpire(ctx, fpKey, d.Window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "rpush error")
	}

	owner, err := d.Redis.SetNX(ctx, lockKey, 1, d.Window*2).Result()
	if err != nil {
		return errors.Wrap(err, "setnx error")
	}
	if !owner {
		// another goroutine already owns the window for this frame.
		return nil
	}

	select {
	case <-time.After(d.Window):
	case <-ctx.Done():
		return ctx.Err()
	}

	rawMetas, err := d.Redis.LRange(ctx, fpKey, 0, -1).Result()
	if err != nil {
		return errors.Wrap(err, "lrange error")
	}

	frame := Frame{PHYPayload: phyPayload}
	for _, raw := range rawMetas {
		var m RXMeta
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		frame.RXInfoSet = append(frame.RXInfoSet, m)
	}

	d.Redis.Del(ctx, fpKey)

	return cb(ctx, frame)
}

func fmtKey(tmpl string, fp [16]byte) string {
	return fmt.Sprintf(tmpl, fp)
}
