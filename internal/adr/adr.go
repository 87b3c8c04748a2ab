// Package adr implements the ADR engine: a pure Request -> Response function
// (no storage, no I/O) invoked by the uplink pipeline once a frame with the
// ADR bit set has been accepted. Grounded on
// strategist922-ttn/core/networkserver/adr.go for the history -> margin ->
// step decision shape, adapted from TTN's unbounded frame log to the
// bounded-FIFO UplinkHistory of internal/storage, and on the teacher's own
// CMAC/AES packages for the "no ambient authority beyond the supplied
// arguments" style of pure function this package follows throughout.
package adr

import log "github.com/sirupsen/logrus"

// stepDB is the size, in dB, of one ADR step: raising DR by one step or
// raising TxPowerIndex by one step (one step less transmit power) is assumed
// to use up roughly this much link margin.
const stepDB = 3

// UplinkHistoryEntry is the subset of storage.UplinkHistory the ADR engine
// needs; kept separate from storage.UplinkHistory to keep this package free
// of a dependency on internal/storage.
type UplinkHistoryEntry struct {
	FCnt   uint32
	MaxSNR float64
}

// Request carries every input the ADR algorithm needs to compute a new
// (DR, TxPowerIndex, NbTrans) triple for one device.
type Request struct {
	RegionConfigID   string
	MACVersion       string
	DR               int
	TXPowerIndex     int
	NbTrans          int
	MaxTXPowerIndex  int
	MinTXPowerIndex  int
	MinDR            int
	MaxDR            int
	RequiredSNRForDR float64
	InstallationMargin float64
	UplinkHistory    []UplinkHistoryEntry

	// SpreadingFactorForDR resolves a DR index to its spreading factor,
	// used by the lora_lr_fhss algorithm to decide when to hand off to
	// LR-FHSS. Required only when that algorithm is selected.
	SpreadingFactorForDR func(dr int) int

	// DeviceVariables is forwarded verbatim to a plugin-backed algorithm;
	// the built-in algorithms ignore it.
	DeviceVariables map[string]interface{}
}

// Response is the ADR engine's output: the new device parameters to push
// via LinkADRReq.
type Response struct {
	DR           int
	TXPowerIndex int
	NbTrans      int
}

// Algorithm computes a Response from a Request. Implementations must be pure:
// same Request in, same Response out, no side effects.
type Algorithm func(req Request) (Response, error)

// Registry looks algorithms up by id ("default", "lora_lr_fhss", or a
// plugin id registered via RegisterPlugin).
type Registry struct {
	algorithms map[string]Algorithm
}

// NewRegistry returns a Registry with the two built-in algorithms
// pre-registered.
func NewRegistry() *Registry {
	r := &Registry{algorithms: make(map[string]Algorithm)}
	r.algorithms["default"] = DefaultAlgorithm
	r.algorithms["lora_lr_fhss"] = LoRaLRFHSSAlgorithm
	return r
}

// Register adds or replaces an algorithm by id — used to install a
// goja-backed plugin (see plugin.go).
func (r *Registry) Register(id string, a Algorithm) {
	r.algorithms[id] = a
}

// Run executes the named algorithm. An unknown id or an algorithm returning
// an error falls back to echoing the request's current parameters unchanged
// — an ADR failure must never block the uplink pipeline.
func (r *Registry) Run(id string, req Request) Response {
	algo, ok := r.algorithms[id]
	if !ok {
		log.WithField("algorithm", id).Warn("adr: unknown algorithm, falling back to pass-through")
		return passThrough(req)
	}

	resp, err := algo(req)
	if err != nil {
		log.WithError(err).WithField("algorithm", id).Warn("adr: algorithm error, falling back to pass-through")
		return passThrough(req)
	}
	return resp
}

func passThrough(req Request) Response {
	return Response{DR: req.DR, TXPowerIndex: req.TXPowerIndex, NbTrans: req.NbTrans}
}

// minSNR returns the minimum MaxSNR observed across the uplink history, the
// conservative choice: ADR only raises the data rate when even the weakest
// recently observed link margin supports it.
func minSNR(history []UplinkHistoryEntry) (float64, bool) {
	if len(history) == 0 {
		return 0, false
	}
	min := history[0].MaxSNR
	for _, h := range history[1:] {
		if h.MaxSNR < min {
			min = h.MaxSNR
		}
	}
	return min, true
}

// lossPercentage estimates packet loss from the FCnt gaps across history,
// mirroring strategist922-ttn/core/networkserver/adr.go's lossPercentage but
// against a bounded FIFO instead of an unbounded frame log.
func lossPercentage(history []UplinkHistoryEntry) float64 {
	if len(history) < 2 {
		return 0
	}
	first := history[0].FCnt
	last := history[len(history)-1].FCnt
	sent := last - first + 1
	if sent == 0 {
		return 0
	}
	loss := int64(sent) - int64(len(history))
	if loss < 0 {
		loss = 0
	}
	return float64(loss) / float64(sent) * 100
}

// DefaultAlgorithm implements the built-in LoRa ADR algorithm of §4.8:
// margin is converted into discrete 3 dB steps; positive steps first raise DR
// (up to MaxDR), then raise TxPowerIndex (up to MaxTXPowerIndex); negative
// steps first lower TxPowerIndex (down to MinTXPowerIndex), then lower DR
// (down to MinDR).
// NbTrans is adjusted toward 1 based on the estimated packet-loss rate.
func DefaultAlgorithm(req Request) (Response, error) {
	snr, ok := minSNR(req.UplinkHistory)
	if !ok {
		return passThrough(req), nil
	}

	margin := snr - req.RequiredSNRForDR - req.InstallationMargin
	steps := int(margin / stepDB)

	dr := req.DR
	txPower := req.TXPowerIndex

	for steps > 0 && dr < req.MaxDR {
		dr++
		steps--
	}
	for steps > 0 && txPower < req.MaxTXPowerIndex {
		txPower++
		steps--
	}
	for steps < 0 && txPower > req.MinTXPowerIndex {
		txPower--
		steps++
	}
	for steps < 0 && dr > req.MinDR {
		dr--
		steps++
	}

	nbTrans := req.NbTrans
	if nbTrans == 0 {
		nbTrans = 1
	}
	if len(req.UplinkHistory) >= 2 {
		loss := lossPercentage(req.UplinkHistory)
		switch {
		case loss <= 5:
			nbTrans--
		case loss <= 10:
			// unchanged
		case loss <= 30:
			nbTrans++
		default:
			nbTrans += 2
		}
	}
	if nbTrans < 1 {
		nbTrans = 1
	}
	if nbTrans > 3 {
		nbTrans = 3
	}

	return Response{DR: dr, TXPowerIndex: txPower, NbTrans: nbTrans}, nil
}

// lrFHSSCutoffSF is the spreading factor at or above which the lora_lr_fhss
// algorithm prefers an LR-FHSS response over the plain LoRa one.
const lrFHSSCutoffSF = 10

// lrFHSSDR is the DR index the lora_lr_fhss algorithm selects when it hands
// off from LoRa to LR-FHSS.
const lrFHSSDR = 10

// LoRaLRFHSSAlgorithm runs DefaultAlgorithm and then, if the chosen LoRa DR's
// spreading factor is >= lrFHSSCutoffSF, overrides the result with the
// LR-FHSS data rate instead.
func LoRaLRFHSSAlgorithm(req Request) (Response, error) {
	resp, err := DefaultAlgorithm(req)
	if err != nil {
		return resp, err
	}

	if req.SpreadingFactorForDR == nil {
		return resp, nil
	}

	if sf := req.SpreadingFactorForDR(resp.DR); sf >= lrFHSSCutoffSF {
		resp.DR = lrFHSSDR
	}

	return resp, nil
}
