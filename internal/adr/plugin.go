package adr

import (
	"encoding/json"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

// pluginTimeout bounds how long a single plugin invocation may run before
// it is treated as failed and the request falls back to pass-through.
const pluginTimeout = 100 * time.Millisecond

// pluginRequest/pluginResponse are the JSON-shaped structures exposed to
// and expected back from the sandboxed script — only scalars/arrays, no
// methods, no host objects.
type pluginRequest struct {
	DR                 int                    `json:"dr"`
	TXPowerIndex       int                    `json:"tx_power_index"`
	NbTrans            int                    `json:"nb_trans"`
	MaxTXPowerIndex    int                    `json:"max_tx_power_index"`
	MinTXPowerIndex    int                    `json:"min_tx_power_index"`
	MinDR              int                    `json:"min_dr"`
	MaxDR              int                    `json:"max_dr"`
	RequiredSNRForDR   float64                `json:"required_snr_for_dr"`
	InstallationMargin float64                `json:"installation_margin"`
	UplinkHistory      []UplinkHistoryEntry   `json:"uplink_history"`
	DeviceVariables    map[string]interface{} `json:"device_variables"`
}

type pluginResponse struct {
	DR           int `json:"dr"`
	TXPowerIndex int `json:"tx_power_index"`
	NbTrans      int `json:"nb_trans"`
}

// NewPluginAlgorithm compiles an ADR plugin from JavaScript source. The
// script must define a global function `handle(request)` that returns an
// object with dr/tx_power_index/nb_trans fields; anything else (a missing
// function, a thrown exception, a timeout) produces an error from the
// returned Algorithm, which Registry.Run then degrades to pass-through.
//
// The sandbox grants no ambient authority: no require(), no host globals
// beyond the request object itself, and each call gets a fresh goja.Runtime
// so one invocation cannot leak state into the next.
func NewPluginAlgorithm(source string) (Algorithm, error) {
	// compile once up front so a syntax error surfaces at registration
	// time rather than on the first uplink.
	program, err := goja.Compile("adr-plugin", source, false)
	if err != nil {
		return nil, errors.Wrap(err, "compile adr plugin error")
	}

	return func(req Request) (Response, error) {
		return runPlugin(program, req)
	}, nil
}

func runPlugin(program *goja.Program, req Request) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("adr plugin panic: %v", r)
		}
	}()

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	done := make(chan struct{})
	var callErr error
	var out pluginResponse

	go func() {
		defer close(done)

		if _, runErr := vm.RunProgram(program); runErr != nil {
			callErr = errors.Wrap(runErr, "run adr plugin error")
			return
		}

		handle, ok := goja.AssertFunction(vm.Get("handle"))
		if !ok {
			callErr = errors.New("adr plugin does not define handle(request)")
			return
		}

		pReq := toPluginRequest(req)
		reqB, marshalErr := json.Marshal(pReq)
		if marshalErr != nil {
			callErr = errors.Wrap(marshalErr, "marshal adr plugin request error")
			return
		}

		var reqObj interface{}
		if unmarshalErr := json.Unmarshal(reqB, &reqObj); unmarshalErr != nil {
			callErr = errors.Wrap(unmarshalErr, "unmarshal adr plugin request error")
			return
		}

		val, callErrInner := handle(goja.Undefined(), vm.ToValue(reqObj))
		if callErrInner != nil {
			callErr = errors.Wrap(callErrInner, "call adr plugin handle error")
			return
		}

		respB, marshalErr := json.Marshal(val.Export())
		if marshalErr != nil {
			callErr = errors.Wrap(marshalErr, "marshal adr plugin response error")
			return
		}
		if unmarshalErr := json.Unmarshal(respB, &out); unmarshalErr != nil {
			callErr = errors.Wrap(unmarshalErr, "unmarshal adr plugin response error")
			return
		}
	}()

	select {
	case <-done:
		if callErr != nil {
			return Response{}, callErr
		}
		return Response{DR: out.DR, TXPowerIndex: out.TXPowerIndex, NbTrans: out.NbTrans}, nil
	case <-time.After(pluginTimeout):
		vm.Interrupt("adr plugin timeout")
		return Response{}, errors.New("adr plugin timed out")
	}
}

func toPluginRequest(req Request) pluginRequest {
	return pluginRequest{
		DR:                 req.DR,
		TXPowerIndex:       req.TXPowerIndex,
		NbTrans:            req.NbTrans,
		MaxTXPowerIndex:    req.MaxTXPowerIndex,
		MinTXPowerIndex:    req.MinTXPowerIndex,
		MinDR:              req.MinDR,
		MaxDR:              req.MaxDR,
		RequiredSNRForDR:   req.RequiredSNRForDR,
		InstallationMargin: req.InstallationMargin,
		UplinkHistory:      req.UplinkHistory,
		DeviceVariables:    req.DeviceVariables,
	}
}
