package rpc

import "encoding/json"

type SessionParams struct {
	SessionID string `json:"session_id"`
}

// SignalPendingRpc is a payload-free nudge: the target has unread signal
// messages and should pull. Losing it costs latency, never a message.
type SignalPendingRpc struct {
	jsonRpcHead
	Params SessionParams `json:"params"`
}

func NewSignalPendingRpc(sessionID string) *SignalPendingRpc {
	return &SignalPendingRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  SignalPendingMethod,
		},
		Params: SessionParams{SessionID: sessionID},
	}
}

func (r SignalPendingRpc) GetMethod() Method {
	return r.Method
}

func (r SignalPendingRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

type SessionClosedRpc struct {
	jsonRpcHead
	Params SessionParams `json:"params"`
}

func NewSessionClosedRpc(sessionID string) *SessionClosedRpc {
	return &SessionClosedRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  SessionClosedMethod,
		},
		Params: SessionParams{SessionID: sessionID},
	}
}

func (r SessionClosedRpc) GetMethod() Method {
	return r.Method
}

func (r SessionClosedRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

type GateParams struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

type GateChangedRpc struct {
	jsonRpcHead
	Params GateParams `json:"params"`
}

func NewGateChangedRpc(sessionID, state string) *GateChangedRpc {
	return &GateChangedRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  GateChangedMethod,
		},
		Params: GateParams{SessionID: sessionID, State: state},
	}
}

func (r GateChangedRpc) GetMethod() Method {
	return r.Method
}

func (r GateChangedRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
