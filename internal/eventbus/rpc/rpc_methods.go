package rpc

import (
	"encoding/json"
	"errors"
	"io"
)

const jsonRpcVersion = "2.0"

type Method string

const (
	PresenceChangedMethod Method = "presence_changed"
	SignalPendingMethod   Method = "signal_pending"
	SessionClosedMethod   Method = "session_closed"
	GateChangedMethod     Method = "gate_changed"
)

var (
	ErrUnknownRpcType = errors.New("unknown RPC type")
	ErrMalformedRpc   = errors.New("malformed RPC")
)

type Rpc interface {
	GetMethod() Method
	ToJSON() ([]byte, error)
}

type jsonRpcHead struct {
	Version string `json:"jsonrpc"`
	Method  Method `json:"method"`
}

type jsonRpc struct {
	jsonRpcHead
	Params map[string]interface{} `json:"params"`
}

func RpcFromReader(reader io.Reader) (Rpc, error) {
	rpc := &jsonRpc{}

	err := json.NewDecoder(reader).Decode(rpc)
	if err != nil {
		return nil, err
	}

	params, err := json.Marshal(rpc.Params)
	if err != nil {
		return nil, err
	}

	switch rpc.Method {
	case PresenceChangedMethod:
		p := PresenceParams{}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}

		return NewPresenceChangedRpc(p), nil
	case SignalPendingMethod:
		p := SessionParams{}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}

		return NewSignalPendingRpc(p.SessionID), nil
	case SessionClosedMethod:
		p := SessionParams{}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}

		return NewSessionClosedRpc(p.SessionID), nil
	case GateChangedMethod:
		p := GateParams{}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}

		return NewGateChangedRpc(p.SessionID, p.State), nil
	default:
		return nil, ErrUnknownRpcType
	}
}
