package rpc

import "encoding/json"

type PresenceParams struct {
	BroadcasterID string `json:"broadcaster_id"`
	IsOnline      bool   `json:"is_online"`
	IsLive        bool   `json:"is_live"`
}

// PresenceChangedRpc is emitted on every transition into or out of live,
// and for every broadcaster flipped offline by the stale sweep.
type PresenceChangedRpc struct {
	jsonRpcHead
	Params PresenceParams `json:"params"`
}

func NewPresenceChangedRpc(params PresenceParams) *PresenceChangedRpc {
	return &PresenceChangedRpc{
		jsonRpcHead: jsonRpcHead{
			Version: jsonRpcVersion,
			Method:  PresenceChangedMethod,
		},
		Params: params,
	}
}

func (r PresenceChangedRpc) GetMethod() Method {
	return r.Method
}

func (r PresenceChangedRpc) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}
