// Package feed connects the order book to a Chainflip node: pool liquidity is
// queried over HTTP JSON-RPC and pool events arrive over a WebSocket subscription.
package feed

import (
	"encoding/json"
	"fmt"
)

const jsonRPCVersion = "2.0"

// Methods used against the node.
const (
	MethodPoolLiquidity   = "cf_pool_liquidity"
	MethodPoolPrice       = "cf_subscribe_pool_price"
	MethodPrewitnessSwaps = "cf_subscribe_prewitness_swaps"
)

type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type liquidityParams struct {
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
}

type subscribeParams struct {
	FromAsset string `json:"from_asset"`
	ToAsset   string `json:"to_asset"`
}

// Notification is one subscription message pushed by the node.
type Notification struct {
	Method       string
	Subscription string
	Result       json.RawMessage
}

// wireMessage covers both subscription acks and notifications.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  *struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// decodeNotification returns ok=false for messages that carry no method,
// which are the acks of the subscribe requests.
func decodeNotification(data []byte) (Notification, bool, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Notification{}, false, fmt.Errorf("invalid subscription message: %w", err)
	}
	if msg.Error != nil {
		return Notification{}, false, msg.Error
	}
	if msg.Method == "" {
		return Notification{}, false, nil
	}
	n := Notification{Method: msg.Method}
	if msg.Params != nil {
		n.Result = msg.Params.Result
		if len(msg.Params.Subscription) > 0 {
			var sub string
			if err := json.Unmarshal(msg.Params.Subscription, &sub); err == nil {
				n.Subscription = sub
			} else {
				n.Subscription = string(msg.Params.Subscription)
			}
		}
	}
	return n, true, nil
}
