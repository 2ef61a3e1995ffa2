package proto

import "encoding/json"

// Message types exchanged with the wallet window.
const (
	PopupIsReady            = "isReady"
	PopupTransaction        = "transaction"
	PopupClose              = "close"
	PopupTransactionSuccess = "transactionSuccess"
	PopupLoginSuccess       = "loginSuccess"
)

// PopupMessage is the envelope of every message exchanged with the wallet
// window.
type PopupMessage struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// HasError reports whether the message carries an error payload.
func (m PopupMessage) HasError() bool {
	return len(m.Error) > 0 && string(m.Error) != "null" && string(m.Error) != "false"
}

// PopupParams are options handed to the wallet window together with a
// transaction.
type PopupParams struct {
	Broadcast bool `json:"broadcast"`
}

// PopupTransact is the data of a transaction message.
type PopupTransact struct {
	Transaction Transaction `json:"transaction"`
	Params      PopupParams `json:"params"`
}

// PopupTransactionResult is the data of a successful transactionSuccess
// message.
type PopupTransactionResult struct {
	Signatures            []string         `json:"signatures"`
	SerializedTransaction Bytes            `json:"serializedTransaction,omitempty"`
	Signer                PermissionLevel  `json:"signer"`
	Transaction           *Transaction     `json:"transaction,omitempty"`
	Processed             *json.RawMessage `json:"processed,omitempty"`
}
