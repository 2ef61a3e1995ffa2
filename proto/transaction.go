package proto

import (
	"encoding/hex"
	"encoding/json"
)

// Bytes is a byte slice serialized as a hex string. It also accepts a JSON
// array of numbers, which is how browser wallets tend to report buffers.
type Bytes []byte

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := hex.DecodeString(s)
		if err != nil {
			return err
		}
		*b = v
		return nil
	}
	var nums []uint8
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	*b = nums
	return nil
}

// Action is a single contract action inside a transaction.
type Action struct {
	Account       string            `json:"account"`
	Name          string            `json:"name"`
	Authorization []PermissionLevel `json:"authorization"`
	Data          json.RawMessage   `json:"data,omitempty"`
}

// Transaction is a transaction as handed to the wallet. Its contents are
// opaque to the signing flow except for the expiration.
type Transaction struct {
	Expiration         TimePointSec      `json:"expiration"`
	RefBlockNum        uint16            `json:"ref_block_num"`
	RefBlockPrefix     uint32            `json:"ref_block_prefix"`
	MaxNetUsageWords   uint32            `json:"max_net_usage_words"`
	MaxCPUUsageMS      uint8             `json:"max_cpu_usage_ms"`
	DelaySec           uint32            `json:"delay_sec"`
	ContextFreeActions []Action          `json:"context_free_actions"`
	Actions            []Action          `json:"actions"`
	Extensions         []json.RawMessage `json:"transaction_extensions"`
}

// ResolvedTransaction is a transaction whose placeholders have already been
// resolved against a chain and a signer.
type ResolvedTransaction struct {
	ChainID     string          `json:"chain_id"`
	Signer      PermissionLevel `json:"signer"`
	Transaction Transaction     `json:"transaction"`
}

// SignResponse is the result of a successful signing call.
type SignResponse struct {
	Signatures  []string        `json:"signatures"`
	ChainID     string          `json:"chain_id"`
	Signer      PermissionLevel `json:"signer"`
	Transaction Transaction     `json:"transaction"`
	// SerializedTransaction is set when the wallet reports the exact bytes
	// it signed.
	SerializedTransaction Bytes `json:"serialized_transaction,omitempty"`
	// Request is the encoded request the wallet resolved, when reported.
	Request  string `json:"request,omitempty"`
	BlockNum string `json:"block_num,omitempty"`
}

// LoginResponse is the result of a successful login.
type LoginResponse struct {
	ChainID   string          `json:"chain_id"`
	Auth      PermissionLevel `json:"auth"`
	InBrowser bool            `json:"in_browser"`
}
