package proto

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// CallbackPayload is what the wallet publishes to the relay channel once the
// user has acted on a request.
type CallbackPayload struct {
	Sig      string    `json:"sig,omitempty"`
	TX       string    `json:"tx,omitempty"`
	RBN      string    `json:"rbn,omitempty"`
	RID      string    `json:"rid,omitempty"`
	EX       string    `json:"ex,omitempty"`
	Req      string    `json:"req,omitempty"`
	SA       string    `json:"sa,omitempty"`
	SP       string    `json:"sp,omitempty"`
	ChainID  string    `json:"cid,omitempty"`
	LinkCh   string    `json:"link_ch,omitempty"`
	LinkKey  string    `json:"link_key,omitempty"`
	LinkName string    `json:"link_name,omitempty"`
	LinkMeta *LinkMeta `json:"link_meta,omitempty"`

	// Extra signatures, sent as sig0, sig1, ...
	ExtraSigs []string `json:"-"`
}

type callbackPayload CallbackPayload

// UnmarshalJSON collects numbered extra signatures next to the regular
// fields. link_meta may arrive either as an object or as a JSON string.
func (p *CallbackPayload) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var meta json.RawMessage
	if m, ok := raw["link_meta"]; ok {
		meta = m
		delete(raw, "link_meta")
		b, _ = json.Marshal(raw)
	}
	var cp callbackPayload
	if err := json.Unmarshal(b, &cp); err != nil {
		return err
	}
	*p = CallbackPayload(cp)
	if len(meta) > 0 {
		lm, err := parseLinkMeta(meta)
		if err != nil {
			return err
		}
		p.LinkMeta = lm
	}

	type numbered struct {
		n   int
		sig string
	}
	var extra []numbered
	for k, v := range raw {
		if !strings.HasPrefix(k, "sig") || k == "sig" {
			continue
		}
		n, err := strconv.Atoi(k[3:])
		if err != nil {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return err
		}
		extra = append(extra, numbered{n, s})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].n < extra[j].n })
	for _, e := range extra {
		p.ExtraSigs = append(p.ExtraSigs, e.sig)
	}
	return nil
}

// MarshalJSON writes the extra signatures back as sig0, sig1, ...
func (p CallbackPayload) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(callbackPayload(p))
	if err != nil {
		return nil, err
	}
	if len(p.ExtraSigs) == 0 {
		return b, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	for i, s := range p.ExtraSigs {
		v, _ := json.Marshal(s)
		raw["sig"+strconv.Itoa(i)] = v
	}
	return json.Marshal(raw)
}

func parseLinkMeta(b json.RawMessage) (*LinkMeta, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		b = json.RawMessage(s)
	}
	var lm LinkMeta
	if err := json.Unmarshal(b, &lm); err != nil {
		return nil, err
	}
	return &lm, nil
}

// Signatures returns every signature carried by the payload.
func (p CallbackPayload) Signatures() []string {
	var sigs []string
	if p.Sig != "" {
		sigs = append(sigs, p.Sig)
	}
	for _, s := range p.ExtraSigs {
		if s != "" {
			sigs = append(sigs, s)
		}
	}
	return sigs
}

// HasLoginFields reports whether the payload carries everything needed to
// bind a session to a channel.
func (p CallbackPayload) HasLoginFields() bool {
	return p.LinkCh != "" && p.LinkKey != "" && p.LinkName != "" && p.ChainID != ""
}

// Signer returns the signing permission level reported by the wallet.
func (p CallbackPayload) Signer() PermissionLevel {
	return PermissionLevel{Actor: p.SA, Permission: p.SP}
}
