package proto

import (
	"fmt"
	"strings"
)

// ChainDefinition identifies a chain the wallet may authenticate against.
type ChainDefinition struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// PermissionLevel is an actor and one of its permissions.
type PermissionLevel struct {
	Actor      string `json:"actor"`
	Permission string `json:"permission"`
}

// String returns the permission level as actor@permission.
func (p PermissionLevel) String() string {
	return p.Actor + "@" + p.Permission
}

// IsZero reports whether neither actor nor permission are set.
func (p PermissionLevel) IsZero() bool {
	return p.Actor == "" && p.Permission == ""
}

// ParsePermissionLevel parses an actor@permission string.
func ParsePermissionLevel(s string) (PermissionLevel, error) {
	parts := strings.Split(s, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PermissionLevel{}, fmt.Errorf("invalid permission level %q", s)
	}
	return PermissionLevel{Actor: parts[0], Permission: parts[1]}, nil
}

// LoginContext is what an application supplies when asking a user to log
// in. Either Chain or a non-empty Chains list must be set.
type LoginContext struct {
	AppName string
	Chain   *ChainDefinition
	Chains  []ChainDefinition
	// Permission optionally narrows the identity request to a known signer.
	Permission *PermissionLevel
}

// ChainIDs returns the candidate chain ids of the context. A single chain
// takes precedence over the list.
func (lc LoginContext) ChainIDs() []string {
	if lc.Chain != nil && lc.Chain.ID != "" {
		return []string{lc.Chain.ID}
	}
	ids := make([]string, 0, len(lc.Chains))
	for _, c := range lc.Chains {
		if c.ID != "" {
			ids = append(ids, c.ID)
		}
	}
	return ids
}
