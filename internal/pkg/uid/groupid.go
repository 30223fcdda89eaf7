// Package uid generates identifiers used by the client.
package uid

import (
	"strings"

	"github.com/google/uuid"
)

const groupSuffixLen = 10

// GroupID generates Kafka consumer group identifiers.
type GroupID struct{}

// NewGroupID returns a consumer group identifier generator.
func NewGroupID() *GroupID {
	return &GroupID{}
}

// Generate returns a random group identifier, prefixed with the username
// associated with the credential in use, if any.
func (g *GroupID) Generate(username string) string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	suffix := raw[:groupSuffixLen]
	if username == "" {
		return suffix
	}
	return username + "-" + suffix
}
