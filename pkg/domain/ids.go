// Package domain holds the typed identifiers shared across components.
//
// Typed IDs keep a principal from being passed where a service or group is
// expected. Construct them with the Parse* functions at trust boundaries;
// direct conversion skips validation and is reserved for stores and tests.
package domain

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "poolshare/pkg/domain-errors"
)

// PrincipalID identifies an account holding credit.
type PrincipalID uuid.UUID

// NewPrincipalID generates a random principal id.
func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }

func (id PrincipalID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero UUID.
func (id PrincipalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText lets principal ids appear as JSON strings and map keys.
func (id PrincipalID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText parses a principal id, rejecting the nil UUID.
func (id *PrincipalID) UnmarshalText(b []byte) error {
	parsed, err := ParsePrincipalID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParsePrincipalID parses a non-nil UUID.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal id")
	if err != nil {
		return PrincipalID{}, err
	}
	return PrincipalID(u), nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	if !utf8.ValidString(s) || len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}

// ServiceID is the admin-chosen slug of a service offering, e.g. "video-plus".
type ServiceID string

const maxServiceIDLength = 64

func (id ServiceID) String() string { return string(id) }

// ParseServiceID accepts lowercase ascii letters, digits, '-' and '_'.
func ParseServiceID(s string) (ServiceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "service id cannot be empty")
	}
	if len(s) > maxServiceIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "service id must be 64 characters or less")
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "service id may only contain a-z, 0-9, '-' and '_'")
		}
	}
	return ServiceID(s), nil
}

// GroupID numbers the groups of one service starting at 1.
type GroupID uint64

func (id GroupID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseGroupID parses a positive decimal group number.
func ParseGroupID(s string) (GroupID, error) {
	n, err := parsePositive(s, "group id")
	return GroupID(n), err
}

// ProposalID numbers the proposals of one group starting at 1.
type ProposalID uint64

func (id ProposalID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseProposalID parses a positive decimal proposal number.
func ParseProposalID(s string) (ProposalID, error) {
	n, err := parsePositive(s, "proposal id")
	return ProposalID(n), err
}

func parsePositive(s, what string) (uint64, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+what)
	}
	return n, nil
}

// GroupRef addresses a group within its service.
type GroupRef struct {
	ServiceID ServiceID
	GroupID   GroupID
}

func (r GroupRef) String() string { return r.ServiceID.String() + "/" + r.GroupID.String() }

// ProposalRef addresses a proposal within its group.
type ProposalRef struct {
	GroupRef
	ProposalID ProposalID
}

func (r ProposalRef) String() string { return r.GroupRef.String() + "/" + r.ProposalID.String() }
