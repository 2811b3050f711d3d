package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned when a lookup matched no directory entry. It is
// deliberately distinct from transport failures: "no such entry" is an
// answer, an unreachable directory is not.
var ErrNotFound = errors.New("directory: entry not found")

// TransportError wraps a failure to talk to the directory at all. Callers
// must not present these as validation outcomes.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("directory: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a directory transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Attributes is a directory entry as an attribute-name to values mapping.
// The typed accessors cover the handful of keys the pipeline reads.
type Attributes map[string][]string

// First returns the first value for key, or "".
func (a Attributes) First(key string) string {
	if vals := a[key]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Int parses the first value for key as an integer.
func (a Attributes) Int(key string) (int, bool) {
	v := a.First(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Has reports whether the entry carries value under key.
func (a Attributes) Has(key, value string) bool {
	for _, v := range a[key] {
		if v == value {
			return true
		}
	}
	return false
}

// Attribute names the pipeline reads and writes.
const (
	AttrIdentifier   = "uid"
	AttrCommonName   = "cn"
	AttrUIDNumber    = "uidNumber"
	AttrGIDNumber    = "gidNumber"
	AttrHomeDir      = "homeDirectory"
	AttrMail         = "mail"
	AttrPersonRef    = "employeeNumber"
	AttrOrgRef       = "organizationNumber"
	AttrObjectClass  = "objectClass"
	AttrAffiliations = "orgAffiliation"
)

// Client is the account directory as the pipeline consumes it. Lookups
// return ErrNotFound for missing entries and *TransportError when the
// directory cannot be reached.
type Client interface {
	// LookupByExternalRef finds the entry owned by a personal or
	// organizational external reference.
	LookupByExternalRef(ctx context.Context, ref int) (Attributes, error)
	// LookupByIdentifier finds the entry holding an account identifier.
	LookupByIdentifier(ctx context.Context, identifier string) (Attributes, error)
	// Affiliations fetches the upstream affiliation tags for a personal
	// external reference.
	Affiliations(ctx context.Context, ref int) ([]string, error)
	// NextAvailableUID returns the next free numeric account id. Callers
	// must hold the creation lock: the read is not atomic with CreateEntry.
	NextAvailableUID(ctx context.Context) (int, error)
	// CreateEntry writes a new account entry.
	CreateEntry(ctx context.Context, identifier string, attrs Attributes) error
}
