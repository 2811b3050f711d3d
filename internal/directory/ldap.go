package directory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// LDAPOptions configures the LDAP-backed directory client.
type LDAPOptions struct {
	URL          string
	BindDN       string
	BindPassword string
	// AccountsBaseDN holds account entries keyed by uid.
	AccountsBaseDN string
	// AffiliateBaseDN holds the upstream people registry the eligibility
	// check reads affiliation tags from.
	AffiliateBaseDN string
	// MinUID is the floor for allocated numeric ids.
	MinUID int
}

// LDAPClient implements Client against an LDAP directory.
type LDAPClient struct {
	opts   LDAPOptions
	logger *zap.Logger

	mu   sync.Mutex
	conn *ldap.Conn
}

// NewLDAPClient builds a client; the connection is dialed lazily.
func NewLDAPClient(opts LDAPOptions, logger *zap.Logger) *LDAPClient {
	if opts.MinUID <= 0 {
		opts.MinUID = 1000
	}
	return &LDAPClient{opts: opts, logger: logger}
}

func (c *LDAPClient) connection() (*ldap.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosing() {
		return c.conn, nil
	}
	conn, err := ldap.DialURL(c.opts.URL)
	if err != nil {
		return nil, err
	}
	if c.opts.BindDN != "" {
		if err := conn.Bind(c.opts.BindDN, c.opts.BindPassword); err != nil {
			conn.Close()
			return nil, err
		}
	}
	c.conn = conn
	return conn, nil
}

func (c *LDAPClient) search(op, baseDN, filter string, attrs []string) ([]*ldap.Entry, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter, attrs, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		// Drop the connection so the next call redials.
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		return nil, &TransportError{Op: op, Err: err}
	}
	return res.Entries, nil
}

func entryAttributes(entry *ldap.Entry) Attributes {
	attrs := make(Attributes, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		attrs[attr.Name] = attr.Values
	}
	return attrs
}

func (c *LDAPClient) LookupByExternalRef(ctx context.Context, ref int) (Attributes, error) {
	filter := fmt.Sprintf("(|(%s=%d)(%s=%d))", AttrPersonRef, ref, AttrOrgRef, ref)
	entries, err := c.search("lookup by external ref", c.opts.AccountsBaseDN, filter, nil)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entryAttributes(entries[0]), nil
}

func (c *LDAPClient) LookupByIdentifier(ctx context.Context, identifier string) (Attributes, error) {
	filter := fmt.Sprintf("(%s=%s)", AttrIdentifier, ldap.EscapeFilter(identifier))
	entries, err := c.search("lookup by identifier", c.opts.AccountsBaseDN, filter, nil)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entryAttributes(entries[0]), nil
}

func (c *LDAPClient) Affiliations(ctx context.Context, ref int) ([]string, error) {
	filter := fmt.Sprintf("(%s=%d)", AttrPersonRef, ref)
	entries, err := c.search("fetch affiliations", c.opts.AffiliateBaseDN, filter, []string{AttrAffiliations})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return entries[0].GetAttributeValues(AttrAffiliations), nil
}

func (c *LDAPClient) NextAvailableUID(ctx context.Context) (int, error) {
	entries, err := c.search("scan uid numbers", c.opts.AccountsBaseDN,
		fmt.Sprintf("(%s=*)", AttrUIDNumber), []string{AttrUIDNumber})
	if err != nil {
		return 0, err
	}
	max := c.opts.MinUID - 1
	for _, entry := range entries {
		n, err := strconv.Atoi(entry.GetAttributeValue(AttrUIDNumber))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1, nil
}

func (c *LDAPClient) CreateEntry(ctx context.Context, identifier string, attrs Attributes) error {
	conn, err := c.connection()
	if err != nil {
		return &TransportError{Op: "create entry", Err: err}
	}
	dn := fmt.Sprintf("%s=%s,%s", AttrIdentifier, ldap.EscapeDN(identifier), c.opts.AccountsBaseDN)
	req := ldap.NewAddRequest(dn, nil)
	for name, values := range attrs {
		req.Attribute(name, values)
	}
	if err := conn.Add(req); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
			return fmt.Errorf("directory: entry %q already exists", identifier)
		}
		return &TransportError{Op: "create entry", Err: err}
	}
	c.logger.Info("directory entry created",
		zap.String("identifier", identifier),
		zap.String("dn", dn))
	return nil
}
