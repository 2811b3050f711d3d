package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/domain"
)

// similarityThreshold is the largest distance at which an identifier still
// counts as derived from the display name.
const similarityThreshold = 1

// allowedAffiliateTags are the non-employee affiliations that qualify for an
// account, provided the affiliate status has not expired.
var allowedAffiliateTags = []string{
	"AFFILIATE-TYPE-CONSULTANT",
	"AFFILIATE-TYPE-CONTRACTOR",
	"AFFILIATE-TYPE-VOLUNTEER",
}

// PendingStore is the slice of the request store the validator reads.
type PendingStore interface {
	ExistsByIdentifier(ctx context.Context, identifier string) (bool, error)
	ExistsPendingForIdentity(ctx context.Context, req *domain.NewAccountRequest) (bool, error)
}

// Validator classifies a candidate request into fatal errors and warnings.
// It is read-only: every check runs against the directory and the pending
// store without mutating either.
type Validator struct {
	dir              directory.Client
	store            PendingStore
	reservedPrefixes []string
	logger           *zap.Logger
}

// New builds a Validator.
func New(dir directory.Client, store PendingStore, reservedPrefixes []string, logger *zap.Logger) *Validator {
	return &Validator{
		dir:              dir,
		store:            store,
		reservedPrefixes: reservedPrefixes,
		logger:           logger,
	}
}

// Validate runs every check and accumulates findings. The returned error is
// reserved for infrastructure failures (directory or store unreachable);
// expected rejections come back as Issues.
func (v *Validator) Validate(ctx context.Context, req *domain.NewAccountRequest) (errs, warnings []domain.Issue, err error) {
	fatal := func(code, format string, args ...any) {
		errs = append(errs, domain.Issue{
			Severity: domain.SeverityError,
			Code:     code,
			Message:  fmt.Sprintf(format, args...),
		})
	}
	warn := func(code, format string, args ...any) {
		warnings = append(warnings, domain.Issue{
			Severity: domain.SeverityWarning,
			Code:     code,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	if err := v.checkDuplicateIdentity(ctx, req, fatal); err != nil {
		return nil, nil, err
	}

	if !req.IsGroup {
		if err := v.checkEligibility(ctx, req, fatal); err != nil {
			return nil, nil, err
		}
	}

	if err := v.checkIdentifierFree(ctx, req.Identifier, fatal); err != nil {
		return nil, nil, err
	}

	v.checkIdentifierSyntax(req.Identifier, fatal)
	v.checkSimilarity(req, warn)
	v.checkContent(req.Identifier, warn)

	return errs, warnings, nil
}

// checkDuplicateIdentity rejects requests whose external reference already
// owns an account, and requests for an identity that already has a queued
// request. The zero organizational reference is exempt from both.
func (v *Validator) checkDuplicateIdentity(ctx context.Context, req *domain.NewAccountRequest, fatal func(code, format string, args ...any)) error {
	ref := req.PersonalRef
	if req.IsGroup {
		ref = req.OrgRef
	}
	if ref == 0 {
		if !req.IsGroup {
			fatal(domain.IssueUnknownExternalRef, "an individual request needs a personal reference")
		}
		return nil
	}

	_, err := v.dir.LookupByExternalRef(ctx, ref)
	switch {
	case err == nil:
		fatal(domain.IssueDuplicateIdentity, "reference %d already owns an account", ref)
	case errors.Is(err, directory.ErrNotFound):
		// fine, keep checking
	default:
		return err
	}

	pending, err := v.store.ExistsPendingForIdentity(ctx, req)
	if err != nil {
		return fmt.Errorf("request store: %w", err)
	}
	if pending {
		fatal(domain.IssueRequestPending, "a request for reference %d is already awaiting review", ref)
	}
	return nil
}

// checkEligibility applies the affiliation rules for individuals.
func (v *Validator) checkEligibility(ctx context.Context, req *domain.NewAccountRequest, fatal func(code, format string, args ...any)) error {
	tags, err := v.dir.Affiliations(ctx, req.PersonalRef)
	if errors.Is(err, directory.ErrNotFound) {
		fatal(domain.IssueUnknownExternalRef, "reference %d is not known to the upstream directory", req.PersonalRef)
		return nil
	}
	if err != nil {
		return err
	}
	if !Eligible(tags) {
		fatal(domain.IssueNotEligible, "affiliations %v do not qualify for an account", tags)
	}
	return nil
}

// Eligible evaluates the affiliation allow-list: a current allowed affiliate,
// a current academic or staff employee, or a currently registered student.
func Eligible(tags []string) bool {
	has := func(tag string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}

	for _, allowed := range allowedAffiliateTags {
		if has(allowed) && !has("AFFILIATE-STATUS-EXPIRED") {
			return true
		}
	}
	if (has("EMPLOYEE-TYPE-ACADEMIC") || has("EMPLOYEE-TYPE-STAFF")) && !has("EMPLOYEE-STATUS-EXPIRED") {
		return true
	}
	if has("STUDENT-TYPE-REGISTERED") && !has("STUDENT-STATUS-EXPIRED") {
		return true
	}
	return false
}

// checkIdentifierFree rejects identifiers already present in the directory
// or in the pending queue.
func (v *Validator) checkIdentifierFree(ctx context.Context, identifier string, fatal func(code, format string, args ...any)) error {
	_, err := v.dir.LookupByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		fatal(domain.IssueIdentifierTaken, "identifier %q is already in use", identifier)
	case errors.Is(err, directory.ErrNotFound):
	default:
		return err
	}

	queued, err := v.store.ExistsByIdentifier(ctx, identifier)
	if err != nil {
		return fmt.Errorf("request store: %w", err)
	}
	if queued {
		fatal(domain.IssueIdentifierQueued, "identifier %q already has a request awaiting review", identifier)
	}
	return nil
}

func (v *Validator) checkIdentifierSyntax(identifier string, fatal func(code, format string, args ...any)) {
	if len(identifier) < 3 || len(identifier) > 16 {
		fatal(domain.IssueBadIdentifier, "identifier must be between 3 and 16 characters")
		return
	}
	for i := 0; i < len(identifier); i++ {
		if identifier[i] < 'a' || identifier[i] > 'z' {
			fatal(domain.IssueBadIdentifier, "identifier must contain only lowercase letters")
			return
		}
	}
	if _, ok := reservedIdentifiers[identifier]; ok {
		fatal(domain.IssueReservedIdentifier, "identifier %q is reserved", identifier)
		return
	}
	for _, prefix := range v.reservedPrefixes {
		if prefix != "" && strings.HasPrefix(identifier, prefix) {
			fatal(domain.IssueReservedIdentifier, "identifiers starting with %q are reserved", prefix)
			return
		}
	}
}

// checkSimilarity warns when the identifier is not obviously derived from
// the display name. Advisory only: legitimate nicknames exist.
func (v *Validator) checkSimilarity(req *domain.NewAccountRequest, warn func(code, format string, args ...any)) {
	dist, truncated := similarity(req.FullName, req.Identifier)
	if truncated {
		v.logger.Debug("similarity permutation search truncated",
			zap.String("identifier", req.Identifier),
			zap.Int("words", len(splitWords(req.FullName))))
	}
	if dist > similarityThreshold {
		warn(domain.IssueNameMismatch, "identifier %q does not appear to be derived from %q", req.Identifier, req.FullName)
	}
}

func (v *Validator) checkContent(identifier string, warn func(code, format string, args ...any)) {
	for _, word := range restrictedWords {
		if strings.Contains(identifier, word) {
			warn(domain.IssueRestrictedWord, "identifier contains restricted word %q", word)
			break
		}
	}
	for _, word := range profanity {
		if strings.Contains(identifier, word) {
			warn(domain.IssueProfanity, "identifier contains a word likely to offend")
			break
		}
	}
}
