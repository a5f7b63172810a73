// Package contact resolves the CRM contact an order bills against.
package contact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"psync/internal/ledger"
	"psync/internal/logger"
	"psync/pkg/models"
)

// ErrIdentityNotFound is returned when no strategy yields a contact.
var ErrIdentityNotFound = errors.New("client identity not found")

// ErrNoEmail is returned when neither the order nor the CRM has an e-mail for the contact.
var ErrNoEmail = errors.New("contact has no email address")

// Directory is the read side of the CRM the resolver needs.
type Directory interface {
	GetContact(ctx context.Context, id models.RemotePartyID) (*models.Contact, error)
	SearchContactsByEmail(ctx context.Context, email string) ([]models.Contact, error)
	SearchContactsByField(ctx context.Context, fieldID, value string) ([]models.Contact, error)
}

// Resolver maps identity candidates and an e-mail to a RemotePartyID. It never writes.
type Resolver struct {
	dir      Directory
	verify   bool
	jobField string
	log      zerolog.Logger
}

// NewResolver returns a Resolver. With verify set, each candidate is fetched
// and skipped if the CRM does not know it.
func NewResolver(dir Directory, verify bool) *Resolver {
	return &Resolver{
		dir:    dir,
		verify: verify,
		log:    logger.WithComponent("contact-resolver"),
	}
}

// SetJobField enables a last-resort search on the contact custom field fieldID,
// matched against the job number passed to ResolveWithJob.
func (r *Resolver) SetJobField(fieldID string) {
	r.jobField = strings.TrimSpace(fieldID)
}

// Resolve returns the first candidate that resolves, falling back to an
// e-mail search where the first match wins.
func (r *Resolver) Resolve(ctx context.Context, candidates []string, email string) (models.RemotePartyID, error) {
	return r.ResolveWithJob(ctx, candidates, email, "")
}

// ResolveWithJob is Resolve followed, when a job field is set, by a search on
// that field for jobNo.
func (r *Resolver) ResolveWithJob(ctx context.Context, candidates []string, email, jobNo string) (models.RemotePartyID, error) {
	const op = "Resolve"

	for _, c := range candidates {
		id := models.RemotePartyID(strings.TrimSpace(c))
		if id == "" {
			continue
		}
		if !r.verify {
			r.log.Debug().Str("contact_id", id.String()).Msg("Using embedded contact id")
			return id, nil
		}
		if _, err := r.dir.GetContact(ctx, id); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				r.log.Debug().Str("contact_id", id.String()).Msg("Candidate unknown to CRM, trying next")
				continue
			}
			return "", fmt.Errorf("%s: verifying %s: %w", op, id, err)
		}
		return id, nil
	}

	email = strings.TrimSpace(email)
	if email != "" {
		matches, err := r.dir.SearchContactsByEmail(ctx, email)
		if err != nil {
			return "", fmt.Errorf("%s: searching by email: %w", op, err)
		}
		if id, ok := r.first(matches, "email", email); ok {
			return id, nil
		}
	}

	jobNo = strings.TrimSpace(jobNo)
	if r.jobField != "" && jobNo != "" {
		matches, err := r.dir.SearchContactsByField(ctx, r.jobField, jobNo)
		if err != nil {
			return "", fmt.Errorf("%s: searching by job number: %w", op, err)
		}
		if id, ok := r.first(matches, "job_no", jobNo); ok {
			return id, nil
		}
	}

	if email == "" && jobNo == "" {
		return "", fmt.Errorf("%s: %w", op, ErrIdentityNotFound)
	}
	return "", fmt.Errorf("%s: no contact for %s: %w", op, strings.TrimSpace(email+" "+jobNo), ErrIdentityNotFound)
}

// first picks the first match, warning when the key is ambiguous.
func (r *Resolver) first(matches []models.Contact, key, value string) (models.RemotePartyID, bool) {
	if len(matches) == 0 || matches[0].ID == "" {
		return "", false
	}
	if len(matches) > 1 {
		r.log.Warn().
			Str(key, value).
			Int("matches", len(matches)).
			Msg("Several contacts match, using the first")
	}
	return matches[0].ID, true
}

// Lookup returns the CRM's record for id.
func (r *Resolver) Lookup(ctx context.Context, id models.RemotePartyID) (*models.Contact, error) {
	c, err := r.dir.GetContact(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Lookup: %w", err)
	}
	return c, nil
}

// Complete fills the e-mail, phone and address the order lacks from the CRM
// record. It only calls the CRM when the e-mail is missing and fails with
// ErrNoEmail if the CRM has none either.
func (r *Resolver) Complete(ctx context.Context, c models.Contact) (models.Contact, error) {
	if c.Email != "" {
		return c, nil
	}

	remote, err := r.Lookup(ctx, c.ID)
	if err != nil {
		return c, err
	}
	if remote.Email == "" {
		return c, fmt.Errorf("Complete: %s: %w", c.ID, ErrNoEmail)
	}

	c.Email = remote.Email
	if c.Phone == "" {
		c.Phone = remote.Phone
	}
	c.Address = c.Address.Merge(remote.Address)
	if c.Name == "" {
		c.Name = remote.Name
	}
	r.log.Info().Str("contact_id", c.ID.String()).Msg("Filled missing contact details from CRM")
	return c, nil
}
