package ledger

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"psync/pkg/models"
)

// GetContact fetches one contact by id.
func (c *Client) GetContact(ctx context.Context, id models.RemotePartyID) (*models.Contact, error) {
	const op = "GetContact"

	var env contactEnvelope
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodGet,
		path:   "/contacts/" + url.PathEscape(string(id)),
		out:    &env,
	})
	if err != nil {
		return nil, err
	}
	contact := env.Contact.model()
	if contact.ID == "" {
		contact.ID = id
	}
	return &contact, nil
}

// SearchContactsByEmail returns contacts whose e-mail equals email, in ledger order.
func (c *Client) SearchContactsByEmail(ctx context.Context, email string) ([]models.Contact, error) {
	return c.searchContacts(ctx, "SearchContactsByEmail", "email", email)
}

// SearchContactsByField returns contacts whose custom field fieldID equals value.
func (c *Client) SearchContactsByField(ctx context.Context, fieldID, value string) ([]models.Contact, error) {
	if strings.TrimSpace(fieldID) == "" {
		return nil, nil
	}
	return c.searchContacts(ctx, "SearchContactsByField", "customFields."+fieldID, value)
}

func (c *Client) searchContacts(ctx context.Context, op, field, value string) ([]models.Contact, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var resp contactSearchResponse
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/contacts/search",
		body: contactSearchRequest{
			LocationID: c.locationID,
			PageLimit:  10,
			Filters:    []contactFilter{{Field: field, Operator: "eq", Value: value}},
		},
		out:  &resp,
		slow: true,
	})
	if err != nil {
		return nil, err
	}

	contacts := make([]models.Contact, 0, len(resp.Contacts))
	for _, d := range resp.Contacts {
		contacts = append(contacts, d.model())
	}
	return contacts, nil
}

// UpdateContactFields writes custom field values on a contact. Fields with an
// empty id are skipped.
func (c *Client) UpdateContactFields(ctx context.Context, id models.RemotePartyID, fields []models.CustomField) error {
	const op = "UpdateContactFields"

	body := contactFieldsRequest{CustomFields: make([]models.CustomField, 0, len(fields))}
	for _, f := range fields {
		if f.ID != "" {
			body.CustomFields = append(body.CustomFields, f)
		}
	}
	if len(body.CustomFields) == 0 {
		return nil
	}
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPut,
		path:   "/contacts/" + url.PathEscape(string(id)),
		body:   body,
		slow:   true,
	})
}

// AddContactTags adds tags to a contact. The ledger merges them with existing tags.
func (c *Client) AddContactTags(ctx context.Context, id models.RemotePartyID, tags []string) error {
	const op = "AddContactTags"

	if len(tags) == 0 {
		return nil
	}
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/contacts/" + url.PathEscape(string(id)) + "/tags",
		body:   tagsRequest{Tags: tags},
	})
}

// ListOpportunities returns the pipeline opportunities linked to a contact.
func (c *Client) ListOpportunities(ctx context.Context, contactID models.RemotePartyID) ([]models.Opportunity, error) {
	const op = "ListOpportunities"

	var resp opportunitySearchResponse
	err := c.do(ctx, call{
		op:     op,
		method: http.MethodPost,
		path:   "/opportunities/search",
		body: opportunitySearchRequest{
			LocationID: c.locationID,
			ContactID:  string(contactID),
			Limit:      100,
		},
		out:  &resp,
		slow: true,
	})
	if err != nil {
		return nil, err
	}

	opps := make([]models.Opportunity, 0, len(resp.Opportunities))
	for _, d := range resp.Opportunities {
		opps = append(opps, d.model())
	}
	return opps, nil
}

// AddOpportunityTags merges tags into an opportunity. The opportunity endpoint
// replaces the tag list, so the current tags are read first.
func (c *Client) AddOpportunityTags(ctx context.Context, opportunityID string, tags []string) error {
	const op = "AddOpportunityTags"

	if len(tags) == 0 {
		return nil
	}
	path := "/opportunities/" + url.PathEscape(opportunityID)

	var env opportunityEnvelope
	if err := c.do(ctx, call{op: op, method: http.MethodGet, path: path, out: &env}); err != nil {
		return fmt.Errorf("%s: reading current tags: %w", op, err)
	}

	if hasAllTags(env.Opportunity.Tags, tags) {
		return nil
	}
	merged := MergeTags(env.Opportunity.Tags, tags)
	return c.do(ctx, call{
		op:     op,
		method: http.MethodPut,
		path:   path,
		body:   opportunityUpdateRequest{Tags: merged},
	})
}

// MergeTags appends the tags in add that are not already in existing,
// comparing case-insensitively and keeping first-seen order.
func MergeTags(existing, add []string) []string {
	seen := make(map[string]bool, len(existing)+len(add))
	out := make([]string, 0, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, t := range list {
			t = strings.TrimSpace(t)
			key := strings.ToLower(t)
			if t == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}

func hasAllTags(existing, want []string) bool {
	have := make(map[string]bool, len(existing))
	for _, t := range existing {
		have[strings.ToLower(strings.TrimSpace(t))] = true
	}
	for _, t := range want {
		if key := strings.ToLower(strings.TrimSpace(t)); key != "" && !have[key] {
			return false
		}
	}
	return true
}
