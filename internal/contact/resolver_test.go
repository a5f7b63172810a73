package contact_test

import (
	"context"
	"errors"
	"testing"

	"psync/internal/contact"
	"psync/internal/ledger"
	"psync/pkg/models"
)

type fakeDirectory struct {
	contacts map[models.RemotePartyID]models.Contact
	byEmail  map[string][]models.Contact
	byField  map[string][]models.Contact
	gets     int
	searches int
	fieldIDs []string
}

func (f *fakeDirectory) GetContact(_ context.Context, id models.RemotePartyID) (*models.Contact, error) {
	f.gets++
	c, ok := f.contacts[id]
	if !ok {
		return nil, &ledger.APIError{Op: "GetContact", StatusCode: 404, Err: ledger.ErrNotFound}
	}
	return &c, nil
}

func (f *fakeDirectory) SearchContactsByEmail(_ context.Context, email string) ([]models.Contact, error) {
	f.searches++
	return f.byEmail[email], nil
}

func (f *fakeDirectory) SearchContactsByField(_ context.Context, fieldID, value string) ([]models.Contact, error) {
	f.fieldIDs = append(f.fieldIDs, fieldID)
	return f.byField[value], nil
}

func TestResolveDirectIDSkipsLookups(t *testing.T) {
	dir := &fakeDirectory{}
	r := contact.NewResolver(dir, false)

	id, err := r.Resolve(context.Background(), []string{"UWge6H1hK1raUtu1nrAo12"}, "jane@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != "UWge6H1hK1raUtu1nrAo12" {
		t.Errorf("id = %q", id)
	}
	if dir.gets != 0 || dir.searches != 0 {
		t.Errorf("lookups: gets=%d searches=%d, want none", dir.gets, dir.searches)
	}
}

func TestResolveVerifiedSkipsUnknownCandidate(t *testing.T) {
	dir := &fakeDirectory{contacts: map[models.RemotePartyID]models.Contact{"second": {ID: "second"}}}
	r := contact.NewResolver(dir, true)

	id, err := r.Resolve(context.Background(), []string{"first", "second"}, "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != "second" {
		t.Errorf("id = %q, want second", id)
	}
}

func TestResolveFallsBackToEmailFirstMatch(t *testing.T) {
	dir := &fakeDirectory{byEmail: map[string][]models.Contact{
		"jane@example.com": {{ID: "c1"}, {ID: "c2"}},
	}}
	r := contact.NewResolver(dir, true)

	id, err := r.Resolve(context.Background(), nil, "jane@example.com")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if id != "c1" {
		t.Errorf("id = %q, want first match", id)
	}
}

func TestResolveNotFound(t *testing.T) {
	r := contact.NewResolver(&fakeDirectory{}, true)

	if _, err := r.Resolve(context.Background(), []string{"gone"}, "nobody@example.com"); !errors.Is(err, contact.ErrIdentityNotFound) {
		t.Errorf("err = %v, want ErrIdentityNotFound", err)
	}
	if _, err := r.Resolve(context.Background(), nil, ""); !errors.Is(err, contact.ErrIdentityNotFound) {
		t.Errorf("err = %v, want ErrIdentityNotFound", err)
	}
}

func TestCompleteFillsMissingDetails(t *testing.T) {
	dir := &fakeDirectory{contacts: map[models.RemotePartyID]models.Contact{
		"c1": {ID: "c1", Email: "crm@example.com", Phone: "+447400123456", Address: models.Address{City: "York", PostalCode: "YO1"}},
		"c2": {ID: "c2"},
	}}
	r := contact.NewResolver(dir, false)

	got, err := r.Complete(context.Background(), models.Contact{ID: "c1", Address: models.Address{City: "Leeds"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got.Email != "crm@example.com" || got.Phone != "+447400123456" {
		t.Errorf("contact = %+v", got)
	}
	if got.Address.City != "Leeds" || got.Address.PostalCode != "YO1" {
		t.Errorf("address = %+v, want order fields kept and gaps filled", got.Address)
	}

	if _, err := r.Complete(context.Background(), models.Contact{ID: "c2"}); !errors.Is(err, contact.ErrNoEmail) {
		t.Errorf("err = %v, want ErrNoEmail", err)
	}

	before := dir.gets
	if _, err := r.Complete(context.Background(), models.Contact{ID: "c1", Email: "x@example.com"}); err != nil {
		t.Fatal(err)
	}
	if dir.gets != before {
		t.Error("Complete() fetched a contact that already had an e-mail")
	}
}

func TestResolveFallsBackToJobField(t *testing.T) {
	dir := &fakeDirectory{byField: map[string][]models.Contact{"5012_Doe": {{ID: "c7"}}}}
	r := contact.NewResolver(dir, true)

	if _, err := r.ResolveWithJob(context.Background(), nil, "jane@example.com", "5012_Doe"); !errors.Is(err, contact.ErrIdentityNotFound) {
		t.Fatalf("without a job field: err = %v, want ErrIdentityNotFound", err)
	}
	if len(dir.fieldIDs) != 0 {
		t.Errorf("searched by field without one configured: %v", dir.fieldIDs)
	}

	r.SetJobField("82WRQe9Rl6o8uJQ8cgZV")
	id, err := r.ResolveWithJob(context.Background(), nil, "jane@example.com", "5012_Doe")
	if err != nil {
		t.Fatalf("ResolveWithJob() error = %v", err)
	}
	if id != "c7" || dir.searches != 2 {
		t.Errorf("id = %q searches = %d, want c7 after an e-mail miss", id, dir.searches)
	}
	if dir.fieldIDs[0] != "82WRQe9Rl6o8uJQ8cgZV" {
		t.Errorf("field id = %q", dir.fieldIDs[0])
	}
}
