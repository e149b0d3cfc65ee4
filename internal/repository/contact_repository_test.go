package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*ContactRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &ContactRepository{DB: db, Now: func() time.Time { return fixedNow }}, mock
}

var contactColumnNames = []string{
	"id", "linkedin_url", "linkedin_id", "name", "first_name", "last_name", "company", "job_title",
	"status", "variant", "replied_connection", "replied_followup", "followup_attempts",
	"connection_message", "followup_message", "created_at", "updated_at", "last_followup_sent",
}

func contactRow(id int, url, company, status string, attempts int) *sqlmock.Rows {
	created := fixedNow.Add(-48 * time.Hour)
	return sqlmock.NewRows(contactColumnNames).AddRow(
		id, url, "", "Ada Lovelace", "Ada", "Lovelace", company, "Engineer",
		status, "networking", false, false, attempts,
		nil, nil, created, created, nil,
	)
}

func TestUpsertByIdentityCreates(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(insertContactQuery)).
		WithArgs("https://linkedin.com/in/ada", sqlmock.AnyArg(), "Ada Lovelace", "Ada", "Lovelace", "Acme", "Engineer",
			"Invitation sent", "networking", false, false, 0, nil, nil, fixedNow, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	c := &model.Contact{
		LinkedInURL: "  https://linkedin.com/in/ada ",
		Name:        "Ada Lovelace",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Company:     "Acme",
		JobTitle:    "Engineer",
	}
	got, created, err := repo.UpsertByIdentity(context.Background(), c)
	if err != nil {
		t.Fatalf("UpsertByIdentity: %v", err)
	}
	if !created {
		t.Fatal("expected a new contact")
	}
	if got.ID != 7 {
		t.Errorf("expected id 7, got %d", got.ID)
	}
	if got.LinkedInURL != "https://linkedin.com/in/ada" {
		t.Errorf("identity not trimmed: %q", got.LinkedInURL)
	}
	if got.Status != model.StatusInvitationSent || got.Variant != model.VariantNetworking {
		t.Errorf("defaults not applied: %v %v", got.Status, got.Variant)
	}
	if !got.CreatedAt.Equal(fixedNow) || !got.UpdatedAt.Equal(fixedNow) {
		t.Errorf("timestamps not stamped from clock")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertByIdentityReturnsExisting(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(insertContactQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(selectContactByIdentityQuery)).
		WithArgs("https://linkedin.com/in/ada").
		WillReturnRows(contactRow(3, "https://linkedin.com/in/ada", "Acme", "Invitation accepted", 1))

	got, created, err := repo.UpsertByIdentity(context.Background(), &model.Contact{LinkedInURL: "https://linkedin.com/in/ada"})
	if err != nil {
		t.Fatalf("UpsertByIdentity: %v", err)
	}
	if created {
		t.Fatal("expected the existing contact")
	}
	if got.ID != 3 || got.Status != model.StatusInvitationAccepted || got.FollowupAttempts != 1 {
		t.Errorf("unexpected contact: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertByIdentityRejectsEmptyIdentity(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, _, err := repo.UpsertByIdentity(context.Background(), &model.Contact{LinkedInURL: "   "})
	if !errors.Is(err, appErrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpsertByIdentityMapsUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(insertContactQuery)).
		WillReturnError(&pq.Error{Code: "23505", Detail: "Key (linkedin_url) already exists."})

	_, _, err := repo.UpsertByIdentity(context.Background(), &model.Contact{LinkedInURL: "https://linkedin.com/in/ada"})
	if !errors.Is(err, appErrors.ErrDuplicateIdentity) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}
}

func TestGetByIdentityAbsent(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectContactByIdentityQuery)).
		WithArgs("https://linkedin.com/in/nobody").
		WillReturnRows(sqlmock.NewRows(contactColumnNames))

	got, err := repo.GetByIdentity(context.Background(), "https://linkedin.com/in/nobody")
	if err != nil {
		t.Fatalf("GetByIdentity: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestFindBuildsFilter(t *testing.T) {
	repo, mock := newMockRepo(t)

	status := model.StatusInvitationAccepted
	variant := model.VariantMentorship
	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE 1=1 AND status=$1 AND variant=$2 ORDER BY created_at DESC, id DESC")).
		WithArgs("Invitation accepted", "mentorship").
		WillReturnRows(contactRow(1, "https://linkedin.com/in/a", "Acme", "Invitation accepted", 0))

	got, err := repo.Find(context.Background(), model.ContactFilter{Status: &status, Variant: &variant})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 1 || got[0].LinkedInURL != "https://linkedin.com/in/a" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFindWithoutFilterReturnsEmptySlice(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE 1=1 ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(contactColumnNames))

	got, err := repo.Find(context.Background(), model.ContactFilter{})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestUpdateMissingContact(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(updateContactQuery)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectContactByIdentityQuery)).
		WithArgs("https://linkedin.com/in/gone").
		WillReturnRows(sqlmock.NewRows(contactColumnNames))

	c := &model.Contact{LinkedInURL: "https://linkedin.com/in/gone", Status: model.StatusNoResponse, Variant: model.VariantNetworking}
	err := repo.Update(context.Background(), c)
	if !errors.Is(err, appErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateDetectsInterleavedFollowup(t *testing.T) {
	repo, mock := newMockRepo(t)

	// the caller read 0 attempts; a follow-up has since been recorded
	mock.ExpectExec(regexp.QuoteMeta(updateContactQuery)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"https://linkedin.com/in/ada", 0).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(selectContactByIdentityQuery)).
		WithArgs("https://linkedin.com/in/ada").
		WillReturnRows(contactRow(1, "https://linkedin.com/in/ada", "Acme", "Invitation accepted", 1))

	c := &model.Contact{LinkedInURL: "https://linkedin.com/in/ada", Status: model.StatusRepliedConnection, Variant: model.VariantNetworking}
	err := repo.Update(context.Background(), c)
	if !errors.Is(err, appErrors.ErrContactChanged) {
		t.Fatalf("expected contact changed, got %v", err)
	}
	if !c.UpdatedAt.IsZero() {
		t.Error("caller's contact should be untouched on conflict")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecordFollowupIsConditional(t *testing.T) {
	repo, mock := newMockRepo(t)
	sentAt := fixedNow.Add(-time.Minute)

	mock.ExpectExec(regexp.QuoteMeta(recordFollowupQuery)).
		WithArgs("hi", sentAt, "https://linkedin.com/in/ada", 1, "Invitation accepted").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(recordFollowupQuery)).
		WithArgs("hi again", sentAt, "https://linkedin.com/in/ada", 1, "Invitation accepted").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	if err := repo.RecordFollowup(ctx, "https://linkedin.com/in/ada", "hi", 1, sentAt); err != nil {
		t.Fatalf("RecordFollowup: %v", err)
	}
	err := repo.RecordFollowup(ctx, "https://linkedin.com/in/ada", "hi again", 1, sentAt)
	if !errors.Is(err, appErrors.ErrContactChanged) {
		t.Fatalf("expected contact changed for a stale attempt count, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateStampsUpdatedAt(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(updateContactQuery)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			"Replied (Connection request)", "networking", true, false,
			nil, nil, nil, fixedNow, "https://linkedin.com/in/ada", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := &model.Contact{
		LinkedInURL:       "https://linkedin.com/in/ada",
		Status:            model.StatusRepliedConnection,
		Variant:           model.VariantNetworking,
		RepliedConnection: true,
		UpdatedAt:         fixedNow.Add(-time.Hour),
	}
	if err := repo.Update(context.Background(), c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !c.UpdatedAt.Equal(fixedNow) {
		t.Errorf("expected updated_at %v, got %v", fixedNow, c.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	repo, _ := newMockRepo(t)

	err := repo.Update(context.Background(), &model.Contact{LinkedInURL: "https://linkedin.com/in/ada"})
	if !errors.Is(err, appErrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConnectionFailureIsStoreUnavailable(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE 1=1")).
		WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

	_, err := repo.Find(context.Background(), model.ContactFilter{})
	if !errors.Is(err, appErrors.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
}

func TestAnalytics(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM contacts`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY status`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("Invitation sent", 2).
			AddRow("Replied (Connection request)", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY variant`)).
		WillReturnRows(sqlmock.NewRows([]string{"variant", "total", "rc", "rf"}).
			AddRow("networking", 3, 1, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY company`)).
		WillReturnRows(sqlmock.NewRows([]string{"company", "count"}).AddRow("Acme", 2))

	a, err := repo.Analytics(context.Background())
	if err != nil {
		t.Fatalf("Analytics: %v", err)
	}
	if a.TotalContacts != 3 {
		t.Errorf("expected 3 contacts, got %d", a.TotalContacts)
	}
	if a.StatusBreakdown["Invitation sent"] != 2 {
		t.Errorf("unexpected breakdown: %v", a.StatusBreakdown)
	}
	if len(a.VariantPerformance) != 1 || a.VariantPerformance[0].RepliedConnection != 1 {
		t.Errorf("unexpected variant performance: %+v", a.VariantPerformance)
	}
	if len(a.TopCompanies) != 1 || a.TopCompanies[0].Company != "Acme" {
		t.Errorf("unexpected top companies: %+v", a.TopCompanies)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestFilterByCompany(t *testing.T) {
	contacts := []*model.Contact{
		{LinkedInURL: "a", Company: "Acme Corp"},
		{LinkedInURL: "b", Company: "Globex"},
		{LinkedInURL: "c", Company: ""},
		{LinkedInURL: "d", Company: "ACME Labs"},
	}

	got := FilterByCompany(contacts, "acme")
	if len(got) != 2 || got[0].LinkedInURL != "a" || got[1].LinkedInURL != "d" {
		t.Fatalf("unexpected filter result: %+v", got)
	}
	if all := FilterByCompany(contacts, " "); len(all) != len(contacts) {
		t.Fatalf("blank filter should keep everything, got %d", len(all))
	}
}
