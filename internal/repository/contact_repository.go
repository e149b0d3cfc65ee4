package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/outreach-engine/internal/errors"
	"github.com/unclebandit/outreach-engine/internal/model"
)

// ContactStore is the identity-keyed contact record set the reconciler and
// the follow-up scheduler work against.
type ContactStore interface {
	UpsertByIdentity(ctx context.Context, c *model.Contact) (*model.Contact, bool, error)
	GetByIdentity(ctx context.Context, identity string) (*model.Contact, error)
	Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error)
	Update(ctx context.Context, c *model.Contact) error
	RecordFollowup(ctx context.Context, identity, message string, prevAttempts int, sentAt time.Time) error
}

// ContactRepositoryInterface adds the read models used by the HTTP layer.
type ContactRepositoryInterface interface {
	ContactStore
	Analytics(ctx context.Context) (*model.Analytics, error)
}

type ContactRepository struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{DB: db, Now: time.Now}
}

const contactColumns = `id, linkedin_url, linkedin_id, name, first_name, last_name, company, job_title,
        status, variant, replied_connection, replied_followup, followup_attempts,
        connection_message, followup_message, created_at, updated_at, last_followup_sent`

const insertContactQuery = `
        INSERT INTO contacts (linkedin_url, linkedin_id, name, first_name, last_name, company, job_title,
            status, variant, replied_connection, replied_followup, followup_attempts,
            connection_message, followup_message, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        ON CONFLICT (linkedin_url) DO NOTHING
        RETURNING id
    `

const selectContactByIdentityQuery = `SELECT ` + contactColumns + ` FROM contacts WHERE linkedin_url=$1`

// followup_attempts only advances through recordFollowupQuery; a full update
// carries the count it read and fails if a follow-up landed in between.
const updateContactQuery = `
        UPDATE contacts
        SET linkedin_id=$1, name=$2, first_name=$3, last_name=$4, company=$5, job_title=$6,
            status=$7, variant=$8, replied_connection=$9, replied_followup=$10,
            connection_message=$11, followup_message=$12, last_followup_sent=$13, updated_at=$14
        WHERE linkedin_url=$15 AND followup_attempts=$16
    `

const recordFollowupQuery = `
        UPDATE contacts
        SET followup_message=$1, followup_attempts=followup_attempts+1, last_followup_sent=$2, updated_at=$2
        WHERE linkedin_url=$3 AND followup_attempts=$4 AND status=$5 AND NOT replied_connection
    `

func (r *ContactRepository) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// UpsertByIdentity inserts c unless a contact with the same identity exists.
// On a no-op insert the stored contact is returned with created=false so the
// caller can continue on the update path.
func (r *ContactRepository) UpsertByIdentity(ctx context.Context, c *model.Contact) (*model.Contact, bool, error) {
	c.LinkedInURL = strings.TrimSpace(c.LinkedInURL)
	if c.LinkedInURL == "" {
		return nil, false, appErrors.Validation("contact identity is empty")
	}
	if !c.Status.Valid() {
		c.Status = model.StatusInvitationSent
	}
	if c.Variant == "" {
		c.Variant = model.VariantNetworking
	}

	now := r.now()
	c.CreatedAt = now
	c.UpdatedAt = now

	err := r.DB.QueryRowContext(ctx, insertContactQuery,
		c.LinkedInURL, c.LinkedInID, c.Name, c.FirstName, c.LastName, c.Company, c.JobTitle,
		c.Status, string(c.Variant), c.RepliedConnection, c.RepliedFollowup, c.FollowupAttempts,
		c.ConnectionMessage, c.FollowupMessage, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err == nil {
		return c, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, mapWriteError("insert contact", err)
	}

	existing, err := r.GetByIdentity(ctx, c.LinkedInURL)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// conflicted row vanished between the insert and the read
		return nil, false, appErrors.NewContactNotFound(c.LinkedInURL)
	}
	return existing, false, nil
}

// GetByIdentity returns nil, nil when no contact has the identity.
func (r *ContactRepository) GetByIdentity(ctx context.Context, identity string) (*model.Contact, error) {
	row := r.DB.QueryRowContext(ctx, selectContactByIdentityQuery, strings.TrimSpace(identity))
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapReadError("get contact", err)
	}
	return c, nil
}

// Find lists contacts matching filter, newest-created first.
func (r *ContactRepository) Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, *filter.Status)
		argPos++
	}
	if filter.Variant != nil {
		query += fmt.Sprintf(" AND variant=$%d", argPos)
		args = append(args, string(*filter.Variant))
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapReadError("find contacts", err)
	}
	defer rows.Close()

	contacts := []*model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, mapReadError("scan contact", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, mapReadError("find contacts", err)
	}
	return contacts, nil
}

// Update replaces every mutable field of the stored contact and bumps
// updated_at. The stored follow-up attempt count must still equal
// c.FollowupAttempts, otherwise ErrContactChanged is returned and nothing is
// written.
func (r *ContactRepository) Update(ctx context.Context, c *model.Contact) error {
	if !c.Status.Valid() {
		return appErrors.Validation(fmt.Sprintf("invalid status for %s", c.LinkedInURL))
	}

	updatedAt := r.now()
	if c.LastFollowupSent != nil && c.LastFollowupSent.After(updatedAt) {
		updatedAt = *c.LastFollowupSent
	}

	res, err := r.DB.ExecContext(ctx, updateContactQuery,
		c.LinkedInID, c.Name, c.FirstName, c.LastName, c.Company, c.JobTitle,
		c.Status, string(c.Variant), c.RepliedConnection, c.RepliedFollowup,
		c.ConnectionMessage, c.FollowupMessage, c.LastFollowupSent, updatedAt,
		c.LinkedInURL, c.FollowupAttempts,
	)
	if err != nil {
		return mapWriteError("update contact", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapWriteError("update contact", err)
	}
	if n == 0 {
		return r.missOrChanged(ctx, c.LinkedInURL)
	}
	c.UpdatedAt = updatedAt
	return nil
}

// RecordFollowup stores a follow-up and increments the attempt count in one
// statement. It only applies while the contact still has prevAttempts
// attempts, is in Invitation accepted and has not replied; otherwise
// ErrContactChanged is returned.
func (r *ContactRepository) RecordFollowup(ctx context.Context, identity, message string, prevAttempts int, sentAt time.Time) error {
	res, err := r.DB.ExecContext(ctx, recordFollowupQuery,
		message, sentAt, identity, prevAttempts, model.StatusInvitationAccepted,
	)
	if err != nil {
		return mapWriteError("record follow-up", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapWriteError("record follow-up", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", identity, appErrors.ErrContactChanged)
	}
	return nil
}

func (r *ContactRepository) missOrChanged(ctx context.Context, identity string) error {
	existing, err := r.GetByIdentity(ctx, identity)
	if err != nil {
		return err
	}
	if existing == nil {
		return appErrors.NewContactNotFound(identity)
	}
	return fmt.Errorf("%s: %w", identity, appErrors.ErrContactChanged)
}

// Analytics aggregates status, variant and company counts over all contacts.
func (r *ContactRepository) Analytics(ctx context.Context) (*model.Analytics, error) {
	a := &model.Analytics{
		StatusBreakdown:    map[string]int{},
		VariantPerformance: []model.VariantStats{},
		TopCompanies:       []model.CompanyCount{},
	}

	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&a.TotalContacts); err != nil {
		return nil, mapReadError("count contacts", err)
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM contacts GROUP BY status`)
	if err != nil {
		return nil, mapReadError("status breakdown", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		a.StatusBreakdown[status] = count
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx, `
        SELECT variant,
               COUNT(*),
               SUM(CASE WHEN replied_connection THEN 1 ELSE 0 END),
               SUM(CASE WHEN replied_followup THEN 1 ELSE 0 END)
        FROM contacts
        GROUP BY variant
        ORDER BY variant
    `)
	if err != nil {
		return nil, mapReadError("variant performance", err)
	}
	for rows.Next() {
		var v model.VariantStats
		if err := rows.Scan(&v.Variant, &v.Total, &v.RepliedConnection, &v.RepliedFollowup); err != nil {
			rows.Close()
			return nil, err
		}
		a.VariantPerformance = append(a.VariantPerformance, v)
	}
	rows.Close()

	rows, err = r.DB.QueryContext(ctx, `
        SELECT company, COUNT(*) AS count
        FROM contacts
        WHERE company <> ''
        GROUP BY company
        ORDER BY count DESC
        LIMIT 10
    `)
	if err != nil {
		return nil, mapReadError("top companies", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cc model.CompanyCount
		if err := rows.Scan(&cc.Company, &cc.Count); err != nil {
			return nil, err
		}
		a.TopCompanies = append(a.TopCompanies, cc)
	}
	return a, rows.Err()
}

// FilterByCompany keeps contacts whose company contains company, ignoring case.
func FilterByCompany(contacts []*model.Contact, company string) []*model.Contact {
	company = strings.ToLower(strings.TrimSpace(company))
	if company == "" {
		return contacts
	}
	filtered := []*model.Contact{}
	for _, c := range contacts {
		if c.Company != "" && strings.Contains(strings.ToLower(c.Company), company) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	var variant string
	var connectionMsg, followupMsg sql.NullString
	var lastFollowup sql.NullTime
	err := row.Scan(
		&c.ID, &c.LinkedInURL, &c.LinkedInID, &c.Name, &c.FirstName, &c.LastName, &c.Company, &c.JobTitle,
		&c.Status, &variant, &c.RepliedConnection, &c.RepliedFollowup, &c.FollowupAttempts,
		&connectionMsg, &followupMsg, &c.CreatedAt, &c.UpdatedAt, &lastFollowup,
	)
	if err != nil {
		return nil, err
	}
	c.Variant = model.Variant(variant)
	if connectionMsg.Valid {
		c.ConnectionMessage = &connectionMsg.String
	}
	if followupMsg.Valid {
		c.FollowupMessage = &followupMsg.String
	}
	if lastFollowup.Valid {
		c.LastFollowupSent = &lastFollowup.Time
	}
	return &c, nil
}

const uniqueViolation = "23505"

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, appErrors.ErrDuplicateIdentity, pqErr.Detail)
	}
	return mapReadError(op, err)
}

func mapReadError(op string, err error) error {
	if isConnectionError(err) {
		return appErrors.StoreUnavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	// class 08: connection exception, 57P01-03: admin shutdown / cannot connect now
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, "08") || code == "57P01" || code == "57P02" || code == "57P03"
	}
	return false
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
