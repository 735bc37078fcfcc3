package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"renoquote/api/internal/quote"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict indicates a stale expected version on a
	// compare-and-swap write; the caller lost the race and must re-read.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrNoActiveSession indicates no non-finalized review session exists
	// for the thread. Shared with the Redis session backend.
	ErrNoActiveSession = errors.New("store: no active review session")
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateQuoteWithItems inserts a new quote at version 1 together with its
// initial item ledger, atomically.
func (s *PostgresStore) CreateQuoteWithItems(ctx context.Context, q quote.Quote, items []quote.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create quote: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO quotes (id, contractor_id, customer_name, customer_phone, customer_address,
			customer_email, project_description, status, version, total_amount)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,1,$9)
	`, q.ID, q.ContractorID, q.CustomerName, q.CustomerPhone, q.CustomerAddress,
		q.CustomerEmail, q.ProjectDescription, q.Status, quote.Total(items))
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}

	if err := insertItems(ctx, tx, q.ID, 1, items); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create quote: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetQuote(ctx context.Context, id string) (quote.Quote, error) {
	var q quote.Quote
	var status string
	var pdfURL sql.NullString
	var sentAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, contractor_id, customer_name, customer_phone, customer_address,
			customer_email, project_description, status, version, total_amount,
			pdf_url, created_at, updated_at, sent_at
		FROM quotes WHERE id=$1
	`, id).Scan(&q.ID, &q.ContractorID, &q.CustomerName, &q.CustomerPhone, &q.CustomerAddress,
		&q.CustomerEmail, &q.ProjectDescription, &status, &q.Version, &q.TotalAmount,
		&pdfURL, &q.CreatedAt, &q.UpdatedAt, &sentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.Quote{}, ErrNotFound
	}
	if err != nil {
		return quote.Quote{}, fmt.Errorf("get quote: %w", err)
	}
	q.Status = quote.Status(status)
	q.PDFURL = pdfURL.String
	if sentAt.Valid {
		t := sentAt.Time
		q.SentAt = &t
	}
	return q, nil
}

// ReplaceItems persists the next version's ledger wholesale. The quote row
// is bumped with a compare-and-swap on expectedVersion; a stale caller gets
// ErrVersionConflict and no rows change.
func (s *PostgresStore) ReplaceItems(ctx context.Context, quoteID string, expectedVersion int, items []quote.Item) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace items: %w", err)
	}
	defer tx.Rollback()

	newVersion := expectedVersion + 1
	res, err := tx.ExecContext(ctx, `
		UPDATE quotes
		SET version=$1, total_amount=$2, pdf_url=NULL, updated_at=NOW()
		WHERE id=$3 AND version=$4
	`, newVersion, quote.Total(items), quoteID, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("bump quote version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bump quote version: %w", err)
	}
	if affected == 0 {
		return 0, ErrVersionConflict
	}

	if err := insertItems(ctx, tx, quoteID, newVersion, items); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace items: %w", err)
	}
	return newVersion, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, quoteID string, version int, items []quote.Item) error {
	for _, it := range items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quote_items (quote_id, version, item_code, description, quantity,
				unit, unit_price, total_price, category, display_order, confidence_score)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, quoteID, version, nullable(it.ItemCode), it.Description, it.Quantity,
			it.Unit, it.UnitPrice, it.TotalPrice, it.Category, it.DisplayOrder, it.ConfidenceScore)
		if err != nil {
			return fmt.Errorf("insert item %q: %w", it.Description, err)
		}
	}
	return nil
}

// ItemsForVersion loads one version's ledger in display order.
func (s *PostgresStore) ItemsForVersion(ctx context.Context, quoteID string, version int) ([]quote.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(item_code, ''), description, quantity, unit, unit_price,
			total_price, category, display_order, confidence_score
		FROM quote_items
		WHERE quote_id=$1 AND version=$2
		ORDER BY display_order
	`, quoteID, version)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]quote.Item, 0)
	for rows.Next() {
		var it quote.Item
		if err := rows.Scan(&it.ItemCode, &it.Description, &it.Quantity, &it.Unit, &it.UnitPrice,
			&it.TotalPrice, &it.Category, &it.DisplayOrder, &it.ConfidenceScore); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// SetPDFURL records the artifact link, but only while the version is still
// current: a racing edit leaves the newer version's pdf_url unset.
func (s *PostgresStore) SetPDFURL(ctx context.Context, quoteID string, version int, pdfURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET pdf_url=$1, updated_at=NOW() WHERE id=$2 AND version=$3
	`, pdfURL, quoteID, version)
	if err != nil {
		return fmt.Errorf("set pdf url: %w", err)
	}
	return nil
}

// MarkQuoteSent finalizes the quote.
func (s *PostgresStore) MarkQuoteSent(ctx context.Context, quoteID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE quotes SET status=$1, sent_at=NOW(), updated_at=NOW() WHERE id=$2
	`, quote.StatusSent, quoteID)
	if err != nil {
		return fmt.Errorf("mark quote sent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendEdit appends one immutable audit row; rows are never updated or
// deleted afterwards (enforced by trigger in the schema).
func (s *PostgresStore) AppendEdit(ctx context.Context, e quote.Edit) error {
	raw, err := json.Marshal(e.RawCommands)
	if err != nil {
		return fmt.Errorf("marshal edit commands: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quote_edits (quote_id, version_from, version_to, edit_type, raw_commands, confidence_score)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, e.QuoteID, e.VersionFrom, e.VersionTo, e.EditType, raw, e.ConfidenceScore)
	if err != nil {
		return fmt.Errorf("append edit: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEdits(ctx context.Context, quoteID string) ([]quote.Edit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, quote_id, version_from, version_to, edit_type, raw_commands, confidence_score, created_at
		FROM quote_edits WHERE quote_id=$1 ORDER BY version_to
	`, quoteID)
	if err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	defer rows.Close()

	edits := make([]quote.Edit, 0)
	for rows.Next() {
		var e quote.Edit
		var raw []byte
		if err := rows.Scan(&e.ID, &e.QuoteID, &e.VersionFrom, &e.VersionTo, &e.EditType, &raw, &e.ConfidenceScore, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		if err := json.Unmarshal(raw, &e.RawCommands); err != nil {
			return nil, fmt.Errorf("decode edit commands: %w", err)
		}
		edits = append(edits, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edits: %w", err)
	}
	return edits, nil
}

// SearchQuotes is the ILIKE fallback used when Meilisearch is unavailable.
func (s *PostgresStore) SearchQuotes(ctx context.Context, text string, limit int) ([]quote.Quote, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + text + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contractor_id, customer_name, customer_phone, customer_address,
			customer_email, project_description, status, version, total_amount,
			COALESCE(pdf_url, ''), created_at, updated_at
		FROM quotes
		WHERE customer_name ILIKE $1 OR customer_address ILIKE $1 OR project_description ILIKE $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]quote.Quote, 0)
	for rows.Next() {
		var q quote.Quote
		var status string
		if err := rows.Scan(&q.ID, &q.ContractorID, &q.CustomerName, &q.CustomerPhone, &q.CustomerAddress,
			&q.CustomerEmail, &q.ProjectDescription, &status, &q.Version, &q.TotalAmount,
			&q.PDFURL, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		q.Status = quote.Status(status)
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}
	return quotes, nil
}

// SaveSession upserts the review session row for its thread.
func (s *PostgresStore) SaveSession(ctx context.Context, sess quote.ReviewSession) error {
	pending, err := json.Marshal(sess.PendingChanges)
	if err != nil {
		return fmt.Errorf("marshal pending changes: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_sessions (thread_id, quote_id, contractor_id, state, pending_changes, current_version)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (thread_id) DO UPDATE
		SET quote_id=EXCLUDED.quote_id, contractor_id=EXCLUDED.contractor_id,
			state=EXCLUDED.state, pending_changes=EXCLUDED.pending_changes,
			current_version=EXCLUDED.current_version, updated_at=NOW()
	`, sess.ThreadID, sess.QuoteID, sess.ContractorID, sess.State, pending, sess.CurrentVersion)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ActiveSessionByThread returns the non-finalized session for a thread.
// Finalized sessions are invisible here, which is what makes FINALIZED
// terminal.
func (s *PostgresStore) ActiveSessionByThread(ctx context.Context, threadID string) (quote.ReviewSession, error) {
	var sess quote.ReviewSession
	var state string
	var pending []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT thread_id, quote_id, contractor_id, state, pending_changes, current_version, created_at, updated_at
		FROM review_sessions
		WHERE thread_id=$1 AND state <> $2
	`, threadID, string(quote.StateFinalized)).Scan(&sess.ThreadID, &sess.QuoteID, &sess.ContractorID,
		&state, &pending, &sess.CurrentVersion, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.ReviewSession{}, ErrNoActiveSession
	}
	if err != nil {
		return quote.ReviewSession{}, fmt.Errorf("get session: %w", err)
	}
	sess.State = quote.SessionState(state)
	if len(pending) > 0 {
		if err := json.Unmarshal(pending, &sess.PendingChanges); err != nil {
			return quote.ReviewSession{}, fmt.Errorf("decode pending changes: %w", err)
		}
	}
	return sess, nil
}

// FinalizeSession marks the thread's session terminal.
func (s *PostgresStore) FinalizeSession(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE review_sessions SET state=$1, pending_changes=NULL, updated_at=NOW() WHERE thread_id=$2
	`, quote.StateFinalized, threadID)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
