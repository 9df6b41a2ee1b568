package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/the-bill-must-split/internal/common"
	"github.com/Veraticus/the-bill-must-split/internal/model"
)

// ReceiptRecord is a stored receipt together with the context it was
// classified in.
type ReceiptRecord struct {
	Receipt  *model.ClassifiedReceipt
	Subtotal *decimal.Decimal
	Total    *decimal.Decimal
	Merchant string
	Type     model.ReceiptType
	Language string
}

// Context rebuilds the receipt context for re-validation.
func (r ReceiptRecord) Context() model.ReceiptContext {
	items := r.Receipt.AllItems()
	raw := make([]model.ReceiptItem, len(items))
	for i, item := range items {
		raw[i] = item.Item()
	}
	return model.NewReceiptContext(raw, model.ContextOptions{
		Subtotal:    r.Subtotal,
		Total:       r.Total,
		ReceiptType: r.Type,
		Language:    r.Language,
		Merchant:    r.Merchant,
	})
}

// ReceiptSummary is one row of a receipt listing.
type ReceiptSummary struct {
	CreatedAt       time.Time
	ID              string
	Merchant        string
	Engine          string
	Status          model.ValidationStatus
	ItemCount       int
	TotalConfidence float64
}

// Correction is an audit row for a manual recategorization.
type Correction struct {
	CorrectedAt time.Time
	ReceiptID   string
	ItemID      string
	From        model.ItemCategory
	To          model.ItemCategory
	CorrectedBy string
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil //nolint:nilnil // absent amount
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveReceipt inserts or replaces a receipt with its items and issues.
// Correction history is kept across saves.
func (s *SQLiteStorage) SaveReceipt(ctx context.Context, r *model.ClassifiedReceipt, rctx model.ReceiptContext) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(r); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveReceiptTx(ctx, tx, r, rctx)
	})
}

func saveReceiptTx(ctx context.Context, tx *sql.Tx, r *model.ClassifiedReceipt, rctx model.ReceiptContext) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO receipts (id, engine, status, total_confidence, merchant, receipt_type, language, subtotal, total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			engine = excluded.engine,
			status = excluded.status,
			total_confidence = excluded.total_confidence,
			merchant = excluded.merchant,
			receipt_type = excluded.receipt_type,
			language = excluded.language,
			subtotal = excluded.subtotal,
			total = excluded.total,
			updated_at = CURRENT_TIMESTAMP
	`, r.ID, r.Engine, string(r.ValidationStatus), r.TotalConfidence,
		rctx.MerchantName, string(rctx.ReceiptType), rctx.DetectedLanguage,
		nullDecimal(rctx.SubtotalAmount), nullDecimal(rctx.TotalAmount), createdAt)
	if err != nil {
		return fmt.Errorf("failed to save receipt %s: %w", r.ID, err)
	}

	for _, table := range []string{"receipt_items", "validation_issues"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE receipt_id = ?", r.ID); err != nil {
			return fmt.Errorf("failed to clear %s for receipt %s: %w", table, r.ID, err)
		}
	}

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO receipt_items (id, receipt_id, position, name, original_text, price, category, confidence, method, reasoning, corrected_by, corrected_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare item statement: %w", err)
	}
	defer func() { _ = itemStmt.Close() }()

	for _, item := range r.AllItems() {
		var correctedAt sql.NullTime
		if item.CorrectedAt != nil {
			correctedAt = sql.NullTime{Time: *item.CorrectedAt, Valid: true}
		}
		_, err := itemStmt.ExecContext(ctx,
			item.ID, r.ID, item.Position, item.Name, item.OriginalText, item.Price.String(),
			string(item.Category), item.ClassificationConfidence, string(item.ClassificationMethod),
			item.Reasoning, item.CorrectedBy, correctedAt, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save item %s: %w", item.ID, err)
		}
	}

	for _, issue := range r.Issues {
		affected, err := json.Marshal(issue.AffectedItemIDs)
		if err != nil {
			return fmt.Errorf("failed to encode affected items: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO validation_issues (receipt_id, type, severity, message, affected_item_ids)
			VALUES (?, ?, ?, ?, ?)
		`, r.ID, string(issue.Type), string(issue.Severity), issue.Message, string(affected))
		if err != nil {
			return fmt.Errorf("failed to save issue for receipt %s: %w", r.ID, err)
		}
	}

	return nil
}

// GetReceipt loads a receipt by id, or returns common.ErrNotFound.
func (s *SQLiteStorage) GetReceipt(ctx context.Context, id string) (*ReceiptRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		engine, status, receiptType string
		merchant, language          sql.NullString
		subtotalText, totalText     sql.NullString
		createdAt                   time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT engine, status, merchant, receipt_type, language, subtotal, total, created_at
		FROM receipts WHERE id = ?
	`, id).Scan(&engine, &status, &merchant, &receiptType, &language, &subtotalText, &totalText, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt %s: %w", id, err)
	}

	subtotal, err := parseNullDecimal(subtotalText)
	if err != nil {
		return nil, fmt.Errorf("receipt %s has invalid subtotal: %w", id, err)
	}
	total, err := parseNullDecimal(totalText)
	if err != nil {
		return nil, fmt.Errorf("receipt %s has invalid total: %w", id, err)
	}

	items, err := s.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	issues, err := s.getIssues(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ReceiptRecord{
		Receipt:  model.Rebuild(id, engine, createdAt, items, issues, model.ValidationStatus(status)),
		Subtotal: subtotal,
		Total:    total,
		Merchant: merchant.String,
		Type:     model.ParseReceiptType(receiptType),
		Language: language.String,
	}, nil
}

func (s *SQLiteStorage) getItems(ctx context.Context, receiptID string) ([]model.ClassifiedReceiptItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, position, name, original_text, price, category, confidence, method, reasoning, corrected_by, corrected_at, created_at, updated_at
		FROM receipt_items WHERE receipt_id = ? ORDER BY position
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ClassifiedReceiptItem
	for rows.Next() {
		var (
			item                                 model.ClassifiedReceiptItem
			price, category, method              string
			originalText, reasoning, correctedBy sql.NullString
			correctedAt                          sql.NullTime
		)
		if err := rows.Scan(&item.ID, &item.Position, &item.Name, &originalText, &price, &category,
			&item.ClassificationConfidence, &method, &reasoning, &correctedBy, &correctedAt,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("item %s has invalid price %q: %w", item.ID, price, err)
		}
		item.Category = model.ItemCategory(category)
		item.ClassificationMethod = model.ClassificationMethod(method)
		item.OriginalText = originalText.String
		item.Reasoning = reasoning.String
		item.CorrectedBy = correctedBy.String
		if correctedAt.Valid {
			at := correctedAt.Time
			item.CorrectedAt = &at
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

func (s *SQLiteStorage) getIssues(ctx context.Context, receiptID string) ([]model.ValidationIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, severity, message, affected_item_ids
		FROM validation_issues WHERE receipt_id = ? ORDER BY id
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []model.ValidationIssue
	for rows.Next() {
		var (
			issue               model.ValidationIssue
			issueType, severity string
			affected            sql.NullString
		)
		if err := rows.Scan(&issueType, &severity, &issue.Message, &affected); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.Type = model.IssueType(issueType)
		issue.Severity = model.IssueSeverity(severity)
		if affected.Valid && affected.String != "" && affected.String != "null" {
			if err := json.Unmarshal([]byte(affected.String), &issue.AffectedItemIDs); err != nil {
				return nil, fmt.Errorf("failed to decode affected items: %w", err)
			}
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}
	return issues, nil
}

// ListReceipts returns the most recent receipts first. A non-positive limit
// returns all of them.
func (s *SQLiteStorage) ListReceipts(ctx context.Context, limit int) ([]ReceiptSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.merchant, r.engine, r.status, r.total_confidence, r.created_at,
			(SELECT COUNT(*) FROM receipt_items i WHERE i.receipt_id = r.id)
		FROM receipts r
		ORDER BY r.created_at DESC, r.id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []ReceiptSummary
	for rows.Next() {
		var (
			summary  ReceiptSummary
			merchant sql.NullString
			status   string
		)
		if err := rows.Scan(&summary.ID, &merchant, &summary.Engine, &status,
			&summary.TotalConfidence, &summary.CreatedAt, &summary.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		summary.Merchant = merchant.String
		summary.Status = model.ValidationStatus(status)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate receipts: %w", err)
	}
	return summaries, nil
}

// DeleteReceipt removes a receipt and everything attached to it.
func (s *SQLiteStorage) DeleteReceipt(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete receipt %s: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// ApplyCorrection saves the corrected receipt and records the correction
// in one transaction.
func (s *SQLiteStorage) ApplyCorrection(ctx context.Context, r *model.ClassifiedReceipt, rctx model.ReceiptContext, c Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(r); err != nil {
		return err
	}
	if err := validateString(c.ItemID, "itemID"); err != nil {
		return err
	}
	if _, ok := r.Item(c.ItemID); !ok {
		return fmt.Errorf("item %s: %w", c.ItemID, common.ErrNotFound)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveReceiptTx(ctx, tx, r, rctx); err != nil {
			return err
		}

		at := c.CorrectedAt
		if at.IsZero() {
			at = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO item_corrections (receipt_id, item_id, from_category, to_category, corrected_by, corrected_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, r.ID, c.ItemID, string(c.From), string(c.To), c.CorrectedBy, at)
		if err != nil {
			return fmt.Errorf("failed to record correction: %w", err)
		}
		return nil
	})
}

// ListCorrections returns the correction history of a receipt, oldest first.
func (s *SQLiteStorage) ListCorrections(ctx context.Context, receiptID string) ([]Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT receipt_id, item_id, from_category, to_category, corrected_by, corrected_at
		FROM item_corrections WHERE receipt_id = ? ORDER BY id
	`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var corrections []Correction
	for rows.Next() {
		var (
			c        Correction
			from, to string
			by       sql.NullString
		)
		if err := rows.Scan(&c.ReceiptID, &c.ItemID, &from, &to, &by, &c.CorrectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.From = model.ItemCategory(from)
		c.To = model.ItemCategory(to)
		c.CorrectedBy = by.String
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrections: %w", err)
	}
	return corrections, nil
}
