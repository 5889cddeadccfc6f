package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/rug"
)

// =============================================================================
// CLASSIFICATIONS (rug.TxStore interface)
// =============================================================================

// Classifications is the rug.TxStore view of the Store.
type Classifications struct {
	parent *Store
}

func (s *Store) Classifications() *Classifications {
	return &Classifications{parent: s}
}

const classificationColumns = `id, patient_id, assessment_id, rug_group, rug_category,
	adl_sum, iadl_sum, cps_score, flags_json, numeric_rank, therapy_minutes,
	extensive_count, matched_rule, is_current, classified_at, superseded_at`

func (c *Classifications) Current(ctx context.Context, patientID string) (*rug.Classification, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()
	return currentClassification(ctx, c.parent.db, patientID)
}

func (c *Classifications) History(ctx context.Context, patientID string) ([]rug.Classification, error) {
	c.parent.mu.RLock()
	defer c.parent.mu.RUnlock()
	return classificationHistory(ctx, c.parent.db, patientID)
}

func (c *Classifications) Supersede(ctx context.Context, patientID string, at time.Time) error {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	return supersede(ctx, c.parent.db, patientID, at)
}

func (c *Classifications) Insert(ctx context.Context, cl rug.Classification) error {
	c.parent.mu.Lock()
	defer c.parent.mu.Unlock()
	return insertClassification(ctx, c.parent.db, cl)
}

// WithTx executes fn within a database transaction.
func (c *Classifications) WithTx(ctx context.Context, fn func(rug.Store) error) error {
	return c.parent.withTx(ctx, func(q querier) error {
		return fn(&classificationsTx{q: q})
	})
}

type classificationsTx struct {
	q querier
}

func (tx *classificationsTx) Current(ctx context.Context, patientID string) (*rug.Classification, error) {
	return currentClassification(ctx, tx.q, patientID)
}

func (tx *classificationsTx) History(ctx context.Context, patientID string) ([]rug.Classification, error) {
	return classificationHistory(ctx, tx.q, patientID)
}

func (tx *classificationsTx) Supersede(ctx context.Context, patientID string, at time.Time) error {
	return supersede(ctx, tx.q, patientID, at)
}

func (tx *classificationsTx) Insert(ctx context.Context, cl rug.Classification) error {
	return insertClassification(ctx, tx.q, cl)
}

// =============================================================================
// QUERIES
// =============================================================================

func currentClassification(ctx context.Context, q querier, patientID string) (*rug.Classification, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+classificationColumns+" FROM classifications WHERE patient_id = ? AND is_current = 1",
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query current classification: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("classification for patient %s: %w", patientID, generic.ErrNotFound)
	}
	cl, err := scanClassification(rows)
	if err != nil {
		return nil, err
	}
	return &cl, nil
}

func classificationHistory(ctx context.Context, q querier, patientID string) ([]rug.Classification, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+classificationColumns+" FROM classifications WHERE patient_id = ? ORDER BY classified_at DESC, rowid DESC",
		patientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query classifications: %w", err)
	}
	defer rows.Close()

	var out []rug.Classification
	for rows.Next() {
		cl, err := scanClassification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, rows.Err()
}

func supersede(ctx context.Context, q querier, patientID string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		"UPDATE classifications SET is_current = 0, superseded_at = ? WHERE patient_id = ? AND is_current = 1",
		formatTime(at), patientID,
	)
	if err != nil {
		return fmt.Errorf("failed to supersede classification: %w", err)
	}
	return nil
}

func insertClassification(ctx context.Context, q querier, c rug.Classification) error {
	flags := c.Flags
	if flags == nil {
		flags = generic.NewFlags()
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to encode flags: %w", err)
	}

	var supersededAt sql.NullString
	if c.SupersededAt != nil {
		supersededAt = sql.NullString{String: formatTime(*c.SupersededAt), Valid: true}
	}

	query := `
		INSERT INTO classifications (` + classificationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = q.ExecContext(ctx, query,
		c.ID,
		c.PatientID,
		c.AssessmentID,
		string(c.RUGGroup),
		string(c.RUGCategory),
		c.ADLSum,
		c.IADLSum,
		c.CPSScore,
		string(flagsJSON),
		c.NumericRank,
		c.TherapyMinutes,
		c.ExtensiveCount,
		c.MatchedRule,
		boolInt(c.IsCurrent),
		formatTime(c.ClassifiedAt),
		supersededAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("patient %s classification %s: %w", c.PatientID, c.ID, generic.ErrConcurrentModification)
		}
		return fmt.Errorf("failed to insert classification: %w", err)
	}
	return nil
}

func scanClassification(rows *sql.Rows) (rug.Classification, error) {
	var c rug.Classification
	var group, category, flagsJSON, classifiedAt string
	var assessmentID, supersededAt sql.NullString
	var isCurrent int

	err := rows.Scan(
		&c.ID, &c.PatientID, &assessmentID, &group, &category,
		&c.ADLSum, &c.IADLSum, &c.CPSScore, &flagsJSON, &c.NumericRank, &c.TherapyMinutes,
		&c.ExtensiveCount, &c.MatchedRule, &isCurrent, &classifiedAt, &supersededAt,
	)
	if err != nil {
		return c, fmt.Errorf("failed to scan classification: %w", err)
	}

	c.AssessmentID = assessmentID.String
	c.RUGGroup = rug.Group(group)
	c.RUGCategory = rug.Category(category)
	c.IsCurrent = isCurrent == 1
	if err := json.Unmarshal([]byte(flagsJSON), &c.Flags); err != nil {
		return c, fmt.Errorf("failed to decode flags: %w", err)
	}
	if c.ClassifiedAt, err = parseTime(classifiedAt); err != nil {
		return c, fmt.Errorf("failed to parse classified_at: %w", err)
	}
	if supersededAt.Valid {
		ts, err := parseTime(supersededAt.String)
		if err != nil {
			return c, fmt.Errorf("failed to parse superseded_at: %w", err)
		}
		c.SupersededAt = &ts
	}
	return c, nil
}

var _ rug.TxStore = (*Classifications)(nil)
