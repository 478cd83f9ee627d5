package store

import (
	"context"
	"fmt"
	"time"
)

// ToolAssignment records which spool is loaded in a tool.
type ToolAssignment struct {
	Tool       int
	SpoolID    int64
	AssignedAt time.Time
}

// LoadToolAssignments returns every persisted tool assignment, ordered by tool.
func (s *Store) LoadToolAssignments(ctx context.Context) ([]ToolAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tool, spoolId, assignedAt FROM spo_toolassignment ORDER BY tool`)
	if err != nil {
		return nil, fmt.Errorf("query tool assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []ToolAssignment
	for rows.Next() {
		var a ToolAssignment
		if err := rows.Scan(&a.Tool, &a.SpoolID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan tool assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// SaveToolAssignment assigns a spool to a tool, replacing any previous
// assignment of that tool.
func (s *Store) SaveToolAssignment(ctx context.Context, tool int, spoolID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spo_toolassignment (tool, spoolId, assignedAt) VALUES (?, ?, ?)
		ON CONFLICT(tool) DO UPDATE SET spoolId = excluded.spoolId, assignedAt = excluded.assignedAt
	`, tool, spoolID, time.Now())
	if err != nil {
		return fmt.Errorf("save tool %d assignment: %w", tool, err)
	}
	return nil
}

// DeleteToolAssignment clears a tool's assignment. Clearing an unassigned
// tool is not an error.
func (s *Store) DeleteToolAssignment(ctx context.Context, tool int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM spo_toolassignment WHERE tool = ?`, tool); err != nil {
		return fmt.Errorf("delete tool %d assignment: %w", tool, err)
	}
	return nil
}
