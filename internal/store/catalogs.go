package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/valentindosimont/spoolmanager/internal/spool"
)

// Catalogs collects the distinct vendors, materials, labels and colors in use.
// Empty vendor and material values are included so the "unset" choice can be
// offered by filters.
func (s *Store) Catalogs(ctx context.Context) (*spool.Catalogs, error) {
	vendors, err := s.distinct(ctx, "vendor")
	if err != nil {
		return nil, err
	}
	materials, err := s.distinct(ctx, "material")
	if err != nil {
		return nil, err
	}
	labels, err := s.distinctLabels(ctx)
	if err != nil {
		return nil, err
	}
	colors, err := s.distinctColors(ctx)
	if err != nil {
		return nil, err
	}

	return &spool.Catalogs{
		Vendors:   vendors,
		Materials: materials,
		Labels:    labels,
		Colors:    colors,
	}, nil
}

// column is one of the fixed names above, never user input.
func (s *Store) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT COALESCE(`+column+`, '') AS v FROM spo_spoolmodel ORDER BY v`)
	if err != nil {
		return nil, fmt.Errorf("list %s catalog: %w", column, err)
	}
	defer func() { _ = rows.Close() }()

	values := []string{}
	seen := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *Store) distinctLabels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT labels FROM spo_spoolmodel WHERE labels IS NOT NULL AND labels != ''`)
	if err != nil {
		return nil, fmt.Errorf("list labels catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	set := make(map[string]struct{})
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan labels: %w", err)
		}
		var labels []string
		if err := json.Unmarshal([]byte(raw), &labels); err != nil {
			s.logger.Warn().Err(err).Str("labels", raw).Msg("skipping undecodable labels")
			continue
		}
		for _, l := range labels {
			if l != "" {
				set[l] = struct{}{}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, nil
}

func (s *Store) distinctColors(ctx context.Context) ([]spool.Color, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT color, colorName FROM spo_spoolmodel
		WHERE color IS NOT NULL AND color != ''
		ORDER BY colorName, color
	`)
	if err != nil {
		return nil, fmt.Errorf("list colors catalog: %w", err)
	}
	defer func() { _ = rows.Close() }()

	colors := []spool.Color{}
	for rows.Next() {
		var code, name sql.NullString
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("scan color: %w", err)
		}
		colors = append(colors, spool.Color{Code: code.String, Name: name.String})
	}
	return colors, rows.Err()
}
