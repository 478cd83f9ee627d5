package store

import (
	"strings"

	"github.com/valentindosimont/spoolmanager/internal/spool"
)

func buildWhere(q spool.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)

	addValueFilter := func(column string, f spool.ValueFilter) {
		if !f.Enabled {
			return
		}
		if len(f.Values) == 0 {
			conds = append(conds, "("+column+" = '' OR "+column+" IS NULL)")
			return
		}
		conds = append(conds, column+" IN ("+placeholders(len(f.Values))+")")
		for _, v := range f.Values {
			args = append(args, v)
		}
	}
	addValueFilter("material", q.Materials)
	addValueFilter("vendor", q.Vendors)

	if len(q.Colors) > 0 {
		pairs := make([]string, 0, len(q.Colors))
		for _, c := range q.Colors {
			pairs = append(pairs, "(color = ? AND colorName = ?)")
			args = append(args, c.Code, c.Name)
		}
		conds = append(conds, "("+strings.Join(pairs, " OR ")+")")
	}

	if q.OnlyTemplates {
		conds = append(conds, "isTemplate = 1")
	} else {
		if q.HideEmpty {
			conds = append(conds, "(remainingWeightInGram > 0 OR remainingWeightInGram IS NULL)")
		}
		if q.HideInactive {
			conds = append(conds, "isActive = 1")
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func buildOrder(q spool.Query) string {
	dir := " ASC"
	if q.Descending {
		dir = " DESC"
	}
	switch q.Sort {
	case spool.SortDisplayName:
		return " ORDER BY lower(displayName)" + dir + ", databaseId"
	case spool.SortLastUse:
		return " ORDER BY lastUse" + dir + ", databaseId"
	case spool.SortFirstUse:
		return " ORDER BY firstUse" + dir + ", databaseId"
	case spool.SortRemaining:
		return " ORDER BY remainingWeightInGram" + dir + ", databaseId"
	case spool.SortMaterial:
		return " ORDER BY material" + dir + ", databaseId"
	default:
		return " ORDER BY created DESC, databaseId DESC"
	}
}

func appendPaging(query string, args []any, q spool.Query) (string, []any) {
	switch {
	case q.Limit > 0:
		return query + " LIMIT ? OFFSET ?", append(args, q.Limit, q.Offset)
	case q.Offset > 0:
		return query + " LIMIT -1 OFFSET ?", append(args, q.Offset)
	default:
		return query, args
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
