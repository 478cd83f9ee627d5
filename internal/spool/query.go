package spool

import (
	"fmt"
	"strconv"
	"strings"
)

// SortColumn names a column spools can be ordered by.
type SortColumn string

const (
	SortCreated     SortColumn = ""
	SortDisplayName SortColumn = "displayName"
	SortLastUse     SortColumn = "lastUse"
	SortFirstUse    SortColumn = "firstUse"
	SortRemaining   SortColumn = "remaining"
	SortMaterial    SortColumn = "material"
)

const filterAll = "all"

// ValueFilter restricts a text column. The zero value matches everything.
type ValueFilter struct {
	Enabled bool
	// Values to match. An enabled filter with no values matches only empty
	// column values.
	Values []string
}

// Color is a color code paired with its display name.
type Color struct {
	Code string
	Name string
}

// Query selects, filters and orders a page of spools.
type Query struct {
	Offset int
	Limit  int // 0 means no limit

	Materials ValueFilter
	Vendors   ValueFilter
	Colors    []Color // nil means any color

	OnlyTemplates bool
	HideEmpty     bool
	HideInactive  bool

	Sort       SortColumn
	Descending bool
}

// ParseQuery builds a Query from table-query parameters:
//
//	from, to            offset and page size
//	selectedPageSize    "all" disables paging
//	materialFilter      "all", "" (only unset), or "PLA,PETG"
//	vendorFilter        same as materialFilter
//	colorFilter         "all", "", or "#ff0000;red,#ffff00;yellow"
//	filterName          comma separated: onlyTemplates, hideEmptySpools, hideInactiveSpools
//	sortColumn          displayName, lastUse, firstUse, remaining, material
//	sortOrder           asc or desc
func ParseQuery(params map[string]string) (Query, error) {
	var q Query

	if params["selectedPageSize"] != filterAll {
		var err error
		if q.Offset, err = intParam(params, "from"); err != nil {
			return q, err
		}
		if q.Limit, err = intParam(params, "to"); err != nil {
			return q, err
		}
	}

	if _, ok := params["materialFilter"]; ok {
		q.Materials = parseValueFilter(params["materialFilter"])
		q.Vendors = parseValueFilter(params["vendorFilter"])
		q.Colors = parseColors(params["colorFilter"])
	}

	for _, name := range strings.Split(params["filterName"], ",") {
		switch strings.TrimSpace(name) {
		case "onlyTemplates":
			q.OnlyTemplates = true
		case "hideEmptySpools":
			q.HideEmpty = true
		case "hideInactiveSpools":
			q.HideInactive = true
		}
	}

	switch col := SortColumn(params["sortColumn"]); col {
	case SortDisplayName, SortLastUse, SortFirstUse, SortRemaining, SortMaterial:
		q.Sort = col
	}
	q.Descending = params["sortOrder"] == "desc"

	return q, nil
}

func intParam(params map[string]string, key string) (int, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func parseValueFilter(raw string) ValueFilter {
	raw = strings.TrimSpace(raw)
	if raw == filterAll {
		return ValueFilter{}
	}
	f := ValueFilter{Enabled: true}
	if raw == "" {
		return f
	}
	for _, v := range strings.Split(raw, ",") {
		f.Values = append(f.Values, strings.TrimSpace(v))
	}
	return f
}

func parseColors(raw string) []Color {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == filterAll {
		return nil
	}
	var colors []Color
	for _, item := range strings.Split(raw, ",") {
		code, name, ok := strings.Cut(item, ";")
		if !ok {
			continue
		}
		colors = append(colors, Color{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)})
	}
	return colors
}
