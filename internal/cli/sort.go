package cli

import (
	"sort"
	"strings"
)

// SortOrder represents the available sorting options for the sources listing
type SortOrder string

const (
	SortByRegistry SortOrder = "registry"
	SortByName     SortOrder = "name"
	SortByType     SortOrder = "type"
	SortByStatus   SortOrder = "status"
)

func parseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case "":
		return SortByRegistry, nil
	case SortByRegistry, SortByName, SortByType, SortByStatus:
		return order, nil
	}
	return "", usagef("invalid sort order: %s (must be registry, name, type or status)", s)
}

// sortSources sorts rows in place. Registry order is left untouched.
func sortSources(rows []sourceRow, order SortOrder) {
	switch order {
	case SortByName:
		sort.SliceStable(rows, func(i, j int) bool {
			return compareByName(rows[i], rows[j])
		})
	case SortByType:
		sort.SliceStable(rows, func(i, j int) bool {
			if rows[i].Type != rows[j].Type {
				return rows[i].Type < rows[j].Type
			}
			return compareByName(rows[i], rows[j])
		})
	case SortByStatus:
		sort.SliceStable(rows, func(i, j int) bool {
			// enabled first
			if rows[i].Enabled != rows[j].Enabled {
				return rows[i].Enabled
			}
			return compareByName(rows[i], rows[j])
		})
	}
}

func compareByName(i, j sourceRow) bool {
	return strings.ToLower(i.Name) < strings.ToLower(j.Name)
}
