package repository

import "strings"

// sortColumn resolves a user-supplied sort key against an allow-list.
func sortColumn(requested string, allowed map[string]string, fallback string) string {
	if column, ok := allowed[requested]; ok {
		return column
	}
	return fallback
}

// sortOrder normalises a sort direction, defaulting to DESC.
func sortOrder(requested string) string {
	if strings.EqualFold(requested, "ASC") {
		return "ASC"
	}
	return "DESC"
}

// pageWindow clamps pagination inputs and returns (limit, offset).
func pageWindow(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return size, (page - 1) * size
}
