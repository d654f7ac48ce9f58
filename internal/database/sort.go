package database

import "strings"

// SortColumn is one of the fixed columns songs can be listed by. Only values
// produced by ParseSortColumn (or the constants) ever reach a query.
type SortColumn int

const (
	SortByTitle SortColumn = iota
	SortByArtist
	SortByAlbum
	SortByDuration
	SortByUploadedAt
	SortByPlayCount
)

var sortColumns = map[SortColumn]string{
	SortByTitle:      "title",
	SortByArtist:     "artist",
	SortByAlbum:      "album",
	SortByDuration:   "duration",
	SortByUploadedAt: "uploaded_at",
	SortByPlayCount:  "play_count",
}

// ParseSortColumn maps a request value such as "play_count" to a SortColumn.
func ParseSortColumn(name string) (SortColumn, bool) {
	for col, column := range sortColumns {
		if column == name {
			return col, true
		}
	}
	return SortByTitle, false
}

// String returns the column name.
func (c SortColumn) String() string {
	if column, ok := sortColumns[c]; ok {
		return column
	}
	return sortColumns[SortByTitle]
}

// SortOrder is the direction of a listing.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// ParseSortOrder accepts "ASC" or "DESC" in any case.
func ParseSortOrder(order string) (SortOrder, bool) {
	switch strings.ToUpper(order) {
	case "ASC":
		return Ascending, true
	case "DESC":
		return Descending, true
	}
	return Ascending, false
}

// String returns the SQL keyword for the order.
func (o SortOrder) String() string {
	if o == Descending {
		return "DESC"
	}
	return "ASC"
}

// orderByClause builds the ORDER BY clause from the fixed column table. The
// id tie-break keeps DESC the exact reverse of ASC.
func orderByClause(col SortColumn, order SortOrder) string {
	return "ORDER BY " + col.String() + " " + order.String() + ", id " + order.String()
}
