package repository

import (
	"strings"

	"gorm.io/gorm"
)

// MatchText restricts q to rows where any of columns matches term.
// Postgres uses its full-text operators; other dialects fall back to a
// case-insensitive substring match.
func MatchText(q *gorm.DB, term string, columns ...string) *gorm.DB {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return q
	}

	var (
		conds []string
		args  []interface{}
	)
	if q.Dialector.Name() == "postgres" {
		for _, col := range columns {
			conds = append(conds, "to_tsvector('simple', coalesce("+col+", '')) @@ plainto_tsquery('simple', ?)")
			args = append(args, term)
		}
	} else {
		like := "%" + strings.ToLower(escapeLike(term)) + "%"
		for _, col := range columns {
			conds = append(conds, "LOWER("+col+") LIKE ? ESCAPE '\\'")
			args = append(args, like)
		}
	}

	return q.Where("("+strings.Join(conds, " OR ")+")", args...)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
