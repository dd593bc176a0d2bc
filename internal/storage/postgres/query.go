package postgres

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// query assembles a SELECT with named bind parameters. Conditions reference
// their arguments as @name, so adding or removing a predicate never shifts
// the position of another.
type query struct {
	sel     string
	conds   []string
	args    pgx.NamedArgs
	orderBy string
	limit   int
}

func newQuery(sel string) *query {
	return &query{sel: sel, args: pgx.NamedArgs{}}
}

// where adds a condition and binds name to value.
func (q *query) where(cond, name string, value any) *query {
	if _, dup := q.args[name]; dup {
		panic(fmt.Sprintf("postgres: bind parameter @%s bound twice", name))
	}
	q.conds = append(q.conds, cond)
	q.args[name] = value
	return q
}

// whereArgs adds a condition that binds several parameters.
func (q *query) whereArgs(cond string, args pgx.NamedArgs) *query {
	for name, value := range args {
		if _, dup := q.args[name]; dup {
			panic(fmt.Sprintf("postgres: bind parameter @%s bound twice", name))
		}
		q.args[name] = value
	}
	q.conds = append(q.conds, cond)
	return q
}

func (q *query) order(by string) *query {
	q.orderBy = by
	return q
}

func (q *query) withLimit(n int) *query {
	q.limit = n
	return q
}

// build returns the SQL text and its named arguments.
func (q *query) build() (string, pgx.NamedArgs) {
	var b strings.Builder
	b.WriteString(q.sel)
	if len(q.conds) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(q.conds, "\n  AND "))
	}
	if q.orderBy != "" {
		b.WriteString("\nORDER BY ")
		b.WriteString(q.orderBy)
	}
	if q.limit > 0 {
		b.WriteString("\nLIMIT @limit")
		q.args["limit"] = q.limit
	}
	return b.String(), q.args
}
