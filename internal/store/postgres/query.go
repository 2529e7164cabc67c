package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// listQuery appends the optional time window, ordering and pagination of
// opts to base. base may already hold positional args; args are appended
// after them.
type listQuery struct {
	sb   strings.Builder
	args []any
}

func newListQuery(base string, args ...any) *listQuery {
	q := &listQuery{args: args}
	q.sb.WriteString(base)
	return q
}

func (q *listQuery) arg(v any) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// window adds the Since/Until bounds on column.
func (q *listQuery) window(column string, opts domain.ListOpts) *listQuery {
	if opts.Since != nil {
		q.sb.WriteString(" AND " + column + " >= " + q.arg(*opts.Since))
	}
	if opts.Until != nil {
		q.sb.WriteString(" AND " + column + " <= " + q.arg(*opts.Until))
	}
	return q
}

// page adds ORDER BY column DESC with LIMIT/OFFSET.
func (q *listQuery) page(column string, opts domain.ListOpts) *listQuery {
	q.sb.WriteString(" ORDER BY " + column + " DESC")
	if opts.Limit > 0 {
		q.sb.WriteString(" LIMIT " + q.arg(opts.Limit))
	}
	if opts.Offset > 0 {
		q.sb.WriteString(" OFFSET " + q.arg(opts.Offset))
	}
	return q
}

func (q *listQuery) String() string { return q.sb.String() }
