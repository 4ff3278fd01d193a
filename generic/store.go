/*
store.go - Transactional persistence contract shared by the domain packages

PURPOSE:
  Every mutation (create/update/decide/calculate) runs as one unit of
  work. Domain packages describe what their transaction can do (a Tx
  interface); the store runs a function against it atomically.

ATOMICITY:
  WithTx commits when fn returns nil and rolls back otherwise. Nothing
  is retried: a failed commit surfaces as ErrStorageFailure and the
  caller decides whether to retry the whole operation.

UNIQUENESS:
  Period-key uniqueness (TimeRecord, reports, CostCalculation,
  ProjectCost) is enforced by the storage layer itself, so two
  concurrent inserts resolve to exactly one winner. The loser gets
  ErrDuplicateEntry / ErrDuplicateCalculation, never an overwrite.

IMPLEMENTATIONS:
  - store/sqlite: SQLite with unique indexes

SEE ALSO:
  - timesheet/types.go: timesheet.Tx
  - costing/types.go: costing.Tx
*/
package generic

import (
	"context"

	"github.com/google/uuid"
)

// TxRunner executes fn inside a single storage transaction.
type TxRunner[T any] interface {
	WithTx(ctx context.Context, fn func(tx T) error) error
}

// NewID returns a fresh identifier with a readable prefix, e.g. "tr-<uuid>".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
