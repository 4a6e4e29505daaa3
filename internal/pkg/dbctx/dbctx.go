// Package dbctx carries the request context and, when a caller opened one,
// the GORM transaction every repository method should run on. Repositories
// fall back to the connection pool when Tx is nil, so single reads and
// multi-statement batches share one method signature.
package dbctx

import (
	"context"

	"gorm.io/gorm"
)

type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}
