package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"wms-budget/internal/domain"
)

// DBTX *sql.DB 与 *sql.Tx 的公共方法
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore 基于 database/sql 的事务入口
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgresStore
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

// WithTx 开启事务执行 fn，fn 出错或 panic 时回滚
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(newPostgresTx(sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type postgresTx struct {
	budgets  *PostgresBudgetsRepository
	contents *PostgresContentsRepository
	demands  *PostgresDemandsRepository
}

func newPostgresTx(q DBTX) *postgresTx {
	return &postgresTx{
		budgets:  NewPostgresBudgetsRepository(q),
		contents: NewPostgresContentsRepository(q),
		demands:  NewPostgresDemandsRepository(q),
	}
}

func (t *postgresTx) Budgets() BudgetsRepository   { return t.budgets }
func (t *postgresTx) Contents() ContentsRepository { return t.contents }
func (t *postgresTx) Demands() DemandsRepository   { return t.demands }

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02" // 非法 uuid 文本
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// mapWriteError 唯一键/外键冲突映射为 ValidationError，非法 id 映射为 NotFoundError，其余原样包装
func mapWriteError(entity, action string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgUniqueViolation:
			return domain.NewValidationError(entity, "duplicate %s (%s)", entity, pqErr.Constraint)
		case pgForeignKeyViolation:
			return domain.NewValidationError(entity, "referenced row does not exist (%s)", pqErr.Constraint)
		case pgInvalidTextRepr:
			return domain.NewNotFoundError(entity, "%s not found: malformed id", entity)
		}
	}
	return fmt.Errorf("failed to %s %s: %w", action, entity, err)
}

// mapReadError sql.ErrNoRows 与非法 uuid 映射为 NotFoundError
func mapReadError(entity, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) || pqCode(err) == pgInvalidTextRepr {
		return domain.NewNotFoundError(entity, "%s not found: id=%s", entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

// checkAffected UPDATE/DELETE 未命中时返回 NotFoundError
func checkAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError(entity, "%s not found: id=%s", entity, id)
	}
	return nil
}

func nullUUID(s sql.NullString) any {
	if !s.Valid || s.String == "" {
		return nil
	}
	return s.String
}
