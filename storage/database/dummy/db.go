package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/DYJJ/Academic-StarChain-sub001/core"
	"github.com/DYJJ/Academic-StarChain-sub001/core/appeal"
	"github.com/DYJJ/Academic-StarChain-sub001/core/grade"
	"github.com/DYJJ/Academic-StarChain-sub001/core/user"
)

type (
	DB struct {
		txMu sync.Mutex // serializes transactions; one writer at a time

		user   *userTable
		grade  *gradeTable
		appeal *appealTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	gradeTable struct {
		sync.RWMutex
		table map[string]*grade.Grade
		edits map[string][]grade.EditHistory // keyed by grade ID; append-only
	}

	appealTable struct {
		sync.RWMutex
		table map[string]*appeal.Appeal
	}

	// dbTx buffers nothing; writes apply immediately. It only holds the
	// writer lock so read-modify-write sequences stay serialized the way
	// SELECT ... FOR UPDATE does on the SQL backend.
	dbTx struct {
		core.DBExecutor

		db   *DB
		done sync.Once
	}
)

var _ core.DB = (*DB)(nil) // interface compliance check

func Open() (*DB, error) {
	db := &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		grade:  &gradeTable{table: make(map[string]*grade.Grade), edits: make(map[string][]grade.EditHistory)},
		appeal: &appealTable{table: make(map[string]*appeal.Appeal)},
	}
	return db, nil
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (core.DBTransactor, error) {
	db.txMu.Lock()
	return &dbTx{db: db}, nil
}

func (tx *dbTx) end() { tx.done.Do(tx.db.txMu.Unlock) }

func (tx *dbTx) Commit() error { tx.end(); return nil }

func (tx *dbTx) Rollback() error { tx.end(); return nil }
