// Package memstore is an in-memory workflow.Store backed by go-memdb. Write
// transactions are serialized by memdb; readers see a consistent snapshot.
package memstore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/idempotency"
	"github.com/dbca-wa/science-projects-service-sub000/services/workflow/internal/workflow"

	"github.com/hashicorp/go-memdb"
)

type Store struct {
	db  *memdb.MemDB
	seq atomic.Uint64
}

var (
	_ workflow.Store    = (*Store)(nil)
	_ idempotency.Store = (*Store)(nil)
)

func New() (*Store, error) {
	db, err := memdb.NewMemDB(Schema())
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) View(ctx context.Context, fn func(workflow.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	return fn(&tx{txn: txn, store: s})
}

func (s *Store) Update(ctx context.Context, fn func(workflow.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := fn(&tx{txn: txn, store: s}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// Put inserts or replaces seed records in one transaction. It accepts the
// domain record types the store holds.
func (s *Store) Put(ctx context.Context, records ...any) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	t := &tx{txn: txn, store: s}
	for _, rec := range records {
		var err error
		switch v := rec.(type) {
		case domain.User:
			err = txn.Insert(UserTable, &v)
		case domain.BusinessArea:
			err = txn.Insert(AreaTable, &v)
		case domain.Project:
			err = txn.Insert(ProjectTable, &v)
		case domain.ProjectMember:
			err = txn.Insert(MemberTable, &v)
		case domain.AnnualReport:
			err = txn.Insert(AnnualReportTable, &v)
		case domain.Document:
			err = txn.Insert(DocumentTable, &v)
		case domain.Endorsement:
			err = txn.Insert(EndorsementTable, &v)
		case domain.ReportDetail:
			err = txn.Insert(ReportDetailTable, cloneDetail(v))
		case domain.DocumentEvent:
			err = t.AddEvent(ctx, v)
		default:
			err = fmt.Errorf("memstore: cannot store %T", rec)
		}
		if err != nil {
			return err
		}
	}
	txn.Commit()
	return nil
}

// UserByTokenHash implements authn.UserLookup.
func (s *Store) UserByTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	if tokenHash == "" {
		return domain.User{}, domain.ErrNotFound
	}
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(UserTable, byToken, tokenHash)
	if err != nil {
		return domain.User{}, err
	}
	if raw == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *raw.(*domain.User), nil
}

func (s *Store) GetIdempotencyRecord(ctx context.Context, actorID, key, endpoint string) (*idempotency.Record, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(IdempotencyTable, PK, actorID, key, endpoint)
	if err != nil || raw == nil {
		return nil, err
	}
	rec := *raw.(*idempotency.Record)
	return &rec, nil
}

// SaveIdempotencyRecord keeps the first response stored for a key.
func (s *Store) SaveIdempotencyRecord(ctx context.Context, rec idempotency.Record) error {
	txn := s.db.Txn(true)
	defer txn.Abort()
	existing, err := txn.First(IdempotencyTable, PK, rec.ActorID, rec.IdempotencyKey, rec.Endpoint)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if err := txn.Insert(IdempotencyTable, &rec); err != nil {
		return err
	}
	txn.Commit()
	return nil
}
