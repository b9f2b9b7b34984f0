package service

import (
	"context"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/query"
)

// List returns the rows of table matching p. Reserved keys (limit, offset,
// orderBy, orderDir) control paging; all other keys are filters.
func (s *Service) List(ctx context.Context, connID, table string, p query.Params) ([]map[string]any, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}

	opts, filters := query.SplitListParams(p)
	opts.CapLimit(s.cfg.MaxLimit)

	stmt, err := s.builder(conn, ts).Select(filters, opts)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, conn, stmt)
}

// Get returns the row whose primary key equals id.
func (s *Service) Get(ctx context.Context, connID, table, id string) (map[string]any, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder(conn, ts).SelectByID(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.fetch(ctx, conn, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "no row in %q with key %s", table, id)
	}
	return rows[0], nil
}

// Create inserts one row.
func (s *Service) Create(ctx context.Context, connID, table string, payload query.Params) (*WriteResult, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder(conn, ts).Insert(payload)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, conn, stmt)
}

// Update changes the row whose primary key equals id.
func (s *Service) Update(ctx context.Context, connID, table, id string, payload query.Params) (*WriteResult, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder(conn, ts).Update(id, payload)
	if err != nil {
		return nil, err
	}
	res, err := s.write(ctx, conn, stmt)
	if err != nil {
		return nil, err
	}
	// Without RETURNING a zero count may only mean "nothing changed".
	if res.Returning && len(res.Rows) == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "no row in %q with key %s", table, id)
	}
	return res, nil
}

// Delete removes the row whose primary key equals id.
func (s *Service) Delete(ctx context.Context, connID, table, id string) (*WriteResult, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder(conn, ts).DeleteByID(id)
	if err != nil {
		return nil, err
	}
	res, err := s.write(ctx, conn, stmt)
	if err != nil {
		return nil, err
	}
	if *res.RowsAffected == 0 {
		return nil, errs.Newf(errs.ErrKindNotFound, "no row in %q with key %s", table, id)
	}
	return res, nil
}

// DeleteWhere removes every row matching filters. It fails with
// ErrKindUnsafeDelete when no filter names a column of the table.
func (s *Service) DeleteWhere(ctx context.Context, connID, table string, filters query.Params) (*WriteResult, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder(conn, ts).DeleteWhere(filters)
	if err != nil {
		return nil, err
	}
	return s.write(ctx, conn, stmt)
}

// Related returns the rows of related linked to the row id of table by a
// foreign key in either direction. fk optionally names the linking column.
func (s *Service) Related(ctx context.Context, connID, table, id, related, fk string) ([]map[string]any, error) {
	conn, ts, err := s.resolve(ctx, connID, table)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.resolve(ctx, connID, related); err != nil {
		return nil, err
	}

	stmt, err := s.builder(conn, ts).Related(related, id, fk)
	if err != nil {
		return nil, err
	}
	return s.fetch(ctx, conn, stmt)
}
