package database

import "github.com/koustreak/tablegate/internal/errs"

// mapScanner is implemented by result sets that can fill a map directly
// (the sqlx-backed drivers).
type mapScanner interface {
	MapScan(dest map[string]any) error
}

// ScanRows reads all rows from the result set and returns them as a slice
// of maps, where each key is the column name and each value is the Go-native
// representation of the DB value. Text returned as []byte is converted to
// string so rows serialize as readable JSON.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows; callers do not need to call Close().
func ScanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := make([]map[string]any, 0)
	ms, canMapScan := rows.(mapScanner)

	for rows.Next() {
		row := make(map[string]any, len(columns))

		if canMapScan {
			if err := ms.MapScan(row); err != nil {
				return nil, scanError("failed to scan row", err)
			}
		} else {
			// Allocate scan targets as *any so the driver can write any type.
			dest := make([]any, len(columns))
			destPtrs := make([]any, len(columns))
			for i := range dest {
				destPtrs[i] = &dest[i]
			}
			if err := rows.Scan(destPtrs...); err != nil {
				return nil, scanError("failed to scan row", err)
			}
			for i, col := range columns {
				row[col] = dest[i]
			}
		}

		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, scanError("error during row iteration", err)
	}

	return result, nil
}

// scanError keeps the kind a driver already assigned, e.g. a constraint
// violation raised while stepping an INSERT ... RETURNING.
func scanError(msg string, err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
