package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"feedsync/internal/domain"
)

// classify wraps err in a *domain.StoreError according to its SQLSTATE
// class or, for driver and network failures, as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var se *domain.StoreError
	if errors.As(err, &se) {
		return err
	}

	return domain.NewStoreError(kindOf(err), op, err)
}

func kindOf(err error) domain.ErrorKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23":
			// data exception, integrity constraint violation
			return domain.KindValidation
		case "42":
			if pqErr.Code == "42501" {
				return domain.KindAuthorization
			}
			return domain.KindUnknown
		case "28":
			return domain.KindAuthorization
		case "08", "40", "53", "57":
			// connection, rollback, resources, operator intervention
			return domain.KindTransient
		}
		return domain.KindUnknown
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.KindTransient
	}
	return domain.KindUnknown
}
