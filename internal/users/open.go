package users

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-starter/internal/platform/db"
)

// NewStore returns the Store implementation for the open backend.
func NewStore(conn *db.Conn) (Store, error) {
	switch conn.Driver {
	case db.DriverPostgres:
		return NewPostgresStore(conn.Pool), nil
	case db.DriverBolt:
		return NewBoltStore(conn.Bolt), nil
	default:
		return nil, fmt.Errorf("%w: %s", db.ErrUnsupportedDriver, conn.Driver)
	}
}
