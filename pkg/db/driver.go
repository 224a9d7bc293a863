package db

import (
	"database/sql"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// DriverName is the sqlite driver registered with the store's SQL functions.
const DriverName = "sqlite3_club"

// FoldFunc is the SQL name of the Unicode-aware lower-casing function. The
// built-in LOWER only folds ASCII.
const FoldFunc = "fold"

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(FoldFunc, strings.ToLower, true)
		},
	})
}
