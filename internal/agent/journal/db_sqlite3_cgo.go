//go:build cgo && sqlite3_cgo

package journal

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"
