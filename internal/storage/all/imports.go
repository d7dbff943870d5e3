// Package all wires every built-in storage backend into the storage registry.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each backend, which register their
// dialect and connection constructor with the storage package:
//
//   - "oracle"   (xlsxloader/internal/storage/oracle)
//   - "postgres" (xlsxloader/internal/storage/postgres)
//   - "mssql"    (xlsxloader/internal/storage/mssql)
//   - "mysql"    (xlsxloader/internal/storage/mysql)
//   - "sqlite"   (xlsxloader/internal/storage/sqlite)
//
// A binary that needs only a subset can import the backend packages directly
// instead.
package all

import (
	_ "xlsxloader/internal/storage/mssql"
	_ "xlsxloader/internal/storage/mysql"
	_ "xlsxloader/internal/storage/oracle"
	_ "xlsxloader/internal/storage/postgres"
	_ "xlsxloader/internal/storage/sqlite"
)
