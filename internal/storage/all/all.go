// Package all registers every storage backend with the factory. Import it
// for side effects from binaries that select the backend at runtime.
package all

import (
	_ "stackslice/internal/storage/mssql"
	_ "stackslice/internal/storage/postgres"
	_ "stackslice/internal/storage/sqlite"
)
