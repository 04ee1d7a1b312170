// Package all links every storage backend into the binary.
package all

import (
	_ "devsurvey/internal/storage/csvfile"
	_ "devsurvey/internal/storage/mssql"
	_ "devsurvey/internal/storage/postgres"
	_ "devsurvey/internal/storage/sqlite"
	_ "devsurvey/internal/storage/xlsx"
)
