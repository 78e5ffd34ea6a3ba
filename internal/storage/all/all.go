// Package all wires the built-in storage backends into the factory. Import
// for side effects:
//
//	import _ "synthpipe/internal/storage/all"
//
// This makes the "csvfile", "sqlite", "postgres", and "mysql" sinks
// available to storage.New. Binaries that want a subset can blank-import
// the individual backend packages instead.
package all

import (
	_ "synthpipe/internal/storage/csvfile"
	_ "synthpipe/internal/storage/mysql"
	_ "synthpipe/internal/storage/postgres"
	_ "synthpipe/internal/storage/sqlite"
)
