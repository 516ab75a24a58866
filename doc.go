/*
Package odbcarrow runs SQL through an ODBC driver and returns the result as Apache Arrow data.

# Overview

Row-oriented ODBC result sets are converted into columnar Arrow record batches under bounded
memory, then delivered through one of three sinks:

1. an Arrow IPC stream, written batch by batch (QueryArrowIPC, StreamArrowIPC)
2. a single batch exported through the Arrow C data interface (QueryArrowCData)
3. an in-memory arrow.Table (QueryTable)

The ODBC driver manager (unixODBC, iODBC or odbc32.dll) is loaded at runtime, so the package
needs no ODBC headers at build time. Set ODBCARROW_DRIVER_MANAGER to load a specific library.

# Streaming Example

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/apache/arrow-go/v18/arrow/memory"
		"github.com/semihalev/go-odbcarrow"
	)

	func main() {
		conn := odbcarrow.Connect("employees", "SYSDBA", "masterkey",
			odbcarrow.WithConfig(odbcarrow.QueryConfig{
				BatchSize:         10000,
				ReadOnly:          true,
				ConnectionTimeout: odbcarrow.Uint32(10),
				IsolationLevel:    "read_committed",
			}))

		data, err := conn.QueryArrowIPC(context.Background(), "SELECT id, name FROM employee")
		if err != nil {
			// err is an *odbcarrow.Error carrying its category
			log.Fatalf("query failed: %v", err)
		}

		tbl, err := odbcarrow.DecodeIPC(data, memory.DefaultAllocator)
		if err != nil {
			log.Fatalf("decode failed: %v", err)
		}
		defer tbl.Release()

		fmt.Printf("%d rows, %d columns\n", tbl.NumRows(), tbl.NumCols())
	}

# Zero-Copy Example

	batch, err := conn.QueryArrowCData(ctx, "SELECT * FROM sales")
	if err != nil {
		log.Fatal(err)
	}

	// Give both structures to a C consumer, which now owns them ...
	schema, array, err := batch.Handoff()

	// ... or bring the batch back into Go.
	rec, err := batch.Import()
	defer rec.Release()

A batch that is neither handed off nor imported must be released with Release.

# Connection Targets

The host identifier passed to Connect is resolved into an ODBC connection string:

  - anything containing DRIVER=, SERVER=, DSN= or FILEDSN= is used as given
  - a file path (or an alias longer than 32 characters) gets DRIVER={DriverName} and DBNAME= or DSN=
  - anything else is a DSN alias

Credentials and the optional settings of QueryConfig are appended. Settings that are not
configured never appear in the connection string.

# Errors

Every failure returned by a Connection is an *Error with one of the categories ErrConnection,
ErrSQL, ErrArrow or ErrRuntime. Use IsError to test the category:

	if odbcarrow.IsError(err, odbcarrow.ErrConnection) {
		// retry later
	}

Categories are derived from the driver's diagnostic text, see DefaultRules.
*/
package odbcarrow
