// Package output writes job result tables.
//
// A Sink receives the final table of a job and a destination path.
// ParquetSink encodes the table as a Parquet file and writes it through a
// storage.Backend, staging it so that the file only appears once it is
// complete. FormatSink renders the table as CSV or JSON Lines, either to a
// file or, for the destination "-", to a writer such as stdout.
//
// # Parquet layout
//
// Every table column becomes one required leaf column:
//
//	Float64   -> DOUBLE
//	Int64     -> INT64
//	Timestamp -> INT64 (TIMESTAMP, nanoseconds, UTC)
//
// Leaf columns are stored in name order. Pages are Zstd compressed unless
// ParquetOptions says otherwise.
//
// # Formatters
//
// The formatters write rows in table column order:
//
//	f := output.NewCSVFormatter(os.Stdout)
//	if err := f.Format(tbl); err != nil {
//	    return err
//	}
//
// Timestamps are printed as RFC 3339 with nanoseconds. In JSON Lines output
// NaN and infinite values become null.
//
// # Reading back
//
// Inspect and ReadRows open an existing Parquet file to describe its schema
// or preview its rows.
package output
