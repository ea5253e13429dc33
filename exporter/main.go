// Command exporter dumps the snapshot state database in formats suitable for
// spreadsheets and ad-hoc inspection.
package main

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/rockcal/rockcal/store"
)

var (
	CSV      = flag.String("csv", "", "write csv to this directory")
	JSON     = flag.String("json", "", "write json to this file")
	Pretty   = flag.Bool("pretty", false, "prettify output (-json)")
	Indent   = flag.String("indent", "  ", "indentation to use when -pretty")
	Timezone = flag.String("timezone", "America/New_York", "timezone to render event times in")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s [options] state.db\n", os.Args[0])
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	loc, err := time.LoadLocation(*Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	slog.Info("loading state", "path", path)
	st, err := store.Open(path, loc)
	if err != nil {
		return err
	}
	defer st.Close()

	if *JSON != "" {
		slog.Info("writing json", "name", *JSON, "pretty", *Pretty)
		snap, err := st.Snapshot()
		if err != nil {
			return err
		}
		if snap == nil {
			return errors.New("state db has no snapshot")
		}
		var buf []byte
		if *Pretty {
			buf, err = json.MarshalIndent(snap, "", *Indent)
		} else {
			buf, err = json.Marshal(snap)
		}
		if err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		if err := os.WriteFile(*JSON, buf, 0o644); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
	}

	if *CSV != "" {
		slog.Info("writing csv", "dir", *CSV)
		if err := os.Mkdir(*CSV, 0o777); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("export csv: %w", err)
		}
		for _, table := range []string{"metadata", "events"} {
			if err := exportCSV(st.DB(), table, filepath.Join(*CSV, table+".csv")); err != nil {
				return fmt.Errorf("export csv: table %s: %w", table, err)
			}
		}
	}

	slog.Info("done")
	return nil
}

func exportCSV(db *sql.DB, table, outname string) error {
	rows, err := db.Query(`SELECT * FROM ` + table)
	if err != nil {
		return err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(outname, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Write(cols)

	var (
		values    = make([]sql.NullString, len(cols))
		valueOuts = make([]any, len(cols))
		valueStrs = make([]string, len(cols))
	)
	for i := range values {
		valueOuts[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(valueOuts...); err != nil {
			return err
		}
		for i, v := range values {
			if v.Valid {
				valueStrs[i] = v.String
			} else {
				valueStrs[i] = ""
			}
		}
		cw.Write(valueStrs)
	}
	cw.Flush()

	if err := rows.Err(); err != nil {
		return err
	}
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}
