// Command journalcat lists journal files for a machine-id/scope selection
// and prints their entries, oldest first, one line per entry.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/appgate/journaldreader/journal"
	"github.com/appgate/journaldreader/journal/codec"
	"github.com/appgate/journaldreader/journal/storage"
)

func main() {
	var (
		root      = flag.String("root", ".", "root directory containing machine-id subdirectories")
		machineID = flag.String("machine-id", "", "32 lowercase hex digit machine id")
		scope     = flag.String("scope", "system", "journal scope, e.g. system or user-1000")
		readWhole = flag.Bool("read-whole", false, "slurp files eagerly instead of memory-mapping them")
		limit     = flag.Int("limit", 0, "stop after this many entries (0 = unbounded)")
		stats     = flag.Bool("stats", false, "print data/field hash table occupancy for the oldest file and exit")
		fields    = flag.Bool("fields", false, "print the distinct field names in the oldest file's field hash table and exit")
	)
	flag.Parse()

	if err := run(*root, *machineID, *scope, *readWhole, *limit, *stats, *fields); err != nil {
		log.Fatal(err)
	}
}

func run(root, machineIDHex, scope string, readWhole bool, limit int, stats, fields bool) error {
	ctx := context.Background()

	var adapter storage.Adapter
	if readWhole {
		adapter = storage.NewReadWhole(root)
	} else {
		adapter = storage.NewOnDisk(root)
	}

	r := journal.NewReader(adapter)

	sel, err := resolveSelection(ctx, r, machineIDHex, scope)
	if err != nil {
		return fmt.Errorf("resolve selection: %w", err)
	}

	if err := r.Select(ctx, sel); err != nil {
		return fmt.Errorf("select %s: %w", sel, err)
	}
	if err := r.Seek(ctx, journal.Seek{Kind: journal.SeekOldest}); err != nil {
		return fmt.Errorf("seek oldest: %w", err)
	}

	if stats {
		return printStats(ctx, r, adapter)
	}
	if fields {
		return printFields(ctx, r)
	}

	it := r.Entries()
	n := 0
	for it.Next(ctx) {
		e := it.Entry()
		fmt.Printf("%d\t%s\t%d items\n", e.Header.Seqnum, codec.MicrosToTime(e.Header.Realtime).Format("2006-01-02T15:04:05.000000Z"), len(e.Items))
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	return it.Err()
}

// printStats reports the occupancy of the currently open file's Data and
// Field hash tables.
func printStats(ctx context.Context, r *journal.Reader, adapter storage.Adapter) error {
	dataTable := r.DataHashTable()
	dataCount, err := dataTable.Count(ctx, adapter)
	if err != nil {
		return fmt.Errorf("count data hash table: %w", err)
	}
	fmt.Printf("data hash table:  %d/%d occupied (%.1f%%)\n", dataCount, dataTable.Capacity, dataTable.FillLevel(dataCount)*100)

	fieldTable := r.FieldHashTable()
	fieldCount, err := fieldTable.Count(ctx, adapter)
	if err != nil {
		return fmt.Errorf("count field hash table: %w", err)
	}
	fmt.Printf("field hash table: %d/%d occupied (%.1f%%)\n", fieldCount, fieldTable.Capacity, fieldTable.FillLevel(fieldCount)*100)

	return nil
}

// printFields lists the distinct field names referenced by the currently
// open file's field hash table, one per line, sorted.
func printFields(ctx context.Context, r *journal.Reader) error {
	names, err := r.FieldNames(ctx)
	if err != nil {
		return fmt.Errorf("field names: %w", err)
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	for _, name := range sorted {
		fmt.Println(name)
	}
	return nil
}

// resolveSelection uses the provided machine-id if any, otherwise picks the
// selection with the matching scope from List(), failing if there isn't
// exactly one.
func resolveSelection(ctx context.Context, r *journal.Reader, machineIDHex, scope string) (journal.Selection, error) {
	if machineIDHex != "" {
		raw, err := hex.DecodeString(strings.ToLower(machineIDHex))
		if err != nil || len(raw) != 16 {
			return journal.Selection{}, fmt.Errorf("invalid -machine-id %q", machineIDHex)
		}
		return journal.Selection{MachineID: codec.ReadU128(raw), Scope: scope}, nil
	}

	all, err := r.List(ctx)
	if err != nil {
		return journal.Selection{}, err
	}
	var matches []journal.Selection
	for sel := range all {
		if sel.Scope == scope {
			matches = append(matches, sel)
		}
	}
	switch len(matches) {
	case 0:
		return journal.Selection{}, fmt.Errorf("no machine-id found for scope %q under this root", scope)
	case 1:
		return matches[0], nil
	default:
		return journal.Selection{}, fmt.Errorf("multiple machine-ids have scope %q; pass -machine-id (found %d)", scope, len(matches))
	}
}
