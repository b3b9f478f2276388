package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/evcraddock/canvass/internal/address"
	"github.com/evcraddock/canvass/internal/docstore"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export address records as JSON",
		Long:  "Write every stored address record, with its id, as a JSON array. Reads the local database given by --db; writes to stdout unless a file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			docs, err := docstore.NewSQLite(database).List(cmd.Context(), address.Collection)
			if err != nil {
				return err
			}
			if docs == nil {
				docs = []docstore.Document{}
			}

			if len(args) == 0 {
				return writeExport(os.Stdout, docs)
			}

			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("creating export file: %w", err)
			}
			if err := writeExport(f, docs); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing export file: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Exported %d addresses to %s\n", len(docs), args[0])
			return nil
		},
	}
}

func writeExport(w io.Writer, docs []docstore.Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import address records from JSON",
		Long: `Store the records of an export file under their own ids, replacing records
with the same id. Records in the older format without a history are migrated
the next time the server loads, so restart 'canvass serve' after importing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading import file: %w", err)
			}
			docs, err := parseImport(data)
			if err != nil {
				return err
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(database)

			replaced, err := importDocuments(cmd.Context(), docstore.NewSQLite(database), docs)
			if err != nil {
				return err
			}

			if isJSON() {
				return printJSON(map[string]interface{}{"imported": len(docs), "replaced": replaced})
			}
			fmt.Printf("Imported %d addresses (%d replaced).\n", len(docs), replaced)
			return nil
		},
	}
}

// importDocuments writes docs under their ids and reports how many replaced
// an existing record.
func importDocuments(ctx context.Context, store *docstore.SQLite, docs []docstore.Document) (replaced int, err error) {
	for _, d := range docs {
		_, err := store.Get(ctx, address.Collection, d.ID)
		switch {
		case err == nil:
			replaced++
		case !errors.Is(err, docstore.ErrNotFound):
			return replaced, fmt.Errorf("checking %s: %w", d.ID, err)
		}

		if err := store.Put(ctx, address.Collection, d.ID, d.Data); err != nil {
			return replaced, fmt.Errorf("importing %s: %w", d.ID, err)
		}
	}
	return replaced, nil
}

// parseImport decodes an export file and rejects records without an id or
// with duplicate ids.
func parseImport(data []byte) ([]docstore.Document, error) {
	var docs []docstore.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parsing import file: %w", err)
	}

	seen := make(map[string]bool, len(docs))
	for i, d := range docs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate id %s", id)
		}
		seen[id] = true
		if len(d.Data) == 0 {
			return nil, fmt.Errorf("record %s has no data", id)
		}
		docs[i].ID = id
	}
	return docs, nil
}
