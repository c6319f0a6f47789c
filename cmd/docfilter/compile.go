package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/logging"
	"github.com/atlekbai/document_registry/internal/query"
	"github.com/atlekbai/document_registry/internal/schema"
)

type compileOptions struct {
	catalog  string
	schema   string
	where    string
	strict   bool
	full     bool
	logLevel string
}

type compileOutput struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

func newCompileCmd() *cobra.Command {
	opts := &compileOptions{}
	cmd := &cobra.Command{
		Use:   "compile [filter.json]",
		Short: "Print the SQL condition a filter compiles to",
		Long: `Compile reads a filter expression from a file, from --where, or from stdin
and prints the parameterized SQL it compiles to against the schema catalog.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readFilter(cmd.InOrStdin(), opts.where, args)
			if err != nil {
				return err
			}
			return runCompile(cmd.OutOrStdout(), opts, src)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.catalog, "catalog", "", "path to the JSON schema catalog")
	f.StringVar(&opts.schema, "schema", "", "name of the schema the filter applies to")
	f.StringVar(&opts.where, "where", "", "filter expression (JSON)")
	f.BoolVar(&opts.strict, "strict", false, "fail on unknown fields and schemas")
	f.BoolVar(&opts.full, "full", false, "print the full list query instead of the condition")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level for skipped filter entries")
	cmd.MarkFlagRequired("catalog")
	cmd.MarkFlagRequired("schema")
	return cmd
}

func readFilter(stdin io.Reader, where string, args []string) ([]byte, error) {
	switch {
	case where != "":
		return []byte(where), nil
	case len(args) == 1 && args[0] != "-":
		return os.ReadFile(args[0])
	default:
		return io.ReadAll(stdin)
	}
}

func loadCatalog(path string) (*schema.Cache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return schema.DecodeCatalog(f)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func runCompile(out io.Writer, opts *compileOptions, src []byte) error {
	cache, err := loadCatalog(opts.catalog)
	if err != nil {
		return err
	}
	s := cache.Get(opts.schema)
	if s == nil {
		return fmt.Errorf("schema %q not in catalog", opts.schema)
	}

	logger, err := logging.New(opts.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	expr, err := filter.Parse(src)
	if err != nil {
		return err
	}

	compiler := filter.NewCompiler(cache, filter.WithStrict(opts.strict), filter.WithLogger(logger))
	builder := query.NewBuilder(s, compiler)
	params := &query.QueryParams{Filter: expr, Limit: query.DefaultLimit}

	var res compileOutput
	if opts.full {
		res.SQL, res.Args, err = builder.BuildList(params)
	} else {
		res.SQL, res.Args, err = builder.BuildFilter(params)
	}
	if err != nil {
		return err
	}
	if res.Args == nil {
		res.Args = []any{}
	}

	return writeJSON(out, res)
}
