package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/metrics"
	"github.com/atlekbai/document_registry/internal/query"
	"github.com/atlekbai/document_registry/internal/schema"
)

// exactCountThreshold is the planner estimate below which we run an exact count.
const exactCountThreshold = 50_000

// Querier is the subset of pgxpool.Pool the service needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ListResult is one page of documents. Results hold raw JSON rows.
type ListResult struct {
	TotalCount int64
	NextCursor *string
	Results    []json.RawMessage
}

// Compiled is the SQL a filter compiles to, for inspection.
type Compiled struct {
	Where     string `json:"where"`
	Args      []any  `json:"args"`
	Query     string `json:"query"`
	QueryArgs []any  `json:"queryArgs"`
	Clauses   int    `json:"clauses"`
}

type DocumentService struct {
	pool     Querier
	cache    *schema.Cache
	compiler *filter.Compiler
	logger   *zap.Logger
}

func NewDocumentService(pool Querier, cache *schema.Cache, compiler *filter.Compiler, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{pool: pool, cache: cache, compiler: compiler, logger: logger}
}

func (s *DocumentService) List(ctx context.Context, schemaName string, in query.ParamsInput) (*ListResult, error) {
	q, err := s.prepare(schemaName, in)
	if err != nil {
		return nil, err
	}
	params := q.params
	builder := query.NewBuilder(q.schema, s.compiler)

	g, gctx := errgroup.WithContext(ctx)

	var totalCount int64
	g.Go(func() error {
		var err error
		totalCount, err = s.resolveCount(gctx, builder, params)
		return err
	})

	var rows []jsonRow
	g.Go(func() error {
		defer observe("list", time.Now())
		sqlStr, args, err := builder.BuildList(params)
		if err != nil {
			return err
		}
		dbRows, err := s.pool.Query(gctx, sqlStr, args...)
		if err != nil {
			return err
		}
		defer dbRows.Close()
		rows, err = scanJSONRows(dbRows, params.Order != nil)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("list documents", zap.String("schema", schemaName), zap.Error(err))
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("query failed: %w", err))
	}

	res := &ListResult{TotalCount: totalCount}

	// Pagination: if we got limit+1 rows, there's a next page.
	if len(rows) > params.Limit {
		rows = rows[:params.Limit]
		last := rows[params.Limit-1]
		encoded := query.EncodeCursor(last.CursorID, last.CursorVal)
		res.NextCursor = &encoded
	}

	res.Results = make([]json.RawMessage, len(rows))
	for i, r := range rows {
		res.Results[i] = r.Data
	}
	return res, nil
}

// Count always returns the exact number of matching documents.
func (s *DocumentService) Count(ctx context.Context, schemaName string, in query.ParamsInput) (int64, error) {
	q, err := s.prepare(schemaName, in)
	if err != nil {
		return 0, err
	}
	defer observe("count", time.Now())

	countSQL, countArgs, err := query.NewBuilder(q.schema, s.compiler).BuildCount(q.params)
	if err != nil {
		return 0, connect.NewError(connect.CodeInternal, fmt.Errorf("build query: %w", err))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&count); err != nil {
		return 0, connect.NewError(connect.CodeInternal, fmt.Errorf("query failed: %w", err))
	}
	return count, nil
}

func (s *DocumentService) Get(ctx context.Context, schemaName, id string) (json.RawMessage, error) {
	sch, err := s.lookup(schemaName)
	if err != nil {
		return nil, err
	}

	docID, err := uuid.Parse(id)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid ID format: %w", err))
	}
	defer observe("get", time.Now())

	sqlStr, args, err := query.NewBuilder(sch, s.compiler).BuildGetByID(docID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("build query: %w", err))
	}

	var data json.RawMessage
	err = s.pool.QueryRow(ctx, sqlStr, args...).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("document not found"))
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("query failed: %w", err))
	}
	return data, nil
}

// Compile returns the SQL a query compiles to without running it.
func (s *DocumentService) Compile(schemaName string, in query.ParamsInput) (*Compiled, error) {
	q, err := s.prepare(schemaName, in)
	if err != nil {
		return nil, err
	}
	builder := query.NewBuilder(q.schema, s.compiler)

	out := &Compiled{Clauses: q.clauses}
	if out.Where, out.Args, err = builder.BuildFilter(q.params); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	if out.Query, out.QueryArgs, err = builder.BuildList(q.params); err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return out, nil
}

func (s *DocumentService) lookup(schemaName string) (*schema.Schema, error) {
	sch := s.cache.Get(schemaName)
	if sch == nil {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no schema registered with name %q", schemaName))
	}
	return sch, nil
}

type prepared struct {
	schema  *schema.Schema
	params  *query.QueryParams
	clauses int
}

// prepare resolves the schema, parses the query and checks that its filter compiles.
func (s *DocumentService) prepare(schemaName string, in query.ParamsInput) (*prepared, error) {
	sch, err := s.lookup(schemaName)
	if err != nil {
		return nil, err
	}

	params, err := query.ParseParams(sch, in)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	where := query.NewWhere()
	err = s.compiler.Compile(where, query.Alias(), sch.Fields, params.Filter)
	metrics.ObserveCompile(where.Len(), err)
	if err != nil {
		var unknownField *filter.UnknownFieldError
		var unknownSchema *filter.UnknownSchemaError
		if errors.As(err, &unknownField) || errors.As(err, &unknownSchema) {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.logger.Debug("filter compiled",
		zap.String("schema", schemaName),
		zap.Int("clauses", where.Len()),
	)
	return &prepared{schema: sch, params: params, clauses: where.Len()}, nil
}

// resolveCount uses the EXPLAIN trick for cheap estimation on large tables,
// falling back to exact count only when the planner estimate is small.
func (s *DocumentService) resolveCount(ctx context.Context, builder query.Builder, params *query.QueryParams) (int64, error) {
	defer observe("count", time.Now())

	estSQL, estArgs, err := builder.BuildEstimate(params)
	if err != nil {
		return 0, err
	}

	var planJSON string
	err = s.pool.QueryRow(ctx, "EXPLAIN (FORMAT JSON) "+estSQL, estArgs...).Scan(&planJSON)
	if err != nil {
		return 0, fmt.Errorf("explain estimate: %w", err)
	}

	estimated := parsePlanRows(planJSON)

	if estimated <= exactCountThreshold {
		countSQL, countArgs, err := builder.BuildCount(params)
		if err != nil {
			return estimated, nil
		}
		var count int64
		if err := s.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&count); err != nil {
			s.logger.Warn("exact count failed, using estimate", zap.Error(err))
			return estimated, nil
		}
		return count, nil
	}

	return estimated, nil
}

func observe(operation string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// jsonRow holds a single result row as raw JSON plus cursor extraction columns.
type jsonRow struct {
	Data      json.RawMessage
	CursorID  string
	CursorVal string
}

func scanJSONRows(rows pgx.Rows, hasOrderVal bool) ([]jsonRow, error) {
	var results []jsonRow
	for rows.Next() {
		var r jsonRow
		var cursorVal *string
		var err error
		if hasOrderVal {
			err = rows.Scan(&r.Data, &r.CursorID, &cursorVal)
		} else {
			err = rows.Scan(&r.Data, &r.CursorID)
		}
		if err != nil {
			return nil, err
		}
		if cursorVal != nil {
			r.CursorVal = *cursorVal
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// parsePlanRows extracts "Plan Rows" from EXPLAIN (FORMAT JSON) output.
func parsePlanRows(planJSON string) int64 {
	var plan []struct {
		Plan struct {
			PlanRows float64 `json:"Plan Rows"`
		} `json:"Plan"`
	}
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil || len(plan) == 0 {
		return 0
	}
	return int64(plan[0].Plan.PlanRows)
}
