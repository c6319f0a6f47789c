package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/atlekbai/document_registry/internal/filter"
	"github.com/atlekbai/document_registry/internal/query"
)

const DocumentServiceName = "registry.v1.DocumentService"

const (
	ListProcedure    = "/" + DocumentServiceName + "/List"
	GetProcedure     = "/" + DocumentServiceName + "/Get"
	CountProcedure   = "/" + DocumentServiceName + "/Count"
	CompileProcedure = "/" + DocumentServiceName + "/Compile"
)

// RegisterHandler mounts the unary procedures. Requests and responses are
// google.protobuf.Struct messages, so any Connect, gRPC or gRPC-Web client can
// call them without generated stubs.
func (s *DocumentService) RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler) {
	opts := connect.WithInterceptors(interceptors...)
	mux := http.NewServeMux()
	mux.Handle(ListProcedure, connect.NewUnaryHandler(ListProcedure, s.listRPC, opts))
	mux.Handle(GetProcedure, connect.NewUnaryHandler(GetProcedure, s.getRPC, opts))
	mux.Handle(CountProcedure, connect.NewUnaryHandler(CountProcedure, s.countRPC, opts))
	mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, s.compileRPC, opts))
	return "/" + DocumentServiceName + "/", mux
}

func (s *DocumentService) listRPC(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	name, in, err := rpcInput(req.Msg)
	if err != nil {
		return nil, err
	}
	res, err := s.List(ctx, name, in)
	if err != nil {
		return nil, err
	}

	results := make([]any, len(res.Results))
	for i, raw := range res.Results {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("marshal result: %w", err))
		}
		results[i] = doc
	}
	out := map[string]any{
		"totalCount": res.TotalCount,
		"results":    results,
	}
	if res.NextCursor != nil {
		out["nextCursor"] = *res.NextCursor
	}
	return structResponse(out)
}

func (s *DocumentService) getRPC(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	fields := req.Msg.GetFields()
	id := fields["id"].GetStringValue()
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("id is required"))
	}
	data, err := s.Get(ctx, fields["schema"].GetStringValue(), id)
	if err != nil {
		return nil, err
	}
	st, err := rawJSONToStruct(data)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("marshal result: %w", err))
	}
	return connect.NewResponse(st), nil
}

func (s *DocumentService) countRPC(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	name, in, err := rpcInput(req.Msg)
	if err != nil {
		return nil, err
	}
	count, err := s.Count(ctx, name, in)
	if err != nil {
		return nil, err
	}
	return structResponse(map[string]any{"count": count})
}

func (s *DocumentService) compileRPC(_ context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	name, in, err := rpcInput(req.Msg)
	if err != nil {
		return nil, err
	}
	compiled, err := s.Compile(name, in)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(compiled)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	st, err := rawJSONToStruct(b)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

// rpcInput reads {schema, where, filters, order, limit, cursor} from a request.
// where may be a JSON string, which keeps key order, or an object, whose keys
// are applied in sorted order.
func rpcInput(msg *structpb.Struct) (string, query.ParamsInput, error) {
	fields := msg.GetFields()
	name := fields["schema"].GetStringValue()
	if name == "" {
		return "", query.ParamsInput{}, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("schema is required"))
	}

	in := query.ParamsInput{
		Order:  fields["order"].GetStringValue(),
		Cursor: fields["cursor"].GetStringValue(),
		Limit:  int(fields["limit"].GetNumberValue()),
	}

	switch w := fields["where"].GetKind().(type) {
	case nil, *structpb.Value_NullValue:
	case *structpb.Value_StringValue:
		in.Where = []byte(w.StringValue)
	case *structpb.Value_StructValue:
		in.Filter = filter.FromMap(w.StructValue.AsMap())
	default:
		return "", in, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("where must be an object or a JSON string"))
	}

	if f := fields["filters"].GetStructValue(); f != nil {
		in.Filters = make(map[string]string, len(f.GetFields()))
		for k, v := range f.GetFields() {
			in.Filters[k] = v.GetStringValue()
		}
	}
	return name, in, nil
}

func structResponse(m map[string]any) (*connect.Response[structpb.Struct], error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("marshal result: %w", err))
	}
	return connect.NewResponse(st), nil
}

func rawJSONToStruct(data json.RawMessage) (*structpb.Struct, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
