package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
)

// ConnectService is implemented by each service to register its connect handler.
type ConnectService interface {
	RegisterHandler(interceptors ...connect.Interceptor) (string, http.Handler)
}

// Mount registers every service under its path prefix on r.
func Mount(r *mux.Router, services []ConnectService, interceptors ...connect.Interceptor) {
	for _, svc := range services {
		path, handler := svc.RegisterHandler(interceptors...)
		r.PathPrefix(path).Handler(handler)
	}
}
