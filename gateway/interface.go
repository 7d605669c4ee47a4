package gateway

import (
	"github.com/gorilla/mux"
)

// HTTPHandler is implemented by anything that mounts routes on the shared
// router. The binary composes the server from these.
//
// Example registration:
//
//	func (g *Gateway) RegisterHTTPHandlers(prefix string, r *mux.Router) {
//		api := r.PathPrefix(prefix).Subrouter()
//		api.HandleFunc("/query", g.handleQuery).Methods(http.MethodPost)
//	}
type HTTPHandler interface {
	RegisterHTTPHandlers(prefix string, r *mux.Router)
}
