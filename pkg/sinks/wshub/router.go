package wshub

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// NewRouter builds the HTTP mux a caller mounts the hub under: the
// upgrade endpoint at /ws plus a /healthz probe reporting the current
// peer count, grounded on the teacher's WebSocketManager.HandleWebSocket
// registration pattern (cmd/monitoring/websocket.go), adapted onto
// gorilla/mux instead of the teacher's bespoke path dispatch.
func NewRouter(h *Hub) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/ws", h).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("peers: " + strconv.Itoa(h.PeerCount())))
	}).Methods(http.MethodGet)
	return r
}
