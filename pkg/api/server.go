// Package api exposes a read-only view of the engine over REST plus a
// websocket trade feed. Orders never enter through HTTP: order flow
// arrives on the bus only, which keeps the engine single-writer.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantora/matchbook/pkg/book"
	"github.com/quantora/matchbook/pkg/engine"
)

type Server struct {
	eng    *engine.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(eng *engine.Engine, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		eng:    eng,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/positions/{user}", s.handleGetPosition).Methods("GET")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	s.router.HandleFunc("/ws", s.hub.serve)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// PublishFill is the engine's fill hook; it forwards every executed
// trade to websocket subscribers.
func (s *Server) PublishFill(f book.Fill) {
	s.hub.Broadcast(TradeEvent{
		Type:        "trade",
		Asset:       s.eng.Asset(),
		Price:       f.Price,
		Qty:         f.Qty,
		BuyOrderID:  f.BuyOrderID,
		SellOrderID: f.SellOrderID,
		Timestamp:   time.Now().UnixMilli(),
	})
}

// Start serves HTTP until the listener fails. Callers run it in its
// own goroutine.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.log.Infow("api server starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	bids, asks := s.eng.Depth()
	writeJSON(w, http.StatusOK, BookSnapshot{
		Asset:     s.eng.Asset(),
		Bids:      bids,
		Asks:      asks,
		LastPrice: s.eng.Stats().LastPrice,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]
	writeJSON(w, http.StatusOK, PositionInfo{
		UserID:   user,
		Asset:    s.eng.Asset(),
		Position: s.eng.Position(user),
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
