package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/roomies/internal/assignment"
	"github.com/dukerupert/roomies/internal/chore"
	"github.com/dukerupert/roomies/internal/handler"
	"github.com/dukerupert/roomies/internal/household"
	"github.com/dukerupert/roomies/internal/machine"
	"github.com/dukerupert/roomies/internal/middleware"
	"github.com/dukerupert/roomies/internal/store"
	"github.com/dukerupert/roomies/internal/thread"
	"github.com/dukerupert/roomies/internal/view"
	ws "github.com/dukerupert/roomies/internal/websocket"
)

// Options carries the settings the server needs beyond the database.
type Options struct {
	TokenSecret   []byte
	TokenTTL      time.Duration
	// JoinRateLimit is the number of join attempts per IP per minute.
	JoinRateLimit int
	Policy        store.CallPolicy
	Proofs        chore.ProofUploader
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	opts        Options
	directory   *household.Directory
	householdH  *handler.HouseholdHandler
	choreH      *handler.ChoreHandler
	viewH       *handler.ViewHandler
	machineH    *handler.MachineHandler
	threadH     *handler.ThreadHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 30 * 24 * time.Hour
	}
	if opts.JoinRateLimit <= 0 {
		opts.JoinRateLimit = 10
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	directory := household.NewDirectory(db, opts.Policy, hub, logger.With("component", "household"))
	ledger := assignment.NewLedger(db, directory, opts.Policy, hub, logger.With("component", "assignment"))
	chores := chore.NewRepository(db, directory, ledger, opts.Proofs, opts.Policy, hub, logger.With("component", "chore"))
	machines := machine.NewService(db, directory, opts.Policy, hub, logger.With("component", "machine"))
	threads := thread.NewService(db, directory, opts.Policy, hub, logger.With("component", "thread"))
	builder := view.NewBuilder(directory, chores, ledger, logger.With("component", "view"))
	mutations := handler.NewMutations(1024)

	return &Server{
		db:          db,
		hub:         hub,
		opts:        opts,
		directory:   directory,
		householdH:  handler.NewHouseholdHandler(directory, opts.TokenSecret, opts.TokenTTL, logger.With("component", "household_handler")),
		choreH:      handler.NewChoreHandler(chores, ledger, mutations, logger.With("component", "chore_handler")),
		viewH:       handler.NewViewHandler(builder, logger.With("component", "view_handler")),
		machineH:    handler.NewMachineHandler(machines, mutations, logger.With("component", "machine_handler")),
		threadH:     handler.NewThreadHandler(threads, logger.With("component", "thread_handler")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/people", s.rateLimitedHandler(s.householdH.Register))

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequirePerson(s.opts.TokenSecret, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{"status": status, "clients": s.hub.ClientCount()})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.PersonOrIP, s.opts.JoinRateLimit, time.Minute)
	return rl(h).ServeHTTP
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.directory.ResolveHouseholdForPerson, s.logger.With("component", "websocket")))

	mux.HandleFunc("GET /api/me", s.householdH.Me)
	mux.HandleFunc("GET /api/people/{id}/chores", s.choreH.PersonChores)

	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.rateLimitedHandler(s.householdH.Join))
	mux.HandleFunc("POST /api/households/leave", s.householdH.Leave)
	mux.HandleFunc("GET /api/households/{id}", s.householdH.Get)
	mux.HandleFunc("PATCH /api/households/{id}", s.householdH.Rename)
	mux.HandleFunc("GET /api/households/{id}/members", s.householdH.Members)
	mux.HandleFunc("GET /api/households/{id}/view", s.viewH.Household)

	mux.HandleFunc("POST /api/households/{id}/chores", s.choreH.Create)
	mux.HandleFunc("GET /api/households/{id}/chores", s.choreH.List)
	mux.HandleFunc("GET /api/chores/{id}", s.choreH.Get)
	mux.HandleFunc("DELETE /api/chores/{id}", s.choreH.Delete)
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("POST /api/chores/{id}/pass", s.choreH.Pass)
	mux.HandleFunc("GET /api/chores/{id}/assignees", s.choreH.Assignees)
	mux.HandleFunc("POST /api/chores/{id}/assignees", s.choreH.Assign)

	mux.HandleFunc("GET /api/households/{id}/machines", s.machineH.List)
	mux.HandleFunc("POST /api/households/{id}/machines", s.machineH.Create)
	mux.HandleFunc("POST /api/machines/{id}/occupy", s.machineH.Occupy)
	mux.HandleFunc("POST /api/machines/{id}/finish", s.machineH.Finish)

	mux.HandleFunc("GET /api/households/{id}/threads", s.threadH.List)
	mux.HandleFunc("POST /api/households/{id}/threads", s.threadH.Create)
	mux.HandleFunc("GET /api/threads/{id}/messages", s.threadH.Messages)
	mux.HandleFunc("POST /api/threads/{id}/messages", s.threadH.Post)
}
