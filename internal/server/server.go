package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidebrook/choretally/internal/backup"
	"github.com/tidebrook/choretally/internal/badge"
	"github.com/tidebrook/choretally/internal/handler"
	"github.com/tidebrook/choretally/internal/leaderboard"
	"github.com/tidebrook/choretally/internal/middleware"
	"github.com/tidebrook/choretally/internal/points"
	"github.com/tidebrook/choretally/internal/push"
	"github.com/tidebrook/choretally/internal/redemption"
	"github.com/tidebrook/choretally/internal/store"
	ws "github.com/tidebrook/choretally/internal/websocket"
)

// Config holds everything the server needs beyond the database handle.
type Config struct {
	JWTSecret       []byte
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	UndoWindow      time.Duration
	Backup          backup.Config
}

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	choreH         *handler.ChoreHandler
	pointsH        *handler.PointsHandler
	leaderboardH   *handler.LeaderboardHandler
	badgeH         *handler.BadgeHandler
	redemptionH    *handler.RedemptionHandler
	pushH          *handler.PushHandler
	backupH        *handler.BackupHandler
	householdStore *store.HouseholdStore
	rateLimiter    *middleware.RateLimiter
	backupManager  *backup.Manager
	jwtSecret      []byte
	logger         *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)

	householdStore := store.NewHouseholdStore(db)
	balanceStore := store.NewBalanceStore(db)
	ledgerStore := store.NewLedgerStore(db)
	rewardStore := store.NewRewardStore(db)
	badgeStore := store.NewBadgeStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	engine := points.NewEngine(db, logger)
	if cfg.UndoWindow > 0 {
		engine.UndoWindow = cfg.UndoWindow
	}
	reconciler := points.NewReconciler(db, logger)
	evaluator := badge.NewEvaluator(db, engine, logger)
	leaderboardSvc := leaderboard.NewService(db, logger)
	workflow := redemption.NewWorkflow(db, logger)
	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, pushStore, logger)
	backupMgr := backup.NewManager(cfg.Backup, db, backupStore, logger)

	return &Server{
		db:             db,
		hub:            hub,
		choreH:         handler.NewChoreHandler(engine, evaluator, hub, pushSvc, logger.With("component", "chore_handler")),
		pointsH:        handler.NewPointsHandler(engine, evaluator, balanceStore, ledgerStore, hub, pushSvc, logger.With("component", "points_handler")),
		leaderboardH:   handler.NewLeaderboardHandler(leaderboardSvc, balanceStore, logger.With("component", "leaderboard_handler")),
		badgeH:         handler.NewBadgeHandler(evaluator, badgeStore, hub, pushSvc, logger.With("component", "badge_handler")),
		redemptionH:    handler.NewRedemptionHandler(engine, workflow, rewardStore, hub, pushSvc, logger.With("component", "redemption_handler")),
		pushH:          handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler")),
		backupH:        handler.NewBackupHandler(backupMgr, reconciler, logger.With("component", "backup_handler")),
		householdStore: householdStore,
		rateLimiter:    middleware.NewRateLimiter(),
		backupManager:  backupMgr,
		jwtSecret:      cfg.JWTSecret,
		logger:         logger,
	}
}

// BackupManager returns the backup manager so main can start and stop its
// schedule loop.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes behind bearer auth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret, s.householdStore)
	outerMux.Handle("/", s.rateLimited(authMiddleware(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, 120, time.Minute)(next)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Chore completion and undo
	mux.HandleFunc("POST /api/chores/{id}/complete", s.choreH.Complete)
	mux.HandleFunc("POST /api/chores/{id}/undo", s.choreH.Undo)

	// Points
	mux.HandleFunc("GET /api/points/balance", s.pointsH.GetBalance)
	mux.HandleFunc("GET /api/points/history", s.pointsH.GetHistory)
	mux.HandleFunc("POST /api/points/bonus", s.pointsH.GrantBonus)

	// Leaderboard, statistics, levels
	mux.HandleFunc("GET /api/leaderboard", s.leaderboardH.GetLeaderboard)
	mux.HandleFunc("GET /api/statistics", s.leaderboardH.GetStatistics)
	mux.HandleFunc("GET /api/levels/me", s.leaderboardH.GetLevel)

	// Badges
	mux.HandleFunc("GET /api/badges", s.badgeH.List)
	mux.HandleFunc("GET /api/badges/me", s.badgeH.ListMine)
	mux.HandleFunc("POST /api/badges/evaluate", s.badgeH.Evaluate)

	// Rewards and redemptions
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.redemptionH.Redeem)
	mux.HandleFunc("GET /api/redemptions", s.redemptionH.List)
	mux.HandleFunc("POST /api/redemptions/{id}/refund", s.redemptionH.Refund)
	mux.Handle("POST /api/redemptions/{id}/fulfill", middleware.RequireAdmin(http.HandlerFunc(s.redemptionH.Fulfill)))

	// Push notifications
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)

	// Admin: backups and ledger reconciliation
	mux.Handle("POST /api/admin/backups", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Run)))
	mux.Handle("GET /api/admin/backups", middleware.RequireAdmin(http.HandlerFunc(s.backupH.List)))
	mux.Handle("GET /api/admin/backups/status", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Status)))
	mux.Handle("GET /api/admin/backups/{id}/download", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Download)))
	mux.Handle("POST /api/admin/backups/{id}/restore", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Restore)))
	mux.Handle("POST /api/admin/reconcile", middleware.RequireAdmin(http.HandlerFunc(s.backupH.Reconcile)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger))
}
