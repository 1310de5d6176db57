package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/despesahub/api/internal/auth"
	"github.com/despesahub/api/internal/config"
	"github.com/despesahub/api/internal/god"
	httpmiddleware "github.com/despesahub/api/internal/http/middleware"
	"github.com/despesahub/api/internal/mail"
	"github.com/despesahub/api/internal/repo"
	"github.com/despesahub/api/internal/service"
	"github.com/despesahub/api/internal/storage"
	"github.com/despesahub/api/internal/transacao"
)

// Handler agrega as dependências dos handlers de autenticação e hubs.
type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	repo          *repo.Queries
	authService   *service.AuthService
	membros       *service.MembroService
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
}

// NewRouter monta o roteador completo da API.
func NewRouter(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client, mailer *mail.Mailer) (http.Handler, error) {
	queries := repo.New(pool)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(queries, redisClient, jwtManager, mailer, cfg)
	membros := service.NewMembroService(queries, mailer, cfg.ConviteTTL, cfg.AppBaseURL)

	uploader, err := newUploader(cfg)
	if err != nil {
		return nil, err
	}

	transacaoRepo := transacao.NewRepository(pool)
	transacaoSvc := transacao.NewService(transacaoRepo)
	transacaoHandler := transacao.NewHandler(transacaoSvc, uploader)

	godRepo := god.NewRepository(pool)
	godHandler := god.NewHandler(godRepo)

	h := &Handler{
		cfg:           cfg,
		pool:          pool,
		redis:         redisClient,
		repo:          queries,
		authService:   authService,
		membros:       membros,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/api/auth", func(auth chi.Router) {
			auth.Post("/register", h.Register)
			auth.Post("/login", h.Login)
			auth.Post("/select-hub", h.SelectHub)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
			auth.Post("/verify-email", h.VerifyEmail)
			auth.Post("/resend-verification", h.ResendVerification)
			auth.Post("/ativar-convite", h.AtivarConvite)
			auth.Post("/request-password-reset", h.RequestPasswordReset)
			auth.Post("/reset-password", h.ResetPassword)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/api/me", h.Me)
		private.Put("/api/me", h.UpdateMe)
		private.Post("/api/hubs", h.CreateHub)

		private.Group(func(hub chi.Router) {
			hub.Use(httpmiddleware.RequireHub)

			hub.Route("/api", func(r chi.Router) {
				r.Get("/hub", h.HubAtual)
				r.With(httpmiddleware.RequireAdministrador).Put("/hub", h.RenameHub)

				r.Route("/membros", func(m chi.Router) {
					m.Get("/", h.ListMembros)
					m.With(httpmiddleware.RequireAdministrador).Post("/", h.ConvidarMembro)
					m.With(httpmiddleware.RequireAdministrador).Put("/{pessoaID}", h.AtualizarMembro)
					m.With(httpmiddleware.RequireProprietario).Delete("/{pessoaID}", h.RemoverMembro)
				})

				transacao.Mount(r, transacaoHandler)
			})
		})

		private.Group(func(panel chi.Router) {
			panel.Use(httpmiddleware.RequireGod(queries))
			panel.Route("/api/god", func(g chi.Router) {
				god.Mount(g, godHandler)
			})
		})
	})

	return r, nil
}

func newUploader(cfg *config.Config) (storage.Uploader, error) {
	if cfg.Storage.Provider != "s3" {
		return storage.NoopUploader{}, nil
	}
	return storage.NewS3Uploader(storage.S3Config{
		Endpoint:  cfg.Storage.S3Endpoint,
		Region:    cfg.Storage.S3Region,
		Bucket:    cfg.Storage.S3Bucket,
		AccessKey: cfg.Storage.S3AccessKey,
		SecretKey: cfg.Storage.S3SecretKey,
		PublicURL: cfg.Storage.S3PublicURL,
	})
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready verifica dependências externas (Postgres e Redis).
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.Ping(r.Context()); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "banco indisponível", nil)
		return
	}
	if err := h.redis.Ping(r.Context()).Err(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "redis indisponível", nil)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
