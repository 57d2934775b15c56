package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/glassworks/internal/audit"
	"github.com/noah-isme/glassworks/internal/auth"
	"github.com/noah-isme/glassworks/internal/backup"
	"github.com/noah-isme/glassworks/internal/catalog"
	"github.com/noah-isme/glassworks/internal/checkout"
	"github.com/noah-isme/glassworks/internal/common"
	"github.com/noah-isme/glassworks/internal/health"
	"github.com/noah-isme/glassworks/internal/lead"
	"github.com/noah-isme/glassworks/internal/media"
	"github.com/noah-isme/glassworks/internal/obs"
	"github.com/noah-isme/glassworks/internal/queue"
	"github.com/noah-isme/glassworks/internal/ratelimit"
	"github.com/noah-isme/glassworks/internal/security"
	"github.com/noah-isme/glassworks/internal/voucher"
)

type routes struct {
	Logger      zerolog.Logger
	RealIP      common.RealIP
	CORSOrigins []string
	Headers     security.Headers
	BodyLimit   security.BodyLimit
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
	Pprof       http.Handler

	PublicLimit  func(http.Handler) http.Handler
	ContactLimit ratelimit.Handler
	Idem         common.Idem

	Health   health.Handler
	Catalog  *catalog.Handler
	Coupons  *voucher.Handler
	Quote    *checkout.Handler
	Leads    *lead.Handler
	Backups  *backup.Handler
	Images   *media.Handler
	Auth     *auth.Handler
	AuthMW   auth.Middleware
	CSRF     security.CSRF
	Audit    audit.HTTPRecorder
	AuditLog audit.Handler
	Tasks    *queue.AdminHandler
}

func (rt routes) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(rt.RealIP.Middleware)
	r.Use(middleware.Recoverer)
	if rt.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if rt.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: rt.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: rt.Logger, Quiet: []string{"/health/live", "/health/ready", "/metrics"}}.Middleware)
	r.Use(security.CORS(rt.CORSOrigins))
	r.Use(rt.Headers.Middleware)
	r.Use(rt.BodyLimit.Middleware)

	if rt.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if rt.Pprof != nil {
		r.Mount("/debug/pprof", rt.Pprof)
	}
	r.Get("/health/live", rt.Health.Live)
	r.Get("/health/ready", rt.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Group(func(pub chi.Router) {
			if rt.PublicLimit != nil {
				pub.Use(rt.PublicLimit)
			}
			pub.Get("/categories", rt.Catalog.Categories)
			pub.Get("/categories/{slug}/products", rt.Catalog.CategoryProducts)
			pub.Get("/products", rt.Catalog.Products)
			pub.Get("/products/{slug}", rt.Catalog.ProductDetail)
			pub.Post("/coupons/preview", rt.Coupons.Preview)
			pub.Post("/quote", rt.Quote.Quote)
			pub.With(rt.ContactLimit.Middleware, rt.Idem.Middleware).Post("/contact", rt.Leads.Submit)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Post("/auth/login", rt.Auth.Login)

			admin.Group(func(p chi.Router) {
				p.Use(rt.AuthMW.RequireAuth)
				p.Use(rt.CSRF.Middleware)
				p.Use(rt.Audit.Middleware)

				p.Post("/auth/logout", rt.Auth.Logout)
				p.Get("/auth/me", rt.Auth.Me)

				p.Get("/products", rt.Catalog.AdminProducts)
				p.Patch("/products/{id}/price", rt.Catalog.UpdatePrice)
				p.Patch("/products/{id}/inventory", rt.Catalog.UpdateInventory)
				p.Patch("/products/{id}/discount", rt.Catalog.SetDiscount)
				p.Post("/prices/preview", rt.Catalog.PreviewPrice)
				p.Get("/categories", rt.Catalog.Categories)
				p.Post("/categories", rt.Catalog.CreateCategory)
				p.Put("/categories/{id}", rt.Catalog.UpdateCategory)
				p.Delete("/categories/{id}", rt.Catalog.DeleteCategory)

				p.Get("/coupons", rt.Coupons.List)
				p.Post("/coupons", rt.Coupons.Create)
				p.Get("/coupons/{code}", rt.Coupons.Get)
				p.Put("/coupons/{code}", rt.Coupons.Update)
				p.Delete("/coupons/{code}", rt.Coupons.Delete)
				p.Post("/coupons/{code}/redeem", rt.Coupons.Redeem)

				p.Get("/backups", rt.Backups.List)
				p.Post("/backups", rt.Backups.Create)
				p.Get("/backups/{id}", rt.Backups.Get)
				p.Delete("/backups/{id}", rt.Backups.Delete)
				p.Post("/backups/{id}/restore", rt.Backups.Restore)

				p.Get("/images/orphans", rt.Images.Orphans)
				p.Post("/images/cleanup", rt.Images.Cleanup)

				p.Get("/leads", rt.Leads.List)
				p.Get("/audit", rt.AuditLog.List)
				p.Get("/tasks/stats", rt.Tasks.Stats)
				p.Get("/tasks/archived", rt.Tasks.ListArchived)
				p.Post("/tasks/archived/{id}/run", rt.Tasks.Replay)
			})
		})
	})
	return r
}
