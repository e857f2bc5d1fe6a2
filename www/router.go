package www

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"boxworks/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
	validate *validator.Validate
	logger   *logrus.Logger
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
		validate: newValidator(),
		logger:   eng.Logger(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	h.ensureDefaultAdmin(ctx)
	cancel()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/api/health", h.apiHealthCheck)
	r.Post("/api/login", h.apiLogin)
	r.Post("/api/logout", h.apiLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/events", hub.SSEHandler)

		r.Route("/api", func(r chi.Router) {
			r.Get("/board", h.apiBoard)

			r.Get("/orders", h.apiListOrders)
			r.Post("/orders", h.apiCreateOrder)
			r.Get("/orders/{id}", h.apiGetOrder)
			r.Patch("/orders/{id}/status", h.apiUpdateOrderStatus)
			r.Patch("/orders/{id}/stage", h.apiMoveOrder)
			r.Get("/orders/{id}/history", h.apiOrderHistory)
			r.Get("/orders/{id}/quality-checks", h.apiListQualityChecks)
			r.With(h.requireRole(roleAdmin)).Delete("/orders/{id}", h.apiDeleteOrder)

			r.Get("/tasks", h.apiListTasks)
			r.Post("/tasks", h.apiCreateTask)
			r.Patch("/tasks/{id}/stage", h.apiMoveTask)
			r.Patch("/tasks/{id}/status", h.apiUpdateTaskStatus)

			r.Get("/inventory/materials", h.apiListMaterials)
			r.Post("/inventory/materials", h.apiCreateMaterial)
			r.Get("/inventory/materials/{id}", h.apiGetMaterial)
			r.Put("/inventory/materials/{id}", h.apiUpdateMaterial)
			r.Get("/inventory/materials/{id}/movements", h.apiListMovements)
			r.Get("/inventory/materials/{id}/verify", h.apiVerifyMaterial)
			r.Post("/inventory/movement", h.apiRecordMovement)

			r.Get("/inventory/reorder-alerts", h.apiListAlerts)
			r.Post("/inventory/reorder-alert", h.apiCreateAlert)
			r.Get("/inventory/reorder-alert/{id}", h.apiGetAlert)
			r.Put("/inventory/reorder-alert/{id}", h.apiUpdateAlert)

			r.Post("/quality-check", h.apiRecordQualityCheck)

			r.Get("/audit", h.apiAuditLog)

			r.Group(func(r chi.Router) {
				r.Use(h.requireRole(roleAdmin))
				r.Get("/diagnostics", h.apiDiagnostics)
				r.Get("/config", h.apiConfig)
			})
		})
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}

// newValidator reports field errors by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
