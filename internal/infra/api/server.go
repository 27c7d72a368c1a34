// File: internal/infra/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"bytebill/internal/domain/model"
	"bytebill/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// EventStream serves the access-event websocket.
type EventStream interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// CallbackSimulator fabricates provider callbacks; only the dev gateway has one.
type CallbackSimulator interface {
	Callback(correlationID string, paid bool) (model.CallbackResult, error)
}

// Services are the use cases the HTTP layer drives.
type Services struct {
	Plans     usecase.PlanUseCase
	Vouchers  usecase.VoucherUseCase
	Payments  usecase.PaymentUseCase
	Sessions  usecase.SessionUseCase
	Quota     usecase.QuotaUseCase
	Admission usecase.AdmissionUseCase
	Stats     usecase.StatsUseCase
	Settings  usecase.SettingsUseCase
}

type Options struct {
	ControllerToken string
	CallbackToken   string // required as ?token= on the provider callback when set
	RequestTimeout  time.Duration
	Events          EventStream
	Simulator       CallbackSimulator // nil outside dev
	Ready           func(ctx context.Context) error
}

type Server struct {
	svc   Services
	auth  *AuthManager
	opts  Options
	nowFn func() time.Time
	log   *zerolog.Logger
}

func NewServer(svc Services, auth *AuthManager, opts Options, logger *zerolog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "HTTPServer").Logger()
	return &Server{svc: svc, auth: auth, opts: opts, nowFn: time.Now, log: &l}
}

// Routes builds the full router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived stream: no request timeout.
		r.With(ControllerOnly(s.opts.ControllerToken)).Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(Timeout(s.opts.RequestTimeout))

			r.Get("/plans", s.handleListPlans)
			r.Post("/vouchers/redeem", s.handleRedeem)
			r.Post("/payments", s.handleInitiatePayment)
			r.With(CallbackOnly(s.opts.CallbackToken)).Post("/payments/callback", s.handlePaymentCallback)
			r.Get("/payments/{correlationID}", s.handlePaymentStatus)
			r.Post("/payments/{correlationID}/claim", s.handleClaimPayment)
			r.Post("/sessions/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(ControllerOnly(s.opts.ControllerToken))
				r.Get("/admission", s.handleAdmission)
				r.Post("/usage", s.handleUsage)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(s.auth.AdminOnly)

				r.Get("/plans", s.handleAdminListPlans)
				r.Post("/plans", s.handleCreatePlan)
				r.Post("/plans/{id}/deactivate", s.handleDeactivatePlan)

				r.Post("/vouchers", s.handleGenerateVouchers)
				r.Get("/vouchers", s.handleListVouchers)
				r.Get("/vouchers/stats", s.handleVoucherStats)
				r.Get("/vouchers/{code}", s.handleGetVoucher)
				r.Get("/vouchers/{code}/qr.png", s.handleVoucherQR)

				r.Get("/sessions", s.handleListSessions)
				r.Post("/sessions/sweep", s.handleSweep)
				r.Get("/sessions/{id}", s.handleGetSession)
				r.Post("/sessions/{id}/extend", s.handleExtendSession)
				r.Post("/sessions/{id}/terminate", s.handleTerminateSession)

				r.Get("/dashboard", s.handleDashboard)
				r.Get("/dashboard/charts/{kind}", s.handleChart)
				r.Get("/alerts", s.handleAlerts)
				r.Get("/settings", s.handleGetSettings)
				r.Put("/settings", s.handlePutSettings)
			})

			if s.opts.Simulator != nil {
				r.With(s.auth.AdminOnly).Post("/dev/payments/{correlationID}/simulate", s.handleSimulateCallback)
			}
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.opts.Events == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "event stream disabled"})
		return
	}
	s.opts.Events.HandleWebSocket(w, r)
}
