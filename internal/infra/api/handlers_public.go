package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/infra/adapters/payment"
	"bytebill/internal/infra/logging"
	"bytebill/internal/usecase"
)

type deviceRequest struct {
	MAC string `json:"mac"`
	IP  string `json:"ip"`
}

type redeemRequest struct {
	Code string `json:"code"`
	deviceRequest
}

type initiatePaymentRequest struct {
	Phone  string `json:"phone"`
	PlanID string `json:"plan_id"`
	MAC    string `json:"mac,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type usageRequest struct {
	MAC            string    `json:"mac"`
	BytesIn        int64     `json:"bytes_in"`
	BytesOut       int64     `json:"bytes_out"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	Timestamp      time.Time `json:"timestamp"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.svc.Plans.List(r.Context(), true)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	out := listResponse[planDTO]{Items: make([]planDTO, 0, len(plans))}
	for _, p := range plans {
		out.Items = append(out.Items, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req redeemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	device, err := model.NewDevice(req.MAC, req.IP)
	if err != nil {
		writeError(w, l, err)
		return
	}
	ctx := logging.WithMAC(r.Context(), device.MAC)
	now := s.nowFn()
	sess, err := s.svc.Vouchers.Redeem(ctx, req.Code, device, now)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess, now))
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req initiatePaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	in := usecase.InitiatePaymentInput{Phone: req.Phone, PlanID: req.PlanID}
	if req.MAC != "" {
		device, err := model.NewDevice(req.MAC, req.IP)
		if err != nil {
			writeError(w, l, err)
			return
		}
		in.Device = &device
	}
	p, err := s.svc.Payments.Initiate(r.Context(), in, s.nowFn())
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toPaymentDTO(p))
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "correlationID")
	if err != nil {
		writeError(w, l, err)
		return
	}
	p, err := s.svc.Payments.Status(r.Context(), id, s.nowFn())
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentDTO(p))
}

func (s *Server) handleClaimPayment(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "correlationID")
	if err != nil {
		writeError(w, l, err)
		return
	}
	var req deviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	device, err := model.NewDevice(req.MAC, req.IP)
	if err != nil {
		writeError(w, l, err)
		return
	}
	ctx := logging.WithCorrelationID(logging.WithMAC(r.Context(), device.MAC), id)
	now := s.nowFn()
	sess, err := s.svc.Payments.Claim(ctx, id, device, now)
	if err != nil {
		writeError(w, logging.With(ctx, s.log), err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(sess, now))
}

// handlePaymentCallback acknowledges processed and duplicate callbacks alike.
func (s *Server) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, payment.CallbackAck{ResultCode: 1, ResultDesc: "unreadable body"})
		return
	}
	id, res, err := payment.ParseSTKCallback(body)
	if err != nil {
		l.Warn().Err(err).Msg("rejected payment callback")
		writeJSON(w, http.StatusBadRequest, payment.CallbackAck{ResultCode: 1, ResultDesc: "invalid callback"})
		return
	}
	s.resolveCallback(w, r, id, res)
}

func (s *Server) resolveCallback(w http.ResponseWriter, r *http.Request, id string, res model.CallbackResult) {
	ctx := logging.WithCorrelationID(r.Context(), id)
	l := logging.With(ctx, s.log)
	p, err := s.svc.Payments.OnCallback(ctx, id, res, s.nowFn())
	switch {
	case errors.Is(err, domain.ErrNotFound):
		l.Warn().Msg("callback for unknown payment")
		writeJSON(w, http.StatusNotFound, payment.CallbackAck{ResultCode: 1, ResultDesc: "unknown request"})
		return
	case errors.Is(err, domain.ErrCallbackRejected):
		l.Warn().Err(err).Msg("callback rejected")
		writeJSON(w, http.StatusBadRequest, payment.CallbackAck{ResultCode: 1, ResultDesc: "callback rejected"})
		return
	case errors.Is(err, domain.ErrProviderUnavailable):
		l.Warn().Err(err).Msg("callback not confirmed by provider")
		writeJSON(w, http.StatusBadGateway, payment.CallbackAck{ResultCode: 1, ResultDesc: "retry later"})
		return
	case err != nil:
		l.Error().Err(err).Msg("callback processing failed")
		writeJSON(w, http.StatusInternalServerError, payment.CallbackAck{ResultCode: 1, ResultDesc: "retry later"})
		return
	}
	l.Info().Str("status", string(p.Status)).Msg("payment callback processed")
	writeJSON(w, http.StatusOK, payment.AcceptedAck())
}

func (s *Server) handleSimulateCallback(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "correlationID")
	if err != nil {
		writeError(w, l, err)
		return
	}
	paid, err := queryBool(r, "paid", true)
	if err != nil {
		writeError(w, l, err)
		return
	}
	res, err := s.opts.Simulator.Callback(id, paid)
	if err != nil {
		writeError(w, l, err)
		return
	}
	s.resolveCallback(w, r, id, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req deviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	mac, err := model.NormalizeMAC(req.MAC)
	if err != nil {
		writeError(w, l, err)
		return
	}
	now := s.nowFn()
	sess, err := s.svc.Sessions.Logout(logging.WithMAC(r.Context(), mac), mac, now)
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, now))
}

func (s *Server) handleAdmission(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	mac, err := queryString(r, "mac")
	if err != nil {
		writeError(w, l, err)
		return
	}
	ip, err := queryString(r, "ip")
	if err != nil {
		writeError(w, l, err)
		return
	}
	device, err := model.NewDevice(mac, ip)
	if err != nil {
		writeError(w, l, err)
		return
	}
	d, err := s.svc.Admission.Admit(logging.WithMAC(r.Context(), device.MAC), device, s.nowFn())
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusOK, toDecisionDTO(d))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req usageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	mac, err := model.NormalizeMAC(req.MAC)
	if err != nil {
		writeError(w, l, err)
		return
	}
	now := s.nowFn()
	at := req.Timestamp
	if at.IsZero() {
		at = now
	}
	sess, err := s.svc.Sessions.RecordUsageByDevice(logging.WithMAC(r.Context(), mac), mac, model.Usage{
		BytesIn:        req.BytesIn,
		BytesOut:       req.BytesOut,
		ElapsedSeconds: req.ElapsedSeconds,
		At:             at,
	})
	if err != nil {
		writeError(w, l, err)
		return
	}
	out := struct {
		Recorded  bool      `json:"recorded"`
		SessionID string    `json:"session_id,omitempty"`
		Quota     *quotaDTO `json:"quota,omitempty"`
	}{Recorded: sess != nil}
	if sess != nil {
		q := toQuotaDTO(sess.QuotaAt(now))
		out.SessionID, out.Quota = sess.ID, &q
	}
	writeJSON(w, http.StatusAccepted, out)
}
