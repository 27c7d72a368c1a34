package api

import (
	"fmt"
	"net/http"
	"net/url"

	"bytebill/internal/domain"
	"bytebill/internal/domain/model"
	"bytebill/internal/infra/logging"
	"bytebill/internal/usecase"

	"github.com/skip2/go-qrcode"
)

const maxVoucherList = 1000

type createPlanRequest struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	DurationSeconds int64  `json:"duration_seconds"`
	DataCapBytes    int64  `json:"data_cap_bytes"`
	Price           int64  `json:"price"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
}

type generateVouchersRequest struct {
	PlanID        string `json:"plan_id"`
	Count         int    `json:"count"`
	ExpiresInDays int    `json:"expires_in_days"`
	Notes         string `json:"notes"`
}

type extendRequest struct {
	Seconds int64  `json:"seconds"`
	Reason  string `json:"reason"`
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleAdminListPlans(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	activeOnly, err := queryBool(r, "active", false)
	if err != nil {
		writeError(w, l, err)
		return
	}
	plans, err := s.svc.Plans.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, l, err)
		return
	}
	out := listResponse[planDTO]{Items: make([]planDTO, 0, len(plans))}
	for _, p := range plans {
		out.Items = append(out.Items, toPlanDTO(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req createPlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	p, err := s.svc.Plans.Create(r.Context(), usecase.CreatePlanInput{
		Name:            req.Name,
		Kind:            model.PlanKind(req.Kind),
		DurationSeconds: req.DurationSeconds,
		DataCapBytes:    req.DataCapBytes,
		Price:           req.Price,
		Currency:        req.Currency,
		Description:     req.Description,
	})
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(p))
}

func (s *Server) handleDeactivatePlan(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "id")
	if err != nil {
		writeError(w, l, err)
		return
	}
	if err := s.svc.Plans.Deactivate(r.Context(), id); err != nil {
		writeError(w, l, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGenerateVouchers(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req generateVouchersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	now := s.nowFn()
	vs, err := s.svc.Vouchers.Generate(r.Context(), usecase.GenerateVouchersInput{
		PlanID:        req.PlanID,
		Count:         req.Count,
		ExpiresInDays: req.ExpiresInDays,
		CreatedBy:     adminFrom(r.Context()),
		Notes:         req.Notes,
	}, now)
	if err != nil {
		writeError(w, l, err)
		return
	}
	out := struct {
		BatchID string       `json:"batch_id"`
		Items   []voucherDTO `json:"items"`
	}{Items: make([]voucherDTO, 0, len(vs))}
	for _, v := range vs {
		out.BatchID = v.BatchID
		out.Items = append(out.Items, toVoucherDTO(v, now))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListVouchers(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	now := s.nowFn()
	f := model.VoucherFilter{Now: now}
	var status string
	var err error
	for name, dst := range map[string]*string{"status": &status, "plan_id": &f.PlanID, "batch_id": &f.BatchID} {
		if *dst, err = queryString(r, name); err != nil {
			writeError(w, l, err)
			return
		}
	}
	f.Status = model.VoucherStatus(status)
	switch f.Status {
	case "", model.VoucherStatusUnused, model.VoucherStatusUsed, model.VoucherStatusExpired:
	default:
		writeError(w, l, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidArgument, status))
		return
	}
	limit, err := queryInt(r, "limit", 100, maxVoucherList)
	if err != nil {
		writeError(w, l, err)
		return
	}

	out := listResponse[voucherDTO]{Items: make([]voucherDTO, 0, min(limit, 100))}
	for v, err := range s.svc.Vouchers.List(r.Context(), f) {
		if err != nil {
			writeError(w, l, err)
			return
		}
		if len(out.Items) >= limit {
			break
		}
		out.Items = append(out.Items, toVoucherDTO(v, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleVoucherStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.svc.Vouchers.Stats(r.Context(), s.nowFn())
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherCountsDTO(counts))
}

func (s *Server) voucherFromPath(r *http.Request) (*model.Voucher, error) {
	code, err := pathString(r, "code")
	if err != nil {
		return nil, err
	}
	return s.svc.Vouchers.Get(r.Context(), code)
}

func (s *Server) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := s.voucherFromPath(r)
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toVoucherDTO(v, s.nowFn()))
}

// handleVoucherQR renders a PNG that opens the portal with the code prefilled.
func (s *Server) handleVoucherQR(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	v, err := s.voucherFromPath(r)
	if err != nil {
		writeError(w, l, err)
		return
	}
	size, err := queryInt(r, "size", 256, 1024)
	if err != nil {
		writeError(w, l, err)
		return
	}
	png, err := qrcode.Encode(portalURL(s.svc.Settings.Current(), v.Code), qrcode.Medium, max(size, 64))
	if err != nil {
		writeError(w, l, fmt.Errorf("%w: qr: %v", domain.ErrOperationFailed, err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func portalURL(st model.Settings, code string) string {
	u := url.URL{Scheme: "http", Host: st.PortalDNS, Path: "/", RawQuery: url.Values{"voucher": {code}}.Encode()}
	return u.String()
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var f model.SessionFilter
	status, err := queryString(r, "status")
	if err != nil {
		writeError(w, l, err)
		return
	}
	f.Status = model.SessionStatus(status)
	if f.MAC, err = queryString(r, "mac"); err != nil {
		writeError(w, l, err)
		return
	}
	if f.MAC != "" {
		if f.MAC, err = model.NormalizeMAC(f.MAC); err != nil {
			writeError(w, l, err)
			return
		}
	}
	if f.Limit, err = queryInt(r, "limit", 100, 500); err != nil {
		writeError(w, l, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0, 0); err != nil {
		writeError(w, l, err)
		return
	}
	list, err := s.svc.Sessions.List(r.Context(), f)
	if err != nil {
		writeError(w, l, err)
		return
	}
	now := s.nowFn()
	out := listResponse[sessionDTO]{Items: make([]sessionDTO, 0, len(list))}
	for _, sess := range list {
		out.Items = append(out.Items, toSessionDTO(sess, now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "id")
	if err != nil {
		writeError(w, l, err)
		return
	}
	sess, err := s.svc.Sessions.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, s.nowFn()))
}

func (s *Server) handleExtendSession(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "id")
	if err != nil {
		writeError(w, l, err)
		return
	}
	var req extendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	now := s.nowFn()
	sess, err := s.svc.Sessions.Extend(logging.WithSessID(r.Context(), id), id, req.Seconds, req.Reason, adminFrom(r.Context()), now)
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, now))
}

func (s *Server) handleTerminateSession(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	id, err := pathString(r, "id")
	if err != nil {
		writeError(w, l, err)
		return
	}
	req := terminateRequest{Reason: "admin"}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, l, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "admin"
	}
	now := s.nowFn()
	sess, err := s.svc.Sessions.Terminate(logging.WithSessID(r.Context(), id), id, req.Reason, now)
	if err != nil {
		writeError(w, l, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess, now))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Quota.Sweep(r.Context(), s.nowFn())
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"checked": res.Checked, "expired": res.Expired, "failed": res.Failed})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Stats.Dashboard(r.Context(), s.nowFn())
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

// handleChart serves GET /admin/dashboard/charts/{kind}?period=24h|7d|30d.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)
	raw, err := pathString(r, "kind")
	if err != nil {
		writeError(w, log, err)
		return
	}
	kind, err := model.ParseChartKind(raw)
	if err != nil {
		writeError(w, log, err)
		return
	}
	period, err := queryString(r, "period")
	if err != nil {
		writeError(w, log, err)
		return
	}
	series, err := s.svc.Stats.Series(r.Context(), kind, model.ChartPeriod(period), s.nowFn())
	if err != nil {
		writeError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, toChartDTO(series))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.svc.Stats.Alerts(r.Context(), s.nowFn())
	if err != nil {
		writeError(w, logging.With(r.Context(), s.log), err)
		return
	}
	out := make([]alertDTO, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string][]alertDTO{"alerts": out})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Settings.Current())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	l := logging.With(r.Context(), s.log)
	var req model.Settings
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, l, err)
		return
	}
	st, err := s.svc.Settings.Update(r.Context(), req, s.nowFn())
	if err != nil {
		writeError(w, l, err)
		return
	}
	l.Info().Str("admin", adminFrom(r.Context())).Msg("settings updated")
	writeJSON(w, http.StatusOK, st)
}
