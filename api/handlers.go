/*
handlers.go - HTTP API handlers for the casework retention engine

PURPOSE:
  Exposes the entity store, history ledger, and retention pipeline via REST.
  Handles HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Staff:
    GET    /api/staff                        List staff
    POST   /api/staff                        Create/update staff
    GET    /api/staff/{id}/clients           Clients for staff (?active=true)

  Clients:
    POST   /api/clients                      Create client
    GET    /api/clients/{id}                 Full tree, deleted children included
    POST   /api/clients/{id}/archive         Set archivedAt
    POST   /api/clients/{id}/unarchive       Clear archivedAt
    DELETE /api/clients/{id}                 Soft delete (set deletedAt)
    POST   /api/clients/{id}/restore         Clear deletedAt
    PUT    /api/clients/{id}/care-plan       Upsert legacy care plan
    POST   /api/clients/{id}/gfp-plans       Upsert GFP plan (+ history)
    PUT    /api/clients/{id}/weekly-docs     Upsert weekly doc (+ history)
    PUT    /api/clients/{id}/monthly-reports Upsert monthly report (+ history)
    PUT    /api/clients/{id}/visma-weeks     Upsert Visma week mirror
    DELETE /api/clients/{id}/records/{kind}/{key}          Soft delete child
    POST   /api/clients/{id}/records/{kind}/{key}/restore  Restore child

  History (read path survives sweeps by design):
    POST   /api/history                      Idempotent upsert
    GET    /api/history                      Query (filters via query params)

  Retention (compute -> export -> confirm -> execute):
    GET    /api/retention/preview?days=N             Removal plan, no side effects
    GET    /api/retention/export?days=N&format=json|csv
    POST   /api/retention/execute                    {cutoffDays, confirm:true}

  Audit:
    GET    /api/audit                        Query the action trail

ERROR HANDLING:
  - 400: Validation errors (negative cutoff, malformed period ids, bad kind)
  - 404: Staff/client/child not found
  - 409: Execute without confirm:true
  - 500: Store and serialization failures

ACTOR IDENTITY:
  Authentication is out of scope; the validated caller identity arrives in
  the X-Actor header and is recorded in the audit log.

SEE ALSO:
  - dto.go: Wire shapes and conversions
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nordcare/casework-engine/casework"
	"github.com/nordcare/casework-engine/history"
	"github.com/nordcare/casework-engine/retention"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Entities casework.EntityStore
	History  *history.Ledger
	Audit    casework.AuditLog
	Engine   *retention.Engine
	Executor *retention.Executor

	// DefaultCutoffDays applies when preview/export requests omit ?days=.
	DefaultCutoffDays int
}

// NewHandler wires the retention pipeline around the given backends.
func NewHandler(entities casework.EntityStore, historyStore history.Store, audit casework.AuditLog) *Handler {
	return &Handler{
		Entities: entities,
		History:  history.NewLedger(historyStore),
		Audit:    audit,
		Engine:   retention.NewEngine(entities),
		Executor: retention.NewExecutor(entities),
	}
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

func (h *Handler) audit(r *http.Request, action casework.AuditAction, staffID casework.StaffID, clientID casework.ClientID, count int, details map[string]any) {
	entry := casework.AuditEntry{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ActorID:     actor(r),
		Action:      action,
		StaffID:     staffID,
		ClientID:    clientID,
		RecordCount: count,
		Details:     details,
	}
	if err := h.Audit.Append(r.Context(), entry); err != nil {
		log.Printf("audit append failed: %v", err)
	}
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.Entities.ListStaff(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := []staffDTO{}
	for _, s := range staff {
		out = append(out, toStaffDTO(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req createStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.Name == "" {
		writeBadRequest(w, "id and name are required")
		return
	}
	role := casework.Role(req.Role)
	if role == "" {
		role = casework.RoleStaff
	}
	s := casework.Staff{
		ID:        casework.StaffID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Entities.SaveStaff(r.Context(), s); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toStaffDTO(s))
}

func (h *Handler) ListStaffClients(w http.ResponseWriter, r *http.Request) {
	staffID := casework.StaffID(chi.URLParam(r, "id"))

	var clients []casework.Client
	var err error
	if r.URL.Query().Get("active") == "true" {
		clients, err = h.Entities.ListActiveClients(r.Context(), staffID)
	} else {
		clients, err = h.Entities.ListClients(r.Context(), staffID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	out := []clientDTO{}
	for _, c := range clients {
		out = append(out, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// CLIENT HANDLERS
// =============================================================================

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" || req.StaffID == "" {
		writeBadRequest(w, "id and staffId are required")
		return
	}
	c := casework.Client{
		ID:        casework.ClientID(req.ID),
		StaffID:   casework.StaffID(req.StaffID),
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Entities.SaveClient(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientDTO(c))
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	c, err := h.Entities.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

func (h *Handler) ArchiveClient(w http.ResponseWriter, r *http.Request) {
	h.clientFlagOp(w, r, casework.AuditClientArchived, func(id casework.ClientID) error {
		return h.Entities.ArchiveClient(r.Context(), id, time.Now().UTC())
	})
}

func (h *Handler) UnarchiveClient(w http.ResponseWriter, r *http.Request) {
	h.clientFlagOp(w, r, casework.AuditClientUnarchived, func(id casework.ClientID) error {
		return h.Entities.UnarchiveClient(r.Context(), id)
	})
}

func (h *Handler) SoftDeleteClient(w http.ResponseWriter, r *http.Request) {
	h.clientFlagOp(w, r, casework.AuditClientDeleted, func(id casework.ClientID) error {
		return h.Entities.SoftDeleteClient(r.Context(), id, time.Now().UTC())
	})
}

func (h *Handler) RestoreClient(w http.ResponseWriter, r *http.Request) {
	h.clientFlagOp(w, r, casework.AuditClientRestored, func(id casework.ClientID) error {
		return h.Entities.RestoreClient(r.Context(), id)
	})
}

func (h *Handler) clientFlagOp(w http.ResponseWriter, r *http.Request, action casework.AuditAction, op func(casework.ClientID) error) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	if err := op(id); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, action, "", id, 1, nil)
	c, err := h.Entities.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

// =============================================================================
// CHILD RECORD HANDLERS
// =============================================================================

func (h *Handler) SaveCarePlan(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	var req carePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	c, err := h.Entities.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	c.CarePlan = &casework.CarePlan{
		Goals:         req.Goals,
		Interventions: req.Interventions,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := h.Entities.SaveClient(r.Context(), *c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

// SaveGFPPlan upserts the plan and records its status in the history
// ledger, so the KPI trail survives later erasure of the plan itself.
func (h *Handler) SaveGFPPlan(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	var req gfpPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ID == "" {
		writeBadRequest(w, "id is required")
		return
	}
	c, err := h.Entities.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now().UTC()
	created := now
	for _, existing := range c.GFPPlans {
		if existing.ID == casework.PlanID(req.ID) {
			created = existing.CreatedAt
			break
		}
	}
	p := casework.GFPPlan{
		ID:        casework.PlanID(req.ID),
		Title:     req.Title,
		Status:    req.Status,
		CreatedAt: created,
	}
	if err := h.Entities.SaveGFPPlan(r.Context(), id, p); err != nil {
		writeError(w, err)
		return
	}
	_, err = h.History.Upsert(r.Context(), history.Entry{
		PeriodType: casework.PeriodMonth,
		PeriodID:   string(casework.MonthIDOf(now)),
		StaffID:    c.StaffID,
		ClientID:   id,
		Metric:     history.MetricGFP,
		Status:     req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gfpPlanDTO{
		ID: req.ID, Title: req.Title, Status: req.Status, CreatedAt: created,
	})
}

func (h *Handler) SaveWeeklyDoc(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	var req weeklyDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	c, err := h.Entities.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now().UTC()
	d := casework.WeeklyDoc{
		WeekID:    casework.WeekID(req.WeekID),
		Note:      req.Note,
		Status:    req.Status,
		UpdatedAt: now,
	}
	if err := h.Entities.SaveWeeklyDoc(r.Context(), id, d); err != nil {
		writeError(w, err)
		return
	}
	_, err = h.History.Upsert(r.Context(), history.Entry{
		PeriodType: casework.PeriodWeek,
		PeriodID:   req.WeekID,
		StaffID:    c.StaffID,
		ClientID:   id,
		Metric:     history.MetricWeekDoc,
		Status:     req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weeklyDocDTO{
		WeekID: req.WeekID, Note: req.Note, Status: req.Status, UpdatedAt: now,
	})
}

func (h *Handler) SaveMonthlyReport(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	var req monthlyReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	c, err := h.Entities.GetClient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	now := time.Now().UTC()
	rep := casework.MonthlyReport{
		MonthID:   casework.MonthID(req.MonthID),
		Summary:   req.Summary,
		Status:    req.Status,
		UpdatedAt: now,
	}
	if err := h.Entities.SaveMonthlyReport(r.Context(), id, rep); err != nil {
		writeError(w, err)
		return
	}
	_, err = h.History.Upsert(r.Context(), history.Entry{
		PeriodType: casework.PeriodMonth,
		PeriodID:   req.MonthID,
		StaffID:    c.StaffID,
		ClientID:   id,
		Metric:     history.MetricMonthReport,
		Status:     req.Status,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, monthlyReportDTO{
		MonthID: req.MonthID, Summary: req.Summary, Status: req.Status, UpdatedAt: now,
	})
}

func (h *Handler) SaveVismaWeek(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	var req vismaWeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	hours, err := parseHours(req.Hours)
	if err != nil {
		writeBadRequest(w, "invalid hours value")
		return
	}
	now := time.Now().UTC()
	v := casework.VismaWeek{
		WeekID:    casework.WeekID(req.WeekID),
		Hours:     hours,
		Status:    req.Status,
		UpdatedAt: now,
	}
	if err := h.Entities.SaveVismaWeek(r.Context(), id, v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vismaWeekDTO{
		WeekID: req.WeekID, Hours: hours.String(), Status: req.Status, UpdatedAt: now,
	})
}

func (h *Handler) SoftDeleteChild(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	kind := casework.Kind(chi.URLParam(r, "kind"))
	key := chi.URLParam(r, "key")

	if err := h.Entities.SoftDeleteChild(r.Context(), id, kind, key, time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, casework.AuditChildDeleted, "", id, 1, map[string]any{
		"kind": string(kind), "key": key,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) RestoreChild(w http.ResponseWriter, r *http.Request) {
	id := casework.ClientID(chi.URLParam(r, "id"))
	kind := casework.Kind(chi.URLParam(r, "kind"))
	key := chi.URLParam(r, "key")

	if err := h.Entities.RestoreChild(r.Context(), id, kind, key); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, casework.AuditChildRestored, "", id, 1, map[string]any{
		"kind": string(kind), "key": key,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

func (h *Handler) UpsertHistory(w http.ResponseWriter, r *http.Request) {
	var req historyUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	entry, err := toHistoryEntry(req)
	if err != nil {
		writeBadRequest(w, "invalid value: must be a decimal number")
		return
	}
	stored, err := h.History.Upsert(r.Context(), entry)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toHistoryEntryDTO(stored))
}

func (h *Handler) QueryHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f history.Filter
	if v := q.Get("periodType"); v != "" {
		pt := casework.PeriodType(v)
		f.PeriodType = &pt
	}
	f.PeriodFrom = q.Get("from")
	f.PeriodTo = q.Get("to")
	if v := q.Get("staffId"); v != "" {
		id := casework.StaffID(v)
		f.StaffID = &id
	}
	if v := q.Get("clientId"); v != "" {
		id := casework.ClientID(v)
		f.ClientID = &id
	}
	if v := q.Get("metric"); v != "" {
		m := history.Metric(v)
		f.Metric = &m
	}
	if v := q.Get("status"); v != "" {
		f.Status = &v
	}

	entries, err := h.History.Query(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := []historyEntryDTO{}
	for _, e := range entries {
		out = append(out, toHistoryEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RETENTION HANDLERS
// =============================================================================

func (h *Handler) parseCutoffDays(w http.ResponseWriter, raw string) (int, bool) {
	if raw == "" {
		return h.DefaultCutoffDays, true
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "days must be an integer")
		return 0, false
	}
	if err := retention.ValidateCutoffDays(days); err != nil {
		writeBadRequest(w, err.Error())
		return 0, false
	}
	return days, true
}

func (h *Handler) PreviewSweep(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseCutoffDays(w, r.URL.Query().Get("days"))
	if !ok {
		return
	}
	plan, err := h.Engine.ComputeSweep(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepPreviewResponse(plan))
}

// ExportSweep renders the current plan in a durable format. A failure here
// must block the confirm step in the UI; the handler returns 500 and the
// plan is not executed.
func (h *Handler) ExportSweep(w http.ResponseWriter, r *http.Request) {
	days, ok := h.parseCutoffDays(w, r.URL.Query().Get("days"))
	if !ok {
		return
	}
	plan, err := h.Engine.ComputeSweep(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var body []byte
	var contentType, filename string
	switch format {
	case "json":
		body, err = retention.ToJSON(plan.ToRemove)
		contentType = "application/json"
		filename = "retention-export.json"
	case "csv":
		var csv string
		csv, err = retention.ToCSV(plan.ToRemove)
		body = []byte(csv)
		contentType = "text/csv"
		filename = "retention-export.csv"
	default:
		writeBadRequest(w, "format must be json or csv")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit(r, casework.AuditSweepExported, "", "", len(plan.ToRemove), map[string]any{
		"format": format, "cutoffDays": days,
	})

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ExecuteSweep recomputes the plan against the live store and applies it.
// The recompute plus the executor's per-item existence recheck is the
// defense against the store changing since preview.
func (h *Handler) ExecuteSweep(w http.ResponseWriter, r *http.Request) {
	var req executeSweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if err := retention.ValidateCutoffDays(req.CutoffDays); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if !req.Confirm {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "execution requires confirm:true after reviewing the preview",
		})
		return
	}

	plan, err := h.Engine.ComputeSweep(r.Context(), req.CutoffDays)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := h.Executor.ExecuteSweep(r.Context(), plan.ToRemove)
	if err != nil {
		writeError(w, err)
		return
	}

	h.audit(r, casework.AuditSweepExecuted, "", "", report.Total(), map[string]any{
		"cutoffDays": req.CutoffDays,
		"summary":    report.Summary(),
		"skipped":    report.Skipped,
		"failed":     len(report.Failures),
	})
	writeJSON(w, http.StatusOK, toSweepReportResponse(report))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

func (h *Handler) QueryAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f casework.AuditFilter
	if v := q.Get("actorId"); v != "" {
		f.ActorID = &v
	}
	if v := q.Get("clientId"); v != "" {
		id := casework.ClientID(v)
		f.ClientID = &id
	}
	if v := q.Get("action"); v != "" {
		f.Actions = []casework.AuditAction{casework.AuditAction(v)}
	}

	entries, err := h.Audit.Query(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := []auditEntryDTO{}
	for _, e := range entries {
		out = append(out, toAuditEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case casework.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case casework.IsClientError(err) || errors.Is(err, history.ErrInvalidEntry):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
