/*
dto.go - Request/response data structures for the HTTP API

Wire shapes are camelCase JSON; domain types stay tag-free. Conversions
live here so handlers.go reads as control flow only.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nordcare/casework-engine/casework"
	"github.com/nordcare/casework-engine/history"
	"github.com/nordcare/casework-engine/retention"
)

// =============================================================================
// REQUESTS
// =============================================================================

type createStaffRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type createClientRequest struct {
	ID      string `json:"id"`
	StaffID string `json:"staffId"`
	Name    string `json:"name"`
}

type carePlanRequest struct {
	Goals         string `json:"goals"`
	Interventions string `json:"interventions"`
}

type gfpPlanRequest struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

type weeklyDocRequest struct {
	WeekID string `json:"weekId"`
	Note   string `json:"note"`
	Status string `json:"status"`
}

type monthlyReportRequest struct {
	MonthID string `json:"monthId"`
	Summary string `json:"summary"`
	Status  string `json:"status"`
}

type vismaWeekRequest struct {
	WeekID string `json:"weekId"`
	Hours  string `json:"hours"`
	Status string `json:"status"`
}

type historyUpsertRequest struct {
	PeriodType string  `json:"periodType"`
	PeriodID   string  `json:"periodId"`
	StaffID    string  `json:"staffId"`
	ClientID   string  `json:"clientId"`
	Metric     string  `json:"metric"`
	Status     string  `json:"status"`
	Value      *string `json:"value,omitempty"`
}

type executeSweepRequest struct {
	CutoffDays int  `json:"cutoffDays"`
	Confirm    bool `json:"confirm"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type staffDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type clientDTO struct {
	ID             string                      `json:"id"`
	StaffID        string                      `json:"staffId"`
	Name           string                      `json:"name"`
	CreatedAt      time.Time                   `json:"createdAt"`
	ArchivedAt     *time.Time                  `json:"archivedAt,omitempty"`
	DeletedAt      *time.Time                  `json:"deletedAt,omitempty"`
	CarePlan       *carePlanDTO                `json:"carePlan,omitempty"`
	GFPPlans       []gfpPlanDTO                `json:"gfpPlans"`
	WeeklyDocs     map[string]weeklyDocDTO     `json:"weeklyDocs"`
	MonthlyReports map[string]monthlyReportDTO `json:"monthlyReports"`
	VismaWeeks     map[string]vismaWeekDTO     `json:"vismaWeeks"`
}

type carePlanDTO struct {
	Goals         string    `json:"goals"`
	Interventions string    `json:"interventions"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type gfpPlanDTO struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type weeklyDocDTO struct {
	WeekID    string     `json:"weekId"`
	Note      string     `json:"note"`
	Status    string     `json:"status"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type monthlyReportDTO struct {
	MonthID   string     `json:"monthId"`
	Summary   string     `json:"summary"`
	Status    string     `json:"status"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type vismaWeekDTO struct {
	WeekID    string     `json:"weekId"`
	Hours     string     `json:"hours"`
	Status    string     `json:"status"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

type historyEntryDTO struct {
	ID         string    `json:"id"`
	PeriodType string    `json:"periodType"`
	PeriodID   string    `json:"periodId"`
	StaffID    string    `json:"staffId"`
	ClientID   string    `json:"clientId"`
	Metric     string    `json:"metric"`
	Status     string    `json:"status"`
	Value      *string   `json:"value,omitempty"`
	TS         time.Time `json:"ts"`
}

type sweepPreviewResponse struct {
	CutoffTimestamp time.Time        `json:"cutoffTimestamp"`
	Count           int              `json:"count"`
	Items           []removalItemDTO `json:"items"`
}

type removalItemDTO struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	StaffID   string          `json:"staffId"`
	ClientID  string          `json:"clientId"`
	DeletedAt time.Time       `json:"deletedAt"`
	Data      casework.Record `json:"data"`
}

type sweepReportResponse struct {
	Summary string         `json:"summary"`
	Removed map[string]int `json:"removed"`
	Skipped int            `json:"skipped"`
	Failed  []string       `json:"failed,omitempty"`
}

type auditEntryDTO struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	ActorID     string         `json:"actorId"`
	Action      string         `json:"action"`
	StaffID     string         `json:"staffId,omitempty"`
	ClientID    string         `json:"clientId,omitempty"`
	RecordCount int            `json:"recordCount"`
	Details     map[string]any `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStaffDTO(s casework.Staff) staffDTO {
	return staffDTO{
		ID:        string(s.ID),
		Name:      s.Name,
		Email:     s.Email,
		Role:      string(s.Role),
		CreatedAt: s.CreatedAt,
	}
}

func toClientDTO(c casework.Client) clientDTO {
	dto := clientDTO{
		ID:             string(c.ID),
		StaffID:        string(c.StaffID),
		Name:           c.Name,
		CreatedAt:      c.CreatedAt,
		ArchivedAt:     c.ArchivedAt,
		DeletedAt:      c.DeletedAt,
		GFPPlans:       []gfpPlanDTO{},
		WeeklyDocs:     map[string]weeklyDocDTO{},
		MonthlyReports: map[string]monthlyReportDTO{},
		VismaWeeks:     map[string]vismaWeekDTO{},
	}
	if c.CarePlan != nil {
		dto.CarePlan = &carePlanDTO{
			Goals:         c.CarePlan.Goals,
			Interventions: c.CarePlan.Interventions,
			UpdatedAt:     c.CarePlan.UpdatedAt,
		}
	}
	for _, p := range c.GFPPlans {
		dto.GFPPlans = append(dto.GFPPlans, gfpPlanDTO{
			ID: string(p.ID), Title: p.Title, Status: p.Status,
			CreatedAt: p.CreatedAt, DeletedAt: p.DeletedAt,
		})
	}
	for k, d := range c.WeeklyDocs {
		dto.WeeklyDocs[string(k)] = weeklyDocDTO{
			WeekID: string(d.WeekID), Note: d.Note, Status: d.Status,
			UpdatedAt: d.UpdatedAt, DeletedAt: d.DeletedAt,
		}
	}
	for k, r := range c.MonthlyReports {
		dto.MonthlyReports[string(k)] = monthlyReportDTO{
			MonthID: string(r.MonthID), Summary: r.Summary, Status: r.Status,
			UpdatedAt: r.UpdatedAt, DeletedAt: r.DeletedAt,
		}
	}
	for k, v := range c.VismaWeeks {
		dto.VismaWeeks[string(k)] = vismaWeekDTO{
			WeekID: string(v.WeekID), Hours: v.Hours.String(), Status: v.Status,
			UpdatedAt: v.UpdatedAt, DeletedAt: v.DeletedAt,
		}
	}
	return dto
}

// parseHours accepts decimal strings like "37.5"; empty means zero.
func parseHours(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func toHistoryEntryDTO(e history.Entry) historyEntryDTO {
	dto := historyEntryDTO{
		ID:         e.ID,
		PeriodType: string(e.PeriodType),
		PeriodID:   e.PeriodID,
		StaffID:    string(e.StaffID),
		ClientID:   string(e.ClientID),
		Metric:     string(e.Metric),
		Status:     e.Status,
		TS:         e.TS,
	}
	if e.Value.Valid {
		v := e.Value.Decimal.String()
		dto.Value = &v
	}
	return dto
}

func toHistoryEntry(req historyUpsertRequest) (history.Entry, error) {
	e := history.Entry{
		PeriodType: casework.PeriodType(req.PeriodType),
		PeriodID:   req.PeriodID,
		StaffID:    casework.StaffID(req.StaffID),
		ClientID:   casework.ClientID(req.ClientID),
		Metric:     history.Metric(req.Metric),
		Status:     req.Status,
	}
	if req.Value != nil {
		d, err := decimal.NewFromString(*req.Value)
		if err != nil {
			return history.Entry{}, err
		}
		e.Value = decimal.NewNullDecimal(d)
	}
	return e, nil
}

func toSweepPreviewResponse(plan *retention.Plan) sweepPreviewResponse {
	resp := sweepPreviewResponse{
		CutoffTimestamp: plan.CutoffTimestamp,
		Count:           len(plan.ToRemove),
		Items:           []removalItemDTO{},
	}
	for _, it := range plan.ToRemove {
		resp.Items = append(resp.Items, removalItemDTO{
			Type:      string(it.Type),
			ID:        it.ID,
			StaffID:   string(it.StaffID),
			ClientID:  string(it.ClientID),
			DeletedAt: it.DeletedAt,
			Data:      it.Data,
		})
	}
	return resp
}

func toSweepReportResponse(report *retention.Report) sweepReportResponse {
	resp := sweepReportResponse{
		Summary: report.Summary(),
		Removed: map[string]int{},
		Skipped: report.Skipped,
	}
	for kind, n := range report.Removed {
		resp.Removed[string(kind)] = n
	}
	for _, f := range report.Failures {
		resp.Failed = append(resp.Failed, string(f.Type)+"/"+f.ID+": "+f.Err.Error())
	}
	return resp
}

func toAuditEntryDTO(e casework.AuditEntry) auditEntryDTO {
	return auditEntryDTO{
		ID:          e.ID,
		Timestamp:   e.Timestamp,
		ActorID:     e.ActorID,
		Action:      string(e.Action),
		StaffID:     string(e.StaffID),
		ClientID:    string(e.ClientID),
		RecordCount: e.RecordCount,
		Details:     e.Details,
	}
}
