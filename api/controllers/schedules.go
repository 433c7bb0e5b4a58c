package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkpress-cms/mediakeeper/api/responses"
	"github.com/inkpress-cms/mediakeeper/api/validators"
	"github.com/inkpress-cms/mediakeeper/internal/scheduler"
	pkgerrors "github.com/inkpress-cms/mediakeeper/pkg/errors"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
)

func ScheduleCreate(svc scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduler.ScheduleInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schedule, err := svc.Create(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, schedule)
	}
}

func ScheduleList(svc scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schedules, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now()
		type scheduleView struct {
			Schedule      any        `json:"schedule"`
			NextExecution *time.Time `json:"nextExecution,omitempty"`
		}
		views := make([]scheduleView, 0, len(schedules))
		for _, s := range schedules {
			view := scheduleView{Schedule: s}
			if next, err := scheduler.NextExecution(s, now); err == nil {
				view.NextExecution = &next
			}
			views = append(views, view)
		}
		responses.WriteSuccess(w, views)
	}
}

func ScheduleGet(svc scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scheduleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schedule, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schedule)
	}
}

func ScheduleUpdate(svc scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scheduleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req scheduler.ScheduleInput
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		schedule, err := svc.Update(r.Context(), id, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, schedule)
	}
}

func ScheduleDelete(svc scheduler.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scheduleID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func scheduleID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "scheduleId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid schedule id")
	}
	return id, nil
}
