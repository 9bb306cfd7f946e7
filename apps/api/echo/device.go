package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
	"github.com/trezcool/darasa/core/attsession"
)

// deviceRejected is reported whenever a mark cannot be applied to the
// currently assigned student; the device should re-poll /current.
const deviceRejected = "rejected"

// deviceApi is the un-authed surface for the scanning hardware. It never
// exposes internal error detail; the device only ever sees coarse statuses.
type deviceApi struct {
	svc      attsession.ServiceInterface
	validate *validator.Validate
}

func registerDeviceAPI(g *echo.Group, svc attsession.ServiceInterface, validate *validator.Validate) {
	api := deviceApi{svc: svc, validate: validate}

	dg := g.Group("/device/att-sessions")
	dg.GET("/:id/current", api.current)
	dg.POST("/mark", api.mark)
}

// Handlers

func (api *deviceApi) current(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Current(ctx.Param("id")))
}

func (api *deviceApi) mark(ctx echo.Context) error {
	var data DeviceMarkRequest
	if err := ctx.Bind(&data); err != nil {
		return ctx.JSON(http.StatusOK, DeviceMarkResponse{Status: deviceRejected})
	}
	if err := data.Validate(api.validate); err != nil {
		return ctx.JSON(http.StatusOK, DeviceMarkResponse{Status: deviceRejected})
	}

	progress, err := api.svc.Mark(data.AttendanceToken, data.Status)
	if err != nil {
		switch errors.Cause(err) {
		case attsession.ErrSessionNotFound:
			return ctx.JSON(http.StatusOK, DeviceMarkResponse{Status: attsession.DeviceNoSession})
		case attsession.ErrSessionEnded:
			return ctx.JSON(http.StatusOK, DeviceMarkResponse{Status: attsession.DeviceEnded})
		case attsession.ErrInvalidToken, attsession.ErrInvalidStatus,
			attsession.ErrNoStudentAssigned, attsession.ErrStudentMismatch:
			return ctx.JSON(http.StatusOK, DeviceMarkResponse{Status: deviceRejected})
		}
		return errors.Wrap(err, "marking attendance")
	}

	return ctx.JSON(http.StatusOK, DeviceMarkResponse{
		Accepted: true,
		Status:   progress.Status,
		Present:  progress.Present,
		Absent:   progress.Absent,
		Position: progress.Position,
		Total:    progress.Total,
	})
}

type (
	DeviceMarkRequest struct {
		AttendanceToken string            `json:"attendance_token" validate:"required"`
		Status          attendance.Status `json:"status" validate:"required,oneof=present absent"`
	}

	DeviceMarkResponse struct {
		Accepted bool   `json:"accepted"`
		Status   string `json:"status"`
		Present  int    `json:"present,omitempty"`
		Absent   int    `json:"absent,omitempty"`
		Position int    `json:"position,omitempty"`
		Total    int    `json:"total,omitempty"`
	}
)

func (dr *DeviceMarkRequest) Validate(validate *validator.Validate) error {
	dr.AttendanceToken = core.CleanString(dr.AttendanceToken)
	return validate.Struct(dr)
}
