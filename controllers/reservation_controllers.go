package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/table-reservations/repository"
	"github.com/yeremiapane/table-reservations/services"
	"github.com/yeremiapane/table-reservations/utils"
)

var (
	errInvalidID     = errors.New("invalid reservation id")
	errInternal      = errors.New("internal server error")
	errNotFound      = errors.New("Reservation not found")
	errListNotFound  = errors.New("Reservations not found")
	errLimitExceeded = errors.New("Reservation limit exceeded")
)

type ReservationController struct {
	Service *services.ReservationService
}

func NewReservationController(svc *services.ReservationService) *ReservationController {
	return &ReservationController{Service: svc}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errInvalidID)
		return 0, false
	}
	return uint(id), true
}

func internalError(c *gin.Context, err error) {
	utils.ErrorLogger.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
	_ = c.Error(err)
	utils.RespondError(c, http.StatusInternalServerError, errInternal)
}

// GetReservation -> GET /reservations/:id
func (rc *ReservationController) GetReservation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, err := rc.Service.GetReservation(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if view == nil {
		utils.RespondError(c, http.StatusNotFound, errNotFound)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reservation found", view)
}

func parseFilter(c *gin.Context) (repository.ReservationFilter, error) {
	var f repository.ReservationFilter

	if v := c.Query("clientId"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid clientId %q", v)
		}
		id := uint(n)
		f.ClientID = &id
	}
	if v := c.Query("tableNumber"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("invalid tableNumber %q", v)
		}
		f.TableNumber = &n
	}
	if v := c.Query("date"); v != "" {
		d, err := services.ParseDate(v)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	if v := c.Query("reservationType"); v != "" {
		f.ReservationType = &v
	}
	return f, nil
}

// GetAllReservations -> GET /reservations?clientId=&tableNumber=&date=&reservationType=
func (rc *ReservationController) GetAllReservations(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	views, err := rc.Service.GetAllReservations(c.Request.Context(), filter)
	if err != nil {
		internalError(c, err)
		return
	}
	if len(views) == 0 {
		utils.RespondError(c, http.StatusNotFound, errListNotFound)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of reservations", views)
}

// CreateReservation -> POST /reservations
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	var req services.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Service.AddReservation(c.Request.Context(), req)
	if err != nil {
		internalError(c, err)
		return
	}

	switch res.Outcome {
	case services.OutcomeCreated:
		c.Header("Location", fmt.Sprintf("/reservations/%d", res.ID))
		utils.RespondJSON(c, http.StatusCreated, "Reservation created", res.Reservation)
	case services.OutcomeLimitExceeded:
		utils.RespondError(c, http.StatusBadRequest, errLimitExceeded)
	case services.OutcomeRejected:
		utils.RespondError(c, res.Err.Code, res.Err)
	default:
		internalError(c, fmt.Errorf("unexpected outcome %s", res.Outcome))
	}
}

// UpdateReservation -> PUT /reservations/:id
func (rc *ReservationController) UpdateReservation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := rc.Service.UpdateReservation(c.Request.Context(), id, req)
	if err != nil {
		internalError(c, err)
		return
	}

	switch res.Outcome {
	case services.OutcomeUpdated:
		utils.RespondJSON(c, http.StatusOK, "Reservation updated", res.Reservation)
	case services.OutcomeNotFound:
		utils.RespondError(c, http.StatusNotFound, errNotFound)
	case services.OutcomeRejected:
		utils.RespondError(c, res.Err.Code, res.Err)
	default:
		internalError(c, fmt.Errorf("unexpected outcome %s", res.Outcome))
	}
}

// DeleteReservation -> DELETE /reservations/:id
func (rc *ReservationController) DeleteReservation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := rc.Service.DeleteReservation(c.Request.Context(), id)
	if err != nil {
		internalError(c, err)
		return
	}
	if !deleted {
		utils.RespondError(c, http.StatusNotFound, errNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
