package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-orders/services"
	"github.com/yeremiapane/restaurant-orders/utils"
	"gorm.io/gorm"
)

// statusFor maps domain and persistence errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidQuantity),
		errors.Is(err, services.ErrInvalidNotification),
		errors.Is(err, services.ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrIllegalTransition), errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(c *gin.Context, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		utils.ErrorLogger.WithField("path", c.FullPath()).Errorf("request failed: %v", err)
	}
	utils.RespondError(c, code, err)
}

// paramID parses a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errInvalid(name))
		return 0, false
	}
	return uint(id), true
}

func errInvalid(what string) error {
	return errors.New("invalid " + what)
}
