package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-allotment/internal/dto"
	"github.com/noah-isme/sma-adp-allotment/internal/middleware"
	"github.com/noah-isme/sma-adp-allotment/internal/models"
	"github.com/noah-isme/sma-adp-allotment/internal/service"
	appErrors "github.com/noah-isme/sma-adp-allotment/pkg/errors"
	"github.com/noah-isme/sma-adp-allotment/pkg/logger"
	"github.com/noah-isme/sma-adp-allotment/pkg/response"
)

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return false
	}
	return true
}

// allotmentError renders a rejection with the blocking bookings as data so callers can show them inline.
func allotmentError(c *gin.Context, err error) {
	if rejection, ok := service.RejectionOf(err); ok {
		logger.FromContext(c).Info("allotment rejected",
			zap.String("reason", string(rejection.Reason)),
			zap.Int("conflicts", len(rejection.Conflicts)),
			zap.String("actor", actorID(c)))
		conflicts := rejection.Conflicts
		if conflicts == nil {
			conflicts = []models.Booking{}
		}
		response.ErrorWithData(c, err, dto.ConflictResponse{Reason: string(rejection.Reason), Conflicts: conflicts})
		return
	}
	var unknown *models.UnknownResourcesError
	if errors.As(err, &unknown) {
		response.ErrorWithData(c, err, gin.H{"missing": unknown.Missing})
		return
	}
	response.Error(c, err)
}

func actorID(c *gin.Context) string {
	if claims, ok := middleware.ClaimsFrom(c); ok {
		return claims.UserID
	}
	return ""
}

func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 50
	}
	return page, size
}
