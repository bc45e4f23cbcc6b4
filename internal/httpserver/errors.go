package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/goodhaul/incentive/pkg/incentive"
)

// respondError translates a domain error into a stable error code and HTTP
// status. Internal failures are logged with their operation metadata and
// returned without detail.
func (server *Server) respondError(ctx *gin.Context, err error) {
	var insufficient incentive.InsufficientPointsError
	if errors.As(err, &insufficient) {
		ctx.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":           "insufficient_points",
				"message":        insufficient.Error(),
				"deficit_points": insufficient.DeficitPoints,
			},
		})
		return
	}
	var illegal incentive.IllegalTransitionError
	if errors.As(err, &illegal) {
		ctx.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":     "illegal_transition",
				"message":  illegal.Error(),
				"current":  illegal.Current.String(),
				"rejected": illegal.Attempted.String(),
			},
		})
		return
	}

	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		server.logInternalError(err)
		message = "internal error"
	}
	ctx.JSON(status, errorResponse(code, message))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, incentive.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, incentive.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, incentive.ErrNoSponsor):
		return http.StatusConflict, "no_sponsor"
	case errors.Is(err, incentive.ErrEmptyCart):
		return http.StatusConflict, "empty_cart"
	case errors.Is(err, incentive.ErrProductUnavailable):
		return http.StatusConflict, "product_unavailable"
	case errors.Is(err, incentive.ErrApplicationExists):
		return http.StatusConflict, "application_exists"
	case errors.Is(err, incentive.ErrRefundRequestClosed):
		return http.StatusConflict, "refund_request_closed"
	case errors.Is(err, incentive.ErrInvalidOrderStatus):
		return http.StatusConflict, "invalid_order_status"
	case errors.Is(err, incentive.ErrInvalidUserID),
		errors.Is(err, incentive.ErrInvalidDriverProfileID),
		errors.Is(err, incentive.ErrInvalidSponsorID),
		errors.Is(err, incentive.ErrInvalidOrderID),
		errors.Is(err, incentive.ErrInvalidPoints),
		errors.Is(err, incentive.ErrInvalidReason),
		errors.Is(err, incentive.ErrInvalidDeliveryInfo),
		errors.Is(err, incentive.ErrInvalidQuantity),
		errors.Is(err, incentive.ErrInvalidTitle),
		errors.Is(err, incentive.ErrInvalidPointValue),
		errors.Is(err, incentive.ErrInvalidApplicationStatus):
		return http.StatusBadRequest, "invalid_argument"
	}
	return http.StatusInternalServerError, "internal"
}

func (server *Server) logInternalError(err error) {
	fields := []zap.Field{zap.Error(err)}
	var operationError incentive.OperationError
	if errors.As(err, &operationError) {
		fields = append(fields,
			zap.String("operation", operationError.Operation()),
			zap.String("subject", operationError.Subject()),
			zap.String("code", operationError.Code()),
		)
	}
	server.logger.Error("request failed", fields...)
}
