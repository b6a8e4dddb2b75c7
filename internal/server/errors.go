package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/coffee_atm/internal/balance"
	"github.com/congo-pay/coffee_atm/internal/catalog"
	"github.com/congo-pay/coffee_atm/internal/ledger"
	"github.com/congo-pay/coffee_atm/internal/middleware"
	"github.com/congo-pay/coffee_atm/internal/operation"
	"github.com/congo-pay/coffee_atm/internal/purchase"
	"github.com/congo-pay/coffee_atm/internal/wallet"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Order matters: ErrInsufficientLedgerFunds must be checked before
// ErrLedgerReverted, which it also matches.
var errorMappings = []errorMapping{
	{operation.ErrBusy, http.StatusConflict, "busy"},
	{operation.ErrTimedOut, http.StatusGatewayTimeout, "timed_out"},
	{operation.ErrUnknownKind, http.StatusBadRequest, "unknown_operation"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrNotConnected, http.StatusConflict, "not_connected"},
	{wallet.ErrCapabilityUnavailable, http.StatusServiceUnavailable, "capability_unavailable"},
	{wallet.ErrConnectionRejected, http.StatusForbidden, "connection_rejected"},
	{ledger.ErrUserRejectedSignature, http.StatusForbidden, "user_rejected_signature"},
	{ledger.ErrInsufficientLedgerFunds, http.StatusUnprocessableEntity, "insufficient_ledger_funds"},
	{ledger.ErrLedgerReverted, http.StatusUnprocessableEntity, "ledger_reverted"},
	{catalog.ErrUnknownItem, http.StatusNotFound, "unknown_item"},
	{purchase.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{balance.ErrBalanceNotYetLoaded, http.StatusConflict, "balance_not_yet_loaded"},
	{balance.ErrRefreshFailed, http.StatusBadGateway, "refresh_failed"},
}

// ErrorHandler renders every error as {"error": code, "message": text}.
// Domain errors get a stable code; fiber errors keep their status.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code := classify(err)
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request error",
				slog.String("path", c.Path()),
				slog.String("request_id", middleware.RequestIDFrom(c)),
				slog.Any("error", err),
			)
		}
		return c.Status(status).JSON(fiber.Map{
			"error":   code,
			"message": err.Error(),
		})
	}
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, codeForStatus(fe.Code)
	}
	return http.StatusInternalServerError, "internal"
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "unprocessable"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "error"
	}
}
