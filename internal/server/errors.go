package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/metaproph3t/futarchy-ui/internal/chain"
	"github.com/metaproph3t/futarchy-ui/internal/market"
	"github.com/metaproph3t/futarchy-ui/internal/swapengine"
	"github.com/metaproph3t/futarchy-ui/internal/units"
	"github.com/metaproph3t/futarchy-ui/internal/vault"
)

// NotFoundJSON returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func NotFoundJSON() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		// Handle Echo HTTP errors (like 404, 400, etc.)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		// Handle all other errors as internal server error
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}

var errInvalidAddress = errors.New("invalid address")

// statusFor maps an engine error to an HTTP status. Not-found is checked
// before the deposit/swap failure wrappers, which may carry it.
func statusFor(err error) int {
	var (
		branchErr  *market.InvalidBranchError
		depositErr *vault.DepositFailedError
		swapErr    *swapengine.SwapFailedError
	)
	switch {
	case errors.Is(err, units.ErrInvalidAmount),
		errors.Is(err, units.ErrUnknownAsset),
		errors.Is(err, units.ErrScaleMismatch),
		errors.Is(err, swapengine.ErrInvalidPair),
		errors.As(err, &branchErr):
		return http.StatusBadRequest
	case errors.Is(err, swapengine.ErrNoWallet), errors.Is(err, errInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, chain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.As(err, &depositErr), errors.As(err, &swapErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
