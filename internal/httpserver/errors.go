package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	authmw "github.com/Skotchmaster/restaurant_ordering/pkg/middleware/auth"
)

var errUnauthorized = errors.New("unauthorized")

// statusFor is the only place domain errors become HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWebhookVerificationFailed),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDishNotFound),
		errors.Is(err, domain.ErrDishUnavailable),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotCancellable),
		errors.Is(err, domain.ErrInvalidPaymentTransition):
		return http.StatusBadRequest
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicatePayment):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail logs event and turns err into the response. Server-side failures are
// not echoed to the client.
func fail(l *slog.Logger, event string, err error) error {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case code == http.StatusInternalServerError:
		msg = "internal error"
		l.Error(event, "status", code, "reason", msg, "error", err)
	default:
		l.Warn(event, "status", code, "reason", http.StatusText(code), "error", err)
	}
	return echo.NewHTTPError(code, msg)
}

func badRequest(l *slog.Logger, event, reason string, err error) error {
	l.Warn(event, "status", http.StatusBadRequest, "reason", reason, "error", err)
	return echo.NewHTTPError(http.StatusBadRequest, reason)
}

// actorFrom reads the identity the auth middleware put on the context.
func actorFrom(c echo.Context) (domain.Actor, error) {
	s, ok := c.Get(authmw.ContextUserID).(string)
	if !ok || s == "" {
		return domain.Actor{}, errUnauthorized
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return domain.Actor{}, errUnauthorized
	}
	role, _ := c.Get(authmw.ContextRole).(string)
	if role == "" {
		role = string(domain.RoleUser)
	}
	return domain.Actor{UserID: id, Role: domain.Role(role)}, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}
