package httpserver

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/gateway"
	"github.com/Skotchmaster/restaurant_ordering/internal/service"
	"github.com/Skotchmaster/restaurant_ordering/internal/transport"
	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
)

const maxWebhookBody = 1 << 20

type PaymentHTTP struct {
	Svc *service.PaymentService
}

// CreatePayment records the payment and immediately hands it to its provider.
func (h *PaymentHTTP) CreatePayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.create_payment")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "create_payment_error", err)
	}
	var req transport.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_payment_error", "invalid body", err)
	}

	p, err := h.Svc.CreatePayment(ctx, actor, req.OrderID, req.PaymentMethod)
	if err != nil {
		return fail(l, "create_payment_error", err)
	}
	p, co, err := h.Svc.Dispatch(ctx, p.ID)
	if err != nil {
		return fail(l, "create_payment_error", err)
	}

	l.Info("create_payment_success", "payment_id", p.ID, "provider", p.Provider, "status", p.Status)
	return c.JSON(http.StatusCreated, transport.NewCreatePaymentResponse(p, co))
}

func (h *PaymentHTTP) GetPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.get_payment")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "get_payment_error", err)
	}
	id, err := pathID(c)
	if err != nil {
		return badRequest(l, "get_payment_error", "invalid id", err)
	}

	p, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		return fail(l, "get_payment_error", err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PaymentHTTP) GetStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.get_status")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "get_status_error", err)
	}
	id, err := pathID(c)
	if err != nil {
		return badRequest(l, "get_status_error", "invalid id", err)
	}

	p, err := h.Svc.Get(ctx, actor, id)
	if err != nil {
		return fail(l, "get_status_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewPaymentStatusResponse(p))
}

func (h *PaymentHTTP) History(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.history")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "history_error", err)
	}
	limit, offset := transport.Page(c.QueryParam("page"), c.QueryParam("page_size"))

	payments, err := h.Svc.History(ctx, actor, domain.PaymentStatus(c.QueryParam("status")), limit, offset)
	if err != nil {
		return fail(l, "history_error", err)
	}
	return c.JSON(http.StatusOK, payments)
}

func (h *PaymentHTTP) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "payment.confirm_payment")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "confirm_payment_error", err)
	}
	id, err := pathID(c)
	if err != nil {
		return badRequest(l, "confirm_payment_error", "invalid id", err)
	}
	var req transport.ConfirmPaymentRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest(l, "confirm_payment_error", "invalid body", err)
		}
	}

	p, err := h.Svc.ConfirmPayment(ctx, actor, id, req.TransactionID)
	if err != nil {
		return fail(l, "confirm_payment_error", err)
	}

	l.Info("confirm_payment_success", "payment_id", p.ID)
	return c.JSON(http.StatusOK, transport.NewPaymentStatusResponse(p))
}

// Webhook returns the handler for one provider's notifications. The raw body
// is kept untouched because signatures are computed over it.
func (h *PaymentHTTP) Webhook(provider domain.Provider, signatureHeader string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		l := logging.FromContext(ctx).With("handler", "payment.webhook", "provider", provider)

		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
		if err != nil {
			return badRequest(l, "webhook_error", "unreadable body", err)
		}

		rec, err := h.Svc.HandleWebhook(ctx, provider, gateway.WebhookRequest{
			Payload:   body,
			Signature: c.Request().Header.Get(signatureHeader),
			RequestID: c.Request().Header.Get("X-Request-Id"),
		})
		if err != nil {
			return fail(l, "webhook_error", err)
		}

		return c.JSON(http.StatusOK, transport.WebhookResponse{Received: true, Processed: rec.Processed})
	}
}
