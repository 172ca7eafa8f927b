package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/restaurant_ordering/internal/domain"
	"github.com/Skotchmaster/restaurant_ordering/internal/service"
	"github.com/Skotchmaster/restaurant_ordering/internal/transport"
	"github.com/Skotchmaster/restaurant_ordering/pkg/logging"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_order_error", "invalid body", err)
	}

	order, err := h.Svc.CreateOrder(ctx, actor, req)
	if err != nil {
		return fail(l, "create_order_error", err)
	}

	l.Info("create_order_success", "order_id", order.ID)
	return c.JSON(http.StatusCreated, transport.NewOrderResponse(order))
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	id, err := pathID(c)
	if err != nil {
		return badRequest(l, "get_order_error", "invalid id", err)
	}

	order, err := h.Svc.GetOrder(ctx, actor, id)
	if err != nil {
		return fail(l, "get_order_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderResponse(order))
}

func (h *OrderHTTP) ListMine(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_mine")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	limit, offset := transport.Page(c.QueryParam("page"), c.QueryParam("page_size"))

	orders, err := h.Svc.ListMine(ctx, actor, domain.OrderStatus(c.QueryParam("status")), limit, offset)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderList(orders))
}

func (h *OrderHTTP) ListAll(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_all")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	limit, offset := transport.Page(c.QueryParam("page"), c.QueryParam("page_size"))

	orders, err := h.Svc.ListAll(ctx, actor, domain.OrderStatus(c.QueryParam("status")), limit, offset)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderList(orders))
}

func (h *OrderHTTP) ListPending(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_pending")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	limit, offset := transport.Page(c.QueryParam("page"), c.QueryParam("page_size"))

	orders, err := h.Svc.ListPending(ctx, actor, limit, offset)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderList(orders))
}

func (h *OrderHTTP) ListInProgress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_in_progress")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	limit, offset := transport.Page(c.QueryParam("page"), c.QueryParam("page_size"))

	orders, err := h.Svc.ListInProgress(ctx, actor, limit, offset)
	if err != nil {
		return fail(l, "list_orders_error", err)
	}
	return c.JSON(http.StatusOK, transport.NewOrderList(orders))
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "update_status_error", err)
	}
	id, err := pathID(c)
	if err != nil {
		return badRequest(l, "update_status_error", "invalid id", err)
	}
	var req transport.UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_status_error", "invalid body", err)
	}

	order, err := h.Svc.UpdateStatus(ctx, actor, id, req.Status)
	if err != nil {
		return fail(l, "update_status_error", err)
	}

	l.Info("update_status_success", "order_id", order.ID, "status", order.Status)
	return c.JSON(http.StatusOK, transport.NewOrderResponse(order))
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel_order")

	actor, err := actorFrom(c)
	if err != nil {
		return fail(l, "cancel_order_error", err)
	}
	id, err := pathID(c)
	if err != nil {
		return badRequest(l, "cancel_order_error", "invalid id", err)
	}

	order, err := h.Svc.CancelOrder(ctx, actor, id)
	if err != nil {
		return fail(l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", order.ID)
	return c.JSON(http.StatusOK, transport.NewOrderResponse(order))
}
