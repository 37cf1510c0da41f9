package api

import (
	"time"

	"tradewind/internal/orders"
)

type CreateOrderRequest struct {
	CustomerID string         `json:"customer_id"`
	Items      []OrderItemDTO `json:"items"`
}

type OrderItemDTO struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type OrderResponse struct {
	ID         string         `json:"id"`
	CustomerID string         `json:"customer_id"`
	State      string         `json:"state"`
	Amount     float64        `json:"amount"`
	Items      []OrderItemDTO `json:"items"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type SubmitResponse struct {
	SagaID  string `json:"saga_id"`
	OrderID string `json:"order_id"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func toOrderResponse(order orders.Order) OrderResponse {
	items := make([]OrderItemDTO, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return OrderResponse{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		State:      string(order.State),
		Amount:     order.Amount,
		Items:      items,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
	}
}
