package protocol

import "github.com/shopspring/decimal"

// OrderEvent carries order lifecycle changes.
type OrderEvent struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	CustomerRef string `json:"customer_ref,omitempty"`
	OldStatus   string `json:"old_status,omitempty"`
	Status      string `json:"status"`
	Version     int64  `json:"version"`
	Note        string `json:"note,omitempty"`
	Actor       string `json:"actor"`
}

type TaskEvent struct {
	TaskID    int64  `json:"task_id"`
	OrderID   int64  `json:"order_id"`
	Title     string `json:"title"`
	Assignee  string `json:"assignee,omitempty"`
	OldStatus string `json:"old_status,omitempty"`
	Status    string `json:"status"`
	Actor     string `json:"actor"`
}

// MaterialEvent is published for material changes and low-stock warnings.
type MaterialEvent struct {
	MaterialID   int64           `json:"material_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Actor        string          `json:"actor"`
}

type MovementEvent struct {
	MovementID   int64           `json:"movement_id"`
	MaterialID   int64           `json:"material_id"`
	MaterialName string          `json:"material_name"`
	Type         string          `json:"type"`
	Quantity     decimal.Decimal `json:"quantity"`
	Delta        decimal.Decimal `json:"delta"`
	StockAfter   decimal.Decimal `json:"stock_after"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	OrderID      *int64          `json:"order_id,omitempty"`
	Actor        string          `json:"actor"`
}

type AlertEvent struct {
	AlertID       int64           `json:"alert_id"`
	MaterialID    int64           `json:"material_id"`
	MaterialName  string          `json:"material_name"`
	Priority      string          `json:"priority"`
	OldStatus     string          `json:"old_status,omitempty"`
	Status        string          `json:"status"`
	StockSnapshot decimal.Decimal `json:"stock_snapshot"`
	Actor         string          `json:"actor"`
}

type QualityEvent struct {
	CheckID       int64  `json:"check_id"`
	OrderID       int64  `json:"order_id"`
	OverallStatus string `json:"overall_status"`
	Items         int    `json:"items"`
	FailedItems   int    `json:"failed_items"`
	Inspector     string `json:"inspector"`
}
