// Package inventory applies stock movements to materials. Every movement
// is an append-only ledger row whose delta, summed per material, equals
// the material's current stock.
package inventory

import (
	"context"
	"strings"

	"boxworks/apperr"
	"boxworks/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Movement types
const (
	TypePurchase   = "purchase"
	TypeUsage      = "usage"
	TypeSale       = "sale"
	TypeWaste      = "waste"
	TypeAdjustment = "adjustment"
)

func IsValidType(t string) bool {
	switch t {
	case TypePurchase, TypeUsage, TypeSale, TypeWaste, TypeAdjustment:
		return true
	}
	return false
}

// EventEmitter is the interface the inventory ledger uses to emit events.
type EventEmitter interface {
	EmitMaterialCreated(material *store.Material, actor string)
	EmitMaterialUpdated(material *store.Material, actor string)
	EmitMovementRecorded(movement *store.Movement, material *store.Material, actor string)
	EmitStockLow(material *store.Material, actor string)
}

// Stored precision. Quantities keep three decimal places and costs four;
// finer values are rejected rather than rounded by the database.
const (
	QuantityScale  = 3
	CostScale      = 4
	TotalCostScale = 4
)

var (
	maxQuantity  = decimal.New(1, 11)
	maxUnitCost  = decimal.New(1, 10)
	maxTotalCost = decimal.New(1, 12)
)

// checkDecimal reports an InvalidArgument when v has more than places
// decimal places or its magnitude reaches limit.
func checkDecimal(field string, v decimal.Decimal, places int32, limit decimal.Decimal) error {
	if !v.Equal(v.Truncate(places)) {
		return apperr.New(apperr.InvalidArgument, "%s %s has more than %d decimal places", field, v, places)
	}
	if v.Abs().GreaterThanOrEqual(limit) {
		return apperr.New(apperr.InvalidArgument, "%s %s is too large", field, v)
	}
	return nil
}

// totalCost is quantity times unit cost at the stored cost precision.
func totalCost(quantity, unitCost decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitCost).Round(TotalCostScale)
}

type MaterialRequest struct {
	Name         string
	Category     string
	Unit         string
	ReorderLevel decimal.Decimal
	UnitCost     decimal.Decimal
	OpeningStock decimal.Decimal
	Actor        string
}

// MovementRequest describes one ledger entry. For adjustments Quantity is
// the new absolute stock level. UnitCost defaults to the material's cost.
type MovementRequest struct {
	MaterialID     int64
	Type           string
	Quantity       decimal.Decimal
	UnitCost       *decimal.Decimal
	OrderID        *int64
	Notes          string
	Actor          string
	IdempotencyKey string
}

type MovementResult struct {
	Movement *store.Movement `json:"movement"`
	Material *store.Material `json:"material"`
	NewStock decimal.Decimal `json:"new_stock"`
}

// Verification compares a material's stored stock with its ledger.
type Verification struct {
	MaterialID   int64           `json:"material_id"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	LedgerStock  decimal.Decimal `json:"ledger_stock"`
	Movements    int             `json:"movements"`
	Consistent   bool            `json:"consistent"`
}

type Ledger struct {
	db      *store.DB
	emitter EventEmitter
	log     logrus.FieldLogger
}

func NewLedger(db *store.DB, emitter EventEmitter, logger logrus.FieldLogger) *Ledger {
	return &Ledger{db: db, emitter: emitter, log: logger.WithField("module", "inventory")}
}

// applyMovement returns the signed delta and resulting stock for a movement
// of typ and quantity against stock.
func applyMovement(stock decimal.Decimal, typ string, quantity decimal.Decimal) (delta, after decimal.Decimal, err error) {
	switch typ {
	case TypePurchase:
		delta = quantity
	case TypeUsage, TypeSale, TypeWaste:
		delta = quantity.Neg()
	case TypeAdjustment:
		return quantity.Sub(stock), quantity, nil
	default:
		return decimal.Zero, decimal.Zero, apperr.New(apperr.InvalidArgument, "unknown movement type %q", typ)
	}
	after = stock.Add(delta)
	if after.IsNegative() {
		return decimal.Zero, decimal.Zero, apperr.New(apperr.InsufficientStock, "%s of %s exceeds stock of %s", typ, quantity, stock)
	}
	return delta, after, nil
}

func validateMovement(req MovementRequest) error {
	if !IsValidType(req.Type) {
		return apperr.New(apperr.InvalidArgument, "unknown movement type %q", req.Type)
	}
	if req.Type == TypeAdjustment {
		if req.Quantity.IsNegative() {
			return apperr.New(apperr.InvalidArgument, "adjusted stock must not be negative")
		}
	} else if !req.Quantity.IsPositive() {
		return apperr.New(apperr.InvalidArgument, "quantity must be positive")
	}
	if err := checkDecimal("quantity", req.Quantity, QuantityScale, maxQuantity); err != nil {
		return err
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return apperr.New(apperr.InvalidArgument, "unit cost must not be negative")
		}
		if err := checkDecimal("unit cost", *req.UnitCost, CostScale, maxUnitCost); err != nil {
			return err
		}
	}
	return nil
}

// RecordMovement appends a ledger row and updates the material's stock in
// one transaction. The sufficiency check reads the stock inside that
// transaction.
func (l *Ledger) RecordMovement(ctx context.Context, req MovementRequest) (*MovementResult, error) {
	if err := validateMovement(req); err != nil {
		return nil, err
	}

	var res MovementResult
	err := l.db.WithTx(ctx, func(tx *store.Tx) error {
		if req.IdempotencyKey != "" {
			prior, err := tx.GetMovementByKey(ctx, req.IdempotencyKey)
			if err == nil {
				return apperr.WithExisting(prior, "movement %q already recorded", req.IdempotencyKey)
			}
			if !store.IsNotFound(err) {
				return apperr.Wrap(err, "look up idempotency key")
			}
		}

		material, err := lockMaterial(ctx, tx, req.MaterialID)
		if err != nil {
			return err
		}
		if req.OrderID != nil {
			if _, err := tx.GetOrder(ctx, *req.OrderID); store.IsNotFound(err) {
				return apperr.New(apperr.NotFound, "order %d not found", *req.OrderID)
			} else if err != nil {
				return apperr.Wrap(err, "get order %d", *req.OrderID)
			}
		}

		delta, after, err := applyMovement(material.CurrentStock, req.Type, req.Quantity)
		if err != nil {
			return err
		}
		if after.GreaterThanOrEqual(maxQuantity) {
			return apperr.New(apperr.InvalidArgument, "stock of %s would exceed the storable maximum", after)
		}
		unitCost := material.UnitCost
		if req.UnitCost != nil {
			unitCost = *req.UnitCost
		}
		total := totalCost(req.Quantity, unitCost)
		if err := checkDecimal("total cost", total, TotalCostScale, maxTotalCost); err != nil {
			return err
		}

		mv := &store.Movement{
			MaterialID:     material.ID,
			Type:           req.Type,
			Quantity:       req.Quantity,
			Delta:          delta,
			StockAfter:     after,
			UnitCost:       unitCost,
			TotalCost:      total,
			OrderID:        req.OrderID,
			Notes:          req.Notes,
			Actor:          req.Actor,
			IdempotencyKey: req.IdempotencyKey,
		}
		if err := tx.InsertMovement(ctx, mv); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.New(apperr.Conflict, "movement %q already recorded", req.IdempotencyKey)
			}
			return apperr.Wrap(err, "insert movement")
		}
		if err := tx.SetMaterialStock(ctx, material.ID, after); err != nil {
			return apperr.Wrap(err, "update stock of material %d", material.ID)
		}

		material.CurrentStock = after
		res = MovementResult{Movement: mv, Material: material, NewStock: after}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"material_id": res.Material.ID,
		"type":        req.Type,
		"delta":       res.Movement.Delta.String(),
		"stock":       res.NewStock.String(),
	}).Debug("movement recorded")
	l.emitter.EmitMovementRecorded(res.Movement, res.Material, req.Actor)
	if res.Movement.Delta.IsNegative() && res.Material.BelowReorder() {
		l.emitter.EmitStockLow(res.Material, req.Actor)
	}
	return &res, nil
}

// CreateMaterial inserts a material. A positive opening stock is booked as
// an adjustment in the same transaction.
func (l *Ledger) CreateMaterial(ctx context.Context, req MaterialRequest) (*store.Material, error) {
	if err := validateMaterial(req.Name, req.ReorderLevel, req.UnitCost); err != nil {
		return nil, err
	}
	if req.OpeningStock.IsNegative() {
		return nil, apperr.New(apperr.InvalidArgument, "opening stock must not be negative")
	}
	if err := checkDecimal("opening stock", req.OpeningStock, QuantityScale, maxQuantity); err != nil {
		return nil, err
	}
	if err := checkDecimal("opening stock value", totalCost(req.OpeningStock, req.UnitCost), TotalCostScale, maxTotalCost); err != nil {
		return nil, err
	}
	if req.Unit == "" {
		req.Unit = "pcs"
	}

	var created *store.Material
	err := l.db.WithTx(ctx, func(tx *store.Tx) error {
		m := &store.Material{
			Name:         strings.TrimSpace(req.Name),
			Category:     req.Category,
			Unit:         req.Unit,
			ReorderLevel: req.ReorderLevel,
			UnitCost:     req.UnitCost,
		}
		if err := tx.CreateMaterial(ctx, m); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.New(apperr.Conflict, "material %q already exists", m.Name)
			}
			return apperr.Wrap(err, "create material")
		}
		if req.OpeningStock.IsPositive() {
			mv := &store.Movement{
				MaterialID: m.ID,
				Type:       TypeAdjustment,
				Quantity:   req.OpeningStock,
				Delta:      req.OpeningStock,
				StockAfter: req.OpeningStock,
				UnitCost:   req.UnitCost,
				TotalCost:  totalCost(req.OpeningStock, req.UnitCost),
				Notes:      "opening stock",
				Actor:      req.Actor,
			}
			if err := tx.InsertMovement(ctx, mv); err != nil {
				return apperr.Wrap(err, "book opening stock")
			}
			if err := tx.SetMaterialStock(ctx, m.ID, req.OpeningStock); err != nil {
				return apperr.Wrap(err, "book opening stock")
			}
		}
		var err error
		created, err = tx.GetMaterial(ctx, m.ID)
		return apperr.Wrap(err, "reload material %d", m.ID)
	})
	if err != nil {
		return nil, err
	}
	l.emitter.EmitMaterialCreated(created, req.Actor)
	return created, nil
}

// UpdateMaterial edits a material's descriptive fields and thresholds.
// Stock only changes through movements.
func (l *Ledger) UpdateMaterial(ctx context.Context, id int64, req MaterialRequest) (*store.Material, error) {
	if err := validateMaterial(req.Name, req.ReorderLevel, req.UnitCost); err != nil {
		return nil, err
	}
	m, err := l.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = strings.TrimSpace(req.Name)
	m.Category = req.Category
	if req.Unit != "" {
		m.Unit = req.Unit
	}
	m.ReorderLevel = req.ReorderLevel
	m.UnitCost = req.UnitCost
	if err := l.db.UpdateMaterial(ctx, m); err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.New(apperr.Conflict, "material %q already exists", m.Name)
		}
		return nil, apperr.Wrap(err, "update material %d", id)
	}
	updated, err := l.GetMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	l.emitter.EmitMaterialUpdated(updated, req.Actor)
	return updated, nil
}

func validateMaterial(name string, reorderLevel, unitCost decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.InvalidArgument, "material name is required")
	}
	if reorderLevel.IsNegative() {
		return apperr.New(apperr.InvalidArgument, "reorder level must not be negative")
	}
	if unitCost.IsNegative() {
		return apperr.New(apperr.InvalidArgument, "unit cost must not be negative")
	}
	if err := checkDecimal("reorder level", reorderLevel, QuantityScale, maxQuantity); err != nil {
		return err
	}
	return checkDecimal("unit cost", unitCost, CostScale, maxUnitCost)
}

func (l *Ledger) GetMaterial(ctx context.Context, id int64) (*store.Material, error) {
	m, err := l.db.GetMaterial(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "material %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get material %d", id)
	}
	return m, nil
}

func (l *Ledger) ListMaterials(ctx context.Context) ([]*store.Material, error) {
	materials, err := l.db.ListMaterials(ctx)
	return materials, apperr.Wrap(err, "list materials")
}

// LowStock returns materials at or below their reorder level.
func (l *Ledger) LowStock(ctx context.Context) ([]*store.Material, error) {
	materials, err := l.db.ListLowStockMaterials(ctx)
	return materials, apperr.Wrap(err, "list low stock")
}

// ListMovements returns a material's ledger newest first.
func (l *Ledger) ListMovements(ctx context.Context, materialID int64, limit int) ([]*store.Movement, error) {
	if _, err := l.GetMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	movements, err := l.db.ListMovements(ctx, materialID, limit)
	return movements, apperr.Wrap(err, "list movements for material %d", materialID)
}

// ReplayStock folds a material's ledger into the stock it implies.
func (l *Ledger) ReplayStock(ctx context.Context, materialID int64) (decimal.Decimal, error) {
	v, err := l.Verify(ctx, materialID)
	if err != nil {
		return decimal.Zero, err
	}
	return v.LedgerStock, nil
}

// Verify replays the ledger and compares it with the stored stock.
func (l *Ledger) Verify(ctx context.Context, materialID int64) (*Verification, error) {
	m, err := l.GetMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	movements, err := l.db.ListMovements(ctx, materialID, 0)
	if err != nil {
		return nil, apperr.Wrap(err, "list movements for material %d", materialID)
	}
	ledger := decimal.Zero
	for _, mv := range movements {
		ledger = ledger.Add(mv.Delta)
	}
	v := &Verification{
		MaterialID:   m.ID,
		CurrentStock: m.CurrentStock,
		LedgerStock:  ledger,
		Movements:    len(movements),
		Consistent:   ledger.Equal(m.CurrentStock),
	}
	if !v.Consistent {
		l.log.WithFields(logrus.Fields{
			"material_id": m.ID,
			"stock":       m.CurrentStock.String(),
			"ledger":      ledger.String(),
		}).Warn("stock does not match ledger")
	}
	return v, nil
}

func lockMaterial(ctx context.Context, tx *store.Tx, id int64) (*store.Material, error) {
	m, err := tx.GetMaterialForUpdate(ctx, id)
	if store.IsNotFound(err) {
		return nil, apperr.New(apperr.NotFound, "material %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "get material %d", id)
	}
	return m, nil
}
