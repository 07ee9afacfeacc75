package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/you-humble/repair-shop/internal/model"
)

const orderColumns = "id, number, customer_id, technician_id, device_type, device_brand, " +
	"device_model, device_serial, fault, condition_note, state, quotation_state, " +
	"cost_total_cents, paid, received_at, delivered_at, collector_name"

type repository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

func NewOrderRepository(pool *pgxpool.Pool) *repository {
	return &repository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *repository) Create(ctx context.Context, params model.CreateOrderParams) (*model.RepairOrder, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx,
		"SELECT nextval('repair_order_number_seq')",
	).Scan(&seq); err != nil {
		return nil, err
	}

	number := fmt.Sprintf("RO-%s-%04d", time.Now().UTC().Format("20060102"), seq)

	q := r.sb.
		Insert("repair_orders").
		Columns("number", "customer_id", "technician_id", "device_type", "device_brand",
			"device_model", "device_serial", "fault", "condition_note").
		Values(number, params.CustomerID, params.TechnicianID, params.DeviceType,
			params.DeviceBrand, params.DeviceModel, params.DeviceSerial,
			params.Fault, params.Condition).
		Suffix("RETURNING " + orderColumns)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	return scanOrder(r.pool.QueryRow(ctx, sqlStr, args...))
}

func (r *repository) OrderByID(ctx context.Context, id uuid.UUID) (*model.RepairOrder, error) {
	q := r.sb.
		Select(orderColumns).
		From("repair_orders").
		Where(sq.Eq{"id": id})

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	ord, err := scanOrder(r.pool.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}

	return ord, nil
}

func (r *repository) List(ctx context.Context, filter model.OrdersFilter) ([]*model.RepairOrder, error) {
	q := r.sb.
		Select(orderColumns).
		From("repair_orders").
		OrderBy("received_at DESC")

	if filter.State != nil {
		q = q.Where(sq.Eq{"state": *filter.State})
	}
	if filter.CustomerID != nil {
		q = q.Where(sq.Eq{"customer_id": *filter.CustomerID})
	}
	if filter.TechnicianID != nil {
		q = q.Where(sq.Eq{"technician_id": *filter.TechnicianID})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.RepairOrder, 0)
	for rows.Next() {
		ord, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ord)
	}

	return out, rows.Err()
}

func (r *repository) Transitions(ctx context.Context, orderID uuid.UUID) ([]model.RepairTransition, error) {
	q := r.sb.
		Select("id", "order_id", "from_state", "to_state", "note", "actor_id", "created_at").
		From("repair_transitions").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at", "id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.RepairTransition, 0)
	for rows.Next() {
		var tr model.RepairTransition
		if err := rows.Scan(&tr.ID, &tr.OrderID, &tr.FromState, &tr.ToState,
			&tr.Note, &tr.ActorID, &tr.At); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}

	return out, rows.Err()
}

// UpdateState performs a generic lifecycle transition as a compare-and-swap
// on the current state: the UPDATE only matches when the order still is in
// `from`, so a concurrent transition that won the race makes this one fail
// instead of silently overwriting it.
func (r *repository) UpdateState(ctx context.Context, params model.TransitionParams, from model.RepairState) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		"UPDATE repair_orders SET state = $1 WHERE id = $2 AND state = $3",
		params.Target, params.OrderID, from,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.stateConflictError(ctx, params.OrderID)
	}

	if err := r.appendTransition(ctx, tx, params.OrderID, from, params.Target,
		params.Note, params.ActorID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FinalizeDiagnosis moves Diagnosing -> QuotationReady, persisting the
// quotation lines and the provisional total in the same transaction.
func (r *repository) FinalizeDiagnosis(ctx context.Context, params model.FinalizeDiagnosisParams, totalCents int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		"UPDATE repair_orders SET state = $1, cost_total_cents = $2 WHERE id = $3 AND state = $4",
		model.StateQuotationReady, totalCents, params.OrderID, model.StateDiagnosing,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.stateConflictError(ctx, params.OrderID)
	}

	ins := r.sb.
		Insert("quotation_lines").
		Columns("order_id", "description", "quantity", "unit_cost_cents")
	for _, line := range params.Lines {
		ins = ins.Values(params.OrderID, line.Description, line.Quantity, line.UnitCostCents)
	}

	sqlStr, args, err := ins.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sqlStr, args...); err != nil {
		return err
	}

	if err := r.appendTransition(ctx, tx, params.OrderID, model.StateDiagnosing,
		model.StateQuotationReady, "", params.ActorID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ResolveQuotation applies the client's accept/reject decision. On accept
// the cost total is recomputed from the lines inside the transaction; on
// reject the caller passes the override total (the fixed diagnostic fee).
func (r *repository) ResolveQuotation(ctx context.Context, params model.ResolveQuotationParams, rejectTotalCents int64) (*model.RepairOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var state model.RepairState
	err = tx.QueryRow(ctx,
		"SELECT state FROM repair_orders WHERE id = $1 FOR UPDATE",
		params.OrderID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}

	switch state {
	case model.StateQuotationReady:
	case model.StateQuotationAccepted, model.StateQuotationRejected:
		return nil, model.ErrQuotationAlreadyResolved
	default:
		return nil, model.ErrIllegalTransition
	}

	accepted := params.Decision == model.DecisionAccept

	if _, err := tx.Exec(ctx,
		"UPDATE quotation_lines SET accepted = $1 WHERE order_id = $2",
		accepted, params.OrderID,
	); err != nil {
		return nil, err
	}

	var (
		target  model.RepairState
		quState model.QuotationState
		row     pgx.Row
	)
	if accepted {
		target, quState = model.StateQuotationAccepted, model.QuotationAccepted
		row = tx.QueryRow(ctx,
			`UPDATE repair_orders SET state = $1, quotation_state = $2,
			   cost_total_cents = (
			     SELECT COALESCE(SUM(quantity * unit_cost_cents), 0)
			     FROM quotation_lines WHERE order_id = $3 AND accepted
			   )
			 WHERE id = $3 RETURNING `+orderColumns,
			target, quState, params.OrderID,
		)
	} else {
		target, quState = model.StateQuotationRejected, model.QuotationRejected
		row = tx.QueryRow(ctx,
			`UPDATE repair_orders SET state = $1, quotation_state = $2,
			   cost_total_cents = $3
			 WHERE id = $4 RETURNING `+orderColumns,
			target, quState, rejectTotalCents, params.OrderID,
		)
	}

	ord, err := scanOrder(row)
	if err != nil {
		return nil, err
	}

	if err := r.appendTransition(ctx, tx, params.OrderID, model.StateQuotationReady,
		target, "", params.ActorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return ord, nil
}

// Deliver closes the order. The payment gate is re-checked with the order
// row locked, inside the same transaction as the state write, so a payment
// reversal racing this call cannot slip an unpaid order through.
func (r *repository) Deliver(ctx context.Context, params model.DeliverParams) (*model.RepairOrder, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		state model.RepairState
		total int64
	)
	err = tx.QueryRow(ctx,
		"SELECT state, cost_total_cents FROM repair_orders WHERE id = $1 FOR UPDATE",
		params.OrderID,
	).Scan(&state, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}

	if state != model.StateReadyForPickup {
		return nil, model.ErrIllegalTransition
	}

	cleared, err := approvedPaymentExists(ctx, tx, params.OrderID, total)
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, model.ErrPaymentRequired
	}

	ord, err := scanOrder(tx.QueryRow(ctx,
		`UPDATE repair_orders
		 SET state = $1, delivered_at = now(), collector_name = $2
		 WHERE id = $3 RETURNING `+orderColumns,
		model.StateDelivered, params.CollectorName, params.OrderID,
	))
	if err != nil {
		return nil, err
	}

	if err := r.appendTransition(ctx, tx, params.OrderID, model.StateReadyForPickup,
		model.StateDelivered, "collected by "+params.CollectorName, params.ActorID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return ord, nil
}

// RecordPayment validates the amount against the current cost total with
// the order row locked, then stores the approved payment and flips the paid
// flag in the same transaction.
func (r *repository) RecordPayment(ctx context.Context, params model.RecordPaymentParams, txRef string) (*model.Payment, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	err = tx.QueryRow(ctx,
		"SELECT cost_total_cents FROM repair_orders WHERE id = $1 FOR UPDATE",
		params.OrderID,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrOrderNotFound
		}
		return nil, err
	}

	if params.AmountCents != total {
		return nil, model.ErrAmountMismatch
	}

	var pmt model.Payment
	err = tx.QueryRow(ctx,
		`INSERT INTO payments (order_id, amount_cents, method, status, tx_ref)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, order_id, amount_cents, method, status, tx_ref, created_at`,
		params.OrderID, params.AmountCents, params.Method, model.PaymentApproved, txRef,
	).Scan(&pmt.ID, &pmt.OrderID, &pmt.AmountCents, &pmt.Method, &pmt.Status, &pmt.TxRef, &pmt.At)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		"UPDATE repair_orders SET paid = true WHERE id = $1",
		params.OrderID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &pmt, nil
}

// IsCleared reports whether an approved payment matching the order's
// current cost total exists. The paid flag is not trusted on its own.
func (r *repository) IsCleared(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		"SELECT cost_total_cents FROM repair_orders WHERE id = $1",
		orderID,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, model.ErrOrderNotFound
		}
		return false, err
	}

	return approvedPaymentExists(ctx, r.pool, orderID, total)
}

func (r *repository) Payments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	q := r.sb.
		Select("id", "order_id", "amount_cents", "method", "status", "tx_ref", "created_at").
		From("payments").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("created_at")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Payment, 0)
	for rows.Next() {
		var pmt model.Payment
		if err := rows.Scan(&pmt.ID, &pmt.OrderID, &pmt.AmountCents, &pmt.Method,
			&pmt.Status, &pmt.TxRef, &pmt.At); err != nil {
			return nil, err
		}
		out = append(out, pmt)
	}

	return out, rows.Err()
}

func (r *repository) QuotationLines(ctx context.Context, orderID uuid.UUID) ([]model.QuotationLine, error) {
	q := r.sb.
		Select("id", "order_id", "description", "quantity", "unit_cost_cents", "accepted").
		From("quotation_lines").
		Where(sq.Eq{"order_id": orderID}).
		OrderBy("id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.QuotationLine, 0)
	for rows.Next() {
		var line model.QuotationLine
		if err := rows.Scan(&line.ID, &line.OrderID, &line.Description,
			&line.Quantity, &line.UnitCostCents, &line.Accepted); err != nil {
			return nil, err
		}
		out = append(out, line)
	}

	return out, rows.Err()
}

func (r *repository) TotalAccepted(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity * unit_cost_cents), 0)
		 FROM quotation_lines WHERE order_id = $1 AND accepted`,
		orderID,
	).Scan(&total)
	if err != nil {
		return 0, err
	}

	return total, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func approvedPaymentExists(ctx context.Context, q queryRower, orderID uuid.UUID, amountCents int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM payments
		   WHERE order_id = $1 AND status = $2 AND amount_cents = $3
		 )`,
		orderID, model.PaymentApproved, amountCents,
	).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *repository) appendTransition(
	ctx context.Context,
	tx pgx.Tx,
	orderID uuid.UUID,
	from, to model.RepairState,
	note string,
	actorID uuid.UUID,
) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO repair_transitions (order_id, from_state, to_state, note, actor_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		orderID, from, to, note, actorID,
	)
	return err
}

// stateConflictError turns a zero-row CAS update into a typed error: either
// the order is gone or its state moved underneath the caller.
func (r *repository) stateConflictError(ctx context.Context, orderID uuid.UUID) error {
	var state model.RepairState
	err := r.pool.QueryRow(ctx,
		"SELECT state FROM repair_orders WHERE id = $1",
		orderID,
	).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrOrderNotFound
		}
		return err
	}

	return model.ErrIllegalTransition
}

func scanOrder(row pgx.Row) (*model.RepairOrder, error) {
	var ord model.RepairOrder
	err := row.Scan(
		&ord.ID,
		&ord.Number,
		&ord.CustomerID,
		&ord.TechnicianID,
		&ord.DeviceType,
		&ord.DeviceBrand,
		&ord.DeviceModel,
		&ord.DeviceSerial,
		&ord.Fault,
		&ord.Condition,
		&ord.State,
		&ord.QuotationState,
		&ord.CostTotalCents,
		&ord.Paid,
		&ord.ReceivedAt,
		&ord.DeliveredAt,
		&ord.CollectorName,
	)
	if err != nil {
		return nil, err
	}

	return &ord, nil
}
