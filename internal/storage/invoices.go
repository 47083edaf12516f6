package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"faturamento/internal/core"
)

// invoiceRow is the flat storage shape of core.Invoice.
type invoiceRow struct {
	ID               int64          `db:"id"`
	ClientID         int64          `db:"client_id"`
	ProductID        sql.NullInt64  `db:"product_id"`
	Description      string         `db:"description"`
	Value            string         `db:"value"`
	DueDate          string         `db:"due_date"`
	PaymentDate      sql.NullString `db:"payment_date"`
	Status           string         `db:"status"`
	Kind             string         `db:"kind"`
	Recurrence       sql.NullString `db:"recurrence"`
	InstallmentCount sql.NullInt64  `db:"installment_count"`
	InstallmentIndex int64          `db:"installment_index"`
	ParentID         sql.NullInt64  `db:"parent_invoice_id"`
	CreatedAt        time.Time      `db:"created_at"`
}

const invoiceColumns = `id, client_id, product_id, description, value, due_date, payment_date, status,
	kind, recurrence, installment_count, installment_index, parent_invoice_id, created_at`

func (r invoiceRow) toCore() (core.Invoice, error) {
	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice %d value %q: %w", r.ID, r.Value, err)
	}
	due, err := core.ParseDate(r.DueDate)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice %d due date: %w", r.ID, err)
	}

	var freq *core.Frequency
	if r.Recurrence.Valid {
		f := core.Frequency(r.Recurrence.String)
		freq = &f
	}
	var count *int
	if r.InstallmentCount.Valid {
		n := int(r.InstallmentCount.Int64)
		count = &n
	}
	plan, err := core.PlanFromColumns(core.Kind(r.Kind), freq, count)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice %d plan: %w", r.ID, err)
	}

	inv := core.Invoice{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Description: r.Description,
		Value:       value,
		DueDate:     due,
		Status:      core.Status(r.Status),
		Plan:        plan,
		Installment: int(r.InstallmentIndex),
		CreatedAt:   r.CreatedAt,
	}
	if r.ProductID.Valid {
		id := r.ProductID.Int64
		inv.ProductID = &id
	}
	if r.ParentID.Valid {
		id := r.ParentID.Int64
		inv.ParentID = &id
	}
	if r.PaymentDate.Valid && r.PaymentDate.String != "" {
		paid, err := core.ParseDate(r.PaymentDate.String)
		if err != nil {
			return core.Invoice{}, fmt.Errorf("invoice %d payment date: %w", r.ID, err)
		}
		inv.PaymentDate = &paid
	}
	return inv, nil
}

// invoiceArgs flattens inv in the column order used by insert and update.
func invoiceArgs(inv core.Invoice) []any {
	kind, freq, count := core.PlanColumns(inv.Plan)

	var product, parent, recurrence, installments, paid any
	if inv.ProductID != nil {
		product = *inv.ProductID
	}
	if inv.ParentID != nil {
		parent = *inv.ParentID
	}
	if freq != nil {
		recurrence = string(*freq)
	}
	if count != nil {
		installments = *count
	}
	if inv.PaymentDate != nil && !inv.PaymentDate.IsEmpty() {
		paid = inv.PaymentDate.String()
	}
	index := inv.Installment
	if index < 1 {
		index = 1
	}
	return []any{
		inv.ClientID, product, inv.Description, inv.Value.StringFixed(core.MoneyPlaces),
		inv.DueDate.String(), paid, string(inv.Status), string(kind), recurrence,
		installments, index, parent,
	}
}

func scanInvoices(rows []invoiceRow) ([]core.Invoice, error) {
	out := make([]core.Invoice, 0, len(rows))
	for _, r := range rows {
		inv, err := r.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// CreateInvoice inserts inv. A collision on the successor index returns
// ErrDuplicateSuccessor.
func (q *Queries) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	inv.CreatedAt = q.stamp(inv.CreatedAt)
	args := append(invoiceArgs(inv), inv.CreatedAt)
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO invoices (client_id, product_id, description, value, due_date, payment_date, status,
			kind, recurrence, installment_count, installment_index, parent_invoice_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return core.Invoice{}, ErrDuplicateSuccessor
		case isForeignKeyViolation(err):
			return core.Invoice{}, core.NotFoundError("client or product", inv.ClientID)
		}
		return core.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Invoice{}, fmt.Errorf("invoice id: %w", err)
	}

	slog.InfoContext(ctx, "Invoice saved to SQLite",
		"id", id,
		"client_id", inv.ClientID,
		"value", inv.Value.StringFixed(core.MoneyPlaces),
		"due_date", inv.DueDate.String(),
		"kind", inv.Plan.Kind())

	return q.GetInvoice(ctx, id)
}

func (q *Queries) GetInvoice(ctx context.Context, id int64) (core.Invoice, error) {
	var row invoiceRow
	err := sqlx.GetContext(ctx, q.db, &row, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, core.NotFoundError("invoice", id)
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return row.toCore()
}

func whereInvoices(f core.InvoiceFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ClientID != 0 {
		conds = append(conds, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.DueBefore.IsEmpty() {
		conds = append(conds, "due_date < ?")
		args = append(args, f.DueBefore.String())
	}
	if !f.DueFrom.IsEmpty() {
		conds = append(conds, "due_date >= ?")
		args = append(args, f.DueFrom.String())
	}
	if !f.DueUntil.IsEmpty() {
		conds = append(conds, "due_date < ?")
		args = append(args, f.DueUntil.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (q *Queries) ListInvoices(ctx context.Context, filter core.InvoiceFilter) ([]core.Invoice, error) {
	where, args := whereInvoices(filter)
	var rows []invoiceRow
	if err := sqlx.SelectContext(ctx, q.db, &rows,
		`SELECT `+invoiceColumns+` FROM invoices`+where+` ORDER BY due_date, id`, args...); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return scanInvoices(rows)
}

// UpdateInvoice overwrites every mutable column of inv.
func (q *Queries) UpdateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	args := append(invoiceArgs(inv), inv.ID)
	res, err := q.db.ExecContext(ctx, `
		UPDATE invoices SET client_id = ?, product_id = ?, description = ?, value = ?, due_date = ?,
			payment_date = ?, status = ?, kind = ?, recurrence = ?, installment_count = ?,
			installment_index = ?, parent_invoice_id = ?
		WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Invoice{}, ErrDuplicateSuccessor
		}
		return core.Invoice{}, fmt.Errorf("update invoice %d: %w", inv.ID, err)
	}
	if err := checkAffected(res, "invoice", inv.ID); err != nil {
		return core.Invoice{}, err
	}
	return q.GetInvoice(ctx, inv.ID)
}

func (q *Queries) DeleteInvoice(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	return checkAffected(res, "invoice", id)
}

func (q *Queries) FindSuccessor(ctx context.Context, key core.SuccessorKey) (core.Invoice, error) {
	var row invoiceRow
	err := sqlx.GetContext(ctx, q.db, &row, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE client_id = ? AND parent_invoice_id = ? AND description = ? AND value = ? AND due_date = ?
		ORDER BY id LIMIT 1`,
		key.ClientID, key.ParentID, key.Description, key.Value.StringFixed(core.MoneyPlaces), key.DueDate.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, fmt.Errorf("successor of invoice %d: %w", key.ParentID, core.ErrNotFound)
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("find successor of invoice %d: %w", key.ParentID, err)
	}
	return row.toCore()
}

func (q *Queries) MarkOverdue(ctx context.Context, asOf core.Date) ([]core.Invoice, error) {
	due, err := q.ListInvoices(ctx, core.InvoiceFilter{Status: core.StatusPending, DueBefore: asOf})
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	res, err := q.db.ExecContext(ctx,
		`UPDATE invoices SET status = ? WHERE status = ? AND due_date < ?`,
		string(core.StatusOverdue), string(core.StatusPending), asOf.String())
	if err != nil {
		return nil, fmt.Errorf("mark overdue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if int(n) != len(due) {
		return nil, fmt.Errorf("mark overdue: selected %d invoices but updated %d", len(due), n)
	}
	for i := range due {
		due[i].Status = core.StatusOverdue
	}
	return due, nil
}

func (q *Queries) TotalsByStatus(ctx context.Context, filter core.InvoiceFilter) (map[core.Status]decimal.Decimal, error) {
	where, args := whereInvoices(filter)
	rows, err := q.db.QueryxContext(ctx, `SELECT status, value FROM invoices`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoice totals: %w", err)
	}
	defer rows.Close()

	totals := map[core.Status]decimal.Decimal{}
	for rows.Next() {
		var status, value string
		if err := rows.Scan(&status, &value); err != nil {
			return nil, fmt.Errorf("scan invoice total: %w", err)
		}
		v, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("invoice value %q: %w", value, err)
		}
		s := core.Status(status)
		totals[s] = totals[s].Add(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice totals: %w", err)
	}
	return totals, nil
}

type invoiceWithClientRow struct {
	invoiceRow
	ClientName string `db:"client_name"`
}

func (q *Queries) LatestInvoices(ctx context.Context, limit int) ([]core.InvoiceWithClient, error) {
	var rows []invoiceWithClientRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
		SELECT i.id, i.client_id, i.product_id, i.description, i.value, i.due_date, i.payment_date,
			i.status, i.kind, i.recurrence, i.installment_count, i.installment_index,
			i.parent_invoice_id, i.created_at, c.name AS client_name
		FROM invoices i
		JOIN clients c ON c.id = i.client_id
		ORDER BY i.created_at DESC, i.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("latest invoices: %w", err)
	}
	out := make([]core.InvoiceWithClient, 0, len(rows))
	for _, r := range rows {
		inv, err := r.invoiceRow.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, core.InvoiceWithClient{Invoice: inv, ClientName: r.ClientName})
	}
	return out, nil
}
