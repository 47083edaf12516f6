package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"faturamento/internal/core"
)

const clientColumns = `id, name, contact, email, phone, registered_at`

func (q *Queries) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	c.RegisteredAt = q.stamp(c.RegisteredAt)
	res, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO clients (name, contact, email, phone, registered_at)
		VALUES (:name, :contact, :email, :phone, :registered_at)`, c)
	if err != nil {
		return core.Client{}, fmt.Errorf("insert client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Client{}, fmt.Errorf("client id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Client saved to SQLite", "id", c.ID, "name", c.Name)
	return c, nil
}

func (q *Queries) GetClient(ctx context.Context, id int64) (core.Client, error) {
	var c core.Client
	err := sqlx.GetContext(ctx, q.db, &c, `SELECT `+clientColumns+` FROM clients WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Client{}, core.NotFoundError("client", id)
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

func (q *Queries) ListClients(ctx context.Context) ([]core.Client, error) {
	clients := []core.Client{}
	if err := sqlx.SelectContext(ctx, q.db, &clients, `SELECT `+clientColumns+` FROM clients ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (q *Queries) UpdateClient(ctx context.Context, c core.Client) (core.Client, error) {
	res, err := sqlx.NamedExecContext(ctx, q.db, `
		UPDATE clients SET name = :name, contact = :contact, email = :email, phone = :phone
		WHERE id = :id`, c)
	if err != nil {
		return core.Client{}, fmt.Errorf("update client %d: %w", c.ID, err)
	}
	if err := checkAffected(res, "client", c.ID); err != nil {
		return core.Client{}, err
	}
	return q.GetClient(ctx, c.ID)
}

// DeleteClient removes the client; products, notes and invoices cascade.
func (q *Queries) DeleteClient(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	return checkAffected(res, "client", id)
}

// productRow keeps the unit value as fixed-point text.
type productRow struct {
	ID          int64     `db:"id"`
	ClientID    int64     `db:"client_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	UnitValue   string    `db:"unit_value"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r productRow) toCore() (core.Product, error) {
	v, err := decimal.NewFromString(r.UnitValue)
	if err != nil {
		return core.Product{}, fmt.Errorf("product %d unit value %q: %w", r.ID, r.UnitValue, err)
	}
	return core.Product{
		ID:          r.ID,
		ClientID:    r.ClientID,
		Name:        r.Name,
		Description: r.Description,
		UnitValue:   v,
		CreatedAt:   r.CreatedAt,
	}, nil
}

const productColumns = `id, client_id, name, description, unit_value, created_at`

func (q *Queries) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	p.CreatedAt = q.stamp(p.CreatedAt)
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO products (client_id, name, description, unit_value, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ClientID, p.Name, p.Description, p.UnitValue.StringFixed(core.MoneyPlaces), p.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Product{}, core.NotFoundError("client", p.ClientID)
		}
		return core.Product{}, fmt.Errorf("insert product: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return core.Product{}, fmt.Errorf("product id: %w", err)
	}
	return q.GetProduct(ctx, p.ID)
}

func (q *Queries) GetProduct(ctx context.Context, id int64) (core.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q.db, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Product{}, core.NotFoundError("product", id)
	}
	if err != nil {
		return core.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return row.toCore()
}

func (q *Queries) ListProducts(ctx context.Context, clientID int64) ([]core.Product, error) {
	var rows []productRow
	if err := sqlx.SelectContext(ctx, q.db, &rows,
		`SELECT `+productColumns+` FROM products WHERE client_id = ? ORDER BY id`, clientID); err != nil {
		return nil, fmt.Errorf("list products for client %d: %w", clientID, err)
	}
	out := make([]core.Product, 0, len(rows))
	for _, r := range rows {
		p, err := r.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (q *Queries) UpdateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE products SET name = ?, description = ?, unit_value = ? WHERE id = ?`,
		p.Name, p.Description, p.UnitValue.StringFixed(core.MoneyPlaces), p.ID)
	if err != nil {
		return core.Product{}, fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if err := checkAffected(res, "product", p.ID); err != nil {
		return core.Product{}, err
	}
	return q.GetProduct(ctx, p.ID)
}

// DeleteProduct removes the product; invoices referencing it keep existing
// with a NULL product.
func (q *Queries) DeleteProduct(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return checkAffected(res, "product", id)
}

const noteColumns = `id, client_id, title, content, created_at`

func (q *Queries) CreateNote(ctx context.Context, n core.Note) (core.Note, error) {
	n.CreatedAt = q.stamp(n.CreatedAt)
	res, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO notes (client_id, title, content, created_at)
		VALUES (:client_id, :title, :content, :created_at)`, n)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.Note{}, core.NotFoundError("client", n.ClientID)
		}
		return core.Note{}, fmt.Errorf("insert note: %w", err)
	}
	if n.ID, err = res.LastInsertId(); err != nil {
		return core.Note{}, fmt.Errorf("note id: %w", err)
	}
	return n, nil
}

func (q *Queries) GetNote(ctx context.Context, id int64) (core.Note, error) {
	var n core.Note
	err := sqlx.GetContext(ctx, q.db, &n, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, core.NotFoundError("note", id)
	}
	if err != nil {
		return core.Note{}, fmt.Errorf("get note %d: %w", id, err)
	}
	return n, nil
}

func (q *Queries) ListNotes(ctx context.Context, clientID int64) ([]core.Note, error) {
	notes := []core.Note{}
	if err := sqlx.SelectContext(ctx, q.db, &notes,
		`SELECT `+noteColumns+` FROM notes WHERE client_id = ? ORDER BY created_at DESC, id DESC`, clientID); err != nil {
		return nil, fmt.Errorf("list notes for client %d: %w", clientID, err)
	}
	return notes, nil
}

func (q *Queries) UpdateNote(ctx context.Context, n core.Note) (core.Note, error) {
	res, err := sqlx.NamedExecContext(ctx, q.db, `UPDATE notes SET title = :title, content = :content WHERE id = :id`, n)
	if err != nil {
		return core.Note{}, fmt.Errorf("update note %d: %w", n.ID, err)
	}
	if err := checkAffected(res, "note", n.ID); err != nil {
		return core.Note{}, err
	}
	return q.GetNote(ctx, n.ID)
}

func (q *Queries) DeleteNote(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note %d: %w", id, err)
	}
	return checkAffected(res, "note", id)
}
