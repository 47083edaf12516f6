package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
	"faturamento/internal/storage"
)

// ClientPatch carries a partial client update. Nil fields keep their value.
type ClientPatch struct {
	Name    *string
	Contact *string
	Email   *string
	Phone   *string
}

type ProductPatch struct {
	Name        *string
	Description *string
	UnitValue   *decimal.Decimal
}

type NotePatch struct {
	Title   *string
	Content *string
}

// ClientService manages clients and the products and notes they own.
type ClientService struct {
	store storage.Store
	options
}

func NewClientService(store storage.Store, opts ...Option) *ClientService {
	return &ClientService{store: store, options: newOptions(opts)}
}

func (s *ClientService) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	c.ID = 0
	return s.store.CreateClient(ctx, c)
}

func (s *ClientService) GetClient(ctx context.Context, id int64) (core.Client, error) {
	return s.store.GetClient(ctx, id)
}

func (s *ClientService) ListClients(ctx context.Context) ([]core.Client, error) {
	return s.store.ListClients(ctx)
}

// GetClientDetail returns the client with its products, notes and invoices,
// read from one snapshot.
func (s *ClientService) GetClientDetail(ctx context.Context, id int64) (core.ClientDetail, error) {
	var detail core.ClientDetail
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return err
		}
		detail.Client = c
		if detail.Products, err = tx.ListProducts(ctx, id); err != nil {
			return err
		}
		if detail.Notes, err = tx.ListNotes(ctx, id); err != nil {
			return err
		}
		detail.Invoices, err = tx.ListInvoices(ctx, core.InvoiceFilter{ClientID: id})
		return err
	})
	if err != nil {
		return core.ClientDetail{}, fmt.Errorf("client detail %d: %w", id, err)
	}
	return detail, nil
}

func (s *ClientService) UpdateClient(ctx context.Context, id int64, patch ClientPatch) (core.Client, error) {
	var updated core.Client
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		c, err := tx.GetClient(ctx, id)
		if err != nil {
			return err
		}
		applyString(&c.Name, patch.Name)
		applyString(&c.Contact, patch.Contact)
		applyString(&c.Email, patch.Email)
		applyString(&c.Phone, patch.Phone)
		if err := c.Validate(); err != nil {
			return err
		}
		updated, err = tx.UpdateClient(ctx, c)
		return err
	})
	if err != nil {
		return core.Client{}, fmt.Errorf("update client %d: %w", id, err)
	}
	return updated, nil
}

// DeleteClient removes the client and everything it owns. The periods its
// invoices touched are announced so their summaries get recomputed.
func (s *ClientService) DeleteClient(ctx context.Context, id int64) error {
	var periods []core.Period
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		invoices, err := tx.ListInvoices(ctx, core.InvoiceFilter{ClientID: id})
		if err != nil {
			return err
		}
		periods = periodsOf(invoices...)
		return tx.DeleteClient(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}

	s.publish(ctx, amqp.NewBillingEvent(amqp.ClientDeleted, 0, id, periods...))
	return nil
}

func (s *ClientService) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	p.UnitValue = core.RoundMoney(p.UnitValue)
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	return s.store.CreateProduct(ctx, p)
}

func (s *ClientService) GetProduct(ctx context.Context, id int64) (core.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *ClientService) UpdateProduct(ctx context.Context, id int64, patch ProductPatch) (core.Product, error) {
	var updated core.Product
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		applyString(&p.Name, patch.Name)
		applyString(&p.Description, patch.Description)
		if patch.UnitValue != nil {
			p.UnitValue = core.RoundMoney(*patch.UnitValue)
		}
		if err := p.Validate(); err != nil {
			return err
		}
		updated, err = tx.UpdateProduct(ctx, p)
		return err
	})
	if err != nil {
		return core.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return updated, nil
}

func (s *ClientService) DeleteProduct(ctx context.Context, id int64) error {
	return s.store.DeleteProduct(ctx, id)
}

func (s *ClientService) CreateNote(ctx context.Context, n core.Note) (core.Note, error) {
	if err := n.Validate(); err != nil {
		return core.Note{}, err
	}
	return s.store.CreateNote(ctx, n)
}

func (s *ClientService) GetNote(ctx context.Context, id int64) (core.Note, error) {
	return s.store.GetNote(ctx, id)
}

func (s *ClientService) UpdateNote(ctx context.Context, id int64, patch NotePatch) (core.Note, error) {
	var updated core.Note
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		n, err := tx.GetNote(ctx, id)
		if err != nil {
			return err
		}
		applyString(&n.Title, patch.Title)
		applyString(&n.Content, patch.Content)
		if err := n.Validate(); err != nil {
			return err
		}
		updated, err = tx.UpdateNote(ctx, n)
		return err
	})
	if err != nil {
		return core.Note{}, fmt.Errorf("update note %d: %w", id, err)
	}
	return updated, nil
}

func (s *ClientService) DeleteNote(ctx context.Context, id int64) error {
	return s.store.DeleteNote(ctx, id)
}

func applyString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
