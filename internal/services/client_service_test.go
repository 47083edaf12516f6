package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faturamento/internal/amqp"
	"faturamento/internal/core"
)

func TestClientValidation(t *testing.T) {
	f := newFixture(t, newStore(t))

	_, err := f.clients.CreateClient(context.Background(), core.Client{Name: "  "})
	assert.True(t, core.IsValidation(err))

	_, err = f.clients.CreateClient(context.Background(), core.Client{Name: "Acme", Email: "nope"})
	assert.True(t, core.IsValidation(err))
}

func TestUpdateClientKeepsMissingFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newStore(t))
	c := f.client(t)

	phone := "+55 11 5555-0000"
	updated, err := f.clients.UpdateClient(ctx, c.ID, ClientPatch{Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.Phone)
	assert.Equal(t, c.Name, updated.Name)
	assert.Equal(t, c.Email, updated.Email)

	empty := ""
	_, err = f.clients.UpdateClient(ctx, c.ID, ClientPatch{Name: &empty})
	assert.True(t, core.IsValidation(err))

	_, err = f.clients.UpdateClient(ctx, 999, ClientPatch{Phone: &phone})
	assert.True(t, core.IsNotFound(err))
}

func TestClientDetail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newStore(t))
	c := f.client(t)

	_, err := f.clients.CreateProduct(ctx, core.Product{ClientID: c.ID, Name: "Hosting", UnitValue: money("49.90")})
	require.NoError(t, err)
	_, err = f.clients.CreateNote(ctx, core.Note{ClientID: c.ID, Title: "Contract signed", Content: "12 months"})
	require.NoError(t, err)
	f.invoice(t, NewInvoice{ClientID: c.ID, DueDate: core.NewDate(2025, 4, 1)})

	detail, err := f.clients.GetClientDetail(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, detail.ID)
	assert.Len(t, detail.Products, 1)
	assert.Len(t, detail.Notes, 1)
	assert.Len(t, detail.Invoices, 1)

	_, err = f.clients.GetClientDetail(ctx, 999)
	assert.True(t, core.IsNotFound(err))
}

func TestDeleteClientCascadesToInvoices(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newStore(t))
	c := f.client(t)
	jan := f.invoice(t, NewInvoice{ClientID: c.ID, DueDate: core.NewDate(2025, 1, 5)})
	f.invoice(t, NewInvoice{ClientID: c.ID, DueDate: core.NewDate(2025, 2, 5)})

	require.NoError(t, f.clients.DeleteClient(ctx, c.ID))

	_, err := f.invoices.GetInvoice(ctx, jan.ID)
	assert.True(t, core.IsNotFound(err))

	ev := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, amqp.ClientDeleted, ev.Type)
	assert.Equal(t, c.ID, ev.ClientID)
	assert.ElementsMatch(t, []core.Period{{Month: 1, Year: 2025}, {Month: 2, Year: 2025}}, ev.Periods)

	assert.True(t, core.IsNotFound(f.clients.DeleteClient(ctx, c.ID)))
}

func TestProductAndNotePatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newStore(t))
	c := f.client(t)

	p, err := f.clients.CreateProduct(ctx, core.Product{ClientID: c.ID, Name: "Hosting", Description: "Shared", UnitValue: money("10")})
	require.NoError(t, err)

	price := money("12.345")
	p2, err := f.clients.UpdateProduct(ctx, p.ID, ProductPatch{UnitValue: &price})
	require.NoError(t, err)
	assert.Equal(t, "Hosting", p2.Name)
	assert.Equal(t, "Shared", p2.Description)
	assert.True(t, p2.UnitValue.Equal(money("12.35")), "got %s", p2.UnitValue)

	_, err = f.clients.CreateProduct(ctx, core.Product{ClientID: 999, Name: "Ghost"})
	assert.True(t, core.IsNotFound(err))

	n, err := f.clients.CreateNote(ctx, core.Note{ClientID: c.ID, Title: "Call", Content: "first"})
	require.NoError(t, err)
	content := "second"
	n2, err := f.clients.UpdateNote(ctx, n.ID, NotePatch{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, "Call", n2.Title)
	assert.Equal(t, "second", n2.Content)

	require.NoError(t, f.clients.DeleteNote(ctx, n.ID))
	_, err = f.clients.GetNote(ctx, n.ID)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, f.clients.DeleteProduct(ctx, p.ID))
	_, err = f.clients.GetProduct(ctx, p.ID)
	assert.True(t, core.IsNotFound(err))
}
