package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/invoicify/invoicify/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func seedClient(t *testing.T, s *Store, userID uint, name string) models.Client {
	t.Helper()
	c, err := s.CreateClient(context.Background(), userID, models.Client{Name: name, Email: name + "@test"})
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return c
}

func draftFor(clientID uint) InvoiceDraft {
	due := time.Now().AddDate(0, 1, 0)
	return InvoiceDraft{
		ClientID:  clientID,
		IssueDate: time.Now(),
		DueDate:   &due,
		TaxRate:   10,
		Items: []models.InvoiceLineItem{
			{Description: "Consulting", Quantity: 2, Rate: 100},
			{Description: "Hosting", Quantity: 1, Rate: 50},
		},
	}
}

func TestInvoiceNumberingSequence(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	client := seedClient(t, s, 1, "Acme")

	for i := 1; i <= 5; i++ {
		inv, err := s.CreateInvoice(ctx, 1, draftFor(client.ID))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		want := fmt.Sprintf("INV-%04d", i)
		if inv.Number != want {
			t.Fatalf("invoice %d: want number %s got %s", i, want, inv.Number)
		}
	}

	// numbering is per user: another user starts from 0001
	other := seedClient(t, s, 2, "Beta")
	inv, err := s.CreateInvoice(ctx, 2, draftFor(other.ID))
	if err != nil {
		t.Fatalf("create for user 2: %v", err)
	}
	if inv.Number != "INV-0001" {
		t.Fatalf("user 2 should start at INV-0001, got %s", inv.Number)
	}

	// deleting an invoice does not recycle its suffix
	var latest models.Invoice
	if err := s.db.Where("user_id = ?", 1).Order("id desc").First(&latest).Error; err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if err := s.DeleteInvoice(ctx, 1, latest.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	next, err := s.CreateInvoice(ctx, 1, draftFor(client.ID))
	if err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	if next.Number != "INV-0005" {
		t.Fatalf("suffix after deleting INV-0005: want INV-0005 again got %s", next.Number)
	}
}

func TestDeleteClientCascades(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	acme := seedClient(t, s, 1, "Acme")
	beta := seedClient(t, s, 1, "Beta")

	for i := 0; i < 3; i++ {
		if _, err := s.CreateInvoice(ctx, 1, draftFor(acme.ID)); err != nil {
			t.Fatalf("acme invoice: %v", err)
		}
	}
	kept, err := s.CreateInvoice(ctx, 1, draftFor(beta.ID))
	if err != nil {
		t.Fatalf("beta invoice: %v", err)
	}

	if err := s.DeleteClient(ctx, 1, acme.ID); err != nil {
		t.Fatalf("delete client: %v", err)
	}

	var orphans int64
	if err := s.db.Model(&models.Invoice{}).Where("client_id = ?", acme.ID).Count(&orphans).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if orphans != 0 {
		t.Fatalf("expected no orphaned invoices, got %d", orphans)
	}
	var itemCount int64
	if err := s.db.Model(&models.InvoiceLineItem{}).Count(&itemCount).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if itemCount != int64(len(kept.Items)) {
		t.Fatalf("expected only the kept invoice's items, got %d", itemCount)
	}
	if _, err := s.GetInvoice(ctx, 1, kept.ID); err != nil {
		t.Fatalf("unrelated invoice must survive: %v", err)
	}
}

func TestOwnershipScoping(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	mine := seedClient(t, s, 1, "Mine")
	inv, err := s.CreateInvoice(ctx, 1, draftFor(mine.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.GetInvoice(ctx, 2, inv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-user read: want ErrForbidden got %v", err)
	}
	if err := s.DeleteInvoice(ctx, 2, inv.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-user delete: want ErrForbidden got %v", err)
	}
	if _, err := s.GetClient(ctx, 2, mine.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("cross-user client read: want ErrForbidden got %v", err)
	}
	if _, err := s.ListClients(ctx, 0); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("zero user: want ErrNotAuthenticated got %v", err)
	}
	if _, err := s.GetInvoice(ctx, 1, 99999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing row: want ErrNotFound got %v", err)
	}
}

func TestUpdateInvoiceReplacesItems(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	client := seedClient(t, s, 1, "Acme")
	inv, err := s.CreateInvoice(ctx, 1, draftFor(client.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rate := 12.5
	updated, err := s.UpdateInvoice(ctx, 1, inv.ID, InvoicePatch{
		TaxRate: &rate,
		Items:   []models.InvoiceLineItem{{Description: "Retainer", Quantity: 1, Rate: 500}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.TaxRate != 12.5 {
		t.Fatalf("tax rate: want 12.5 got %v", updated.TaxRate)
	}
	if len(updated.Items) != 1 || updated.Items[0].Description != "Retainer" {
		t.Fatalf("items not replaced: %+v", updated.Items)
	}
	if updated.Number != inv.Number {
		t.Fatalf("number must be immutable: %s -> %s", inv.Number, updated.Number)
	}
	var stale int64
	if err := s.db.Model(&models.InvoiceLineItem{}).Where("invoice_id = ?", inv.ID).Count(&stale).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if stale != 1 {
		t.Fatalf("old line items must be gone, have %d rows", stale)
	}

	// patch without items keeps the existing set
	notes := "net 30"
	updated, err = s.UpdateInvoice(ctx, 1, inv.ID, InvoicePatch{Notes: &notes})
	if err != nil {
		t.Fatalf("update notes: %v", err)
	}
	if len(updated.Items) != 1 {
		t.Fatalf("nil item patch must keep items, got %d", len(updated.Items))
	}
}

func TestMarkInvoicePaidTouchesOnlyStatus(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	client := seedClient(t, s, 1, "Acme")
	inv, err := s.CreateInvoice(ctx, 1, draftFor(client.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid, err := s.MarkInvoicePaid(ctx, 1, inv.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != models.InvoiceStatusPaid {
		t.Fatalf("status: want Paid got %s", paid.Status)
	}
	reloaded, err := s.GetInvoice(ctx, 1, inv.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.TaxRate != inv.TaxRate || reloaded.Number != inv.Number || len(reloaded.Items) != len(inv.Items) {
		t.Fatalf("mark paid changed more than status: %+v", reloaded)
	}
}

func TestListInvoicesPage(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	client := seedClient(t, s, 1, "Acme")
	for i := 0; i < 45; i++ {
		if _, err := s.CreateInvoice(ctx, 1, draftFor(client.ID)); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	page1, total, err := s.ListInvoicesPage(ctx, 1, 1, 20)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if total != 45 || len(page1) != 20 {
		t.Fatalf("page 1: want 20/45 got %d/%d", len(page1), total)
	}
	if len(page1[0].Items) == 0 {
		t.Fatalf("invoices must be joined with line items")
	}
	page3, _, err := s.ListInvoicesPage(ctx, 1, 3, 20)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if len(page3) != 5 {
		t.Fatalf("page 3: want 5 got %d", len(page3))
	}
}

func TestInvoiceCountThisMonth(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	client := seedClient(t, s, 1, "Acme")
	inv, err := s.CreateInvoice(ctx, 1, draftFor(client.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// age one invoice into the previous month
	lastMonth := time.Now().AddDate(0, -1, 0)
	if err := s.db.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("created_at", lastMonth).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := s.CreateInvoice(ctx, 1, draftFor(client.ID)); err != nil {
		t.Fatalf("create current: %v", err)
	}

	count, err := s.InvoiceCountThisMonth(ctx, 1, time.Now())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("want 1 invoice this month, got %d", count)
	}
}

func TestEnsureSettingsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first, err := s.EnsureSettings(ctx, 1, models.Settings{CompanyName: "Invoicify", CurrencySymbol: "$", DefaultTaxRate: 20, Language: "en"})
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := s.EnsureSettings(ctx, 1, models.Settings{CompanyName: "Other"})
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if second.ID != first.ID || second.CompanyName != "Invoicify" {
		t.Fatalf("ensure must not overwrite: %+v", second)
	}

	name := "Acme Studio"
	updated, err := s.UpdateSettings(ctx, 1, SettingsPatch{CompanyName: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CompanyName != "Acme Studio" || updated.CurrencySymbol != "$" {
		t.Fatalf("patch clobbered unrelated fields: %+v", updated)
	}
}

func TestBusPublishesScopedEvents(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	mine := s.Subscribe(TableClients, 1)
	defer mine.Close()
	theirs := s.Subscribe(TableClients, 2)
	defer theirs.Close()

	seedClient(t, s, 1, "Acme")

	select {
	case ev := <-mine.C:
		if ev.Table != TableClients || ev.Op != OpInsert {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected an event for user 1")
	}
	select {
	case ev := <-theirs.C:
		t.Fatalf("user 2 must not see user 1 changes: %+v", ev)
	default:
	}

	// client delete also invalidates the invoices table
	invs := s.Subscribe(TableInvoices, 1)
	defer invs.Close()
	clients, err := s.ListClients(ctx, 1)
	if err != nil || len(clients) != 1 {
		t.Fatalf("list: %v %d", err, len(clients))
	}
	if err := s.DeleteClient(ctx, 1, clients[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	select {
	case ev := <-invs.C:
		if ev.Op != OpDelete {
			t.Fatalf("want delete event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected invoices invalidation on client delete")
	}
}
