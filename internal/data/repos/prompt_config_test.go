package repos

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/advieskamer/advies-backend/internal/data/repos/testutil"
	"github.com/advieskamer/advies-backend/internal/domain"
	"github.com/advieskamer/advies-backend/internal/pkg/dbctx"
)

func seedPromptConfig(t *testing.T, dbc dbctx.Context, repo PromptConfigRepo, name string, active bool) *domain.PromptConfig {
	t.Helper()
	cfg, err := repo.Create(dbc, &domain.PromptConfig{
		Name:      name,
		Active:    active,
		Templates: datatypes.JSON(`{"1_validatie":"Controleer {RAW_INPUT}"}`),
		GlobalAI:  datatypes.JSON(`{"model":"gpt-4o","temperature":0.3,"max_output_tokens":8192}`),
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return cfg
}

func TestPromptConfigActivateExactlyOneActive(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewPromptConfigRepo(db, testutil.Logger(t))

	seedPromptConfig(t, dbc, repo, "eerste", true)
	seedPromptConfig(t, dbc, repo, "tweede", false)

	if err := repo.Activate(dbc, "tweede"); err != nil {
		t.Fatalf("activate: %v", err)
	}

	active, err := repo.GetActive(dbc)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active == nil || active.Name != "tweede" {
		t.Fatalf("active = %+v", active)
	}

	var count int64
	if err := tx.Model(&domain.PromptConfig{}).Where("active = ?", true).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("%d active configs, want exactly 1", count)
	}
}

func TestPromptConfigActivateUnknown(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, db)}
	repo := NewPromptConfigRepo(db, testutil.Logger(t))

	if err := repo.Activate(dbc, "bestaat-niet"); err == nil {
		t.Fatalf("activating an unknown config must fail")
	}
}

func TestPromptConfigGetByName(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: testutil.Tx(t, db)}
	repo := NewPromptConfigRepo(db, testutil.Logger(t))

	seedPromptConfig(t, dbc, repo, "named", false)

	got, err := repo.GetByName(dbc, "named")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if got == nil || got.Name != "named" {
		t.Fatalf("got %+v", got)
	}

	missing, err := repo.GetByName(dbc, "onbekend")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown name")
	}
}
