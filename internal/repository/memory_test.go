package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/atinyakov/binfixture/internal/models"
)

func TestMemoryDeviceRepository_AddGet(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()

	if err := repo.Add(ctx, models.NewDevice("A", 1)); err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	got, err := repo.Get(ctx, "A")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.UniqueCode != 1 {
		t.Errorf("UniqueCode = %d; want 1", got.UniqueCode)
	}
	if !repo.Exists(ctx, "A") {
		t.Error("Exists(A) = false; want true")
	}
}

func TestMemoryDeviceRepository_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	_ = repo.Add(ctx, models.NewDevice("A", 1))

	err := repo.Add(ctx, models.NewDevice("A", 2))
	if !errors.Is(err, ErrDeviceExists) {
		t.Fatalf("Add duplicate error = %v; want %v", err, ErrDeviceExists)
	}
	if n := len(repo.List(ctx)); n != 1 {
		t.Errorf("List length = %d; want 1", n)
	}
}

func TestMemoryDeviceRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Get error = %v; want %v", err, ErrDeviceNotFound)
	}
	if err := repo.Update(ctx, models.NewDevice("missing", 1)); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update error = %v; want %v", err, ErrDeviceNotFound)
	}
	if idx := repo.Index(ctx, "missing"); idx != -1 {
		t.Errorf("Index = %d; want -1", idx)
	}
}

func TestMemoryDeviceRepository_UpdateAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	for _, id := range []string{"A", "B", "C"} {
		_ = repo.Add(ctx, models.NewDevice(id, 1))
	}

	d, _ := repo.Get(ctx, "B")
	d.SetUniqueCode(7)
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	list := repo.List(ctx)
	if len(list) != 3 || list[0].ID != "A" || list[1].ID != "B" || list[2].ID != "C" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[1].UniqueCode != 7 {
		t.Errorf("B code = %d; want 7", list[1].UniqueCode)
	}
	if idx := repo.Index(ctx, "C"); idx != 2 {
		t.Errorf("Index(C) = %d; want 2", idx)
	}
}

func TestMemoryDeviceRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryDeviceRepository()
	_ = repo.Add(ctx, models.NewDevice("A", 1))

	d, _ := repo.Get(ctx, "A")
	d.SetUniqueCode(99)

	again, _ := repo.Get(ctx, "A")
	if again.UniqueCode != 1 {
		t.Errorf("stored device mutated through copy: %d", again.UniqueCode)
	}
}
