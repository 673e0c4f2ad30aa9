// Package repository provides the in-memory device store backing the registry.
package repository

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/atinyakov/binfixture/internal/models"
)

var (
	// ErrDeviceNotFound is returned when no device has the requested id.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceExists is returned by Add when the id is already taken.
	ErrDeviceExists = errors.New("device already exists")
)

// MemoryDeviceRepository keeps devices in insertion order for the lifetime of the process.
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices []*models.Device
	byID    map[string]*models.Device
}

// NewMemoryDeviceRepository returns an empty repository.
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{byID: make(map[string]*models.Device)}
}

// Exists reports whether a device with id is stored.
func (r *MemoryDeviceRepository) Exists(_ context.Context, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// Add appends a copy of d.
func (r *MemoryDeviceRepository) Add(_ context.Context, d *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[d.ID]; ok {
		return errors.Wrapf(ErrDeviceExists, "id %q", d.ID)
	}
	c := d.Clone()
	r.devices = append(r.devices, c)
	r.byID[c.ID] = c
	return nil
}

// Update replaces the stored device carrying d.ID.
func (r *MemoryDeviceRepository) Update(_ context.Context, d *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[d.ID]
	if !ok {
		return errors.Wrapf(ErrDeviceNotFound, "id %q", d.ID)
	}
	*cur = *d.Clone()
	return nil
}

// Get returns a copy of the device with id.
func (r *MemoryDeviceRepository) Get(_ context.Context, id string) (*models.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrDeviceNotFound, "id %q", id)
	}
	return d.Clone(), nil
}

// List returns copies of all devices in creation order.
func (r *MemoryDeviceRepository) List(_ context.Context) []*models.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Map(r.devices, func(d *models.Device, _ int) *models.Device {
		return d.Clone()
	})
}

// Index returns the zero-based creation position of id, or -1.
func (r *MemoryDeviceRepository) Index(_ context.Context, id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, idx, ok := lo.FindIndexOf(r.devices, func(d *models.Device) bool { return d.ID == id })
	if !ok {
		return -1
	}
	return idx
}
