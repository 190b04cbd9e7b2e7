// Package memory implementa los puertos de persistencia en proceso (modo dev, CLI y tests).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/zatca-einvoice/internal/domain"
	"github.com/jhoicas/zatca-einvoice/internal/domain/entity"
	"github.com/jhoicas/zatca-einvoice/internal/domain/repository"
)

var (
	_ repository.ChainStateStore   = (*ChainStore)(nil)
	_ repository.InvoiceRepository = (*InvoiceStore)(nil)
)

// ChainStore estado de la cadena por dispositivo en un mapa protegido por mutex.
type ChainStore struct {
	mu     sync.Mutex
	states map[string]entity.ChainState
}

// NewChainStore crea un store vacío.
func NewChainStore() *ChainStore {
	return &ChainStore{states: make(map[string]entity.ChainState)}
}

// Load devuelve una copia del estado o nil, nil si no existe.
func (s *ChainStore) Load(_ context.Context, deviceID string) (*entity.ChainState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[deviceID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// Save aplica la misma regla que los stores persistentes: counter == último + 1.
func (s *ChainStore) Save(_ context.Context, deviceID, hash string, counter int64) error {
	if deviceID == "" || hash == "" || counter < 1 {
		return fmt.Errorf("%w: estado de cadena incompleto", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if counter != s.states[deviceID].LastCounter+1 {
		return fmt.Errorf("%w: el contador %d no sigue al último guardado del dispositivo %s",
			domain.ErrConflict, counter, deviceID)
	}
	s.states[deviceID] = entity.ChainState{
		DeviceID: deviceID, LastHash: hash, LastCounter: counter, UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// InvoiceStore facturas emitidas en memoria.
type InvoiceStore struct {
	mu      sync.RWMutex
	records map[string]entity.InvoiceRecord
}

// NewInvoiceStore crea un store vacío.
func NewInvoiceStore() *InvoiceStore {
	return &InvoiceStore{records: make(map[string]entity.InvoiceRecord)}
}

// Create rechaza IDs repetidos y contadores repetidos por dispositivo.
func (s *InvoiceStore) Create(_ context.Context, rec *entity.InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("%w: factura %s ya existe", domain.ErrDuplicate, rec.ID)
	}
	for _, r := range s.records {
		if r.DeviceID == rec.DeviceID && r.Counter == rec.Counter {
			return fmt.Errorf("%w: contador %d ya usado en %s", domain.ErrDuplicate, rec.Counter, rec.DeviceID)
		}
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.ID] = *rec
	return nil
}

// Update reemplaza los campos del resultado de envío.
func (s *InvoiceStore) Update(_ context.Context, rec *entity.InvoiceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[rec.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Status = rec.Status
	if rec.ClearedUUID != "" {
		cur.ClearedUUID = rec.ClearedUUID
	}
	if rec.ClearedXML != nil {
		cur.ClearedXML = rec.ClearedXML
	}
	cur.Warnings = rec.Warnings
	cur.Errors = rec.Errors
	cur.UpdatedAt = time.Now().UTC()
	rec.UpdatedAt = cur.UpdatedAt
	s.records[rec.ID] = cur
	return nil
}

// GetByID devuelve nil, nil si no existe.
func (s *InvoiceStore) GetByID(_ context.Context, id string) (*entity.InvoiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListByDevice ordena por contador descendente, igual que el repositorio SQL.
func (s *InvoiceStore) ListByDevice(_ context.Context, deviceID string, limit, offset int) ([]*entity.InvoiceRecord, error) {
	s.mu.RLock()
	var list []*entity.InvoiceRecord
	for _, r := range s.records {
		if r.DeviceID == deviceID {
			rec := r
			list = append(list, &rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Counter > list[j].Counter })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

// ListByDeviceAfter devuelve hasta limit facturas con counter > afterCounter, ascendente.
func (s *InvoiceStore) ListByDeviceAfter(_ context.Context, deviceID string, afterCounter int64, limit int) ([]*entity.InvoiceRecord, error) {
	s.mu.RLock()
	var list []*entity.InvoiceRecord
	for _, r := range s.records {
		if r.DeviceID == deviceID && r.Counter > afterCounter {
			rec := r
			list = append(list, &rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Counter < list[j].Counter })
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list, nil
}

// DeleteLink borra la factura (deviceID, counter).
func (s *InvoiceStore) DeleteLink(_ context.Context, deviceID string, counter int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if r.DeviceID == deviceID && r.Counter == counter {
			delete(s.records, id)
			return nil
		}
	}
	return domain.ErrNotFound
}
