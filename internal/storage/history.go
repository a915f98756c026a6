package storage

import (
	"encoding/json"
	"log"
	"sync"

	"fitsync/internal/models"
)

// DrainHistory keeps a capped, persisted record of drain passes so the
// UI can show what was delivered, retried, and dropped over time.
type DrainHistory struct {
	mu      sync.RWMutex
	store   KV
	limit   int
	results []models.DrainResult
}

// NewDrainHistory loads any persisted history from the store. A missing
// or corrupt blob starts an empty history rather than failing.
func NewDrainHistory(store KV, limit int) *DrainHistory {
	if limit <= 0 {
		limit = 200
	}
	h := &DrainHistory{store: store, limit: limit}

	data, err := store.Get(KeyDrainLog)
	if err == nil {
		var results []models.DrainResult
		if jsonErr := json.Unmarshal(data, &results); jsonErr != nil {
			log.Printf("drain history corrupt, starting empty: %v", jsonErr)
		} else {
			h.results = results
		}
	} else if err != ErrNotFound {
		log.Printf("drain history unreadable, starting empty: %v", err)
	}
	return h
}

// Append records a drain result and persists the trimmed history.
// Persistence failures are logged, not propagated; losing history must
// not fail a drain pass.
func (h *DrainHistory) Append(result models.DrainResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results = append(h.results, result)
	if len(h.results) > h.limit {
		h.results = h.results[len(h.results)-h.limit:]
	}

	data, err := json.Marshal(h.results)
	if err != nil {
		log.Printf("encode drain history: %v", err)
		return
	}
	if err := h.store.Put(KeyDrainLog, data); err != nil {
		log.Printf("persist drain history: %v", err)
	}
}

// Latest returns the most recent drain result if one exists.
func (h *DrainHistory) Latest() (models.DrainResult, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.results) == 0 {
		return models.DrainResult{}, false
	}
	return h.results[len(h.results)-1], true
}

// HistoryN returns up to limit most recent results, oldest first.
func (h *DrainHistory) HistoryN(limit int) []models.DrainResult {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.results) == 0 {
		return nil
	}
	start := 0
	if limit > 0 && len(h.results) > limit {
		start = len(h.results) - limit
	}
	out := make([]models.DrainResult, len(h.results)-start)
	copy(out, h.results[start:])
	return out
}
