package intention

import (
	"context"
	"errors"
	"testing"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/logger"
)

type memStore struct {
	records map[string]*models.IntentionRecord
	limit   int64
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*models.IntentionRecord{}}
}

func (s *memStore) Create(_ context.Context, rec *models.IntentionRecord) error {
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id, reason string) error {
	rec, ok := s.records[id]
	if !ok {
		return errors.New("missing")
	}
	rec.Status = models.IntentionFailed
	rec.Error = reason
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id string, at time.Time) error {
	rec, ok := s.records[id]
	if !ok {
		return errors.New("missing")
	}
	rec.Status = models.IntentionCompleted
	rec.CompletedAt = &at
	return nil
}

func (s *memStore) ListByUser(_ context.Context, userID string, limit int64) ([]models.IntentionRecord, error) {
	s.limit = limit
	out := []models.IntentionRecord{}
	for _, r := range s.records {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakePublisher struct {
	keys []string
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, key string, _ interface{}) error {
	p.keys = append(p.keys, key)
	return p.err
}

func record() models.IntentionRecord {
	return models.IntentionRecord{
		ID:          "i1",
		UserID:      "u1",
		ProjectID:   "p1",
		Intention:   "build a todo app",
		Status:      models.IntentionSubmitted,
		SubmittedAt: time.Now(),
	}
}

func TestSubmitPublishesKeyedByProject(t *testing.T) {
	store, pub := newMemStore(), &fakePublisher{}
	h := NewHandoff(store, pub, logger.NewDiscard())

	if err := h.Submit(context.Background(), record()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "p1" {
		t.Errorf("published keys = %v", pub.keys)
	}
	if store.records["i1"].Status != models.IntentionSubmitted {
		t.Errorf("status = %s", store.records["i1"].Status)
	}
}

func TestSubmitMarksFailedOnPublishError(t *testing.T) {
	store, pub := newMemStore(), &fakePublisher{err: errors.New("no brokers")}
	h := NewHandoff(store, pub, logger.NewDiscard())

	if err := h.Submit(context.Background(), record()); err == nil {
		t.Fatal("expected error")
	}
	rec := store.records["i1"]
	if rec.Status != models.IntentionFailed || rec.Error == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestListClampsLimit(t *testing.T) {
	store := newMemStore()
	h := NewHandoff(store, &fakePublisher{}, logger.NewDiscard())
	_ = h.Submit(context.Background(), record())

	got, err := h.List(context.Background(), "u1", 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("List() = %v, %v", got, err)
	}
	if store.limit != defaultListLimit {
		t.Errorf("limit = %d", store.limit)
	}
}
