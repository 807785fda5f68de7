package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/leadenrich/internal/application"
	"github.com/ericfisherdev/leadenrich/internal/domain/model"
)

func TestUsageRecorder_WritesRecords(t *testing.T) {
	store := &mockUsageStore{}
	rec := application.NewUsageRecorder(store, 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	id := int64(3)
	rec.Record(model.UsageRecord{AccountID: &id, Endpoint: model.OperationEnrichEmail, ResponseStatus: 200})
	rec.Record(model.UsageRecord{AccountID: &id, Endpoint: model.OperationEnrichDomain, ResponseStatus: 400})

	assert.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.False(t, store.records[0].CreatedAt.IsZero())
}

func TestUsageRecorder_DrainsOnShutdown(t *testing.T) {
	store := &mockUsageStore{}
	rec := application.NewUsageRecorder(store, 8, discardLogger())

	for range 5 {
		rec.Record(model.UsageRecord{Endpoint: model.OperationEnrichDomain, ResponseStatus: 200})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, 5, store.count())
}

func TestUsageRecorder_DropsWhenFull(t *testing.T) {
	store := &mockUsageStore{}
	rec := application.NewUsageRecorder(store, 2, discardLogger())

	for range 5 {
		rec.Record(model.UsageRecord{Endpoint: model.OperationEnrichDomain, ResponseStatus: 200})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Equal(t, 2, store.count())
}

func TestUsageRecorder_RecordNeverBlocks(t *testing.T) {
	store := &mockUsageStore{block: make(chan struct{})}
	rec := application.NewUsageRecorder(store, 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	returned := make(chan struct{})
	go func() {
		for range 50 {
			rec.Record(model.UsageRecord{Endpoint: model.OperationEnrichEmail, ResponseStatus: 200})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a stalled store")
	}

	close(store.block)
	cancel()
	<-done
}

func TestUsageRecorder_AppendFailureIsSwallowed(t *testing.T) {
	store := &mockUsageStore{appendErr: errBoom}
	rec := application.NewUsageRecorder(store, 4, discardLogger())

	rec.Record(model.UsageRecord{Endpoint: model.OperationEnrichEmail, ResponseStatus: 200})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	assert.Zero(t, store.count())
}
