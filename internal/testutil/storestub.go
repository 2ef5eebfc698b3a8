// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"

	"snappit/internal/store"
)

// StoreStub wraps a real in-memory store with per-method overrides so tests
// can inject failures on specific operations while everything else behaves
// normally.
type StoreStub struct {
	Inner *store.Memory

	GetFn       func(ctx context.Context, path string, dest any) error
	PutFn       func(ctx context.Context, path string, value any) error
	DeleteFn    func(ctx context.Context, path string) error
	ListFn      func(ctx context.Context, prefix string, each func(path string, raw []byte) error) error
	MembersFn   func(ctx context.Context, path string) ([]string, error)
	BatchFn     func(ctx context.Context, ops ...store.Op) error
	SubscribeFn func(ctx context.Context, prefix string) (store.Subscription, error)
}

// NewStoreStub creates a stub backed by a fresh in-memory store.
func NewStoreStub() *StoreStub {
	return &StoreStub{Inner: store.NewMemory()}
}

func (s *StoreStub) Get(ctx context.Context, path string, dest any) error {
	if s.GetFn != nil {
		return s.GetFn(ctx, path, dest)
	}
	return s.Inner.Get(ctx, path, dest)
}

func (s *StoreStub) Put(ctx context.Context, path string, value any) error {
	if s.PutFn != nil {
		return s.PutFn(ctx, path, value)
	}
	return s.Inner.Put(ctx, path, value)
}

func (s *StoreStub) Delete(ctx context.Context, path string) error {
	if s.DeleteFn != nil {
		return s.DeleteFn(ctx, path)
	}
	return s.Inner.Delete(ctx, path)
}

func (s *StoreStub) List(ctx context.Context, prefix string, each func(path string, raw []byte) error) error {
	if s.ListFn != nil {
		return s.ListFn(ctx, prefix, each)
	}
	return s.Inner.List(ctx, prefix, each)
}

func (s *StoreStub) Members(ctx context.Context, path string) ([]string, error) {
	if s.MembersFn != nil {
		return s.MembersFn(ctx, path)
	}
	return s.Inner.Members(ctx, path)
}

func (s *StoreStub) Batch(ctx context.Context, ops ...store.Op) error {
	if s.BatchFn != nil {
		return s.BatchFn(ctx, ops...)
	}
	return s.Inner.Batch(ctx, ops...)
}

func (s *StoreStub) Subscribe(ctx context.Context, prefix string) (store.Subscription, error) {
	if s.SubscribeFn != nil {
		return s.SubscribeFn(ctx, prefix)
	}
	return s.Inner.Subscribe(ctx, prefix)
}
