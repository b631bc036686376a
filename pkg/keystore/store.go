// Package keystore keeps named private key entries on top of a storage.Adapter.
//
// Entries are serialized as JSON records with the key bytes in base64 and ISO-8601
// timestamps. The store adds no locking of its own: concurrent writes to the same
// name are arbitrated by the adapter.
package keystore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/turtacn/credkit/pkg/errors"
	"github.com/turtacn/credkit/pkg/logger"
	"github.com/turtacn/credkit/pkg/storage"
	"github.com/turtacn/credkit/pkg/utils"
)

const tracerName = "github.com/turtacn/credkit/pkg/keystore"

// Store is a CRUD-by-name store of key entries.
type Store struct {
	adapter storage.Adapter
	log     logger.Logger
	now     func() time.Time
	tracer  trace.Tracer
}

// New opens a Store on src.
func New(src Source, opts ...Option) (*Store, error) {
	if src == nil {
		return nil, errors.ErrValidation("source")
	}
	s := &Store{
		log:    logger.NewNoopLogger(),
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.Component(s.log, "keystore")

	adapter, err := src.open(s.log)
	if err != nil {
		return nil, err
	}
	s.adapter = adapter
	return s, nil
}

// Adapter returns the underlying storage adapter.
func (s *Store) Adapter() storage.Adapter {
	return s.adapter
}

// Close releases the adapter's resources, if any.
func (s *Store) Close() error {
	return storage.Close(s.adapter)
}

// Exists reports whether an entry named name is stored.
func (s *Store) Exists(ctx context.Context, name string) (ok bool, err error) {
	ctx, span := s.startSpan(ctx, "exists", name)
	defer func() { endSpan(span, err) }()

	if name == "" {
		return false, errors.ErrValidation("name")
	}
	return s.adapter.Exists(ctx, name)
}

// Load returns the entry named name, or (nil, nil) if there is none.
func (s *Store) Load(ctx context.Context, name string) (entry *KeyEntry, err error) {
	ctx, span := s.startSpan(ctx, "load", name)
	defer func() { endSpan(span, err) }()

	if name == "" {
		return nil, errors.ErrValidation("name")
	}
	return s.load(ctx, name)
}

func (s *Store) load(ctx context.Context, name string) (*KeyEntry, error) {
	data, err := s.adapter.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return unmarshalEntry(data)
}

// Save creates a new entry. Both dates are set to the current time.
// It fails with an entry_already_exists error if the name is taken.
func (s *Store) Save(ctx context.Context, params SaveParams) (entry *KeyEntry, err error) {
	ctx, span := s.startSpan(ctx, "save", params.Name)
	defer func() { endSpan(span, err) }()

	if err := utils.ValidateStruct(params); err != nil {
		return nil, err
	}

	now := s.timestamp()
	entry = &KeyEntry{
		Name:             params.Name,
		Value:            append([]byte(nil), params.Value...),
		Meta:             cloneMeta(params.Meta),
		CreationDate:     now,
		ModificationDate: now,
	}
	data, err := marshalEntry(entry)
	if err != nil {
		return nil, err
	}

	if err := s.adapter.Store(ctx, entry.Name, data); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, errors.ErrEntryAlreadyExists(entry.Name).WithCause(err)
		}
		return nil, err
	}

	s.log.Debug(ctx, "Key entry saved", logger.Fields{"name": entry.Name})
	return entry.clone(), nil
}

// Update replaces the value and/or meta of an existing entry and refreshes its
// modification date. Fields left nil in params keep their stored values.
func (s *Store) Update(ctx context.Context, params UpdateParams) (entry *KeyEntry, err error) {
	ctx, span := s.startSpan(ctx, "update", params.Name)
	defer func() { endSpan(span, err) }()

	if err := utils.ValidateStruct(params); err != nil {
		return nil, err
	}
	if params.Value == nil && params.Meta == nil {
		return nil, errors.ErrValidation("value or meta")
	}

	existing, err := s.load(ctx, params.Name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.ErrEntryNotFound(params.Name)
	}

	entry = existing
	if params.Value != nil {
		entry.Value = append([]byte(nil), params.Value...)
	}
	if params.Meta != nil {
		entry.Meta = cloneMeta(params.Meta)
	}
	entry.ModificationDate = s.timestamp()

	data, err := marshalEntry(entry)
	if err != nil {
		return nil, err
	}
	if err := s.adapter.Update(ctx, entry.Name, data); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, errors.ErrEntryNotFound(entry.Name).WithCause(err)
		}
		return nil, err
	}

	s.log.Debug(ctx, "Key entry updated", logger.Fields{"name": entry.Name})
	return entry.clone(), nil
}

// Remove deletes the entry named name and reports whether one was deleted.
func (s *Store) Remove(ctx context.Context, name string) (removed bool, err error) {
	ctx, span := s.startSpan(ctx, "remove", name)
	defer func() { endSpan(span, err) }()

	if name == "" {
		return false, errors.ErrValidation("name")
	}
	removed, err = s.adapter.Remove(ctx, name)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Debug(ctx, "Key entry removed", logger.Fields{"name": name})
	}
	return removed, nil
}

// List returns every entry in the order the adapter yields them.
func (s *Store) List(ctx context.Context) (entries []*KeyEntry, err error) {
	ctx, span := s.startSpan(ctx, "list", "")
	defer func() { endSpan(span, err) }()

	records, err := s.adapter.List(ctx)
	if err != nil {
		return nil, err
	}
	entries = make([]*KeyEntry, 0, len(records))
	for _, data := range records {
		entry, err := unmarshalEntry(data)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	span.SetAttributes(attribute.Int("keystore.count", len(entries)))
	return entries, nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "clear", "")
	defer func() { endSpan(span, err) }()

	if err := s.adapter.Clear(ctx); err != nil {
		return err
	}
	s.log.Info(ctx, "Key store cleared")
	return nil
}

// timestamp is truncated to milliseconds so a returned entry equals its reloaded form.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Store) startSpan(ctx context.Context, op, name string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("keystore.op", op)}
	if name != "" {
		attrs = append(attrs, attribute.String("keystore.name", name))
	}
	return s.tracer.Start(ctx, "keystore."+op, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
