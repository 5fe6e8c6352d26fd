// Package recognizer composes the provider access layer: a fingerprint-keyed
// response cache in front of a retry/circuit-breaker executor around the raw
// recognition call.
package recognizer

import (
	"context"
	"log/slog"

	"github.com/kirillkom/invoice-pipeline/internal/core/domain"
	"github.com/kirillkom/invoice-pipeline/internal/core/ports"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/resilience"
	"github.com/kirillkom/invoice-pipeline/internal/infrastructure/respcache"
)

const operationRecognize = "recognizer.process"

// Observer receives cache and provider-call outcomes for metrics. All
// methods must be safe for concurrent use.
type Observer interface {
	RecordCacheLookup(hit bool)
	RecordProviderCall(err error)
}

type Service struct {
	raw        ports.RecognitionProvider
	cache      *respcache.Cache
	executor   *resilience.Executor
	classifier resilience.ErrorClassifier
	observer   Observer
}

func NewService(
	raw ports.RecognitionProvider,
	cache *respcache.Cache,
	executor *resilience.Executor,
	classifier resilience.ErrorClassifier,
) *Service {
	return &Service{
		raw:        raw,
		cache:      cache,
		executor:   executor,
		classifier: classifier,
	}
}

// SetObserver attaches a metrics observer. Call before the service starts
// handling documents; a nil observer disables recording.
func (s *Service) SetObserver(observer Observer) {
	s.observer = observer
}

// Recognize serves repeated fingerprints from the cache without touching the
// breaker or the provider; misses go through the executor and, on success,
// populate the cache for the TTL window.
func (s *Service) Recognize(ctx context.Context, doc domain.Document) (*domain.ProviderResponse, error) {
	if cached, ok := s.cache.Get(doc.Fingerprint); ok {
		slog.Debug("provider_cache_hit", "fingerprint", doc.Fingerprint)
		s.recordCacheLookup(true)
		return cached, nil
	}
	s.recordCacheLookup(false)

	var response *domain.ProviderResponse
	err := s.executor.Execute(ctx, operationRecognize, func(callCtx context.Context) error {
		resp, callErr := s.raw.Recognize(callCtx, doc)
		if callErr != nil {
			return callErr
		}
		response = resp
		return nil
	}, s.classifier)
	s.recordProviderCall(err)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(s.classifier, err)
	}

	s.cache.Put(doc.Fingerprint, response)
	return response, nil
}

func (s *Service) recordCacheLookup(hit bool) {
	if s.observer != nil {
		s.observer.RecordCacheLookup(hit)
	}
}

func (s *Service) recordProviderCall(err error) {
	if s.observer != nil {
		s.observer.RecordProviderCall(err)
	}
}

func wrapTemporaryIfNeeded(classifier resilience.ErrorClassifier, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, "recognize document", err)
	}
	if classifier != nil && classifier(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "recognize document", err)
	}
	return err
}
