package actions

import (
	"context"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/common/models"
	"github.com/gestione-formulari/dashboard/pkg/observability/metrics"
)

// Upstream is the set of external endpoints actions are forwarded to.
type Upstream interface {
	Update(ctx context.Context, req UpdateRequest) (Result, error)
	Delete(ctx context.Context, uids []string) (Result, error)
	SendPEC(ctx context.Context, uids []string) (Result, error)
}

// Publisher announces completed actions. kafka.Producer implements it.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType, key string, data map[string]interface{}) error
}

// Invalidator drops derived data that an action may have made stale.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

type Service struct {
	upstream    Upstream
	guard       Guard
	publisher   Publisher
	invalidator Invalidator
}

// NewService wires the action pipeline. publisher and invalidator may be nil.
func NewService(upstream Upstream, guard Guard, publisher Publisher, invalidator Invalidator) *Service {
	return &Service{upstream: upstream, guard: guard, publisher: publisher, invalidator: invalidator}
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (Result, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		metrics.ObserveAction(string(KindUpdate), metrics.OutcomeRejected)
		return Result{}, err
	}

	data := map[string]interface{}{"uid": req.UID}
	if req.NewFir != "" {
		data["new_fir"] = req.NewFir
	}
	if req.NewAppuntamento != "" {
		data["new_appuntamento"] = req.NewAppuntamento
	}

	return s.run(ctx, KindUpdate, []string{req.UID}, models.EventFormularioUpdated, data, func(ctx context.Context) (Result, error) {
		return s.upstream.Update(ctx, req)
	})
}

func (s *Service) Delete(ctx context.Context, uids []string) (Result, error) {
	uids, err := ValidateUIDs(uids)
	if err != nil {
		metrics.ObserveAction(string(KindDelete), metrics.OutcomeRejected)
		return Result{}, err
	}
	data := map[string]interface{}{"uid_array": uids}
	return s.run(ctx, KindDelete, uids, models.EventFormularioDeleted, data, func(ctx context.Context) (Result, error) {
		return s.upstream.Delete(ctx, uids)
	})
}

func (s *Service) SendPEC(ctx context.Context, uids []string) (Result, error) {
	uids, err := ValidateUIDs(uids)
	if err != nil {
		metrics.ObserveAction(string(KindSendPEC), metrics.OutcomeRejected)
		return Result{}, err
	}
	data := map[string]interface{}{"uid_array": uids}
	return s.run(ctx, KindSendPEC, uids, models.EventFormularioPECRequested, data, func(ctx context.Context) (Result, error) {
		return s.upstream.SendPEC(ctx, uids)
	})
}

func (s *Service) run(ctx context.Context, kind Kind, uids []string, eventType string, data map[string]interface{}, call func(context.Context) (Result, error)) (Result, error) {
	log := logger.FromContext(ctx).WithFields(map[string]interface{}{
		"action":    kind,
		"uid_count": len(uids),
	})

	release, err := s.guard.Acquire(ctx, uids)
	if err != nil {
		metrics.ObserveAction(string(kind), metrics.OutcomeConflict)
		log.WithError(err).Warn("Rejected concurrent action")
		return Result{}, err
	}
	defer release()

	res, err := call(ctx)
	if err != nil {
		switch {
		case apperr.IsUnavailable(err):
			metrics.ObserveAction(string(kind), metrics.OutcomeUnavailable)
			log.WithError(err).Error("Upstream service unreachable")
		default:
			metrics.ObserveAction(string(kind), metrics.OutcomeFailed)
			log.WithError(err).Error("Upstream action failed")
		}
		return Result{}, err
	}
	metrics.ObserveAction(string(kind), metrics.OutcomeForwarded)

	s.afterSuccess(ctx, eventType, uids[0], data)
	return res, nil
}

// afterSuccess publishes the action event and drops cached statistics.
// Neither failure affects the response.
func (s *Service) afterSuccess(ctx context.Context, eventType, key string, data map[string]interface{}) {
	if s.publisher != nil {
		err := s.publisher.PublishEvent(ctx, eventType, key, data)
		metrics.ObserveEventPublish(err)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("event", eventType).Warn("Failed to publish action event")
		}
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to invalidate dashboard statistics")
		}
	}
}
