package dashboard

import (
	"context"

	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/common/models"
)

// HandleEvent is a kafka.EventHandler that drops cached statistics whenever
// any instance reports a change to the formulari.
func (s *Service) HandleEvent(ctx context.Context, event models.Event) error {
	switch event.Type {
	case models.EventFormularioUpdated, models.EventFormularioDeleted, models.EventFormularioPECRequested:
	default:
		return nil
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
		"source":     event.Source,
	}).Debug("Invalidating dashboard statistics")
	return s.Invalidate(ctx)
}
