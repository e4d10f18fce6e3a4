package support

import (
	"context"
	"fmt"
	"time"

	"github.com/gestione-formulari/dashboard/pkg/common/logger"
)

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Create(ctx context.Context, req CreateTicketRequest) (*Ticket, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := req.toTicket()
	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("persisting support ticket: %w", err)
	}
	logger.FromContext(ctx).WithFields(map[string]interface{}{
		"ticket_id":    t.ID,
		"inquiry_type": t.InquiryType,
	}).Info("Support ticket created")
	return t, nil
}

func (s *Service) List(ctx context.Context) ([]Ticket, error) {
	tickets, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing support tickets: %w", err)
	}
	if tickets == nil {
		tickets = []Ticket{}
	}
	return tickets, nil
}

func (s *Service) Resolve(ctx context.Context, id int64) (*Ticket, error) {
	t, err := s.store.Resolve(ctx, id, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return t, nil
}
