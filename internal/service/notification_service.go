package service

import (
	"context"

	"github.com/d60-Lab/living-legends/internal/model"
	"github.com/d60-Lab/living-legends/internal/repository"
)

// NotificationService 用户收件箱
type NotificationService interface {
	List(ctx context.Context, userID string, page, pageSize int) ([]*model.Notification, int64, error)
	// MarkRead ids 为空时全部标记为已读
	MarkRead(ctx context.Context, userID string, ids []string) (int64, error)
}

type notificationService struct {
	notes repository.NotificationRepository
}

func NewNotificationService(notes repository.NotificationRepository) NotificationService {
	return &notificationService{notes: notes}
}

func (s *notificationService) List(ctx context.Context, userID string, page, pageSize int) ([]*model.Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	items, err := s.notes.ListByRecipient(ctx, userID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.notes.CountUnread(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return s.notes.MarkAllRead(ctx, userID)
	}
	return s.notes.MarkRead(ctx, userID, ids)
}
