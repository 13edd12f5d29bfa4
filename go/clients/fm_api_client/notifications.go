package fm_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/mcdev12/matchday/go/internal/models"
)

// GetUnreadNotifications returns the viewer's unread notifications, newest first
func (c *FMApiClient) GetUnreadNotifications(ctx context.Context) ([]models.UserNotification, error) {
	body, err := c.Get(ctx, UnreadNotificationsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread notifications: %w", err)
	}

	var notifications []models.UserNotification
	if err := json.Unmarshal(body, &notifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}

	return notifications, nil
}

func (c *FMApiClient) MarkNotificationRead(ctx context.Context, id models.ID) error {
	if _, err := c.Post(ctx, fmt.Sprintf(MarkReadEndpoint, url.PathEscape(id.String())), nil); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (c *FMApiClient) MarkAllNotificationsRead(ctx context.Context) error {
	if _, err := c.Post(ctx, MarkAllReadEndpoint, nil); err != nil {
		return fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	return nil
}

// GetManagerProfile returns the viewer's level and experience summary
func (c *FMApiClient) GetManagerProfile(ctx context.Context) (*models.ManagerProfile, error) {
	body, err := c.Get(ctx, ManagerProfileEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get manager profile: %w", err)
	}

	var profile models.ManagerProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manager profile: %w", err)
	}

	return &profile, nil
}
