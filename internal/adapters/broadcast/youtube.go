// Package broadcast manages YouTube live broadcasts for LIVE_BROADCAST streams.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"streamhub/internal/domain"
)

var (
	partsAll    = []string{"snippet", "status"}
	partsStatus = []string{"status"}
	partsSched  = []string{"snippet"}
)

// ErrBroadcastNotFound is returned when the platform no longer knows the broadcast id.
var ErrBroadcastNotFound = errors.New("broadcast not found")

// Client implements domain.BroadcastClient. A YouTube service is built per call
// because every call carries the organizer's own access token.
type Client struct {
	base *http.Client
	opts []option.ClientOption
}

// NewClient builds a client. base may be nil; opts are appended to every service (e.g. option.WithEndpoint).
func NewClient(base *http.Client, opts ...option.ClientOption) *Client {
	return &Client{base: base, opts: opts}
}

func (c *Client) service(ctx context.Context, accessToken string) (*youtube.LiveBroadcastsService, error) {
	if c.base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	}
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	opts := append([]option.ClientOption{option.WithHTTPClient(hc)}, c.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return svc.LiveBroadcasts, nil
}

// privacy maps stream visibility onto broadcast privacy status.
func privacy(v domain.Visibility) string {
	switch v {
	case domain.VisibilityPublic:
		return "public"
	case domain.VisibilityProtected:
		return "unlisted"
	default:
		return "private"
	}
}

func (c *Client) CreateBroadcast(ctx context.Context, b domain.Broadcast, accessToken string) (string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return "", err
	}
	created, err := svc.Insert(partsAll, &youtube.LiveBroadcast{
		Snippet: &youtube.LiveBroadcastSnippet{
			Title:              b.Title,
			Description:        b.Description,
			ScheduledStartTime: b.StartsAt.UTC().Format(time.RFC3339),
			ScheduledEndTime:   b.EndsAt.UTC().Format(time.RFC3339),
		},
		Status: &youtube.LiveBroadcastStatus{PrivacyStatus: privacy(b.Visibility)},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("insert broadcast: %w", err)
	}
	return created.Id, nil
}

func (c *Client) PatchBroadcast(ctx context.Context, broadcastID string, patch domain.BroadcastPatch, accessToken string) error {
	return c.modify(ctx, broadcastID, accessToken, partsSched, func(bc *youtube.LiveBroadcast) {
		if patch.Title != nil {
			bc.Snippet.Title = *patch.Title
		}
		if patch.Description != nil {
			bc.Snippet.Description = *patch.Description
			bc.Snippet.ForceSendFields = append(bc.Snippet.ForceSendFields, "Description")
		}
	})
}

func (c *Client) DeleteBroadcast(ctx context.Context, broadcastID, accessToken string) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}
	err = svc.Delete(broadcastID).Context(ctx).Do()
	if isNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete broadcast: %w", err)
	}
	return nil
}

func (c *Client) RescheduleBroadcast(ctx context.Context, broadcastID string, startsAt, endsAt time.Time, accessToken string) error {
	return c.modify(ctx, broadcastID, accessToken, partsSched, func(bc *youtube.LiveBroadcast) {
		bc.Snippet.ScheduledStartTime = startsAt.UTC().Format(time.RFC3339)
		bc.Snippet.ScheduledEndTime = endsAt.UTC().Format(time.RFC3339)
	})
}

func (c *Client) UpdateBroadcastVisibility(ctx context.Context, broadcastID string, v domain.Visibility, accessToken string) error {
	return c.modify(ctx, broadcastID, accessToken, partsStatus, func(bc *youtube.LiveBroadcast) {
		bc.Status.PrivacyStatus = privacy(v)
	})
}

// modify reads the broadcast, applies fn and writes back the given parts.
// The platform has no partial update, so unchanged fields are resent as read.
func (c *Client) modify(ctx context.Context, broadcastID, accessToken string, parts []string, fn func(*youtube.LiveBroadcast)) error {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}
	resp, err := svc.List(partsAll).Id(broadcastID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list broadcast: %w", err)
	}
	if len(resp.Items) == 0 {
		return fmt.Errorf("%w: %s", ErrBroadcastNotFound, broadcastID)
	}
	current := resp.Items[0]
	bc := &youtube.LiveBroadcast{Id: broadcastID, Snippet: current.Snippet, Status: current.Status}
	if bc.Snippet == nil {
		bc.Snippet = &youtube.LiveBroadcastSnippet{}
	}
	if bc.Status == nil {
		bc.Status = &youtube.LiveBroadcastStatus{}
	}
	fn(bc)
	if _, err := svc.Update(parts, bc).Context(ctx).Do(); err != nil {
		return fmt.Errorf("update broadcast: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
