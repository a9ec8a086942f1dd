package pushnotification

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/delegate/internal/config"
	"github.com/kazz187/delegate/internal/pushsubscription"
	"github.com/kazz187/delegate/pkg/cerr"
)

var _ ServiceHandler = (*Server)(nil)

type Server struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	sender   *Sender
}

func NewServer(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, sender *Sender) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		repo:     repo,
		sender:   sender,
	}
}

func (s *Server) GetPublicKey(_ context.Context, _ *connect.Request[GetPublicKeyRequest]) (*connect.Response[GetPublicKeyResponse], error) {
	if s.vapidEnv.PublicKey == "" {
		return nil, cerr.NewError(cerr.FailedPrecondition, "VAPID keys not configured", nil)
	}
	return connect.NewResponse(&GetPublicKeyResponse{PublicKey: s.vapidEnv.PublicKey}), nil
}

// Subscribe registers an endpoint. Registering a known endpoint again
// replaces its keys and workspace.
func (s *Server) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest]) (*connect.Response[SubscribeResponse], error) {
	switch {
	case req.Msg.Endpoint == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "endpoint is required", nil)
	case req.Msg.P256dhKey == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "p256dh_key is required", nil)
	case req.Msg.AuthKey == "":
		return nil, cerr.NewError(cerr.InvalidArgument, "auth_key is required", nil)
	}

	existing, err := s.repo.FindByEndpoint(ctx, req.Msg.Endpoint)
	switch {
	case err == nil:
		existing.WorkspaceID = req.Msg.WorkspaceID
		existing.P256dhKey = req.Msg.P256dhKey
		existing.AuthKey = req.Msg.AuthKey
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
		return connect.NewResponse(&SubscribeResponse{SubscriptionID: existing.ID}), nil
	case !cerr.IsCode(err, cerr.NotFound):
		return nil, err
	}

	sub := &pushsubscription.Subscription{
		ID:          ulid.Make().String(),
		WorkspaceID: req.Msg.WorkspaceID,
		Endpoint:    req.Msg.Endpoint,
		P256dhKey:   req.Msg.P256dhKey,
		AuthKey:     req.Msg.AuthKey,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return connect.NewResponse(&SubscribeResponse{SubscriptionID: sub.ID}), nil
}

func (s *Server) Unsubscribe(ctx context.Context, req *connect.Request[UnsubscribeRequest]) (*connect.Response[UnsubscribeResponse], error) {
	if req.Msg.Endpoint == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "endpoint is required", nil)
	}
	if err := s.repo.DeleteByEndpoint(ctx, req.Msg.Endpoint); err != nil {
		return nil, err
	}
	return connect.NewResponse(&UnsubscribeResponse{}), nil
}

func (s *Server) SendTestNotification(ctx context.Context, req *connect.Request[SendTestNotificationRequest]) (*connect.Response[SendTestNotificationResponse], error) {
	workspaceID := req.Msg.WorkspaceID
	sent := s.sender.Send(ctx, &NotificationPayload{
		Title: "delegate test",
		Body:  "Push notifications are working!",
	}, func(sub *pushsubscription.Subscription) bool {
		return workspaceID == "" || sub.WorkspaceID == "" || sub.WorkspaceID == workspaceID
	})
	return connect.NewResponse(&SendTestNotificationResponse{Sent: sent}), nil
}
