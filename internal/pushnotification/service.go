package pushnotification

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/kazz187/delegate/pkg/connectjson"
)

const ServiceName = "delegate.v1.PushService"

const (
	GetPublicKeyProcedure         = "/" + ServiceName + "/GetPublicKey"
	SubscribeProcedure            = "/" + ServiceName + "/Subscribe"
	UnsubscribeProcedure          = "/" + ServiceName + "/Unsubscribe"
	SendTestNotificationProcedure = "/" + ServiceName + "/SendTestNotification"
)

type ServiceHandler interface {
	GetPublicKey(context.Context, *connect.Request[GetPublicKeyRequest]) (*connect.Response[GetPublicKeyResponse], error)
	Subscribe(context.Context, *connect.Request[SubscribeRequest]) (*connect.Response[SubscribeResponse], error)
	Unsubscribe(context.Context, *connect.Request[UnsubscribeRequest]) (*connect.Response[UnsubscribeResponse], error)
	SendTestNotification(context.Context, *connect.Request[SendTestNotificationRequest]) (*connect.Response[SendTestNotificationResponse], error)
}

func NewServiceHandler(svc ServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append(opts, connectjson.HandlerOption())
	mux := http.NewServeMux()
	mux.Handle(GetPublicKeyProcedure, connect.NewUnaryHandler(GetPublicKeyProcedure, svc.GetPublicKey, opts...))
	mux.Handle(SubscribeProcedure, connect.NewUnaryHandler(SubscribeProcedure, svc.Subscribe, opts...))
	mux.Handle(UnsubscribeProcedure, connect.NewUnaryHandler(UnsubscribeProcedure, svc.Unsubscribe, opts...))
	mux.Handle(SendTestNotificationProcedure, connect.NewUnaryHandler(SendTestNotificationProcedure, svc.SendTestNotification, opts...))
	return "/" + ServiceName + "/", mux
}
