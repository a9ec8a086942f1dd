package pushnotification

type GetPublicKeyRequest struct{}

type GetPublicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type SubscribeRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
	Endpoint    string `json:"endpoint"`
	P256dhKey   string `json:"p256dh_key"`
	AuthKey     string `json:"auth_key"`
}

type SubscribeResponse struct {
	SubscriptionID string `json:"subscription_id"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type UnsubscribeResponse struct{}

type SendTestNotificationRequest struct {
	WorkspaceID string `json:"workspace_id,omitempty"`
}

type SendTestNotificationResponse struct {
	Sent int `json:"sent"`
}
