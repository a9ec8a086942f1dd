package pushsubscription

import "time"

// Subscription is a browser push endpoint. An empty WorkspaceID receives
// notifications from every workspace.
type Subscription struct {
	ID          string    `yaml:"id"`
	WorkspaceID string    `yaml:"workspace_id,omitempty"`
	Endpoint    string    `yaml:"endpoint"`
	P256dhKey   string    `yaml:"p256dh_key"`
	AuthKey     string    `yaml:"auth_key"`
	CreatedAt   time.Time `yaml:"created_at"`
}
