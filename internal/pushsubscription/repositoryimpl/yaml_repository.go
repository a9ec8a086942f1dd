package repositoryimpl

import (
	"context"

	"github.com/kazz187/delegate/internal/pushsubscription"
	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/storage"
	"github.com/kazz187/delegate/pkg/storage/yamlstore"
)

// YAMLRepository stores each subscription at push_subscriptions/<id>.yaml.
// Endpoint lookups scan the whole prefix; a server has few subscribers.
type YAMLRepository struct {
	*yamlstore.Store[pushsubscription.Subscription]
}

var _ pushsubscription.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		Store: yamlstore.New(s, "push_subscriptions", "push subscription",
			func(sub *pushsubscription.Subscription) string { return sub.ID }),
	}
}

func (r *YAMLRepository) FindByEndpoint(ctx context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, sub := range all {
		if sub.Endpoint == endpoint {
			return sub, nil
		}
	}
	return nil, cerr.NewError(cerr.NotFound, "push subscription not found", nil)
}

func (r *YAMLRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	sub, err := r.FindByEndpoint(ctx, endpoint)
	if err != nil {
		return err
	}
	return r.Delete(ctx, sub.ID)
}
