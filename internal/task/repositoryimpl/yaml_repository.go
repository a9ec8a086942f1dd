package repositoryimpl

import (
	"github.com/kazz187/delegate/internal/task"
	"github.com/kazz187/delegate/pkg/storage"
	"github.com/kazz187/delegate/pkg/storage/yamlstore"
)

// YAMLRepository stores each task at tasks/<id>.yaml.
type YAMLRepository struct {
	*yamlstore.Store[task.Task]
}

var _ task.Repository = (*YAMLRepository)(nil)

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		Store: yamlstore.New(s, "tasks", "task", func(t *task.Task) string { return t.ID }),
	}
}
