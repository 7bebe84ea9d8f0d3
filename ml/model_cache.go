package ml

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ModelCache keeps loaded models by artifact path so prediction does not re-read the file
// on every request. Invalidate a path when its artifact is replaced.
type ModelCache struct {
	models *lru.Cache[string, Model]
}

func NewModelCache(size int) (*ModelCache, error) {
	if size <= 0 {
		size = 1
	}
	models, err := lru.New[string, Model](size)
	if err != nil {
		return nil, err
	}
	return &ModelCache{models: models}, nil
}

// Get returns the cached model for path, loading it on a miss.
// Load errors are not cached.
func (c *ModelCache) Get(path string) (Model, error) {
	if model, ok := c.models.Get(path); ok {
		return model, nil
	}
	model, err := NewStore(path).Load()
	if err != nil {
		return Model{}, err
	}
	c.models.Add(path, model)
	return model, nil
}

// Put stores a freshly saved model without another read.
func (c *ModelCache) Put(path string, model Model) {
	c.models.Add(path, model)
}

func (c *ModelCache) Invalidate(path string) {
	c.models.Remove(path)
}

func (c *ModelCache) Len() int {
	return c.models.Len()
}
