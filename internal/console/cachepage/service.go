package cachepage

import (
	"context"

	"github.com/aussiebroadwan/backoffice/pkg/adminsdk"
)

// Service is the cache backend behind the page. The pattern handed to List
// is passed through as typed; matching rules belong to the backend.
type Service interface {
	List(ctx context.Context, pattern string) (*adminsdk.CacheList, error)
	DeleteOne(ctx context.Context, key string) error
	DeleteAll(ctx context.Context) error
}

// CacheAPI is the subset of the admin SDK the REST service needs.
type CacheAPI interface {
	ListCache(ctx context.Context, pattern string) (*adminsdk.CacheList, error)
	DeleteCacheKey(ctx context.Context, key string) error
	FlushCache(ctx context.Context) error
}

type restService struct {
	api CacheAPI
}

// NewRESTService adapts the admin SDK cache endpoints to Service.
func NewRESTService(api CacheAPI) Service {
	return &restService{api: api}
}

func (s *restService) List(ctx context.Context, pattern string) (*adminsdk.CacheList, error) {
	return s.api.ListCache(ctx, pattern)
}

func (s *restService) DeleteOne(ctx context.Context, key string) error {
	return s.api.DeleteCacheKey(ctx, key)
}

func (s *restService) DeleteAll(ctx context.Context) error {
	return s.api.FlushCache(ctx)
}
