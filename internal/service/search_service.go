package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"doof/internal/core/errs"
	"doof/internal/domain"
)

const (
	SearchAll         = "all"
	SearchRestaurants = "restaurants"
	SearchDishes      = "dishes"
	SearchLists       = "lists"
)

type SearchService struct {
	hashtags domain.HashtagRepository
	catalog  *CatalogService
	lists    *ListService
}

func NewSearchService(hashtags domain.HashtagRepository, catalog *CatalogService, lists *ListService) *SearchService {
	return &SearchService{hashtags: hashtags, catalog: catalog, lists: lists}
}

type SearchQuery struct {
	Q        string
	Type     string
	Hashtags []string
	City     string
	Limit    int
}

type SearchResult struct {
	Restaurants []domain.Restaurant `json:"restaurants"`
	Dishes      []domain.Dish       `json:"dishes"`
	Lists       []domain.List       `json:"lists"`
}

func (s *SearchService) PopularHashtags(ctx context.Context, q string, limit int) ([]domain.HashtagCount, error) {
	out, err := s.hashtags.Popular(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.HashtagCount{}
	}
	return out, nil
}

func (s *SearchService) Hashtags(ctx context.Context, q string, p domain.Page) (domain.PageResult[domain.Hashtag], error) {
	rows, total, err := s.hashtags.List(ctx, q, p)
	if err != nil {
		return domain.PageResult[domain.Hashtag]{}, err
	}
	return domain.NewPageResult(rows, total, p), nil
}

func (s *SearchService) RenameHashtag(ctx context.Context, id, name, category string) error {
	if domain.NormalizeTag(name) == "" {
		return errs.BadRequest("name is required")
	}
	err := s.hashtags.Rename(ctx, id, name, category)
	if err != nil && (strings.Contains(strings.ToLower(err.Error()), "unique") ||
		strings.Contains(strings.ToLower(err.Error()), "duplicate")) {
		return errs.Conflict("hashtag already exists")
	}
	return wrapNotFound(err, "hashtag not found")
}

func (s *SearchService) DeleteHashtag(ctx context.Context, id string) error {
	return wrapNotFound(s.hashtags.Delete(ctx, id), "hashtag not found")
}

// Search 统一搜索；各类型并发查询
func (s *SearchService) Search(ctx context.Context, viewerID string, q SearchQuery) (*SearchResult, error) {
	typ := q.Type
	if typ == "" {
		typ = SearchAll
	}
	switch typ {
	case SearchAll, SearchRestaurants, SearchDishes, SearchLists:
	default:
		return nil, errs.BadRequest("type must be one of all|restaurants|dishes|lists")
	}
	page := domain.Page{Limit: q.Limit}.Normalize()
	out := &SearchResult{
		Restaurants: []domain.Restaurant{},
		Dishes:      []domain.Dish{},
		Lists:       []domain.List{},
	}

	g, gctx := errgroup.WithContext(ctx)
	if typ == SearchAll || typ == SearchRestaurants {
		g.Go(func() error {
			res, err := s.catalog.SearchRestaurants(gctx, domain.RestaurantFilter{
				Q: q.Q, City: q.City, Hashtags: q.Hashtags, Sort: domain.SortPopular, Page: page,
			})
			out.Restaurants = res.Items
			return err
		})
	}
	if typ == SearchAll || typ == SearchDishes {
		g.Go(func() error {
			res, err := s.catalog.SearchDishes(gctx, domain.DishFilter{
				Q: q.Q, City: q.City, Hashtags: q.Hashtags, Sort: domain.SortPopular, Page: page,
			})
			out.Dishes = res.Items
			return err
		})
	}
	if typ == SearchAll || typ == SearchLists {
		g.Go(func() error {
			f := domain.ListFilter{Q: q.Q, City: q.City, Page: page}
			if len(q.Hashtags) > 0 {
				f.Tag = q.Hashtags[0]
			}
			res, err := s.lists.FindPublicLists(gctx, viewerID, f)
			out.Lists = res.Items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
