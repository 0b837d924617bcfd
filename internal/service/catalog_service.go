package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"doof/internal/core/cache"
	"doof/internal/core/errs"
	"doof/internal/domain"
)

const detailTTL = 5 * time.Minute

// CatalogService 餐厅与菜品
type CatalogService struct {
	restaurants domain.RestaurantRepository
	dishes      domain.DishRepository
	cache       *cache.Cache
	log         *zap.Logger
}

func NewCatalogService(restaurants domain.RestaurantRepository, dishes domain.DishRepository, c *cache.Cache, log *zap.Logger) *CatalogService {
	return &CatalogService{restaurants: restaurants, dishes: dishes, cache: c, log: log}
}

type RestaurantInput struct {
	Name          string   `json:"name" binding:"required"`
	Address       string   `json:"address"`
	City          string   `json:"city"`
	Neighborhood  string   `json:"neighborhood"`
	Zipcode       string   `json:"zipcode"`
	GooglePlaceID string   `json:"google_place_id"`
	Latitude      float64  `json:"latitude"`
	Longitude     float64  `json:"longitude"`
	Hashtags      []string `json:"hashtags"`
}

type DishInput struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	RestaurantID string   `json:"restaurant_id" binding:"required"`
	Hashtags     []string `json:"hashtags"`
}

func restaurantKey(id string) string { return "restaurant:" + id }
func dishKey(id string) string       { return "dish:" + id }

func (s *CatalogService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Del(ctx, keys...); err != nil {
		s.log.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func (s *CatalogService) SearchRestaurants(ctx context.Context, f domain.RestaurantFilter) (domain.PageResult[domain.Restaurant], error) {
	rows, total, err := s.restaurants.Search(ctx, f)
	if err != nil {
		return domain.PageResult[domain.Restaurant]{}, err
	}
	return domain.NewPageResult(rows, total, f.Page), nil
}

// GetRestaurant 含菜品与标签，缓存 5 分钟
func (s *CatalogService) GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error) {
	r, err := cache.GetOrLoadJSON(s.cache, ctx, restaurantKey(id), detailTTL,
		func(ctx context.Context) (*domain.Restaurant, error) {
			return s.restaurants.FindByID(ctx, id, true)
		})
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.NotFound("restaurant not found")
	}
	return r, nil
}

func (s *CatalogService) checkPlaceID(ctx context.Context, placeID, selfID string) error {
	if placeID == "" {
		return nil
	}
	existing, err := s.restaurants.FindByPlaceID(ctx, placeID)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return errs.Conflict("restaurant with this google_place_id already exists")
	}
	return nil
}

func (in RestaurantInput) apply(r *domain.Restaurant) {
	r.Name = strings.TrimSpace(in.Name)
	r.Address = strings.TrimSpace(in.Address)
	r.City = strings.TrimSpace(in.City)
	r.Neighborhood = strings.TrimSpace(in.Neighborhood)
	r.Zipcode = strings.TrimSpace(in.Zipcode)
	r.Latitude = in.Latitude
	r.Longitude = in.Longitude
	r.GooglePlaceID = nil
	if pid := strings.TrimSpace(in.GooglePlaceID); pid != "" {
		r.GooglePlaceID = &pid
	}
}

func (s *CatalogService) CreateRestaurant(ctx context.Context, userID string, in RestaurantInput) (*domain.Restaurant, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.BadRequest("name is required")
	}
	if err := s.checkPlaceID(ctx, strings.TrimSpace(in.GooglePlaceID), ""); err != nil {
		return nil, err
	}
	r := &domain.Restaurant{CreatedBy: userID}
	in.apply(r)
	if err := s.restaurants.Create(ctx, r, in.Hashtags); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *CatalogService) UpdateRestaurant(ctx context.Context, id string, in RestaurantInput) (*domain.Restaurant, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.BadRequest("name is required")
	}
	r, err := s.restaurants.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, errs.NotFound("restaurant not found")
	}
	if err := s.checkPlaceID(ctx, strings.TrimSpace(in.GooglePlaceID), id); err != nil {
		return nil, err
	}
	in.apply(r)
	if err := s.restaurants.Update(ctx, r, in.Hashtags); err != nil {
		return nil, err
	}
	s.invalidate(ctx, restaurantKey(id))
	return s.restaurants.FindByID(ctx, id, false)
}

func (s *CatalogService) DeleteRestaurant(ctx context.Context, id string) error {
	keys := []string{restaurantKey(id)}
	// 级联删除的菜品缓存一并失效，分页取全
	for off := 0; ; off += domain.MaxLimit {
		dishes, total, err := s.dishes.Search(ctx, domain.DishFilter{
			RestaurantID: id,
			Page:         domain.Page{Offset: off, Limit: domain.MaxLimit},
		})
		if err != nil {
			return err
		}
		for _, d := range dishes {
			keys = append(keys, dishKey(d.ID))
		}
		if len(dishes) == 0 || int64(off+len(dishes)) >= total {
			break
		}
	}
	if err := s.restaurants.Delete(ctx, id); err != nil {
		return wrapNotFound(err, "restaurant not found")
	}
	s.invalidate(ctx, keys...)
	return nil
}

func (s *CatalogService) SearchDishes(ctx context.Context, f domain.DishFilter) (domain.PageResult[domain.Dish], error) {
	rows, total, err := s.dishes.Search(ctx, f)
	if err != nil {
		return domain.PageResult[domain.Dish]{}, err
	}
	return domain.NewPageResult(rows, total, f.Page), nil
}

func (s *CatalogService) GetDish(ctx context.Context, id string) (*domain.Dish, error) {
	d, err := cache.GetOrLoadJSON(s.cache, ctx, dishKey(id), detailTTL,
		func(ctx context.Context) (*domain.Dish, error) {
			return s.dishes.FindByID(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errs.NotFound("dish not found")
	}
	return d, nil
}

func (s *CatalogService) requireRestaurant(ctx context.Context, id string) error {
	r, err := s.restaurants.FindByID(ctx, id, false)
	if err != nil {
		return err
	}
	if r == nil {
		return errs.BadRequest("restaurant_id does not exist")
	}
	return nil
}

func (s *CatalogService) CreateDish(ctx context.Context, userID string, in DishInput) (*domain.Dish, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.BadRequest("name is required")
	}
	if err := s.requireRestaurant(ctx, in.RestaurantID); err != nil {
		return nil, err
	}
	dup, err := s.dishes.FindByNameRestaurant(ctx, name, in.RestaurantID)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, errs.Conflict("dish already exists at this restaurant")
	}
	d := &domain.Dish{
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		Price:        in.Price,
		RestaurantID: in.RestaurantID,
		CreatedBy:    userID,
	}
	if err := s.dishes.Create(ctx, d, in.Hashtags); err != nil {
		return nil, err
	}
	s.invalidate(ctx, restaurantKey(in.RestaurantID))
	return d, nil
}

func (s *CatalogService) UpdateDish(ctx context.Context, id string, in DishInput) (*domain.Dish, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.BadRequest("name is required")
	}
	d, err := s.dishes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, errs.NotFound("dish not found")
	}
	if err := s.requireRestaurant(ctx, in.RestaurantID); err != nil {
		return nil, err
	}
	if dup, err := s.dishes.FindByNameRestaurant(ctx, name, in.RestaurantID); err != nil {
		return nil, err
	} else if dup != nil && dup.ID != id {
		return nil, errs.Conflict("dish already exists at this restaurant")
	}
	oldRestaurant := d.RestaurantID
	d.Name = name
	d.Description = strings.TrimSpace(in.Description)
	d.Price = in.Price
	d.RestaurantID = in.RestaurantID
	d.Restaurant = nil
	if err := s.dishes.Update(ctx, d, in.Hashtags); err != nil {
		return nil, err
	}
	s.invalidate(ctx, dishKey(id), restaurantKey(oldRestaurant), restaurantKey(in.RestaurantID))
	return s.dishes.FindByID(ctx, id)
}

func (s *CatalogService) DeleteDish(ctx context.Context, id string) error {
	d, err := s.dishes.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return errs.NotFound("dish not found")
	}
	if err := s.dishes.Delete(ctx, id); err != nil {
		return wrapNotFound(err, "dish not found")
	}
	s.invalidate(ctx, dishKey(id), restaurantKey(d.RestaurantID))
	return nil
}
