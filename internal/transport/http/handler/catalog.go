package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"doof/internal/domain"
	"doof/internal/service"
	"doof/internal/transport/http/ez"
)

// CatalogHandler 餐厅与菜品；写操作仅 admin
type CatalogHandler struct{ d Deps }

type restaurantsQuery struct {
	Q            string   `form:"q"`
	City         string   `form:"city"`
	Neighborhood string   `form:"neighborhood"`
	Hashtags     []string `form:"hashtags"`
	Sort         string   `form:"sort"`
	ez.PageQuery
}

func (q restaurantsQuery) filter() domain.RestaurantFilter {
	return domain.RestaurantFilter{
		Q: q.Q, City: q.City, Neighborhood: q.Neighborhood,
		Hashtags: ez.SplitCSV(q.Hashtags), Sort: q.Sort, Page: q.ToPage(),
	}
}

type dishesQuery struct {
	Q            string   `form:"q"`
	RestaurantID string   `form:"restaurant_id"`
	City         string   `form:"city"`
	Hashtags     []string `form:"hashtags"`
	Sort         string   `form:"sort"`
	ez.PageQuery
}

func (q dishesQuery) filter() domain.DishFilter {
	return domain.DishFilter{
		Q: q.Q, RestaurantID: q.RestaurantID, City: q.City,
		Hashtags: ez.SplitCSV(q.Hashtags), Sort: q.Sort, Page: q.ToPage(),
	}
}

func (h *CatalogHandler) MountAPI(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log)
	h.mountRead(e)
	h.mountWrite(e)

	ez.RegisterAction(e, ez.Action[service.BulkRequest, *service.BulkReport]{
		Method: http.MethodPost,
		Path:   "/restaurants/bulk",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *service.BulkRequest) (*service.BulkReport, error) {
			return h.d.Bulk.Process(c, ez.UserID(c), *in)
		},
	})
}

// MountAdmin 后台与 API 共用同一套读写接口
func (h *CatalogHandler) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, h.d.Log)
	h.mountRead(e)
	h.mountWrite(e)
}

func (h *CatalogHandler) mountRead(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[restaurantsQuery, domain.PageResult[domain.Restaurant]]{
		Method: http.MethodGet,
		Path:   "/restaurants",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *restaurantsQuery) (domain.PageResult[domain.Restaurant], error) {
			return h.d.Catalog.SearchRestaurants(c, in.filter())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Restaurant]{
		Method: http.MethodGet,
		Path:   "/restaurants/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Restaurant, error) {
			return h.d.Catalog.GetRestaurant(c, c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[dishesQuery, domain.PageResult[domain.Dish]]{
		Method: http.MethodGet,
		Path:   "/dishes",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *dishesQuery) (domain.PageResult[domain.Dish], error) {
			return h.d.Catalog.SearchDishes(c, in.filter())
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Dish]{
		Method: http.MethodGet,
		Path:   "/dishes/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Dish, error) {
			return h.d.Catalog.GetDish(c, c.Param("id"))
		},
	})
}

func (h *CatalogHandler) mountWrite(e ez.EZ) {
	ez.RegisterAction(e, ez.Action[service.RestaurantInput, *domain.Restaurant]{
		Method: http.MethodPost,
		Path:   "/restaurants",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.RestaurantInput) (*domain.Restaurant, error) {
			return h.d.Catalog.CreateRestaurant(c, ez.UserID(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[service.RestaurantInput, *domain.Restaurant]{
		Method: http.MethodPut,
		Path:   "/restaurants/:id",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *service.RestaurantInput) (*domain.Restaurant, error) {
			return h.d.Catalog.UpdateRestaurant(c, c.Param("id"), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/restaurants/:id",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			return deleted(c), h.d.Catalog.DeleteRestaurant(c, c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[service.DishInput, *domain.Dish]{
		Method: http.MethodPost,
		Path:   "/dishes",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.DishInput) (*domain.Dish, error) {
			return h.d.Catalog.CreateDish(c, ez.UserID(c), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[service.DishInput, *domain.Dish]{
		Method: http.MethodPut,
		Path:   "/dishes/:id",
		Binder: ez.BindJSON,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, in *service.DishInput) (*domain.Dish, error) {
			return h.d.Catalog.UpdateDish(c, c.Param("id"), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method: http.MethodDelete,
		Path:   "/dishes/:id",
		Binder: ez.BindNone,
		Roles:  ez.AdminRoles,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			return deleted(c), h.d.Catalog.DeleteDish(c, c.Param("id"))
		},
	})
}
