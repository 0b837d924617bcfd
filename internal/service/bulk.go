package service

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"doof/internal/core/errs"
	"doof/internal/core/metrics"
	"doof/internal/domain"
	"doof/internal/places"
)

const (
	BulkCreated   = "created"
	BulkDuplicate = "duplicate"
	BulkError     = "error"

	lookupConcurrency = 4
)

// BulkItem 一条待添加的餐厅或菜品；菜品的 Location 为餐厅名
type BulkItem struct {
	Line         int      `json:"line,omitempty"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Location     string   `json:"location"`
	City         string   `json:"city,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	Zipcode      string   `json:"zipcode,omitempty"`
	PlaceID      string   `json:"place_id,omitempty"`
	Latitude     float64  `json:"latitude,omitempty"`
	Longitude    float64  `json:"longitude,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

type BulkResult struct {
	Line   int    `json:"line,omitempty"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

type BulkReport struct {
	Results    []BulkResult `json:"results"`
	Created    int          `json:"created"`
	Duplicates int          `json:"duplicates"`
	Errors     int          `json:"errors"`
}

type BulkRequest struct {
	Text   string     `json:"text"`
	Items  []BulkItem `json:"items"`
	Lookup bool       `json:"lookup"`
}

// ParseError 带行号
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

// ParseBulkText 每行 `name; type; location; tags`，tags 以逗号分隔；
// 空行与 # 开头的注释行忽略
func ParseBulkText(text string) ([]BulkItem, error) {
	var out []BulkItem
	sc := bufio.NewScanner(strings.NewReader(text))
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		parts := strings.Split(raw, ";")
		if len(parts) > 4 {
			return nil, &ParseError{Line: line, Msg: "too many fields (want name; type; location; tags)"}
		}
		for len(parts) < 4 {
			parts = append(parts, "")
		}
		item := BulkItem{
			Line:     line,
			Name:     strings.TrimSpace(parts[0]),
			Type:     strings.ToLower(strings.TrimSpace(parts[1])),
			Location: strings.TrimSpace(parts[2]),
			Tags:     domain.NormalizeTags(strings.Split(parts[3], ",")),
		}
		if item.Name == "" {
			return nil, &ParseError{Line: line, Msg: "name is required"}
		}
		if item.Type == "" {
			item.Type = domain.ItemTypeRestaurant
		}
		if !domain.ValidItemType(item.Type) {
			return nil, &ParseError{Line: line, Msg: fmt.Sprintf("unknown type %q", item.Type)}
		}
		if item.Type == domain.ItemTypeDish && item.Location == "" {
			return nil, &ParseError{Line: line, Msg: "dish requires a restaurant name"}
		}
		if item.Type == domain.ItemTypeRestaurant && item.Location != "" {
			item.City = cityFromAddress(item.Location)
		}
		out = append(out, item)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// stateZip "NY" / "NY 10014" / "10014-1234" / 国家名
var stateZip = regexp.MustCompile(`^(?:[A-Za-z]{2}(?:\s+\d{5}(?:-\d{4})?)?|\d{5}(?:-\d{4})?|USA|US|United States)$`)

// cityFromAddress "7 Carmine St, New York, NY 10014" → "New York"；
// 只有一段时整段当作城市
func cityFromAddress(addr string) string {
	segs := strings.Split(addr, ",")
	for i := len(segs) - 1; i >= 0; i-- {
		seg := strings.TrimSpace(segs[i])
		if seg == "" || (i > 0 && stateZip.MatchString(seg)) {
			continue
		}
		return seg
	}
	return ""
}

type BulkService struct {
	catalog     *CatalogService
	restaurants domain.RestaurantRepository
	dishes      domain.DishRepository
	places      places.Lookup
	log         *zap.Logger
}

func NewBulkService(catalog *CatalogService, restaurants domain.RestaurantRepository, dishes domain.DishRepository,
	lookup places.Lookup, log *zap.Logger) *BulkService {
	return &BulkService{catalog: catalog, restaurants: restaurants, dishes: dishes, places: lookup, log: log}
}

// Process 解析文本（或直接使用 items），可选 places 补全，然后逐条写入
func (s *BulkService) Process(ctx context.Context, userID string, req BulkRequest) (*BulkReport, error) {
	items := req.Items
	if strings.TrimSpace(req.Text) != "" {
		parsed, err := ParseBulkText(req.Text)
		if err != nil {
			return nil, &errs.Error{Code: 400, Msg: err.Error(), Err: err}
		}
		items = append(items, parsed...)
	}
	if len(items) == 0 {
		return nil, errs.BadRequest("no items to add")
	}
	if req.Lookup {
		if s.places == nil {
			return nil, errs.BadRequest("places lookup is not configured")
		}
		if err := s.lookup(ctx, items); err != nil {
			return nil, err
		}
	}
	return s.Bulk(ctx, userID, items), nil
}

// lookup 并发补全餐厅地址；单条失败只记日志
func (s *BulkService) lookup(ctx context.Context, items []BulkItem) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i := range items {
		it := &items[i]
		if it.Type != domain.ItemTypeRestaurant || it.PlaceID != "" {
			continue
		}
		g.Go(func() error {
			if err := s.resolve(gctx, it); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.log.Warn("places lookup failed", zap.Int("line", it.Line), zap.String("name", it.Name), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *BulkService) resolve(ctx context.Context, it *BulkItem) error {
	found, err := s.places.Search(ctx, strings.TrimSpace(it.Name+" "+it.Location))
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return nil
	}
	d, err := s.places.Details(ctx, found[0].PlaceID)
	if err != nil {
		return err
	}
	it.PlaceID = d.PlaceID
	it.Location = d.Address
	it.Latitude, it.Longitude = d.Lat, d.Lng
	if d.City != "" {
		it.City = d.City
	}
	it.Neighborhood = d.Neighborhood
	it.Zipcode = d.Zipcode
	return nil
}

// Bulk 顺序写入（菜品可能引用本批次前面的餐厅），单条失败不中断整批
func (s *BulkService) Bulk(ctx context.Context, userID string, items []BulkItem) *BulkReport {
	rep := &BulkReport{Results: make([]BulkResult, 0, len(items))}
	for _, it := range items {
		res := BulkResult{Line: it.Line, Name: it.Name, Type: it.Type}
		var err error
		switch it.Type {
		case domain.ItemTypeRestaurant, "":
			res.Type = domain.ItemTypeRestaurant
			res.ID, res.Status, err = s.addRestaurant(ctx, userID, it)
		case domain.ItemTypeDish:
			res.ID, res.Status, err = s.addDish(ctx, userID, it)
		default:
			err = errs.BadRequest("unknown type " + it.Type)
		}
		if err != nil {
			res.Status = BulkError
			res.Error = err.Error()
			if errs.CodeOf(err) >= 500 {
				s.log.Error("bulk add item failed", zap.Int("line", it.Line), zap.Error(err))
				res.Error = "internal error"
			}
		}
		switch res.Status {
		case BulkCreated:
			rep.Created++
		case BulkDuplicate:
			rep.Duplicates++
		default:
			rep.Errors++
		}
		metrics.BulkResults.WithLabelValues(res.Status).Inc()
		rep.Results = append(rep.Results, res)
	}
	return rep
}

func (s *BulkService) addRestaurant(ctx context.Context, userID string, it BulkItem) (string, string, error) {
	if it.PlaceID != "" {
		existing, err := s.restaurants.FindByPlaceID(ctx, it.PlaceID)
		if err != nil {
			return "", "", err
		}
		if existing != nil {
			return existing.ID, BulkDuplicate, nil
		}
	}
	existing, err := s.restaurants.FindByNameCity(ctx, it.Name, it.City)
	if err != nil {
		return "", "", err
	}
	if existing != nil {
		return existing.ID, BulkDuplicate, nil
	}
	r, err := s.catalog.CreateRestaurant(ctx, userID, RestaurantInput{
		Name:          it.Name,
		Address:       it.Location,
		City:          it.City,
		Neighborhood:  it.Neighborhood,
		Zipcode:       it.Zipcode,
		GooglePlaceID: it.PlaceID,
		Latitude:      it.Latitude,
		Longitude:     it.Longitude,
		Hashtags:      it.Tags,
	})
	if err != nil {
		return "", "", err
	}
	return r.ID, BulkCreated, nil
}

func (s *BulkService) addDish(ctx context.Context, userID string, it BulkItem) (string, string, error) {
	r, err := s.restaurants.FindByNameCity(ctx, it.Location, it.City)
	if err != nil {
		return "", "", err
	}
	if r == nil {
		return "", "", errs.BadRequest("restaurant " + it.Location + " not found")
	}
	existing, err := s.dishes.FindByNameRestaurant(ctx, it.Name, r.ID)
	if err != nil {
		return "", "", err
	}
	if existing != nil {
		return existing.ID, BulkDuplicate, nil
	}
	d, err := s.catalog.CreateDish(ctx, userID, DishInput{Name: it.Name, RestaurantID: r.ID, Hashtags: it.Tags})
	if err != nil {
		return "", "", err
	}
	return d.ID, BulkCreated, nil
}
