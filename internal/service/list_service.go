package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"doof/internal/core/errs"
	"doof/internal/core/metrics"
	"doof/internal/domain"
	"doof/internal/events"
)

type ListService struct {
	lists       domain.ListRepository
	restaurants domain.RestaurantRepository
	dishes      domain.DishRepository
	users       domain.UserRepository
	pub         events.Publisher
	log         *zap.Logger
}

func NewListService(lists domain.ListRepository, restaurants domain.RestaurantRepository, dishes domain.DishRepository,
	users domain.UserRepository, pub events.Publisher, log *zap.Logger) *ListService {
	return &ListService{lists: lists, restaurants: restaurants, dishes: dishes, users: users, pub: pub, log: log}
}

// ListQuery createdByUser / followedByUser 都未指定时返回公开列表
type ListQuery struct {
	CreatedByUser  bool
	FollowedByUser bool
	Filter         domain.ListFilter
}

type CreateListInput struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	ListType    string   `json:"list_type"`
	IsPublic    *bool    `json:"is_public"`
	Tags        []string `json:"tags"`
	City        string   `json:"city"`
}

type UpdateListInput struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	ListType    *string   `json:"list_type"`
	IsPublic    *bool     `json:"is_public"`
	Tags        *[]string `json:"tags"`
	City        *string   `json:"city"`
}

type AddItemInput struct {
	ItemType string `json:"item_type" binding:"required"`
	ItemID   string `json:"item_id" binding:"required"`
	Notes    string `json:"notes"`
}

type FollowResult struct {
	ListID      string `json:"list_id"`
	IsFollowing bool   `json:"is_following"`
	SavedCount  int    `json:"saved_count"`
}

type listEvent struct {
	ListID   string `json:"list_id"`
	UserID   string `json:"user_id"`
	ItemType string `json:"item_type,omitempty"`
	ItemID   string `json:"item_id,omitempty"`
}

func (s *ListService) FindListsByUser(ctx context.Context, viewerID string, q ListQuery) (domain.PageResult[domain.List], error) {
	var (
		rows  []domain.List
		total int64
		err   error
	)
	switch {
	case q.FollowedByUser && viewerID != "":
		rows, total, err = s.lists.FindListsByUser(ctx, viewerID, true, q.Filter)
	case q.CreatedByUser && viewerID != "":
		rows, total, err = s.lists.FindListsByUser(ctx, viewerID, false, q.Filter)
	case q.CreatedByUser || q.FollowedByUser:
		return domain.PageResult[domain.List]{}, errs.Unauthorized("login required")
	default:
		rows, total, err = s.lists.FindPublicLists(ctx, q.Filter, false)
	}
	if err != nil {
		return domain.PageResult[domain.List]{}, err
	}
	if err := s.decorate(ctx, viewerID, rows); err != nil {
		return domain.PageResult[domain.List]{}, err
	}
	return domain.NewPageResult(rows, total, q.Filter.Page), nil
}

func (s *ListService) FindPublicLists(ctx context.Context, viewerID string, f domain.ListFilter) (domain.PageResult[domain.List], error) {
	return s.FindListsByUser(ctx, viewerID, ListQuery{Filter: f})
}

// decorate 填充 is_following / created_by_user / creator_handle
func (s *ListService) decorate(ctx context.Context, viewerID string, rows []domain.List) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, 0, len(rows))
	owners := make([]string, 0, len(rows))
	for _, l := range rows {
		ids = append(ids, l.ID)
		owners = append(owners, l.UserID)
	}
	following, err := s.lists.FollowingSet(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	handles, err := s.users.Usernames(ctx, owners)
	if err != nil {
		return err
	}
	for i := range rows {
		rows[i].IsFollowing = following[rows[i].ID]
		rows[i].CreatedByUser = viewerID != "" && rows[i].UserID == viewerID
		rows[i].CreatorHandle = handles[rows[i].UserID]
	}
	return nil
}

// visibleList 私密列表对非所有者表现为不存在
func (s *ListService) visibleList(ctx context.Context, id, viewerID string) (*domain.List, error) {
	l, err := s.lists.FindListByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil || (!l.IsPublic && l.UserID != viewerID) {
		return nil, errs.NotFound("list not found")
	}
	return l, nil
}

func (s *ListService) ownedList(ctx context.Context, id, userID string) (*domain.List, error) {
	l, err := s.visibleList(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, errs.Forbidden("only the list owner can modify this list")
	}
	return l, nil
}

func (s *ListService) FindListByID(ctx context.Context, id, viewerID string) (*domain.List, error) {
	l, err := s.visibleList(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	items, err := s.lists.FindListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolveItems(ctx, items); err != nil {
		return nil, err
	}
	l.Items = items
	if l.Items == nil {
		l.Items = []domain.ListItem{}
	}
	rows := []domain.List{*l}
	if err := s.decorate(ctx, viewerID, rows); err != nil {
		return nil, err
	}
	return &rows[0], nil
}

// resolveItems 条目补上餐厅/菜品名称
func (s *ListService) resolveItems(ctx context.Context, items []domain.ListItem) error {
	var rids, dids []string
	for _, it := range items {
		switch it.ItemType {
		case domain.ItemTypeRestaurant:
			rids = append(rids, it.ItemID)
		case domain.ItemTypeDish:
			dids = append(dids, it.ItemID)
		}
	}
	rs, err := s.restaurants.FindByIDs(ctx, rids)
	if err != nil {
		return err
	}
	ds, err := s.dishes.FindByIDs(ctx, dids)
	if err != nil {
		return err
	}
	rmap := make(map[string]domain.Restaurant, len(rs))
	for _, r := range rs {
		rmap[r.ID] = r
	}
	dmap := make(map[string]domain.Dish, len(ds))
	for _, d := range ds {
		dmap[d.ID] = d
	}
	for i := range items {
		switch items[i].ItemType {
		case domain.ItemTypeRestaurant:
			if r, ok := rmap[items[i].ItemID]; ok {
				items[i].Name = r.Name
				items[i].City = r.City
			}
		case domain.ItemTypeDish:
			if d, ok := dmap[items[i].ItemID]; ok {
				items[i].Name = d.Name
				if d.Restaurant != nil {
					items[i].RestaurantName = d.Restaurant.Name
					items[i].City = d.Restaurant.City
				}
			}
		}
	}
	return nil
}

func (s *ListService) CreateList(ctx context.Context, userID string, in CreateListInput) (*domain.List, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errs.BadRequest("name is required")
	}
	lt := in.ListType
	if lt == "" {
		lt = domain.ListTypeMixed
	}
	if !domain.ValidListType(lt) {
		return nil, errs.BadRequest("invalid list_type")
	}
	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}
	l := &domain.List{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		ListType:    lt,
		UserID:      userID,
		IsPublic:    public,
		Tags:        domain.NormalizeTags(in.Tags),
		City:        strings.TrimSpace(in.City),
	}
	if err := s.lists.CreateList(ctx, l); err != nil {
		return nil, err
	}
	l.CreatedByUser = true
	return l, nil
}

func (s *ListService) toPatch(in UpdateListInput) (domain.ListPatch, error) {
	p := domain.ListPatch{
		Name:        trimPtr(in.Name),
		Description: trimPtr(in.Description),
		ListType:    in.ListType,
		City:        trimPtr(in.City),
		IsPublic:    in.IsPublic,
	}
	if p.Name != nil && *p.Name == "" {
		return p, errs.BadRequest("name must not be empty")
	}
	if p.ListType != nil && !domain.ValidListType(*p.ListType) {
		return p, errs.BadRequest("invalid list_type")
	}
	if in.Tags != nil {
		tags := domain.NormalizeTags(*in.Tags)
		p.Tags = &tags
	}
	return p, nil
}

// UpdateList 仅所有者；改 list_type 时已有条目必须兼容
func (s *ListService) UpdateList(ctx context.Context, id, userID string, in UpdateListInput) (*domain.List, error) {
	l, err := s.ownedList(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.applyPatch(ctx, l, in)
}

func (s *ListService) applyPatch(ctx context.Context, l *domain.List, in UpdateListInput) (*domain.List, error) {
	p, err := s.toPatch(in)
	if err != nil {
		return nil, err
	}
	if p.ListType != nil && *p.ListType != l.ListType {
		types, err := s.lists.ItemTypes(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range types {
			if !domain.CheckListTypeCompatibility(*p.ListType, t) {
				return nil, errs.BadRequest("list contains " + t + " items incompatible with list_type " + *p.ListType)
			}
		}
	}
	out, err := s.lists.UpdateList(ctx, l.ID, p)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errs.NotFound("list not found")
	}
	return out, nil
}

func (s *ListService) UpdateVisibility(ctx context.Context, id, userID string, isPublic bool) (*domain.List, error) {
	return s.UpdateList(ctx, id, userID, UpdateListInput{IsPublic: &isPublic})
}

func (s *ListService) DeleteList(ctx context.Context, id, userID string) error {
	if _, err := s.ownedList(ctx, id, userID); err != nil {
		return err
	}
	return wrapNotFound(s.lists.DeleteList(ctx, id), "list not found")
}

// AdminUpdateList / AdminDeleteList 管理端绕过所有者校验
func (s *ListService) AdminUpdateList(ctx context.Context, id string, in UpdateListInput) (*domain.List, error) {
	l, err := s.lists.FindListByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errs.NotFound("list not found")
	}
	return s.applyPatch(ctx, l, in)
}

func (s *ListService) AdminDeleteList(ctx context.Context, id string) error {
	return wrapNotFound(s.lists.DeleteList(ctx, id), "list not found")
}

func (s *ListService) AdminLists(ctx context.Context, f domain.ListFilter) (domain.PageResult[domain.List], error) {
	rows, total, err := s.lists.FindPublicLists(ctx, f, true)
	if err != nil {
		return domain.PageResult[domain.List]{}, err
	}
	if err := s.decorate(ctx, "", rows); err != nil {
		return domain.PageResult[domain.List]{}, err
	}
	return domain.NewPageResult(rows, total, f.Page), nil
}

// targetName 校验目标存在，返回展示名
func (s *ListService) targetName(ctx context.Context, itemType, itemID string) (string, error) {
	switch itemType {
	case domain.ItemTypeRestaurant:
		r, err := s.restaurants.FindByID(ctx, itemID, false)
		if err != nil {
			return "", err
		}
		if r == nil {
			return "", errs.NotFound("restaurant not found")
		}
		return r.Name, nil
	case domain.ItemTypeDish:
		d, err := s.dishes.FindByID(ctx, itemID)
		if err != nil {
			return "", err
		}
		if d == nil {
			return "", errs.NotFound("dish not found")
		}
		return d.Name, nil
	}
	return "", errs.BadRequest("invalid item_type")
}

func (s *ListService) incrementAdds(ctx context.Context, itemType, itemID string, delta int) {
	var err error
	if itemType == domain.ItemTypeRestaurant {
		err = s.restaurants.IncrementAdds(ctx, itemID, delta)
	} else {
		err = s.dishes.IncrementAdds(ctx, itemID, delta)
	}
	if err != nil {
		s.log.Warn("update adds failed", zap.String("item_type", itemType), zap.String("item_id", itemID), zap.Error(err))
	}
}

func (s *ListService) AddItemToList(ctx context.Context, listID, userID string, in AddItemInput) (*domain.ListItem, error) {
	l, err := s.ownedList(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if !domain.ValidItemType(in.ItemType) {
		return nil, errs.BadRequest("invalid item_type")
	}
	if !domain.CheckListTypeCompatibility(l.ListType, in.ItemType) {
		return nil, errs.BadRequest("cannot add a " + in.ItemType + " to a " + l.ListType + " list")
	}
	name, err := s.targetName(ctx, in.ItemType, in.ItemID)
	if err != nil {
		return nil, err
	}
	item := &domain.ListItem{
		ListID:   l.ID,
		ItemType: in.ItemType,
		ItemID:   in.ItemID,
		Notes:    strings.TrimSpace(in.Notes),
	}
	if err := s.lists.AddItemToList(ctx, item); err != nil {
		return nil, err
	}
	item.Name = name
	s.incrementAdds(ctx, in.ItemType, in.ItemID, 1)
	metrics.ListItemsAdded.WithLabelValues(in.ItemType).Inc()
	events.Emit(ctx, s.pub, s.log, events.SubjectListItemAdded,
		listEvent{ListID: l.ID, UserID: userID, ItemType: in.ItemType, ItemID: in.ItemID})
	return item, nil
}

func (s *ListService) RemoveItemFromList(ctx context.Context, listID, userID, listItemID string) (*domain.ListItem, error) {
	if _, err := s.ownedList(ctx, listID, userID); err != nil {
		return nil, err
	}
	removed, err := s.lists.RemoveItemFromList(ctx, listID, listItemID)
	if err != nil {
		return nil, err
	}
	s.incrementAdds(ctx, removed.ItemType, removed.ItemID, -1)
	return removed, nil
}

func (s *ListService) FollowList(ctx context.Context, listID, userID string) (*FollowResult, error) {
	l, err := s.visibleList(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if l.UserID == userID {
		return nil, errs.BadRequest("cannot follow your own list")
	}
	created, err := s.lists.FollowList(ctx, listID, userID)
	if err != nil {
		return nil, err
	}
	if created {
		events.Emit(ctx, s.pub, s.log, events.SubjectListFollowed, listEvent{ListID: listID, UserID: userID})
	}
	return s.followResult(ctx, listID, true)
}

// UnfollowList 对已转私密的列表也允许取消关注
func (s *ListService) UnfollowList(ctx context.Context, listID, userID string) (*FollowResult, error) {
	l, err := s.lists.FindListByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errs.NotFound("list not found")
	}
	if _, err := s.lists.UnfollowList(ctx, listID, userID); err != nil {
		return nil, err
	}
	return s.followResult(ctx, listID, false)
}

func (s *ListService) followResult(ctx context.Context, listID string, following bool) (*FollowResult, error) {
	l, err := s.lists.FindListByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, errs.NotFound("list not found")
	}
	return &FollowResult{ListID: listID, IsFollowing: following, SavedCount: l.SavedCount}, nil
}
