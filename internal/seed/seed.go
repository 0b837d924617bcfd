// Package seed 写入本地开发用的演示数据；可重复执行
package seed

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"doof/internal/core/errs"
	"doof/internal/domain"
	"doof/internal/service"
)

const demoPassword = "doofdemo123"

type Deps struct {
	Auth  *service.AuthService
	Bulk  *service.BulkService
	Lists *service.ListService
	Log   *zap.Logger
}

type Report struct {
	Users      int
	Created    int
	Duplicates int
	ListID     string
}

var demoUsers = []service.RegisterInput{
	{Email: "demo@doof.local", Username: "demo", Password: demoPassword},
	{Email: "foodie@doof.local", Username: "foodie", Password: demoPassword},
}

var demoItems = []service.BulkItem{
	{Name: "Joe's Pizza", Type: domain.ItemTypeRestaurant, Location: "7 Carmine St, New York", City: "New York", Neighborhood: "West Village", Tags: []string{"pizza", "late-night"}},
	{Name: "Katz's Delicatessen", Type: domain.ItemTypeRestaurant, Location: "205 E Houston St, New York", City: "New York", Neighborhood: "Lower East Side", Tags: []string{"deli", "classic"}},
	{Name: "Xi'an Famous Foods", Type: domain.ItemTypeRestaurant, Location: "45 Bayard St, New York", City: "New York", Neighborhood: "Chinatown", Tags: []string{"noodles", "spicy"}},
	{Name: "Plain Slice", Type: domain.ItemTypeDish, Location: "Joe's Pizza", Tags: []string{"pizza"}},
	{Name: "Pastrami on Rye", Type: domain.ItemTypeDish, Location: "Katz's Delicatessen", Tags: []string{"sandwich"}},
	{Name: "Spicy Cumin Lamb Noodles", Type: domain.ItemTypeDish, Location: "Xi'an Famous Foods", Tags: []string{"noodles", "spicy"}},
}

const demoListName = "NYC Classics"

func Run(ctx context.Context, d Deps) (*Report, error) {
	rep := &Report{}
	var owner *domain.User
	for _, in := range demoUsers {
		u, err := ensureUser(ctx, d.Auth, in)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", in.Username, err)
		}
		if owner == nil {
			owner = u
		}
		rep.Users++
	}

	bulk := d.Bulk.Bulk(ctx, owner.ID, demoItems)
	rep.Created, rep.Duplicates = bulk.Created, bulk.Duplicates
	if bulk.Errors > 0 {
		for _, r := range bulk.Results {
			if r.Status == service.BulkError {
				d.Log.Warn("seed item failed", zap.String("name", r.Name), zap.String("error", r.Error))
			}
		}
	}

	listID, err := ensureList(ctx, d.Lists, owner.ID, bulk.Results)
	if err != nil {
		return nil, fmt.Errorf("seed list: %w", err)
	}
	rep.ListID = listID
	d.Log.Info("seed done",
		zap.Int("users", rep.Users),
		zap.Int("created", rep.Created),
		zap.Int("duplicates", rep.Duplicates),
		zap.String("list_id", rep.ListID),
	)
	return rep, nil
}

func ensureUser(ctx context.Context, auth *service.AuthService, in service.RegisterInput) (*domain.User, error) {
	res, err := auth.Register(ctx, in)
	if err == nil {
		return res.User, nil
	}
	if errs.CodeOf(err) != http.StatusConflict {
		return nil, err
	}
	res, err = auth.Login(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	return res.User, nil
}

func ensureList(ctx context.Context, lists *service.ListService, ownerID string, results []service.BulkResult) (string, error) {
	mine, err := lists.FindListsByUser(ctx, ownerID, service.ListQuery{
		CreatedByUser: true,
		Filter:        domain.ListFilter{Q: demoListName},
	})
	if err != nil {
		return "", err
	}
	for _, l := range mine.Items {
		if l.Name == demoListName {
			return l.ID, nil
		}
	}

	l, err := lists.CreateList(ctx, ownerID, service.CreateListInput{
		Name:        demoListName,
		Description: "Places every visitor should try once.",
		Tags:        []string{"nyc", "classic"},
		City:        "New York",
	})
	if err != nil {
		return "", err
	}
	for _, r := range results {
		if r.ID == "" {
			continue
		}
		if _, err := lists.AddItemToList(ctx, l.ID, ownerID, service.AddItemInput{ItemType: r.Type, ItemID: r.ID}); err != nil {
			return "", err
		}
	}
	return l.ID, nil
}
