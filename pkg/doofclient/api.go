package doofclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) Lists(ctx context.Context, q ListsQuery) (*Page[List], error) {
	v := url.Values{}
	if q.CreatedByUser {
		v.Set("createdByUser", "true")
	}
	if q.FollowedByUser {
		v.Set("followedByUser", "true")
	}
	if q.Type != "" {
		v.Set("type", q.Type)
	}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/api/lists"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	var out Page[List]
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, id string) (*List, error) {
	var out List
	if err := c.call(ctx, http.MethodGet, "/api/lists/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateList(ctx context.Context, in NewList) (*List, error) {
	var out List
	if err := c.call(ctx, http.MethodPost, "/api/lists", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddItem(ctx context.Context, listID, itemType, itemID, notes string) (*ListItem, error) {
	body := map[string]string{"item_type": itemType, "item_id": itemID, "notes": notes}
	var out ListItem
	if err := c.call(ctx, http.MethodPost, "/api/lists/"+url.PathEscape(listID)+"/items", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveItem(ctx context.Context, listID, listItemID string) error {
	path := "/api/lists/" + url.PathEscape(listID) + "/items/" + url.PathEscape(listItemID)
	return c.call(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) Follow(ctx context.Context, listID string) (*FollowResult, error) {
	return c.follow(ctx, http.MethodPost, listID)
}

func (c *Client) Unfollow(ctx context.Context, listID string) (*FollowResult, error) {
	return c.follow(ctx, http.MethodDelete, listID)
}

func (c *Client) follow(ctx context.Context, method, listID string) (*FollowResult, error) {
	var out FollowResult
	if err := c.call(ctx, method, "/api/lists/"+url.PathEscape(listID)+"/follow", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SearchPlaces(ctx context.Context, query string) ([]Place, error) {
	var out []Place
	if err := c.call(ctx, http.MethodGet, "/api/places/search?query="+url.QueryEscape(query), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
