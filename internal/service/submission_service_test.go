package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doof/internal/core/errs"
	"doof/internal/domain"
	"doof/internal/events"
)

func TestSubmissionService_ApproveCreatesEntity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "kim")

	sub, err := e.subs.Create(ctx, u.ID, SubmissionInput{Type: "restaurant", Name: "Via Carota", City: "New York", Tags: []string{"#Italian"}})
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionPending, sub.Status)

	approved, err := e.subs.Approve(ctx, sub.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionApproved, approved.Status)
	require.NotEmpty(t, approved.CreatedEntityID)

	r, err := e.restaurants.FindByID(ctx, approved.CreatedEntityID, false)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "Via Carota", r.Name)
	assert.Contains(t, e.pub.subjects, events.SubjectSubmissionReviewed)

	_, err = e.subs.Reject(ctx, sub.ID, "admin-1")
	assert.Equal(t, http.StatusConflict, errs.CodeOf(err))

	mine, err := e.subs.Mine(ctx, u.ID, domain.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.Total)
}

func TestSubmissionService_ApproveFailureReopens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.register(t, "lee")

	sub, err := e.subs.Create(ctx, u.ID, SubmissionInput{Type: "dish", Name: "Ghost Noodles", RestaurantID: "gone"})
	require.NoError(t, err)

	_, err = e.subs.Approve(ctx, sub.ID, "admin-1")
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))

	pending, err := e.subs.List(ctx, domain.SubmissionPending, domain.Page{})
	require.NoError(t, err)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, sub.ID, pending.Items[0].ID)

	rejected, err := e.subs.Reject(ctx, sub.ID, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionRejected, rejected.Status)

	_, err = e.subs.Approve(ctx, "missing", "admin-1")
	assert.Equal(t, http.StatusNotFound, errs.CodeOf(err))
	_, err = e.subs.List(ctx, "weird", domain.Page{})
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))
}

func TestSubmissionService_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.subs.Create(ctx, "u", SubmissionInput{Type: "bar", Name: "Dante"})
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))
	_, err = e.subs.Create(ctx, "u", SubmissionInput{Type: "dish", Name: "Negroni"})
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))
}

func TestEngagementService_Record(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ev, err := e.engage.Record(ctx, "", EngageInput{ItemType: "list", ItemID: "l1", EngagementType: "share"})
	require.NoError(t, err)
	assert.Empty(t, ev.UserID)
	assert.Equal(t, []string{events.SubjectEngagement}, e.pub.subjects)

	_, err = e.engage.Record(ctx, "", EngageInput{ItemType: "user", ItemID: "u1", EngagementType: "view"})
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))
	_, err = e.engage.Record(ctx, "", EngageInput{ItemType: "dish", ItemID: "d1", EngagementType: "like"})
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))
}

func TestAdminService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	root := e.register(t, "root")
	require.NoError(t, e.users.SetAccountType(ctx, root.ID, domain.RoleSuperuser))
	admin := e.register(t, "mod")
	require.NoError(t, e.users.SetAccountType(ctx, admin.ID, domain.RoleAdmin))
	u := e.register(t, "newbie")

	_, err := e.admin.SetAccountType(ctx, admin.ID, domain.RoleAdmin, u.ID, domain.RoleSuperuser)
	assert.Equal(t, http.StatusForbidden, errs.CodeOf(err))
	_, err = e.admin.SetAccountType(ctx, admin.ID, domain.RoleAdmin, admin.ID, domain.RoleUser)
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))

	promoted, err := e.admin.SetAccountType(ctx, root.ID, domain.RoleSuperuser, u.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, promoted.AccountType)

	page, err := e.admin.Users(ctx, domain.UserFilter{AccountType: domain.RoleAdmin})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)

	assert.Equal(t, http.StatusNotFound, errs.CodeOf(e.admin.Ban(ctx, root.ID, "missing")))
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(e.admin.Ban(ctx, root.ID, root.ID)))

	r := e.restaurant(t, "Temp", "Nowhere")
	l, _ := e.lists.CreateList(ctx, u.ID, CreateListInput{Name: "Temp"})
	_, err = e.lists.AddItemToList(ctx, l.ID, u.ID, AddItemInput{ItemType: domain.ItemTypeRestaurant, ItemID: r.ID})
	require.NoError(t, err)
	// 绕过级联删除，制造孤儿条目
	require.NoError(t, e.db.Exec("DELETE FROM restaurants WHERE id = ?", r.ID).Error)

	rep, err := e.admin.CleanupOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rep.RemovedItems)
}

func TestAdminService_PromoteByEmail(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "ops")

	u, err := e.admin.PromoteByEmail(ctx, " OPS@doof.test ", domain.RoleSuperuser)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperuser, u.AccountType)

	_, err = e.admin.PromoteByEmail(ctx, "nobody@doof.test", domain.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, errs.CodeOf(err))
	_, err = e.admin.PromoteByEmail(ctx, "ops@doof.test", "owner")
	assert.Equal(t, http.StatusBadRequest, errs.CodeOf(err))
}
