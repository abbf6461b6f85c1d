package services

import (
	"errors"
	"testing"
	"time"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// failingNotifier 总是失败的通知实现，用来验证通知失败不影响主流程
type failingNotifier struct{}

func (failingNotifier) Notify(userID uint, title, message, notifyType string) error {
	return errors.New("notification sink unavailable")
}

func newApplicationService(t *testing.T, notifier Notifier) (*ApplicationService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	seedPermissions(t, db)
	if notifier == nil {
		notifier = NewNotificationService(db)
	}
	svc := NewApplicationService(db, NewPermissionService(db), notifier, NewActivityService(db))
	return svc, db
}

// createReviewer 创建持审批权限的用户
func createReviewer(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := createUser(t, db, username)
	role := createRole(t, db, username+"_role", false,
		models.PermApplicationsView, models.PermApplicationsApprove, models.PermApplicationsComment)
	assignRole(t, db, user.ID, role.ID)
	return user
}

func validSubmit() SubmitInput {
	return SubmitInput{
		Type:       models.ApplicationTypeNewMember,
		Department: "LSPD",
		Position:   "Officer",
		Content:    "I have prior roleplay experience and want to join the department.",
	}
}

func TestSubmit(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")

	app, err := svc.Submit(user.ID, validSubmit(), "127.0.0.1", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, user.ID, app.UserID)
}

func TestSubmit_DuplicatePendingSameType(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")

	_, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	_, err = svc.Submit(user.ID, validSubmit(), "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// 只落了一行
	var count int64
	require.NoError(t, db.Model(&models.Application{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 不同类型不受影响
	other := validSubmit()
	other.Type = models.ApplicationTypeDepartmentTransfer
	_, err = svc.Submit(user.ID, other, "", "")
	require.NoError(t, err)
}

func TestSubmit_AfterTerminalAllowed(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)
	_, err = svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusRejected, nil)
	require.NoError(t, err)

	// 上一份已拒绝，可以重新申请
	_, err = svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)
}

func TestSubmit_BannedUser(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	require.NoError(t, db.Model(user).Update("is_banned", true).Error)

	_, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestSetStatus(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	notes := "Looks good"
	updated, err := svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusApproved, &notes)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, updated.Status)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, reviewer.ID, *updated.ReviewedBy)
	assert.NotNil(t, updated.ReviewedAt)
	require.NotNil(t, updated.ReviewNotes)
	assert.Equal(t, notes, *updated.ReviewNotes)

	// 申请人收到状态变更通知
	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeApplicationUpdate, notifications[0].Type)
}

func TestSetStatus_WithoutPermission(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	outsider := createUser(t, db, "bob")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	_, err = svc.SetStatus(app.ID, outsider.ID, models.ApplicationStatusApproved, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestSetStatus_TerminalLocked(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)
	_, err = svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusApproved, nil)
	require.NoError(t, err)

	// 终态锁定，连挂起也不行
	_, err = svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusOnHold, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestSetStatus_SurvivesNotifierFailure(t *testing.T) {
	svc, db := newApplicationService(t, failingNotifier{})
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	// 通知端不可用，状态变更仍然成功落库
	updated, err := svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, updated.Status)

	var reloaded models.Application
	require.NoError(t, db.First(&reloaded, app.ID).Error)
	assert.Equal(t, models.ApplicationStatusApproved, reloaded.Status)
}

func TestAddComment_Visibility(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	_, err = svc.AddComment(app.ID, user.ID, "Looking forward to the review", false)
	require.NoError(t, err)
	_, err = svc.AddComment(app.ID, reviewer.ID, "Background check pending", true)
	require.NoError(t, err)

	// 申请人看不到内部评论
	fromApplicant, err := svc.Get(app.ID, user.ID)
	require.NoError(t, err)
	require.Len(t, fromApplicant.Comments, 1)
	assert.False(t, fromApplicant.Comments[0].IsInternal)

	// 审核人员全量可见
	fromReviewer, err := svc.Get(app.ID, reviewer.ID)
	require.NoError(t, err)
	assert.Len(t, fromReviewer.Comments, 2)
}

func TestAddComment_ApplicantCannotPostInternal(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	_, err = svc.AddComment(app.ID, user.ID, "sneaky internal note", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestAddComment_TerminalLocked(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)
	_, err = svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusApproved, nil)
	require.NoError(t, err)

	_, err = svc.AddComment(app.ID, reviewer.ID, "too late", false)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestAddComment_InternalNoteNotifiesApplicant(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	// 内部备注代表审核有进展，通知申请人
	_, err = svc.AddComment(app.ID, reviewer.ID, "Background check pending", true)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 公开评论与申请人自己的评论不触发通知
	_, err = svc.AddComment(app.ID, reviewer.ID, "Please provide more details", false)
	require.NoError(t, err)
	_, err = svc.AddComment(app.ID, user.ID, "Sure, updated", false)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Notification{}).
		Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGet_ViewPermission(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	outsider := createUser(t, db, "bob")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	// 无关用户不可见
	_, err = svc.Get(app.ID, outsider.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	// 本人可见
	_, err = svc.Get(app.ID, user.ID)
	require.NoError(t, err)
}

func TestAssignReviewer(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	admin := createReviewer(t, db, "admin")
	// 被指派人不需要任何权限
	plain := createUser(t, db, "plain")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)

	require.NoError(t, svc.AssignReviewer(app.ID, plain.ID, admin.ID))

	var reloaded models.Application
	require.NoError(t, db.First(&reloaded, app.ID).Error)
	require.NotNil(t, reloaded.AssignedTo)
	assert.Equal(t, plain.ID, *reloaded.AssignedTo)

	// 不存在的审核人
	err = svc.AssignReviewer(app.ID, 9999, admin.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestListOverdue(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	now := time.Now()

	mkApp := func(appType, status string, age time.Duration) *models.Application {
		app := &models.Application{
			UserID:     user.ID,
			Type:       appType,
			Department: "LSPD",
			Position:   "Officer",
			Content:    "content",
			Status:     status,
		}
		require.NoError(t, db.Create(app).Error)
		require.NoError(t, db.Model(app).Update("created_at", now.Add(-age)).Error)
		return app
	}

	oldPending := mkApp(models.ApplicationTypeNewMember, models.ApplicationStatusPending, 8*24*time.Hour)
	mkApp(models.ApplicationTypeCustom, models.ApplicationStatusPending, 6*24*time.Hour)
	mkApp(models.ApplicationTypeRoleUpgrade, models.ApplicationStatusApproved, 8*24*time.Hour)

	overdue, err := svc.ListOverdue(now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, oldPending.ID, overdue[0].ID)
}

func TestStats(t *testing.T) {
	svc, db := newApplicationService(t, nil)
	user := createUser(t, db, "alice")
	reviewer := createReviewer(t, db, "mod")

	app, err := svc.Submit(user.ID, validSubmit(), "", "")
	require.NoError(t, err)
	_, err = svc.SetStatus(app.ID, reviewer.ID, models.ApplicationStatusApproved, nil)
	require.NoError(t, err)

	other := validSubmit()
	other.Type = models.ApplicationTypeCustom
	_, err = svc.Submit(user.ID, other, "", "")
	require.NoError(t, err)

	stats, err := svc.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Approved)
	assert.Equal(t, int64(1), stats.Pending)
}
