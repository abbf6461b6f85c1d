package services

import (
	"testing"

	"gcrp/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkRead_ScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)

	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")
	require.NoError(t, svc.Notify(alice.ID, "t1", "m1", ""))
	require.NoError(t, svc.Notify(bob.ID, "t2", "m2", ""))

	var bobNotification models.Notification
	require.NoError(t, db.Where("user_id = ?", bob.ID).First(&bobNotification).Error)
	var aliceNotification models.Notification
	require.NoError(t, db.Where("user_id = ?", alice.ID).First(&aliceNotification).Error)

	// 混入他人的通知ID：自己的标记成功，别人的原样跳过
	updated, err := svc.MarkRead(alice.ID, []uint{aliceNotification.ID, bobNotification.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	require.NoError(t, db.First(&bobNotification, bobNotification.ID).Error)
	assert.False(t, bobNotification.IsRead)
	require.NoError(t, db.First(&aliceNotification, aliceNotification.ID).Error)
	assert.True(t, aliceNotification.IsRead)
}

func TestMarkRead_EmptyIDs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)

	updated, err := svc.MarkRead(1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}

func TestNotificationList_UnreadFilter(t *testing.T) {
	db := setupTestDB(t)
	svc := NewNotificationService(db)
	alice := createUser(t, db, "alice")

	require.NoError(t, svc.Notify(alice.ID, "first", "m", ""))
	require.NoError(t, svc.Notify(alice.ID, "second", "m", models.NotificationTypeSystem))

	items, total, err := svc.ListWithPage(alice.ID, false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	// 倒序：后写入的在前
	require.Len(t, items, 2)
	assert.Equal(t, "second", items[0].Title)

	// 默认类型回落为info
	assert.Equal(t, models.NotificationTypeInfo, items[1].Type)

	updated, err := svc.MarkRead(alice.ID, []uint{items[0].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	unread, total, err := svc.ListWithPage(alice.ID, true, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, unread, 1)
	assert.Equal(t, "first", unread[0].Title)
}

func TestActivityRecord(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActivityService(db)
	alice := createUser(t, db, "alice")

	svc.Record(&alice.ID, models.ActivityLogin, map[string]interface{}{"via": "test"}, "127.0.0.1", "agent")
	svc.Record(&alice.ID, models.ActivityProfileUpdate, nil, "", "")

	entries, err := svc.Recent(alice.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	logs, total, err := svc.ListWithPage(models.ActivityLogin, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "127.0.0.1", logs[0].IPAddress)
}
