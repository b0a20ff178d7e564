package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ministryofjustice/hmpps-support-additional-needs-api-sub000/internal/models"
)

func setupInboundEventTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.InboundEvent{}))

	return db
}

func testInboundEvent(messageID string) models.InboundEvent {
	return models.InboundEvent{
		MessageID:    messageID,
		EventType:    "prisoner-offender-search.prisoner.received",
		PrisonNumber: "A1234BC",
		Payload:      datatypes.JSON(`{"reason":"NEW_ADMISSION"}`),
		Outcome:      models.EventOutcomeProcessed,
	}
}

func TestRecordMarksMessageSeen(t *testing.T) {
	repo := NewInboundEventRepository(setupInboundEventTestDB(t))
	ctx := context.Background()

	seen, err := repo.Seen(ctx, "msg-001")
	require.NoError(t, err)
	require.False(t, seen)

	event := testInboundEvent("msg-001")
	require.NoError(t, repo.Record(ctx, &event))

	seen, err = repo.Seen(ctx, "msg-001")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestRecordSurfacesDuplicateMessageID(t *testing.T) {
	repo := NewInboundEventRepository(setupInboundEventTestDB(t))
	ctx := context.Background()

	event := testInboundEvent("msg-001")
	require.NoError(t, repo.Record(ctx, &event))

	replay := testInboundEvent("msg-001")
	err := repo.Record(ctx, &replay)
	require.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}
