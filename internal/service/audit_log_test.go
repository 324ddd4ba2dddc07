package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuslib/internal/dbtest"
	"campuslib/internal/model"
	"campuslib/internal/repository"
)

func TestAuditLog_FlushesOnClose(t *testing.T) {
	events := repository.NewIssueEventRepository(dbtest.New(t))
	audit := NewAuditLog(events)
	ctx := context.Background()

	issue := &model.Issue{ID: uuid.New(), UserID: uuid.New(), BookID: uuid.New()}
	actor := uuid.New()
	for i := 0; i < auditBatchSize+3; i++ {
		audit.Record(ctx, issue, actor, model.IssueActionRenewed)
	}
	audit.Close()

	got, err := events.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, got, auditBatchSize+3)
	assert.Equal(t, actor, got[0].ActorID)
	assert.Equal(t, issue.BookID, got[0].BookID)

	// Events after Close are written directly.
	audit.Record(ctx, issue, actor, model.IssueActionReturned)
	got, err = events.ListByIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Len(t, got, auditBatchSize+4)
}

func TestAuditLog_NilDiscards(t *testing.T) {
	var audit *AuditLog
	assert.NotPanics(t, func() {
		audit.Record(context.Background(), &model.Issue{}, uuid.New(), model.IssueActionApproved)
		audit.Close()
	})
}
