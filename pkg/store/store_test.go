package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fika-labs/agentrelay/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(Config{
		DBPath: filepath.Join(t.TempDir(), "sessions.db"),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_RequiresDBPath(t *testing.T) {
	_, err := New(Config{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSession(ctx, Session{
		ID:                 "s1",
		Model:              "claude-sonnet-4-20250514",
		ToolVersion:        "computer_use_20250124",
		SystemPromptSuffix: "be brief",
	})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", got.Model)
	assert.Equal(t, "computer_use_20250124", got.ToolVersion)
	assert.Equal(t, "be brief", got.SystemPromptSuffix)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
}

func TestCreateSession_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Session{Model: "m1"})
	assert.Error(t, err)

	_, err = s.CreateSession(ctx, Session{ID: "s1"})
	assert.Error(t, err)
}

func TestCreateSession_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, Session{ID: "s1", Model: "m2"})
	assert.Error(t, err)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetSession(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestUpsertMessage_BumpsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.UpsertMessage(ctx, "s1", session.NewUserMessage("hi")))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt),
		"message write should bump updated_at")
}

func TestGetMessages_OrderedByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	base := time.Now().UTC()
	msgs := []session.Message{
		{ID: "m-a", Role: session.RoleUser, Content: session.TextContent("first"), CreatedAt: base},
		{ID: "m-b", Role: session.RoleAssistant, Content: session.TextContent("second"), CreatedAt: base.Add(time.Second)},
		{ID: "m-c", Role: session.RoleUser, Content: session.TextContent("third"), CreatedAt: base.Add(2 * time.Second)},
	}

	// Insert out of order; read order must follow created_at
	for _, i := range []int{2, 0, 1} {
		require.NoError(t, s.UpsertMessage(ctx, "s1", msgs[i]))
	}

	got, err := s.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "m-a", got[0].ID)
	assert.Equal(t, "m-b", got[1].ID)
	assert.Equal(t, "m-c", got[2].ID)
	assert.Equal(t, "second", got[1].Content.Text)
}

func TestUpsertMessage_ContentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	msg := session.NewToolMessage("toolu_1", "ls output", "", true)
	require.NoError(t, s.UpsertMessage(ctx, "s1", msg))

	got, err := s.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	block := got[0].Content.Blocks[0]
	assert.Equal(t, session.BlockToolResult, block.Type)
	assert.Equal(t, "toolu_1", block.ToolUseID)
	assert.Equal(t, "ls output", block.Output)
	assert.True(t, block.HasImage)
}

func TestUpsertMessage_SameIDReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	msg := session.NewUserMessage("draft")
	require.NoError(t, s.UpsertMessage(ctx, "s1", msg))

	msg.Content = session.TextContent("final")
	require.NoError(t, s.UpsertMessage(ctx, "s1", msg))

	got, err := s.GetMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "final", got[0].Content.Text)
}

func TestListSessions_MostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		_, err := s.CreateSession(ctx, Session{ID: id, Model: "m1"})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	// Touch s1 so it becomes the most recently updated
	require.NoError(t, s.UpsertMessage(ctx, "s1", session.NewUserMessage("hi")))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "s1", sessions[0].ID)
}

func TestListSessions_Empty(t *testing.T) {
	s := newTestStore(t)

	sessions, err := s.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestCountSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	n, err = s.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMaintain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateSession(ctx, Session{ID: "s1", Model: "m1"})
	require.NoError(t, err)

	assert.NoError(t, s.Maintain(ctx))
}

func TestGetMessages_UnknownSessionReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetMessages(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, got)
}
