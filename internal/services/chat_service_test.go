package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/models"
)

func signup(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.auth.Signup(context.Background(), "ada", "correct horse battery")
	require.NoError(t, err)
}

func TestSendMirrorsExchangeIntoConversation(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)
	ctx := context.Background()

	conv, err := env.chat.StartConversation("CT review")
	require.NoError(t, err)

	reply, err := env.chat.Send(ctx, conv.ID, "find chest CTs from last week", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Contains(t, reply.Content, "find chest CTs from last week")

	transcript, err := env.chat.LocalTranscript(conv.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, models.RoleUser, transcript[0].Role)
	assert.Equal(t, "find chest CTs from last week", transcript[0].Content)
	assert.Equal(t, models.RoleAssistant, transcript[1].Role)
	assert.Equal(t, reply.Content, transcript[1].Content)
}

func TestSendWithoutConversationLeavesNoLocalTrace(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)

	_, err := env.chat.Send(context.Background(), "", "one-shot question", ChatOptions{})
	require.NoError(t, err)

	conversations, err := env.chat.Conversations()
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestSendRejectsEmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)

	_, err := env.chat.Send(context.Background(), "", "", ChatOptions{})
	require.Error(t, err)
	assert.Equal(t, "prompt: field required", api.Message(err, "The agent could not answer"))
	assert.True(t, env.manager.Authenticated(), "validation failure must not touch the session")
}

// A 401 on the chat path is exempt from auto-logout so a flaky agent
// gateway cannot kick the user out mid conversation.
func TestChatAuthFailureKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)
	user := env.manager.CurrentUser()

	require.NoError(t, env.manager.Establish("not-a-token", user))

	_, err := env.chat.Send(context.Background(), "", "hello", ChatOptions{})
	require.Error(t, err)
	assert.True(t, api.IsAuthFailure(err))
	assert.True(t, env.manager.Authenticated())
	assert.Equal(t, "not-a-token", env.store.Token())
}

func TestRemoteTranscriptReflectsSentMessages(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)
	ctx := context.Background()

	_, err := env.chat.Send(ctx, "", "first prompt", ChatOptions{})
	require.NoError(t, err)
	_, err = env.chat.Send(ctx, "", "second prompt", ChatOptions{})
	require.NoError(t, err)

	transcript, err := env.chat.RemoteTranscript(ctx)
	require.NoError(t, err)
	require.Len(t, transcript, 4)
	assert.Equal(t, models.RoleUser, transcript[0].Role)
	assert.Equal(t, "first prompt", transcript[0].Content)
	assert.Equal(t, models.RoleAssistant, transcript[1].Role)
	assert.Equal(t, "second prompt", transcript[2].Content)
}

func TestSendPassesSearchBounds(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)

	reply, err := env.chat.Send(context.Background(), "", "bounded search", ChatOptions{
		MaxStudiesPerPACS: 3,
		MaxTotalStudies:   10,
		ReturnEvaluation:  true,
	})
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "evaluation")
}

func TestConversationsNewestFirst(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.chat.StartConversation("older")
	require.NoError(t, err)
	_, err = env.chat.StartConversation("newer")
	require.NoError(t, err)

	conversations, err := env.chat.Conversations()
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.NotEmpty(t, conversations[0].ID)
	assert.NotEqual(t, conversations[0].ID, conversations[1].ID)

	conv, err := env.chat.Conversation(conversations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, conversations[0].Title, conv.Title)

	_, err = env.chat.Conversation("no-such-id")
	assert.Error(t, err)
}
