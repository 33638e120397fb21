package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonotalk/backend/internal/analysis/crisis"
	"github.com/nonotalk/backend/internal/config"
	"github.com/nonotalk/backend/internal/model/persona"
	"github.com/nonotalk/backend/internal/service/ai"
	"github.com/nonotalk/backend/internal/service/ai/aitest"
	"github.com/nonotalk/backend/internal/service/quota"
	"github.com/nonotalk/backend/internal/store"
	"github.com/nonotalk/backend/internal/store/storetest"
)

type fixture struct {
	store    *store.SQLStore
	model    *aitest.FakeModel
	pipeline *Pipeline
}

// stepClock returns a strictly increasing clock so message order is stable.
func stepClock() func() time.Time {
	var (
		mu  sync.Mutex
		now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newFixture(t *testing.T, fake *aitest.FakeModel) *fixture {
	t.Helper()

	s := storetest.New(t)
	cfg := config.AIConfig{
		Model:           "test-model",
		Temperature:     0.7,
		MaxTokens:       150,
		StreamMaxTokens: 180,
		RichHistory:     50,
		FallbackHistory: 6,
		StreamHistory:   8,
		PersonaID:       "nono",
	}
	svc, err := ai.NewService(context.Background(), fake, persona.NewMemoryStore(persona.Seed()), cfg, zap.NewNop())
	require.NoError(t, err)

	p := NewPipeline(s, svc, crisis.NewDetector(crisis.DefaultKeywords), quota.NewLedger(zap.NewNop()),
		Options{RichHistory: 50, StreamHistory: 8, UploadDir: t.TempDir(), Now: stepClock()}, zap.NewNop())
	return &fixture{store: s, model: fake, pipeline: p}
}

func TestSendBonjourScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "Bonjour, je suis content de te lire."})
	u := storetest.SeedUser(t, f.store, "alice", 1)
	conv := storetest.SeedConversation(t, f.store, u.ID, config.DefaultConversationTitle)

	res, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "bonjour"})
	require.NoError(t, err)
	require.NotNil(t, res.QuotaRemaining)
	assert.Equal(t, 0, *res.QuotaRemaining)
	assert.False(t, res.CrisisDetected)
	assert.False(t, res.Degraded)
	assert.Equal(t, "Bonjour, je suis content de te lire.", res.AIMessage.Content)

	msgs, err := f.store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, "bonjour", msgs[0].Content)
	assert.False(t, msgs[1].IsUser)
	assert.True(t, msgs[1].Timestamp.After(msgs[0].Timestamp))

	got, err := f.store.GetConversation(ctx, conv.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", got.Title)

	reloaded, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.QuotaRemaining)
	assert.Equal(t, u.TotalQuota, reloaded.TotalQuota)
}

func TestSendPassesPromptAndOptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok"})
	u := storetest.SeedUser(t, f.store, "alice", 5)
	conv := storetest.SeedConversation(t, f.store, u.ID, "")

	_, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "premier"})
	require.NoError(t, err)
	_, err = f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "second", Emotion: "triste"})
	require.NoError(t, err)

	calls := f.model.Calls()
	require.Len(t, calls, 2)
	last := calls[1]
	require.Len(t, last.Messages, 4)
	assert.Equal(t, schema.System, last.Messages[0].Role)
	assert.Contains(t, last.Messages[0].Content, "Émotion détectée : triste")
	assert.Equal(t, "premier", last.Messages[1].Content)
	assert.Equal(t, "ok", last.Messages[2].Content)
	assert.Equal(t, "second", last.Messages[3].Content)

	require.NotNil(t, last.Options.MaxTokens)
	assert.Equal(t, 150, *last.Options.MaxTokens)
	require.NotNil(t, last.Options.Temperature)
	assert.InDelta(t, 0.7, *last.Options.Temperature, 1e-6)
}

func TestSendInfersEmotionFromText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok"})
	u := storetest.SeedUser(t, f.store, "alice", 5)
	conv := storetest.SeedConversation(t, f.store, u.ID, "")

	res, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "je suis tellement angoissé ce soir"})
	require.NoError(t, err)
	assert.Equal(t, "anxiété", res.UserMessage.EmotionDetected)

	calls := f.model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Messages[0].Content, "Émotion détectée : anxiété")

	res, err = f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "je suis angoissé", Emotion: "calme"})
	require.NoError(t, err)
	assert.Equal(t, "calme", res.UserMessage.EmotionDetected)
}

func TestSendQuotaExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok", Chunks: []string{"ok"}})
	u := storetest.SeedUser(t, f.store, "alice", 0)
	conv := storetest.SeedConversation(t, f.store, u.ID, "")

	_, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "bonjour"})
	assert.ErrorIs(t, err, ErrQuotaExhausted)

	sink := &recordingSink{}
	_, err = f.pipeline.SendStream(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "bonjour"}, sink)
	assert.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Empty(t, sink.events)

	assert.Empty(t, f.model.Calls())
	msgs, err := f.store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSendCrisisShortCircuits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok"})
	u := storetest.SeedUser(t, f.store, "alice", 3)
	conv := storetest.SeedConversation(t, f.store, u.ID, "")

	res, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "Je veux MOURIR ce soir"})
	require.NoError(t, err)
	assert.True(t, res.CrisisDetected)
	assert.Equal(t, crisis.EmergencyMessage, res.EmergencyMessage)
	assert.Nil(t, res.AIMessage)

	alerts, err := f.store.ListCrisisAlerts(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.False(t, alerts[0].Resolved)
	assert.Equal(t, "Je veux MOURIR ce soir", alerts[0].Message)

	msgs, err := f.store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, f.model.Calls())

	reloaded, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.QuotaRemaining)
}

func TestSendGateErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok"})
	alice := storetest.SeedUser(t, f.store, "alice", 3)
	bob := storetest.SeedUser(t, f.store, "bob", 3)
	conv := storetest.SeedConversation(t, f.store, alice.ID, "")

	tests := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"anonymous", SendRequest{ConversationID: conv.ID, Message: "salut"}, ErrNotAuthenticated},
		{"unknown user", SendRequest{UserID: 999, ConversationID: conv.ID, Message: "salut"}, ErrQuotaExhausted},
		{"foreign conversation", SendRequest{UserID: bob.ID, ConversationID: conv.ID, Message: "salut"}, ErrConversationNotFound},
		{"missing conversation", SendRequest{UserID: alice.ID, ConversationID: 404, Message: "salut"}, ErrConversationNotFound},
		{"blank message", SendRequest{UserID: alice.ID, ConversationID: conv.ID, Message: "  \n "}, ErrEmptyMessage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.pipeline.Send(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.model.Calls())
}

func TestSendTitleDerivation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok"})
	u := storetest.SeedUser(t, f.store, "alice", 5)

	long := strings.Repeat("é", 60)
	fresh := storetest.SeedConversation(t, f.store, u.ID, config.DefaultConversationTitle)
	_, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: fresh.ID, Message: long})
	require.NoError(t, err)

	got, err := f.store.GetConversation(ctx, fresh.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 50)+"...", got.Title)

	named := storetest.SeedConversation(t, f.store, u.ID, "Mon travail")
	res, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: named.ID, Message: long})
	require.NoError(t, err)

	got, err = f.store.GetConversation(ctx, named.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mon travail", got.Title)
	assert.True(t, got.UpdatedAt.Equal(res.AIMessage.Timestamp))
}

func TestSendFallsBackToDirectTier(t *testing.T) {
	ctx := context.Background()
	fake := &aitest.FakeModel{GenerateFunc: func(call int, _ []*schema.Message) (*schema.Message, error) {
		if call == 1 {
			return nil, errors.New("chain exploded")
		}
		return schema.AssistantMessage("réponse de secours", nil), nil
	}}
	f := newFixture(t, fake)
	u := storetest.SeedUser(t, f.store, "alice", 2)
	conv := storetest.SeedConversation(t, f.store, u.ID, "")

	res, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "bonjour"})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, "réponse de secours", res.AIMessage.Content)
	assert.Equal(t, 1, *res.QuotaRemaining)
	assert.Len(t, fake.Calls(), 2)
}

func TestSendProviderFailureDegrades(t *testing.T) {
	ctx := context.Background()
	fake := &aitest.FakeModel{GenerateFunc: func(int, []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("provider down")
	}}
	f := newFixture(t, fake)
	u := storetest.SeedUser(t, f.store, "alice", 2)
	conv := storetest.SeedConversation(t, f.store, u.ID, config.DefaultConversationTitle)

	res, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "bonjour"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.AIMessage.Content, "Désolé, je rencontre un problème technique.")
	assert.Contains(t, res.AIMessage.Content, "provider down")
	assert.Zero(t, res.AIMessage.ID)
	assert.Equal(t, 2, *res.QuotaRemaining)

	msgs, err := f.store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsUser)

	reloaded, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.QuotaRemaining)

	got, err := f.store.GetConversation(ctx, conv.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConversationTitle, got.Title)
}

func TestSendConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &aitest.FakeModel{Reply: "ok"})
	u := storetest.SeedUser(t, f.store, "alice", 2)
	conv := storetest.SeedConversation(t, f.store, u.ID, "")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Send(ctx, SendRequest{UserID: u.ID, ConversationID: conv.ID, Message: "bonjour"})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	reloaded, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.QuotaRemaining)
}

func TestNextTitle(t *testing.T) {
	assert.Equal(t, "salut", nextTitle("", "salut"))
	assert.Equal(t, "salut", nextTitle(config.DefaultConversationTitle, "salut"))
	assert.Equal(t, "Déjà nommée", nextTitle("Déjà nommée", "salut"))
	assert.Equal(t, strings.Repeat("a", 50), nextTitle("", strings.Repeat("a", 50)))
	assert.Equal(t, strings.Repeat("a", 50)+"...", nextTitle("", strings.Repeat("a", 51)))
}
