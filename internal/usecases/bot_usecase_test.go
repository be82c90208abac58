package usecases

import (
	"context"
	"errors"
	"testing"

	"botrelay/internal/entities"
	"botrelay/internal/interfaces"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func TestCreateBot(t *testing.T) {
	store := newMemStore()
	uc := NewBotUsecase(newFakeMessenger("000:bad"), "", "", zap.NewNop())
	ctx := context.Background()

	bot, err := uc.Create(ctx, store, BotInput{Name: strPtr(" Shop "), Token: strPtr("123:good")})
	require.NoError(t, err)
	assert.Equal(t, "Shop", bot.Name)
	assert.Equal(t, "relay_bot", bot.Username)
	assert.Equal(t, entities.PlatformTelegram, bot.Platform)
	assert.True(t, bot.IsActive)

	_, err = uc.Create(ctx, store, BotInput{Name: strPtr("x"), Token: strPtr("000:bad")})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
	assert.Contains(t, err.Error(), "invalid bot token")

	_, err = uc.Create(ctx, store, BotInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)
}

func TestUpdateBot_RevalidatesChangedToken(t *testing.T) {
	store := newMemStore()
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:good", IsActive: true})
	uc := NewBotUsecase(newFakeMessenger("000:bad"), "", "", zap.NewNop())
	ctx := context.Background()

	_, err := uc.Update(ctx, store, bot.ID, BotInput{Token: strPtr("000:bad")})
	assert.ErrorIs(t, err, entities.ErrInvalidInput)

	updated, err := uc.Update(ctx, store, bot.ID, BotInput{Name: strPtr("renamed"), IsActive: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.False(t, updated.IsActive)

	_, err = uc.Update(ctx, store, "00000000-0000-0000-0000-000000000999", BotInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestUpdateBot_ForgetsRotatedToken(t *testing.T) {
	store := newMemStore()
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:old", IsActive: true})
	m := newFakeMessenger()
	uc := NewBotUsecase(m, "", "", zap.NewNop())
	ctx := context.Background()

	// same token: nothing to drop
	_, err := uc.Update(ctx, store, bot.ID, BotInput{Token: strPtr("123:old")})
	require.NoError(t, err)
	assert.Empty(t, m.forgot)

	updated, err := uc.Update(ctx, store, bot.ID, BotInput{Token: strPtr("123:new")})
	require.NoError(t, err)
	assert.Equal(t, "123:new", updated.Token)
	assert.Equal(t, []string{"123:old"}, m.forgot)
}

func boolPtr(b bool) *bool { return &b }

func TestDeleteBot_TwoPaths(t *testing.T) {
	ctx := context.Background()

	t.Run("tenant removes row", func(t *testing.T) {
		tenant := newMemStore()
		bot := tenant.addBot(entities.Bot{Name: "shop", Token: "123:a", WebhookURL: "https://relay/api/webhook/telegram/x"})
		m := newFakeMessenger()
		uc := NewBotUsecase(m, "", "", zap.NewNop())

		adminCalled := false
		err := uc.Delete(ctx, tenant, func() (interfaces.Store, error) {
			adminCalled = true
			return newMemStore(), nil
		}, bot.ID)
		require.NoError(t, err)
		assert.False(t, adminCalled)
		assert.Equal(t, []string{"123:a"}, m.deleted)
		assert.Equal(t, []string{"123:a"}, m.forgot)
	})

	t.Run("admin removes row hidden from tenant", func(t *testing.T) {
		tenant := newMemStore()
		admin := newMemStore()
		bot := admin.addBot(entities.Bot{Name: "shop", Token: "123:a"})
		uc := NewBotUsecase(newFakeMessenger(), "", "", zap.NewNop())

		err := uc.Delete(ctx, tenant, func() (interfaces.Store, error) { return admin, nil }, bot.ID)
		require.NoError(t, err)
		_, err = admin.Bots().Get(ctx, bot.ID)
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("tenant errors admin succeeds", func(t *testing.T) {
		tenant := newMemStore()
		tenant.deleteErr = errors.New("permission denied for table bots")
		admin := newMemStore()
		bot := admin.addBot(entities.Bot{Name: "shop", Token: "123:a"})
		uc := NewBotUsecase(newFakeMessenger(), "", "", zap.NewNop())

		assert.NoError(t, uc.Delete(ctx, tenant, func() (interfaces.Store, error) { return admin, nil }, bot.ID))
	})

	t.Run("neither finds it", func(t *testing.T) {
		uc := NewBotUsecase(newFakeMessenger(), "", "", zap.NewNop())
		err := uc.Delete(ctx, newMemStore(), func() (interfaces.Store, error) { return newMemStore(), nil }, "00000000-0000-0000-0000-000000000001")
		assert.ErrorIs(t, err, entities.ErrNotFound)
	})

	t.Run("both error", func(t *testing.T) {
		tenant := newMemStore()
		tenant.deleteErr = errors.New("tenant down")
		uc := NewBotUsecase(newFakeMessenger(), "", "", zap.NewNop())

		err := uc.Delete(ctx, tenant, func() (interfaces.Store, error) { return nil, entities.ErrNotConfigured }, "00000000-0000-0000-0000-000000000001")
		require.Error(t, err)
		assert.NotErrorIs(t, err, entities.ErrNotFound)
		assert.NotErrorIs(t, err, entities.ErrNotConfigured)
	})

	t.Run("no database anywhere", func(t *testing.T) {
		m := newFakeMessenger()
		uc := NewBotUsecase(m, "", "", zap.NewNop())

		err := uc.Delete(ctx, nil, func() (interfaces.Store, error) { return nil, entities.ErrNotConfigured }, "00000000-0000-0000-0000-000000000001")
		assert.ErrorIs(t, err, entities.ErrNotConfigured)
		assert.Empty(t, m.forgot)
	})

	t.Run("no tenant store", func(t *testing.T) {
		admin := newMemStore()
		bot := admin.addBot(entities.Bot{Name: "shop", Token: "123:a"})
		uc := NewBotUsecase(newFakeMessenger(), "", "", zap.NewNop())

		assert.NoError(t, uc.Delete(ctx, nil, func() (interfaces.Store, error) { return admin, nil }, bot.ID))
	})
}

func TestRegisterWebhook(t *testing.T) {
	store := newMemStore()
	bot := store.addBot(entities.Bot{Name: "shop", Token: "123:a"})
	m := newFakeMessenger()
	ctx := context.Background()

	_, err := NewBotUsecase(m, "", "", zap.NewNop()).RegisterWebhook(ctx, store, bot.ID)
	assert.ErrorIs(t, err, entities.ErrNotConfigured)

	uc := NewBotUsecase(m, "https://relay.example.com/", "shh", zap.NewNop())
	updated, err := uc.RegisterWebhook(ctx, store, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://relay.example.com/api/webhook/telegram/"+bot.ID, updated.WebhookURL)
	assert.Equal(t, updated.WebhookURL+"?secret=shh", m.webhooks["123:a"])

	cleared, err := uc.UnregisterWebhook(ctx, store, bot.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.WebhookURL)
	assert.Empty(t, m.webhooks)
}

func TestDeepLink(t *testing.T) {
	link, err := DeepLink(&entities.Bot{Username: "relay_bot"})
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/relay_bot", link)

	_, err = DeepLink(&entities.Bot{})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
