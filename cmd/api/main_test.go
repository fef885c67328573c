package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/autoapp-desk/backend/internal/config"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/assistant"
)

func TestLoadPersonasFallsBackToSeed(t *testing.T) {
	store, err := loadPersonas("")
	require.NoError(t, err)
	assert.Len(t, store.List(), 4)
}

func TestNewAskerWithoutKey(t *testing.T) {
	asker, err := newAsker(config.AssistantConfig{}, zerolog.Nop())

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "OPENAI_API_KEY", cfgErr.Setting)

	_, askErr := asker.Ask(context.Background(), "asst_x", "hello")
	var upErr *assistant.UpstreamError
	require.ErrorAs(t, askErr, &upErr)
	assert.Equal(t, "configure", upErr.Op)
	assert.True(t, errors.Is(askErr, config.ErrNotSet))
}

func TestNewRecorderWithoutCredentials(t *testing.T) {
	recorder, err := newRecorder(context.Background(), config.SheetsConfig{}, zerolog.Nop())

	assert.Nil(t, recorder)
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "GOOGLE_API_KEY", cfgErr.Setting)
}

func TestSweepSessionsStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweepSessions(ctx, nil, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweepSessions did not return after cancel")
	}
}
