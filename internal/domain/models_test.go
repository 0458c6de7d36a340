package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderKind
		wantErr bool
	}{
		{in: "", want: ProviderOpenAI},
		{in: "OpenAI", want: ProviderOpenAI},
		{in: "siliconflow", want: ProviderSiliconFlow},
		{in: " Ollama ", want: ProviderOllama},
		{in: "anthropic", want: ProviderAnthropic},
		{in: "gopher-ai", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProviderKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsType(err, ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsType_Wrapped(t *testing.T) {
	err := fmt.Errorf("page 3: %w", PageError("timeout", errors.New("deadline")))

	assert.True(t, IsType(err, ErrorTypePage))
	assert.False(t, IsType(err, ErrorTypeConfig))
	assert.False(t, IsType(errors.New("plain"), ErrorTypePage))
	assert.Contains(t, err.Error(), "[page] timeout: deadline")
}

func TestProviderConfig_DisplayName(t *testing.T) {
	assert.Equal(t, "Unnamed API", ProviderConfig{}.DisplayName())
	assert.Equal(t, "qwen", ProviderConfig{Name: "qwen"}.DisplayName())
}

func TestEventConstructors(t *testing.T) {
	info := NewInfoEvent(StreamInfo{TotalPages: 3, TotalProducers: 2})
	assert.Equal(t, EventInfo, info.Type)
	require.NotNil(t, info.Info)
	assert.Equal(t, 3, info.Info.TotalPages)

	perr := NewProducerErrorEvent(1, "b", "boom")
	require.NotNil(t, perr.Error.ProducerIndex)
	assert.Equal(t, 1, *perr.Error.ProducerIndex)

	gerr := NewGlobalErrorEvent("channel closed")
	assert.Nil(t, gerr.Error.ProducerIndex)

	hb := NewHeartbeatEvent()
	assert.Nil(t, hb.Info)
	assert.Nil(t, hb.Result)
	assert.False(t, hb.Timestamp.IsZero())
}
