package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestMessageBuilders(t *testing.T) {
	txt := TextMessage("assistant", "hello")
	assert.Equal(t, "assistant", txt.Role)
	require.Len(t, txt.Parts, 1)
	assert.Equal(t, "hello", txt.Parts[0].Text)

	img := ImageMessage("aGVsbG8=", "image/jpeg", "what is in this photo")
	assert.Equal(t, "user", img.Role)
	require.Len(t, img.Parts, 2)
	assert.Equal(t, "aGVsbG8=", img.Parts[0].ImageData)
	assert.Equal(t, "image/jpeg", img.Parts[0].MediaType)
	assert.Equal(t, "what is in this photo", img.Parts[1].Text)
}

func TestToSDKMessages_MixedParts(t *testing.T) {
	msgs := toSDKMessages([]Message{
		ImageMessage("ZGF0YQ==", "image/png", "analyze"),
		TextMessage("assistant", "ok"),
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Len(t, msgs[0].Content, 2)
	assert.Equal(t, "assistant", string(msgs[1].Role))
}

func TestMessageResponse_Text_SkipsToolBlocks(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "server_tool_use"},
			{Type: "text", Text: "first "},
			{Type: "web_search_tool_result"},
			{Type: "text", Text: "second"},
		},
	}
	assert.Equal(t, "first second", resp.Text())
}

func TestEstimateCost_KnownModel(t *testing.T) {
	usage := TokenUsage{
		InputTokens:  1_000_000,
		OutputTokens: 500_000,
	}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80+2.00, cost, 0.001)
}

func TestEstimateCost_CacheTokens(t *testing.T) {
	usage := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 3.00*1.25+3.00*0.1, cost, 0.001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000}
	assert.Zero(t, usage.EstimateCost("some-other-model"))
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("system prompt")
	require.Len(t, blocks, 1)
	assert.Equal(t, "system prompt", blocks[0].Text)
	require.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "1h", blocks[0].CacheControl.TTL)
}
