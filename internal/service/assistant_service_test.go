package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopassist/shopassist-go/internal/analysis"
	"github.com/shopassist/shopassist-go/internal/keyword"
	"github.com/shopassist/shopassist-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeOracle 可控的大模型桩
type fakeOracle struct {
	name       string
	configured bool
	generate   func(ctx context.Context, prompt string, image *model.Image) (string, error)

	mu      sync.Mutex
	calls   int
	prompts []string
}

func (f *fakeOracle) Name() string     { return f.name }
func (f *fakeOracle) Configured() bool { return f.configured }

func (f *fakeOracle) Generate(ctx context.Context, prompt string, image *model.Image) (string, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.generate(ctx, prompt, image)
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newOracle(reply string) *fakeOracle {
	return &fakeOracle{
		name:       "gemini",
		configured: true,
		generate: func(ctx context.Context, prompt string, image *model.Image) (string, error) {
			return reply, nil
		},
	}
}

func newTestService(t *testing.T, oracle Oracle) *AssistantService {
	return NewAssistantService(keyword.NewGate(nil), oracle, time.Second, zaptest.NewLogger(t))
}

func testImage() *model.Image {
	return &model.Image{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}
}

func TestAssistantService_Validation(t *testing.T) {
	oracle := newOracle("unused")
	svc := newTestService(t, oracle)

	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: ""})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Nil(t, result)
	assert.Zero(t, oracle.callCount())
}

func TestAssistantService_KeywordHit(t *testing.T) {
	oracle := newOracle("unused")
	svc := newTestService(t, oracle)

	for _, msg := range []string{"hello", "HeLLo there", "say hello to the laptop deals today"} {
		result, err := svc.Handle(context.Background(), model.ChatRequest{Message: msg})
		require.NoError(t, err)

		assert.Equal(t, model.SourceKeyword, result.Source)
		assert.Equal(t, keyword.DefaultRules[0].Reply, result.Reply)
		require.NotNil(t, result.QualityMetrics)
		assert.Equal(t, analysis.KeywordReplyMetrics, *result.QualityMetrics)
		require.NotNil(t, result.PurchaseIntent)
		assert.Equal(t, analysis.ScoreIntent(msg), *result.PurchaseIntent)
		assert.NotEmpty(t, result.MessageID)
	}
	assert.Zero(t, oracle.callCount())
}

func TestAssistantService_KeywordMetricsNotShared(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	result.QualityMetrics.Accuracy = 0

	assert.Equal(t, 95.0, analysis.KeywordReplyMetrics.Accuracy)
}

func TestAssistantService_Fallback(t *testing.T) {
	tests := []struct {
		name   string
		oracle Oracle
	}{
		{name: "nil oracle", oracle: nil},
		{name: "no credential", oracle: &fakeOracle{name: "gemini", configured: false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, tt.oracle)

			result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "xyzzy random text"})
			require.NoError(t, err)
			assert.Equal(t, model.SourceFallback, result.Source)
			assert.Equal(t, fallbackReply, result.Reply)
			assert.Nil(t, result.QualityMetrics)
			assert.Nil(t, result.PurchaseIntent)
		})
	}
}

func TestAssistantService_OracleSuccess(t *testing.T) {
	reply := "Certainly! I recommend the 🔹 Sony headphones for $199."
	oracle := newOracle(reply)
	svc := newTestService(t, oracle)

	msg := "need a laptop today under $500"
	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: msg})
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.Source)
	assert.Equal(t, reply, result.Reply)
	require.NotNil(t, result.QualityMetrics)
	assert.Equal(t, analysis.ScoreQuality(reply), *result.QualityMetrics)
	require.NotNil(t, result.PurchaseIntent)
	assert.Equal(t, 100, result.PurchaseIntent.Score)
	assert.Equal(t, 1, oracle.callCount())
	assert.Equal(t, msg, oracle.prompts[0])
}

func TestAssistantService_ImageBypassesKeywordGate(t *testing.T) {
	var gotImage *model.Image
	oracle := newOracle("Here are 3 similar items")
	oracle.generate = func(ctx context.Context, prompt string, image *model.Image) (string, error) {
		gotImage = image
		return "Here are 3 similar items", nil
	}
	svc := newTestService(t, oracle)

	img := testImage()
	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "hello", Image: img})
	require.NoError(t, err)

	assert.Equal(t, "gemini", result.Source)
	assert.Equal(t, 1, oracle.callCount())
	assert.Same(t, img, gotImage)
	assert.True(t, strings.HasPrefix(oracle.prompts[0], "[VISUAL SEARCH REQUEST]"))
	assert.Contains(t, oracle.prompts[0], `asked: "hello"`)
	assert.Contains(t, oracle.prompts[0], "3-5 similar product recommendations")
	assert.Contains(t, oracle.prompts[0], "(80-95%)")
}

func TestAssistantService_ImageWithoutCredentialFallsBack(t *testing.T) {
	oracle := &fakeOracle{name: "gemini", configured: false}
	svc := newTestService(t, oracle)

	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "hello", Image: testImage()})
	require.NoError(t, err)
	assert.Equal(t, model.SourceFallback, result.Source)
	assert.Zero(t, oracle.callCount())
}

func TestAssistantService_OracleFailure(t *testing.T) {
	oracle := newOracle("")
	oracle.generate = func(ctx context.Context, prompt string, image *model.Image) (string, error) {
		return "", errors.New("upstream returned status: 503")
	}
	svc := newTestService(t, oracle)

	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "find me a tent"})
	require.NoError(t, err)

	assert.Equal(t, model.SourceError, result.Source)
	assert.Equal(t, errorReply, result.Reply)
	assert.Nil(t, result.QualityMetrics)
	assert.Nil(t, result.PurchaseIntent)
	assert.Contains(t, result.ErrorDetail, "503")
}

func TestAssistantService_OracleTimeout(t *testing.T) {
	oracle := newOracle("")
	oracle.generate = func(ctx context.Context, prompt string, image *model.Image) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	svc := NewAssistantService(keyword.NewGate(nil), oracle, 20*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "find me a tent"})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, model.SourceError, result.Source)
	assert.NotEmpty(t, result.Reply)
	assert.Contains(t, result.ErrorDetail, context.DeadlineExceeded.Error())
}

func TestAssistantService_OraclePanicIsAbsorbed(t *testing.T) {
	oracle := newOracle("")
	oracle.generate = func(ctx context.Context, prompt string, image *model.Image) (string, error) {
		panic("boom")
	}
	svc := newTestService(t, oracle)

	var result *model.AssistantResult
	var err error
	require.NotPanics(t, func() {
		result, err = svc.Handle(context.Background(), model.ChatRequest{Message: "find me a tent"})
	})
	require.NoError(t, err)
	assert.Equal(t, model.SourceError, result.Source)
	assert.Contains(t, result.ErrorDetail, "boom")
}

func TestAssistantService_ConcurrentRequests(t *testing.T) {
	oracle := newOracle("Great choice! Would you like another option?")
	svc := newTestService(t, oracle)

	var wg sync.WaitGroup
	ids := make([]string, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Handle(context.Background(), model.ChatRequest{Message: "find me a tent"})
			if assert.NoError(t, err) {
				ids[i] = result.MessageID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate message id %s", id)
		seen[id] = true
	}
	assert.Equal(t, 20, oracle.callCount())
}
