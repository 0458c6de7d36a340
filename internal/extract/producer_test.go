package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-ocr/internal/domain"
)

func TestProducer_YieldsOneResultPerPageInOrder(t *testing.T) {
	ex := &fakeExtractor{fail: map[int]bool{2: true}}
	p := NewProducer(3, provider("a"), fakeFactory(map[string]*fakeExtractor{"a": ex}), time.Second, nil)

	var got []domain.ResultEvent
	for res := range p.Results(context.Background(), makePages(3)) {
		got = append(got, res)
	}

	require.Len(t, got, 3)
	for i, res := range got {
		assert.Equal(t, 3, res.ProducerIndex)
		assert.Equal(t, "a", res.Provider)
		assert.Equal(t, i+1, res.PageIndex)
	}
	assert.True(t, got[0].Success)
	assert.False(t, got[1].Success)
	assert.Equal(t, "Processing failed: connection reset", got[1].Content)
	assert.True(t, got[2].Success)
}

func TestProducer_InitFailure(t *testing.T) {
	ex := &fakeExtractor{}
	cfg := provider("a")
	cfg.APIKey = ""
	p := NewProducer(0, cfg, fakeFactory(map[string]*fakeExtractor{"a": ex}), 0, nil)

	var got []domain.ResultEvent
	for res := range p.Results(context.Background(), makePages(5)) {
		got = append(got, res)
	}

	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].PageIndex)
	assert.False(t, got[0].Success)
	assert.Equal(t, "API initialization failed: API key not provided", got[0].Content)
	assert.Zero(t, ex.calls.Load())
}

func TestProducer_SequentialPacing(t *testing.T) {
	ex := &fakeExtractor{delay: 5 * time.Millisecond}
	p := NewProducer(0, provider("a"), fakeFactory(map[string]*fakeExtractor{"a": ex}), 0, nil)

	n := 0
	for range p.Results(context.Background(), makePages(6)) {
		n++
	}

	assert.Equal(t, 6, n)
	assert.EqualValues(t, 1, ex.maxInflight.Load())
}

func TestProducer_StopsWhenConsumerBreaks(t *testing.T) {
	ex := &fakeExtractor{}
	p := NewProducer(0, provider("a"), fakeFactory(map[string]*fakeExtractor{"a": ex}), 0, nil)

	for res := range p.Results(context.Background(), makePages(10)) {
		if res.PageIndex == 2 {
			break
		}
	}

	assert.EqualValues(t, 2, ex.calls.Load())
}

func TestProducer_PageTimeout(t *testing.T) {
	ex := &fakeExtractor{delay: time.Second}
	p := NewProducer(0, provider("a"), fakeFactory(map[string]*fakeExtractor{"a": ex}), 10*time.Millisecond, nil)

	var got []domain.ResultEvent
	for res := range p.Results(context.Background(), makePages(2)) {
		got = append(got, res)
	}

	require.Len(t, got, 2)
	for _, res := range got {
		assert.False(t, res.Success)
		assert.Contains(t, res.Content, "deadline exceeded")
	}
}

func TestProducer_CancelledContextYieldsNothingFurther(t *testing.T) {
	ex := &fakeExtractor{block: true}
	p := NewProducer(0, provider("a"), fakeFactory(map[string]*fakeExtractor{"a": ex}), 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	n := 0
	for range p.Results(ctx, makePages(3)) {
		n++
	}

	assert.Zero(t, n)
	assert.EqualValues(t, 1, ex.calls.Load())
}
