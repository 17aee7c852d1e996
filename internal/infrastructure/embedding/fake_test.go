package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeProvider_Deterministic(t *testing.T) {
	provider, err := NewFakeProvider(64)
	require.NoError(t, err)

	ctx := context.Background()
	first, err := provider.EmbedImage(ctx, []byte("image-bytes"))
	require.NoError(t, err)
	second, err := provider.EmbedImage(ctx, []byte("image-bytes"))
	require.NoError(t, err)
	require.Equal(t, first, second)

	other, err := provider.EmbedImage(ctx, []byte("different"))
	require.NoError(t, err)
	require.NotEqual(t, first, other)
}

func TestFakeProvider_Normalized(t *testing.T) {
	provider, err := NewFakeProvider(128)
	require.NoError(t, err)

	vec, err := provider.EmbedText(context.Background(), "crack on the left edge")
	require.NoError(t, err)
	require.Len(t, vec, 128)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestFakeProvider_RejectsEmptyInput(t *testing.T) {
	provider, err := NewFakeProvider(16)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = provider.EmbedImage(ctx, nil)
	require.Error(t, err)
	_, err = provider.EmbedText(ctx, "")
	require.Error(t, err)
}

func TestFakeProvider_InvalidDimension(t *testing.T) {
	_, err := NewFakeProvider(0)
	require.Error(t, err)
}

func TestTokenizer_EncodePadsAndMasks(t *testing.T) {
	tok := &clipTokenizer{
		vocab: map[string]int64{
			"<|startoftext|>": 1,
			"<|endoftext|>":   2,
			"[PAD]":           0,
			"[UNK]":           3,
			"crack":           10,
			"hole":            11,
		},
		bosID: 1, eosID: 2, padID: 0, unkID: 3,
	}

	ids, attn := tok.Encode("crack hole mystery", 8)
	require.Len(t, ids, 8)
	require.Len(t, attn, 8)

	require.Equal(t, []int64{1, 10, 11, 3, 2, 0, 0, 0}, ids)
	require.Equal(t, []int64{1, 1, 1, 1, 1, 0, 0, 0}, attn)
}
