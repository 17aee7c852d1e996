package embedding

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// clipTokenizer — минимальный WordPiece-совместимый токенизатор для
// текстового энкодера. Словарь загружается из vocab.txt, по токену на строку.
type clipTokenizer struct {
	vocab map[string]int64
	bosID int64
	eosID int64
	padID int64
	unkID int64
}

func loadCLIPTokenizer(path string) (*clipTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan vocab: %w", err)
	}

	return &clipTokenizer{
		vocab: vocab,
		bosID: vocab["<|startoftext|>"],
		eosID: vocab["<|endoftext|>"],
		padID: vocab["[PAD]"],
		unkID: vocab["[UNK]"],
	}, nil
}

// Encode возвращает идентификаторы токенов и маску внимания длины seqLen.
func (t *clipTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}

	tokens := []int64{t.bosID}
	for _, word := range strings.Fields(strings.ToLower(text)) {
		tokens = append(tokens, t.wordPiece(word)...)
		if len(tokens) >= seqLen-1 {
			tokens = tokens[:seqLen-1]
			break
		}
	}
	tokens = append(tokens, t.eosID)

	attn := make([]int64, seqLen)
	for i := range tokens {
		attn[i] = 1
	}
	for len(tokens) < seqLen {
		tokens = append(tokens, t.padID)
	}
	return tokens, attn
}

// wordPiece разбивает слово жадным поиском самого длинного известного куска.
func (t *clipTokenizer) wordPiece(word string) []int64 {
	if id, ok := t.vocab[word]; ok {
		return []int64{id}
	}

	var pieces []int64
	start := 0
	for start < len(word) {
		matched := false
		for end := len(word); end > start; end-- {
			sub := word[start:end]
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, id)
				start = end
				matched = true
				break
			}
		}
		if !matched {
			return []int64{t.unkID}
		}
	}
	return pieces
}
