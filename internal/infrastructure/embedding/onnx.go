package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"defect-pipeline/internal/domain/port"
	"defect-pipeline/internal/infrastructure/imaging"
)

const (
	imageSide  = 224
	textSeqLen = 77
)

// Нормализация пикселей энкодера изображений (значения CLIP).
var (
	pixelMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	pixelStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// ONNXProvider считает эмбеддинги изображений и текста парой ONNX-сессий.
// Сессии держат предвыделенные тензоры, поэтому инференс сериализуется мьютексом.
type ONNXProvider struct {
	dimension int
	tokenizer *clipTokenizer
	log       *zap.Logger

	imageSession *ort.AdvancedSession
	pixelValues  *ort.Tensor[float32]
	imageOut     *ort.Tensor[float32]

	textSession   *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	textOut       *ort.Tensor[float32]

	mu sync.Mutex
}

// NewONNXProvider загружает модели из modelDir: visual.onnx, textual.onnx
// и tokenizer/vocab.txt. Рантайм ONNX инициализируется один раз на процесс.
func NewONNXProvider(modelDir string, dimension int, log *zap.Logger) (*ONNXProvider, error) {
	if modelDir == "" {
		return nil, errors.New("model dir is empty")
	}
	if dimension < 1 {
		return nil, errors.New("embedding dimension must be >= 1")
	}

	libPath := resolveSharedLibraryPath(modelDir)
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}

	visualPath := filepath.Join(modelDir, "visual.onnx")
	textualPath := filepath.Join(modelDir, "textual.onnx")
	vocabPath := filepath.Join(modelDir, "tokenizer", "vocab.txt")
	for _, path := range []string{visualPath, textualPath, vocabPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("model file missing at %s: %w", path, err)
		}
	}

	tokenizer, err := loadCLIPTokenizer(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	p := &ONNXProvider{dimension: dimension, tokenizer: tokenizer, log: log.Named("onnx_embedder")}

	p.pixelValues, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, imageSide, imageSide))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate pixel_values tensor: %w", err)
	}
	p.imageOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimension)))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate image output tensor: %w", err)
	}
	p.imageSession, err = ort.NewAdvancedSession(
		visualPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.Value{p.pixelValues},
		[]ort.Value{p.imageOut},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create visual session: %w", err)
	}

	textShape := ort.NewShape(1, textSeqLen)
	p.inputIDs, err = ort.NewEmptyTensor[int64](textShape)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate input_ids tensor: %w", err)
	}
	p.attentionMask, err = ort.NewEmptyTensor[int64](textShape)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate attention_mask tensor: %w", err)
	}
	p.textOut, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimension)))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate text output tensor: %w", err)
	}
	p.textSession, err = ort.NewAdvancedSession(
		textualPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"text_embeds"},
		[]ort.Value{p.inputIDs, p.attentionMask},
		[]ort.Value{p.textOut},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create textual session: %w", err)
	}

	p.log.Info("onnx embedding provider loaded",
		zap.String("model_dir", modelDir),
		zap.Int("dimension", dimension))
	return p, nil
}

// EmbedImage возвращает L2-нормированный эмбеддинг изображения.
func (p *ONNXProvider) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pixels, err := preprocessImage(image)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	copy(p.pixelValues.GetData(), pixels)
	if err := p.imageSession.Run(); err != nil {
		return nil, fmt.Errorf("visual session run failed: %w", err)
	}
	return normalized(p.imageOut.GetData()), nil
}

// EmbedText возвращает L2-нормированный эмбеддинг текста.
func (p *ONNXProvider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}
	ids, mask := p.tokenizer.Encode(text, textSeqLen)

	p.mu.Lock()
	defer p.mu.Unlock()

	copy(p.inputIDs.GetData(), ids)
	copy(p.attentionMask.GetData(), mask)
	if err := p.textSession.Run(); err != nil {
		return nil, fmt.Errorf("textual session run failed: %w", err)
	}
	return normalized(p.textOut.GetData()), nil
}

// Dimension возвращает размерность векторов.
func (p *ONNXProvider) Dimension() int { return p.dimension }

// Close освобождает сессии и тензоры.
func (p *ONNXProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range []interface{ Destroy() error }{
		p.imageSession, p.textSession,
		p.pixelValues, p.imageOut,
		p.inputIDs, p.attentionMask, p.textOut,
	} {
		if c != nil {
			_ = c.Destroy()
		}
	}
	return nil
}

// preprocessImage приводит изображение к тензору 1x3x224x224 в формате CHW.
func preprocessImage(data []byte) ([]float32, error) {
	img, err := imaging.Decode(data)
	if err != nil {
		return nil, err
	}
	resized, err := imaging.Resize(img, imageSide, imageSide)
	if err != nil {
		return nil, err
	}

	pixels := make([]float32, 3*imageSide*imageSide)
	bounds := resized.Bounds()
	for y := 0; y < imageSide; y++ {
		for x := 0; x < imageSide; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			channels := [3]float32{
				float32(r) / 65535.0,
				float32(g) / 65535.0,
				float32(b) / 65535.0,
			}
			for c := 0; c < 3; c++ {
				pixels[c*imageSide*imageSide+y*imageSide+x] = (channels[c] - pixelMean[c]) / pixelStd[c]
			}
		}
	}
	return pixels, nil
}

func normalized(raw []float32) []float32 {
	out := make([]float32, len(raw))
	copy(out, raw)

	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return out
	}
	scale := float32(1.0 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out
}

// resolveSharedLibraryPath ищет разделяемую библиотеку ONNX-рантайма.
// Переменная окружения ONNXRUNTIME_SHARED_LIBRARY_PATH имеет приоритет.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/usr/local/lib",
		"/usr/lib",
		"/opt/homebrew/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

var _ port.EmbeddingProvider = (*ONNXProvider)(nil)
