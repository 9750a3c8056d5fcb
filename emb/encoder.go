// Package emb runs a transformer sentence encoder exported to ONNX.
package emb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"

	"yashubustudio/lostfound/internal/ortenv"
)

// Config locates the runtime library, model and tokenizer.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
}

// Encoder produces mean-pooled, L2-normalized sentence embeddings. It is
// safe for concurrent use; calls are serialized.
type Encoder struct {
	mu          sync.Mutex
	tk          *tokenizer.Tokenizer
	session     *ort.DynamicAdvancedSession
	maxSeqLen   int
	useTypeIDs  bool
	initialized bool
}

// Init loads the tokenizer and creates the ONNX session.
func (e *Encoder) Init(cfg Config) error {
	if cfg.ModelPath == "" || cfg.TokenizerPath == "" {
		return errors.New("model and tokenizer paths are required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 512
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if err := ortenv.Acquire(cfg.OrtDLL); err != nil {
		return err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		ortenv.Release()
		return fmt.Errorf("inspect model: %w", err)
	}
	if len(outputs) == 0 {
		ortenv.Release()
		return errors.New("model has no outputs")
	}
	inputNames := []string{"input_ids", "attention_mask"}
	useTypeIDs := false
	for _, in := range inputs {
		if in.Name == "token_type_ids" {
			useTypeIDs = true
			inputNames = append(inputNames, in.Name)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputs[0].Name}, nil)
	if err != nil {
		ortenv.Release()
		return fmt.Errorf("create session: %w", err)
	}
	e.tk = tk
	e.session = session
	e.maxSeqLen = cfg.MaxSeqLen
	e.useTypeIDs = useTypeIDs
	e.initialized = true
	return nil
}

// Close releases the session and the shared runtime reference.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	e.initialized = false
	ortenv.Release()
	return err
}

// Encode embeds text. The context is checked before inference starts.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil, errors.New("encoder is not initialized")
	}

	enc, err := e.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	ids := truncate(enc.GetIds(), e.maxSeqLen)
	mask := truncate(enc.GetAttentionMask(), e.maxSeqLen)
	types := truncate(enc.GetTypeIds(), e.maxSeqLen)
	if len(ids) == 0 {
		return nil, errors.New("tokenizer produced no tokens")
	}

	shape := ort.NewShape(1, int64(len(ids)))
	idsT, err := ort.NewTensor(shape, toInt64(ids))
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, toInt64(mask))
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	inputs := []ort.Value{idsT, maskT}
	if e.useTypeIDs {
		typeT, err := ort.NewTensor(shape, toInt64(types))
		if err != nil {
			return nil, fmt.Errorf("token_type_ids tensor: %w", err)
		}
		defer typeT.Destroy()
		inputs = append(inputs, typeT)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	defer outputs[0].Destroy()
	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("unexpected output tensor type")
	}
	dims := hidden.GetShape()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	return meanPool(hidden.GetData(), mask, int(dims[1]), int(dims[2])), nil
}

// meanPool averages token vectors where mask is set and L2-normalizes the result.
func meanPool(data []float32, mask []int, seqLen, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t := 0; t < seqLen && t < len(mask); t++ {
		if mask[t] == 0 {
			continue
		}
		row := data[t*dim : (t+1)*dim]
		for i, v := range row {
			out[i] += v
		}
		count++
	}
	if count > 0 {
		for i := range out {
			out[i] /= count
		}
	}
	var norm float64
	for _, v := range out {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range out {
			out[i] *= inv
		}
	}
	return out
}

func truncate(v []int, n int) []int {
	if len(v) > n {
		return v[:n]
	}
	return v
}

func toInt64(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
