package estimator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/chaos-io/cutout/matte"
	ort "github.com/yalue/onnxruntime_go"
)

type ONNXConfig struct {
	ModelPath   string
	LibraryPath string // onnxruntime 动态库 (.so/.dylib/.dll)，为空时使用默认搜索路径
	NumThreads  int
}

// ONNX 基于 onnxruntime 的本地推理。同一个 session 上的 Run 串行执行。
type ONNX struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	inputSize image.Point
	rank      int
}

var envMu sync.Mutex

func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model not found: %s", ErrUnavailable, cfg.ModelPath)
	}
	if err := initEnvironment(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer func() {
		_ = opts.Destroy()
	}()
	if cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &ONNX{
		session:   session,
		inputSize: declaredInputSize(inputs[0].Dimensions),
		rank:      len(outputs[0].Dimensions),
	}, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return ort.InitializeEnvironment()
}

// declaredInputSize 解析 N×C×H×W 的输入形状，动态维度 (-1) 视为未知
func declaredInputSize(dims ort.Shape) image.Point {
	if len(dims) != 4 || dims[2] <= 0 || dims[3] <= 0 {
		return image.Point{}
	}
	return image.Pt(int(dims[3]), int(dims[2]))
}

func (e *ONNX) InputSize() image.Point { return e.inputSize }

func (e *ONNX) OutputRank() int { return e.rank }

func (e *ONNX) Estimate(ctx context.Context, img image.Image, width, height int, norm matte.Normalization) (*matte.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := ToCHW(img, width, height, norm)
	if err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(height), int64(width)), data)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer func() {
		_ = input.Destroy()
	}()

	outs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{input}, outs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	if outs[0] == nil {
		return nil, errors.New("no output from model")
	}
	defer func() {
		_ = outs[0].Destroy()
	}()

	t, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("invalid output tensor type")
	}

	return &matte.Tensor{
		Shape: append([]int64(nil), t.GetShape()...),
		Data:  append([]float32(nil), t.GetData()...),
	}, nil
}

func (e *ONNX) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
