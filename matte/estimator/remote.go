package estimator

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"net/http"
	"time"

	"github.com/chaos-io/cutout/matte"
	nhttp "github.com/chaos-io/cutout/util/http"
)

type RemoteConfig struct {
	URL        string
	InputSize  int
	OutputRank int
	Timeout    time.Duration
}

// Remote 通过 HTTP 调用远端推理服务，张量以 little-endian float32 的 base64 传输
type Remote struct {
	cfg RemoteConfig
	cli nhttp.IClient
}

func NewRemote(cfg RemoteConfig, cli nhttp.IClient) *Remote {
	if cli == nil {
		cli = nhttp.NewHTTPClient()
	}
	if cfg.OutputRank == 0 {
		cfg.OutputRank = 4
	}
	return &Remote{cfg: cfg, cli: cli}
}

type tensorPayload struct {
	Shape         []int64 `json:"shape"`
	Data          string  `json:"data"`
	Normalization string  `json:"normalization,omitempty"`
}

func (r *Remote) InputSize() image.Point {
	return image.Pt(r.cfg.InputSize, r.cfg.InputSize)
}

func (r *Remote) OutputRank() int { return r.cfg.OutputRank }

func (r *Remote) Estimate(ctx context.Context, img image.Image, width, height int, norm matte.Normalization) (*matte.Tensor, error) {
	data, err := ToCHW(img, width, height, norm)
	if err != nil {
		return nil, err
	}

	resp := &tensorPayload{}
	reqParam := &nhttp.RequestParam{
		RequestURI: r.cfg.URL,
		Method:     http.MethodPost,
		Body: &tensorPayload{
			Shape:         []int64{1, 3, int64(height), int64(width)},
			Data:          encodeFloats(data),
			Normalization: norm.String(),
		},
		Response: resp,
		Timeout:  r.cfg.Timeout,
	}
	if err := r.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	out, err := decodeFloats(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return &matte.Tensor{Shape: resp.Shape, Data: out}, nil
}

func (r *Remote) Close() error { return nil }

func encodeFloats(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeFloats(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4", len(buf))
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out, nil
}
