package server

// Result 一次抠图的结果，也是缓存的内容
type Result struct {
	ID       string `json:"id"`
	MD5      string `json:"md5"`
	File     string `json:"file"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Method   string `json:"method"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
	CostMs   int64  `json:"cost_ms"`
}

type CutoutResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Cached  bool    `json:"cached"`
	Data    *Result `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
