package fingerprint

// Signal 设备特征探针。每个探针可以单独失败，失败时生成器使用占位值。
type Signal interface {
	Screen() (string, error)
	Timezone() (string, error)
	Language() (string, error)
	Platform() (string, error)
	UserAgent() (string, error)
	// Canvas 画布渲染结果的编码串
	Canvas() (string, error)
	// WebGL 显卡厂商和渲染器
	WebGL() (string, error)
	Fonts() ([]string, error)
	Plugins() ([]string, error)
}

// 探针失败时的占位值
const (
	SentinelUnknown = "unknown"
	SentinelCanvas  = "canvas-error"
	SentinelWebGL   = "webgl-error"
	NoCanvas        = "no-canvas"
	NoWebGL         = "no-webgl"
)

// ClientReport 客户端上报的设备特征，字段为空视为探针失败
type ClientReport struct {
	ScreenWidth  int      `json:"screen_width"`
	ScreenHeight int      `json:"screen_height"`
	ColorDepth   int      `json:"color_depth"`
	TimezoneName string   `json:"timezone"`
	LanguageTag  string   `json:"language"`
	PlatformName string   `json:"platform"`
	Agent        string   `json:"user_agent"`
	CanvasData   string   `json:"canvas"`
	WebGLVendor  string   `json:"webgl_vendor"`
	WebGLRender  string   `json:"webgl_renderer"`
	FontList     []string `json:"fonts"`
	PluginList   []string `json:"plugins"`
}

var _ Signal = (*ClientReport)(nil)

func (r *ClientReport) Screen() (string, error) {
	if r.ScreenWidth <= 0 || r.ScreenHeight <= 0 {
		return "", errProbe("screen")
	}
	return formatScreen(r.ScreenWidth, r.ScreenHeight, r.ColorDepth), nil
}

func (r *ClientReport) Timezone() (string, error)  { return required("timezone", r.TimezoneName) }
func (r *ClientReport) Language() (string, error)  { return required("language", r.LanguageTag) }
func (r *ClientReport) Platform() (string, error)  { return required("platform", r.PlatformName) }
func (r *ClientReport) UserAgent() (string, error) { return required("user_agent", r.Agent) }

func (r *ClientReport) Canvas() (string, error) {
	if r.CanvasData == "" {
		return NoCanvas, nil
	}
	return r.CanvasData, nil
}

func (r *ClientReport) WebGL() (string, error) {
	if r.WebGLVendor == "" && r.WebGLRender == "" {
		return NoWebGL, nil
	}
	return r.WebGLVendor + "~" + r.WebGLRender, nil
}

func (r *ClientReport) Fonts() ([]string, error) {
	if r.FontList == nil {
		return nil, errProbe("fonts")
	}
	return r.FontList, nil
}

func (r *ClientReport) Plugins() ([]string, error) {
	if r.PluginList == nil {
		return nil, errProbe("plugins")
	}
	return r.PluginList, nil
}

func required(name, v string) (string, error) {
	if v == "" {
		return "", errProbe(name)
	}
	return v, nil
}
