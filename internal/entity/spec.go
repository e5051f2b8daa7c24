package entity

// GenerationSpec is the immutable input to the pipeline. It is produced once
// at job creation and read-only afterwards.
type GenerationSpec struct {
	Prompt         string             `json:"prompt"`
	NegativePrompt string             `json:"negative_prompt,omitempty"`
	Width          int                `json:"width"`
	Height         int                `json:"height"`
	VideoLength    int                `json:"video_length"` // seconds
	FPS            int                `json:"fps"`
	InferenceSteps int                `json:"inference_steps"`
	GuidanceScale  float64            `json:"guidance_scale"`
	Seed           int64              `json:"seed"`
	BaseModel      string             `json:"base_model"`
	MotionAdapter  string             `json:"motion_adapter"`
	Loras          map[string]float64 `json:"loras,omitempty"`
	OutputFormat   string             `json:"output_format"`
}

const (
	DefaultWidth          = 512
	DefaultHeight         = 512
	DefaultVideoLength    = 4
	DefaultFPS            = 8
	DefaultInferenceSteps = 25
	DefaultGuidanceScale  = 7.5
	DefaultBaseModel      = "sd15"
	DefaultMotionAdapter  = "default"
	DefaultOutputFormat   = "gif"
)

// ApplyDefaults fills zero-valued fields with the defaults used by the
// generation stack.
func (s *GenerationSpec) ApplyDefaults() {
	if s.Width == 0 {
		s.Width = DefaultWidth
	}
	if s.Height == 0 {
		s.Height = DefaultHeight
	}
	if s.VideoLength == 0 {
		s.VideoLength = DefaultVideoLength
	}
	if s.FPS == 0 {
		s.FPS = DefaultFPS
	}
	if s.InferenceSteps == 0 {
		s.InferenceSteps = DefaultInferenceSteps
	}
	if s.GuidanceScale == 0 {
		s.GuidanceScale = DefaultGuidanceScale
	}
	if s.BaseModel == "" {
		s.BaseModel = DefaultBaseModel
	}
	if s.MotionAdapter == "" {
		s.MotionAdapter = DefaultMotionAdapter
	}
	if s.OutputFormat == "" {
		s.OutputFormat = DefaultOutputFormat
	}
}
