package pipeline

import (
	"image"

	"video-pipeline-service/internal/entity"
	"video-pipeline-service/internal/stage"
)

func toPreprocessRequest(spec entity.GenerationSpec) stage.PreprocessRequest {
	return stage.PreprocessRequest{
		Width:       spec.Width,
		Height:      spec.Height,
		VideoLength: spec.VideoLength,
		TargetFPS:   spec.FPS,
	}
}

// toGenerateRequest merges the user spec with the preprocessor's derived
// parameters: the generator always runs at the base fps and the adjusted
// dimensions/length.
func toGenerateRequest(spec entity.GenerationSpec, derived *stage.DerivedParams, baseFPS int) stage.GenerateRequest {
	return stage.GenerateRequest{
		Prompt:         spec.Prompt,
		NegativePrompt: spec.NegativePrompt,
		Width:          derived.AdjustedWidth,
		Height:         derived.AdjustedHeight,
		VideoLength:    derived.AdjustedLength,
		FPS:            baseFPS,
		InferenceSteps: spec.InferenceSteps,
		GuidanceScale:  spec.GuidanceScale,
		Seed:           spec.Seed,
		BaseModel:      spec.BaseModel,
		MotionAdapter:  spec.MotionAdapter,
		Loras:          spec.Loras,
	}
}

func toPostprocessRequest(frames []image.Image, spec entity.GenerationSpec, finalFPS int, outputDir string) stage.PostprocessRequest {
	return stage.PostprocessRequest{
		Frames:         frames,
		TargetDuration: spec.VideoLength,
		FPS:            finalFPS,
		TargetWidth:    spec.Width,
		TargetHeight:   spec.Height,
		Prompt:         spec.Prompt,
		Seed:           spec.Seed,
		VideoLength:    spec.VideoLength,
		OutputFormat:   spec.OutputFormat,
		OutputDir:      outputDir,
	}
}
