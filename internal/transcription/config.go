package transcription

import "os"

// WhisperX invocation constants.
const (
	DefaultModel      = "small"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
	UVXCommand        = "uvx"
)

const torchWeightsEnv = "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD"

// Env returns environment additions WhisperX needs. Torch 2.6 defaults
// torch.load to weights_only, which breaks WhisperX and pyannote checkpoints.
func Env() []string {
	if os.Getenv(torchWeightsEnv) != "" {
		return nil
	}
	return []string{torchWeightsEnv + "=1"}
}
