//go:build !webgpu

package detector

// Detect reports ErrNoGPU: this build carries no GPU backend.
func Detect(budget uint64, envKeys []string) (*Report, error) {
	return nil, ErrNoGPU
}
