//go:build !webgpu

package gpu

func newWebGPUBackend(Config) (backend, error) {
	return nil, newError(CodeNotSupported, "init", "webgpu backend not compiled in (build with -tags=webgpu)")
}
