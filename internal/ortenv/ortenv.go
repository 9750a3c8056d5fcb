// Package ortenv shares one ONNX Runtime environment between the text
// encoder and the object detector.
package ortenv

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	mu      sync.Mutex
	refs    int
	libPath string
)

// Acquire initializes the environment on first use and takes a reference.
// dllPath selects the onnxruntime shared library; empty keeps the default
// search path. Every successful Acquire must be paired with Release.
func Acquire(dllPath string) error {
	mu.Lock()
	defer mu.Unlock()
	if refs > 0 {
		if dllPath != "" && libPath != "" && dllPath != libPath {
			return fmt.Errorf("onnxruntime already initialized from %s", libPath)
		}
		refs++
		return nil
	}
	if dllPath != "" {
		ort.SetSharedLibraryPath(dllPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	libPath = dllPath
	refs = 1
	return nil
}

// Release drops a reference and destroys the environment with the last one.
func Release() {
	mu.Lock()
	defer mu.Unlock()
	if refs == 0 {
		return
	}
	refs--
	if refs == 0 {
		_ = ort.DestroyEnvironment()
		libPath = ""
	}
}
