package inference

import (
	"os"
	"runtime"
)

// LibraryPathEnv overrides the onnxruntime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_LIB"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Returns:
//   - string: The value of $ONNXRUNTIME_LIB when set, otherwise the bundled
//     library under ./third_party for this OS and architecture.
func GetSharedLibPath() string {
	if path := os.Getenv(LibraryPathEnv); path != "" {
		return path
	}

	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
