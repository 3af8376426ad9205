// Package bootcfg loads the parameters the boot entry point needs before it
// can construct a kernel: which program to run as init, how much simulated
// physical memory exists, and how the address space is laid out. A generic
// JSON-config-loader that returns a value instead of exiting the process on
// error, so the kernel's own boot path controls failure handling.
package bootcfg

import (
	"encoding/json"
	"os"
)

// Config bundles every boot-time parameter the kernel needs. None of it is
// state the kernel writes back; it is pure input, loaded once at boot.
type Config struct {
	InitProgram string   `json:"initProgram"`
	InitArgv    []string `json:"initArgv"`

	PhysicalMemoryBytes uint32 `json:"physicalMemoryBytes"`
	PageSize            int    `json:"pageSize"`

	KernelRegionPages     int `json:"kernelRegionPages"`
	KernelTextPages       int `json:"kernelTextPages"`
	KernelInitialHeapPages int `json:"kernelInitialHeapPages"`
	UserRegionPages       int `json:"userRegionPages"`

	NumTerminals    int `json:"numTerminals"`
	TerminalMaxLine int `json:"terminalMaxLine"`
	PipeCapacity    int `json:"pipeCapacity"`
}

// Default returns the built-in configuration used when no override file is
// supplied.
func Default() Config {
	return Config{
		InitProgram: "test/init",
		InitArgv:    nil,

		PhysicalMemoryBytes: 1 << 20, // 1 MiB of simulated physical memory

		PageSize: 2048,

		KernelRegionPages:      64,
		KernelTextPages:        8,
		KernelInitialHeapPages: 8,
		UserRegionPages:        128,

		NumTerminals:    4,
		TerminalMaxLine: 256,
		PipeCapacity:    256,
	}
}

// Load reads path as a JSON document and overlays it onto Default(). A
// missing file is not an error: it simply yields the defaults, matching the
// "optional override" role a boot loader gives to a config file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
