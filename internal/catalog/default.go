package catalog

func f(v float64) *float64 { return &v }

// Default returns the built-in catalog of common llama-server settings, used
// when no catalog document is configured.
func Default() *Catalog {
	c, err := New(defaultDefinitions())
	if err != nil {
		// The built-in table is validated by tests; a failure here is a bug.
		panic(err)
	}
	return c
}

func defaultDefinitions() []SettingDefinition {
	return []SettingDefinition{
		{
			ID: "ctx_size", Name: "Context Size",
			Description: "Size of the prompt context window in tokens.",
			Type:        KindSlider, Argument: "-c", Aliases: []string{"--ctx-size"},
			Min: f(256), Max: f(131072), Step: f(256), Default: 4096,
		},
		{
			ID: "gpu_layers", Name: "GPU Layers",
			Description: "Number of layers to offload to the GPU.",
			Type:        KindSlider, Argument: "-ngl", Aliases: []string{"--gpu-layers", "--n-gpu-layers"},
			Min: f(0), Max: f(999), Step: f(1), Default: 99,
		},
		{
			ID: "threads", Name: "Threads",
			Description: "CPU threads used during generation.",
			Type:        KindNumber, Argument: "-t", Aliases: []string{"--threads"},
			Min: f(1), Max: f(256), Default: 8,
		},
		{
			ID: "batch_size", Name: "Batch Size",
			Description: "Logical maximum batch size.",
			Type:        KindNumber, Argument: "-b", Aliases: []string{"--batch-size"},
			Min: f(1), Default: 2048,
		},
		{
			ID: "ubatch_size", Name: "Micro-Batch Size",
			Description: "Physical maximum batch size.",
			Type:        KindNumber, Argument: "-ub", Aliases: []string{"--ubatch-size"},
			Min: f(1), Default: 512,
		},
		{
			ID: "temperature", Name: "Temperature",
			Description: "Sampling temperature; higher is more random.",
			Type:        KindSlider, Argument: "--temp",
			Min: f(0), Max: f(2), Step: f(0.05), Default: 0.8,
		},
		{
			ID: "top_k", Name: "Top-K",
			Description: "Limit sampling to the K most likely tokens.",
			Type:        KindNumber, Argument: "--top-k",
			Min: f(0), Default: 40,
		},
		{
			ID: "top_p", Name: "Top-P",
			Description: "Nucleus sampling probability mass.",
			Type:        KindSlider, Argument: "--top-p",
			Min: f(0), Max: f(1), Step: f(0.01), Default: 0.95,
		},
		{
			ID: "min_p", Name: "Min-P",
			Description: "Minimum token probability relative to the best token.",
			Type:        KindSlider, Argument: "--min-p",
			Min: f(0), Max: f(1), Step: f(0.01), Default: 0.05,
		},
		{
			ID: "seed", Name: "Seed",
			Description: "RNG seed; -1 picks a random seed.",
			Type:        KindNumber, Argument: "-s", Aliases: []string{"--seed"},
			Default: -1,
		},
		{
			ID: "parallel", Name: "Parallel Slots",
			Description: "Number of parallel request slots.",
			Type:        KindNumber, Argument: "-np", Aliases: []string{"--parallel"},
			Min: f(1), Default: 1,
		},
		{
			ID: "cache_type_k", Name: "K Cache Type",
			Description: "Data type for the K cache.",
			Type:        KindSelect, Argument: "-ctk", Aliases: []string{"--cache-type-k"},
			Default: "f16",
			Options: []Option{
				{Value: "f16", Label: "F16"},
				{Value: "q8_0", Label: "Q8_0"},
				{Value: "q4_0", Label: "Q4_0"},
			},
		},
		{
			ID: "cache_type_v", Name: "V Cache Type",
			Description: "Data type for the V cache.",
			Type:        KindSelect, Argument: "-ctv", Aliases: []string{"--cache-type-v"},
			Default: "f16",
			Options: []Option{
				{Value: "f16", Label: "F16"},
				{Value: "q8_0", Label: "Q8_0"},
				{Value: "q4_0", Label: "Q4_0"},
			},
		},
		{
			ID: "flash_attn", Name: "Flash Attention",
			Description: "Enable flash attention kernels.",
			Type:        KindToggle, Argument: "-fa", Aliases: []string{"--flash-attn"},
		},
		{
			ID: "mlock", Name: "Memory Lock",
			Description: "Lock the model in RAM to avoid swapping.",
			Type:        KindToggle, Argument: "--mlock",
		},
		{
			ID: "no_mmap", Name: "Disable mmap",
			Description: "Load the whole model up front instead of memory-mapping it.",
			Type:        KindToggle, Argument: "--no-mmap",
		},
		{
			ID: "cont_batching", Name: "Continuous Batching",
			Description: "Enable continuous batching across slots.",
			Type:        KindToggle, Argument: "-cb", Aliases: []string{"--cont-batching"},
		},
		{
			ID: "jinja", Name: "Jinja Templates",
			Description: "Use the model's embedded jinja chat template.",
			Type:        KindFlag, IsFlag: true, Argument: "--jinja",
		},
		{
			ID: "verbose", Name: "Verbose Logging",
			Description: "Verbose server log output.",
			Type:        KindFlag, IsFlag: true, Argument: "-v", Aliases: []string{"--verbose"},
		},
	}
}
