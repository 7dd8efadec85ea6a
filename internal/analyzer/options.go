package analyzer

// AnalysisOptions configures quality analysis and how the aggregator spreads
// extraction across images
type AnalysisOptions struct {
	// Suggested analysis level
	TargetPixelSizeUM float64

	// Pyramid checks
	LargeImagePixels     int64
	AssumedPyramidFactor float64

	// Performance options
	UseWorkerPool bool
	MaxWorkers    int
}

// DefaultOptions returns default analysis options: a 1.0 µm/pixel target,
// a 100 megapixel pyramid threshold and sequential extraction
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		TargetPixelSizeUM:    1.0,
		LargeImagePixels:     100_000_000,
		AssumedPyramidFactor: 2.0,
		UseWorkerPool:        false,
		MaxWorkers:           1,
	}
}

// ParallelOptions returns options extracting on one worker per CPU
func ParallelOptions() AnalysisOptions {
	opts := DefaultOptions()
	opts.UseWorkerPool = true
	opts.MaxWorkers = 0 // Use default CPU count
	return opts
}

// WithTargetPixelSize sets the effective pixel size a suggested level must reach
func (opts AnalysisOptions) WithTargetPixelSize(um float64) AnalysisOptions {
	if um > 0 {
		opts.TargetPixelSizeUM = um
	}
	return opts
}

// WithLargeImageThreshold sets the area above which a flat image needs a pyramid
func (opts AnalysisOptions) WithLargeImageThreshold(pixels int64) AnalysisOptions {
	if pixels > 0 {
		opts.LargeImagePixels = pixels
	}
	return opts
}

// WithWorkers enables the worker pool for more than one worker
func (opts AnalysisOptions) WithWorkers(n int) AnalysisOptions {
	opts.MaxWorkers = n
	opts.UseWorkerPool = n != 1
	return opts
}
