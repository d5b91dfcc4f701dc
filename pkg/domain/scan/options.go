package scan

// DefaultMaxConcurrency bounds concurrent work inside one task runner.
const DefaultMaxConcurrency = 50

// Options is the per-job options record, copied into the job at queue time.
type Options struct {
	MaxConcurrency int            `json:"max_concurrency"`
	Products       ProductToggles `json:"products"`
	ExtendedSearch ExtendedSearch `json:"extended_search"`
}

// ProductToggles enables or disables individual product detectors.
type ProductToggles struct {
	JBossEAP  bool `json:"jboss_eap"`
	JBossFuse bool `json:"jboss_fuse"`
	JBossWS   bool `json:"jboss_ws"`
}

// ExtendedSearch widens product detection to extra directories.
type ExtendedSearch struct {
	Enabled           bool     `json:"enabled"`
	SearchDirectories []string `json:"search_directories,omitempty"`
}

// DefaultOptions returns the options applied when a job carries none.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency: DefaultMaxConcurrency,
		Products: ProductToggles{
			JBossEAP:  true,
			JBossFuse: true,
			JBossWS:   true,
		},
	}
}

// Normalize fills zero values with defaults.
func (o *Options) Normalize() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
}
