package kv

const (
	defaultBucket   = "fleetkeeper"
	defaultHistory  = 5
	defaultReplicas = 1
	maxHistory      = 64
	maxReplicas     = 5
)

// Validate checks the bucket settings and fills defaults.
func (c *Config) Validate() error {
	if c.NATSURL == "" {
		return errNatsURLRequired
	}

	if c.MaxBytes < 0 {
		return errMaxBytesNegative
	}

	if c.History > maxHistory {
		return errHistoryTooLarge
	}

	if c.Replicas < 0 || c.Replicas > maxReplicas {
		return errReplicasOutOfRange
	}

	if c.Bucket == "" {
		c.Bucket = defaultBucket
	}

	if c.History == 0 {
		c.History = defaultHistory
	}

	if c.Replicas == 0 {
		c.Replicas = defaultReplicas
	}

	return nil
}
