package config

// StorageConfig selects where the retention sweep writes event archives.
// Provider "" or "none" disables archiving.
type StorageConfig struct {
	Provider string              `yaml:"provider"`
	Prefix   string              `yaml:"prefix"`
	Local    *LocalStorageConfig `yaml:"local"`
	AWS      *AWSStorageConfig   `yaml:"aws"`
	GCP      *GCPStorageConfig   `yaml:"gcp"`
}

type LocalStorageConfig struct {
	BasePath string `yaml:"base_path"`
}

type AWSStorageConfig struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
}

type GCPStorageConfig struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		Provider: getEnv("ARCHIVE_PROVIDER", "none"),
		Prefix:   getEnv("ARCHIVE_PREFIX", "analytics-archive"),
		Local: &LocalStorageConfig{
			BasePath: getEnv("ARCHIVE_LOCAL_PATH", "./archive"),
		},
		AWS: &AWSStorageConfig{
			Region: getEnv("AWS_S3_REGION", "us-east-1"),
			Bucket: getEnv("AWS_S3_BUCKET", ""),
		},
		GCP: &GCPStorageConfig{
			Bucket:          getEnv("GCP_STORAGE_BUCKET", ""),
			CredentialsFile: getEnv("GCP_CREDENTIALS_FILE", ""),
		},
	}
}
