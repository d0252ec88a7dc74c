package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// maxConfigFileSize caps config file reads.
const maxConfigFileSize = 1024 * 1024

// nestedSections are config sections with a second nesting level, needed to
// map env var names like STORE_QDRANT_HOST to store.qdrant.host.
var nestedSections = map[string]bool{
	"store_qdrant":  true,
	"store_chromem": true,
}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables, on top of defaults.
//
// Environment variables are uppercased with underscore separators:
//
//	SERVER_PORT             -> server.port
//	EMBEDDING_BASE_URL      -> embedding.base_url
//	STORE_QDRANT_HOST       -> store.qdrant.host
//	INGEST_CHUNK_SIZE       -> ingest.chunk_size
//
// A missing config file is not an error; an unreadable or oversized one is.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if content != nil {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result: cfg,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.TextUnmarshallerHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// readConfigFile reads the config file, returning nil content when absent.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return content, nil
}

// envTransform maps an environment variable name to a koanf key.
// The first underscore becomes the section separator; for known nested
// sections the second one does too. Unrelated env vars (no underscore)
// are dropped.
func envTransform(s string) string {
	s = strings.ToLower(s)
	first := strings.Index(s, "_")
	if first < 0 {
		return ""
	}
	for prefix := range nestedSections {
		if strings.HasPrefix(s, prefix+"_") {
			parts := strings.SplitN(s, "_", 3)
			return parts[0] + "." + parts[1] + "." + parts[2]
		}
	}
	return s[:first] + "." + s[first+1:]
}
