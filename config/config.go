package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/docbridge/docbridge/internal/mirror"
	"github.com/docbridge/docbridge/internal/schema"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Store         StoreConfig         `mapstructure:"store"`
	MongoDB       MongoDBConfig       `mapstructure:"mongodb"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Index         IndexConfig         `mapstructure:"index"`
	Bulk          BulkConfig          `mapstructure:"bulk"`
	Schemas       []SchemaConfig      `mapstructure:"schemas"`
	Models        []ModelConfig       `mapstructure:"models"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StoreConfig selects the document store implementation
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "mongodb" or "memory"
}

// MongoDBConfig contains MongoDB connection settings
type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Timeout  int    `mapstructure:"timeout"` // in seconds
}

// ElasticsearchConfig contains search backend connection settings
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// IndexConfig names the default index and its creation settings
type IndexConfig struct {
	Name     string                 `mapstructure:"name"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

// BulkConfig tunes the bulk indexing buffer
type BulkConfig struct {
	Size       int `mapstructure:"size"`        // operations per flush
	TimeoutMS  int `mapstructure:"timeout_ms"`  // flush timer in milliseconds
	BufferSize int `mapstructure:"buffer_size"` // hard queue ceiling, 0 = unbounded
}

// SchemaConfig declares one schema tree
type SchemaConfig struct {
	Name   string        `mapstructure:"name"`
	Fields []FieldConfig `mapstructure:"fields"`
}

// FieldConfig declares one field of a schema. A field is embedded when it
// carries nested fields, a reference when it carries ref, and scalar
// otherwise; embedded wins when both are present.
type FieldConfig struct {
	Name    string                 `mapstructure:"name"`
	Type    string                 `mapstructure:"type,omitempty"`
	Mapping map[string]interface{} `mapstructure:"mapping,omitempty"`
	Ref     string                 `mapstructure:"ref,omitempty"`
	Many    bool                   `mapstructure:"many,omitempty"`
	Fields  []FieldConfig          `mapstructure:"fields,omitempty"`
}

// ModelConfig declares a model built from a schema and how it takes part in
// mirroring: indexed models are written to the search index, population
// models resolve other models' references.
type ModelConfig struct {
	Name       string `mapstructure:"name"`
	Schema     string `mapstructure:"schema"`
	Indexed    bool   `mapstructure:"indexed"`
	Population bool   `mapstructure:"population"`
	UseBulk    bool   `mapstructure:"use_bulk"`
	Index      string `mapstructure:"index,omitempty"` // per-model index override
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/docbridge")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("DOCBRIDGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("store.driver", "mongodb")
	viper.SetDefault("mongodb.timeout", 30)
	viper.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	viper.SetDefault("index.name", "docbridge")
	viper.SetDefault("bulk.size", 1000)
	viper.SetDefault("bulk.timeout_ms", 1000)
	viper.SetDefault("bulk.buffer_size", 0)
}

// Validate checks cross references between models and schemas.
func (c *Config) Validate() error {
	schemas := make(map[string]bool, len(c.Schemas))
	for _, s := range c.Schemas {
		if s.Name == "" {
			return fmt.Errorf("schema with empty name")
		}
		if schemas[s.Name] {
			return fmt.Errorf("duplicate schema %s", s.Name)
		}
		schemas[s.Name] = true
	}

	models := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" {
			return fmt.Errorf("model with empty name")
		}
		if models[m.Name] {
			return fmt.Errorf("duplicate model %s", m.Name)
		}
		models[m.Name] = true
		if !schemas[m.Schema] {
			return fmt.Errorf("model %s references undeclared schema %s", m.Name, m.Schema)
		}
	}

	if !mirror.ValidIndexName(c.Index.Name) {
		return fmt.Errorf("invalid index name %q", c.Index.Name)
	}
	overrides := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		if m.Index != "" {
			overrides = append(overrides, m.Index)
		}
	}
	if !mirror.ValidIndexNames(overrides) {
		return fmt.Errorf("invalid per-model index override")
	}
	return nil
}

// GetMongoURI returns the complete MongoDB connection URI
func (c *MongoDBConfig) GetMongoURI() string {
	if c.URI != "" {
		return c.URI
	}

	// Build URI from components if not provided directly
	uri := "mongodb://"
	if c.Username != "" && c.Password != "" {
		uri += fmt.Sprintf("%s:%s@", c.Username, c.Password)
	}
	uri += "localhost:27017"
	return uri
}

// Tree classifies the schema's declared fields into the tagged union the
// renderers consume. Classification happens here, once, at load time.
func (s SchemaConfig) Tree() schema.Tree {
	return buildTree(s.Fields)
}

// SchemaTrees builds every declared schema tree, keyed by schema name.
func (c *Config) SchemaTrees() map[string]schema.Tree {
	trees := make(map[string]schema.Tree, len(c.Schemas))
	for _, s := range c.Schemas {
		trees[s.Name] = s.Tree()
	}
	return trees
}

// ModelSchemas maps each declared model to its schema name.
func (c *Config) ModelSchemas() map[string]string {
	models := make(map[string]string, len(c.Models))
	for _, m := range c.Models {
		models[m.Name] = m.Schema
	}
	return models
}

func buildTree(fields []FieldConfig) schema.Tree {
	tree := make(schema.Tree, 0, len(fields))
	for _, f := range fields {
		field := schema.Field{Name: f.Name, IndexMapping: f.Mapping}
		switch {
		case len(f.Fields) > 0:
			field.Kind = schema.KindEmbedded
			field.Elements = buildTree(f.Fields)
		case f.Ref != "":
			field.Kind = schema.KindReference
			field.Ref = f.Ref
			field.Many = f.Many
		default:
			field.Kind = schema.KindScalar
			field.Type = f.Type
		}
		tree = append(tree, field)
	}
	return tree
}
