// Package config loads the typed RAGMesh configuration.
//
// Values come from three layers, later ones winning: the built-in defaults of
// Default, a TOML file (ragmesh.toml), and RAGMESH_<SECTION>_<KEY>
// environment variables. List values in the environment are comma separated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the conventional config file name.
const FileName = "ragmesh.toml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RAGMESH_"

// Config is the full runtime configuration.
type Config struct {
	Discovery  Discovery  `toml:"discovery"`
	Embedding  Embedding  `toml:"embedding"`
	Index      Index      `toml:"index"`
	Docs       Docs       `toml:"docs"`
	Search     Search     `toml:"search"`
	Summarizer Summarizer `toml:"summarizer"`
	Agent      Agent      `toml:"agent"`
	Gate       Gate       `toml:"gate"`
	Model      Model      `toml:"model"`
	Log        Log        `toml:"log"`
	Server     Server     `toml:"server"`
}

// Discovery selects the knowledge files to ingest.
type Discovery struct {
	KnowledgeRoots []string `toml:"knowledge_roots"`
	Include        []string `toml:"include"`
	Exclude        []string `toml:"exclude"`
}

// Embedding selects the embedding backend.
type Embedding struct {
	Backend   string `toml:"backend"` // bow, hash or openai
	Dim       int    `toml:"dim"`
	Seed      int64  `toml:"seed"`
	Normalize bool   `toml:"normalize"`
	Model     string `toml:"model"` // openai only
}

// Index locates the vector index artifact.
type Index struct {
	Dir      string `toml:"dir"`
	Impl     string `toml:"impl"` // exact or vptree
	Distance string `toml:"distance"`
}

// Docs locates the chunk records backing the document store. SQLite wins
// over JSONL when both are set.
type Docs struct {
	JSONL  string `toml:"jsonl"`
	SQLite string `toml:"sqlite"`
}

// Search configures the retrieval tool.
type Search struct {
	Mode             string `toml:"mode"` // vector, keyword or bleve
	DefaultK         int    `toml:"default_k"`
	SectionHardLimit int    `toml:"section_hard_limit"`
}

// Summarizer configures context_summarize.
type Summarizer struct {
	Kind        string `toml:"kind"` // fallback or generative
	Style       string `toml:"style"`
	TokenBudget int    `toml:"token_budget"`
}

// Agent configures the control loop.
type Agent struct {
	MaxSteps      int  `toml:"max_steps"`
	SourcesFooter bool `toml:"sources_footer"`
}

// Gate configures the branch decision gate.
type Gate struct {
	BudgetLimit int    `toml:"budget_limit"`
	SampleLimit int    `toml:"sample_limit"`
	RulesFile   string `toml:"rules_file"`
}

// Model selects the reasoning backend.
type Model struct {
	Provider          string  `toml:"provider"` // anthropic or openai, empty disables
	Name              string  `toml:"name"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
}

// Log configures logging output.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
}

// Server configures the HTTP API.
type Server struct {
	Addr string `toml:"addr"`
	// APIKey enables bearer authentication on /v1 routes when set.
	APIKey string `toml:"api_key"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Discovery: Discovery{
			KnowledgeRoots: []string{"knowledge"},
			Include:        []string{"**/*.md"},
			Exclude:        []string{},
		},
		Embedding:  Embedding{Backend: "bow", Dim: 512, Normalize: true, Model: "text-embedding-3-small"},
		Index:      Index{Dir: "index", Impl: "exact", Distance: "cosine"},
		Docs:       Docs{JSONL: "index/chunks.jsonl"},
		Search:     Search{Mode: "vector", DefaultK: 8, SectionHardLimit: 2048},
		Summarizer: Summarizer{Kind: "fallback", Style: "bullet", TokenBudget: 1200},
		Agent:      Agent{MaxSteps: 6},
		Gate:       Gate{BudgetLimit: 3, SampleLimit: 20000},
		Model:      Model{MaxTokens: 1024},
		Log:        Log{Level: "info", Format: "text"},
		Server:     Server{Addr: ":8080"},
	}
}

// Load builds a Config from defaults, the TOML file at path and the process
// environment. An empty path uses FileName when it exists; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.Decode(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode overlays TOML data onto c. Unknown keys are rejected.
func (c *Config) Decode(data []byte) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(c)
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// ApplyEnv overlays RAGMESH_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.setList("DISCOVERY_KNOWLEDGE_ROOTS", &c.Discovery.KnowledgeRoots)
	e.setList("DISCOVERY_INCLUDE", &c.Discovery.Include)
	e.setList("DISCOVERY_EXCLUDE", &c.Discovery.Exclude)

	e.setString("EMBEDDING_BACKEND", &c.Embedding.Backend)
	e.setInt("EMBEDDING_DIM", &c.Embedding.Dim)
	e.setInt64("EMBEDDING_SEED", &c.Embedding.Seed)
	e.setBool("EMBEDDING_NORMALIZE", &c.Embedding.Normalize)
	e.setString("EMBEDDING_MODEL", &c.Embedding.Model)

	e.setString("INDEX_DIR", &c.Index.Dir)
	e.setString("INDEX_IMPL", &c.Index.Impl)
	e.setString("INDEX_DISTANCE", &c.Index.Distance)

	e.setString("DOCS_JSONL", &c.Docs.JSONL)
	e.setString("DOCS_SQLITE", &c.Docs.SQLite)

	e.setString("SEARCH_MODE", &c.Search.Mode)
	e.setInt("SEARCH_DEFAULT_K", &c.Search.DefaultK)
	e.setInt("SEARCH_SECTION_HARD_LIMIT", &c.Search.SectionHardLimit)

	e.setString("SUMMARIZER_KIND", &c.Summarizer.Kind)
	e.setString("SUMMARIZER_STYLE", &c.Summarizer.Style)
	e.setInt("SUMMARIZER_TOKEN_BUDGET", &c.Summarizer.TokenBudget)

	e.setInt("AGENT_MAX_STEPS", &c.Agent.MaxSteps)
	e.setBool("AGENT_SOURCES_FOOTER", &c.Agent.SourcesFooter)

	e.setInt("GATE_BUDGET_LIMIT", &c.Gate.BudgetLimit)
	e.setInt("GATE_SAMPLE_LIMIT", &c.Gate.SampleLimit)
	e.setString("GATE_RULES_FILE", &c.Gate.RulesFile)

	e.setString("MODEL_PROVIDER", &c.Model.Provider)
	e.setString("MODEL_NAME", &c.Model.Name)
	e.setFloat("MODEL_TEMPERATURE", &c.Model.Temperature)
	e.setInt("MODEL_MAX_TOKENS", &c.Model.MaxTokens)
	e.setInt("MODEL_REQUESTS_PER_MINUTE", &c.Model.RequestsPerMinute)

	e.setString("LOG_LEVEL", &c.Log.Level)
	e.setString("LOG_FORMAT", &c.Log.Format)

	e.setString("SERVER_ADDR", &c.Server.Addr)
	e.setString("SERVER_API_KEY", &c.Server.APIKey)

	return errors.Join(e.errs...)
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	oneOf := func(v string, allowed ...string) bool {
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}

	check(oneOf(c.Embedding.Backend, "bow", "hash", "openai"), "embedding.backend %q must be bow, hash or openai", c.Embedding.Backend)
	check(c.Embedding.Backend == "openai" || c.Embedding.Dim > 0, "embedding.dim must be positive")
	check(c.Index.Dir != "", "index.dir is required")
	check(oneOf(c.Index.Impl, "exact", "vptree"), "index.impl %q must be exact or vptree", c.Index.Impl)
	check(c.Index.Distance == "cosine", "index.distance %q is not supported", c.Index.Distance)
	check(oneOf(c.Search.Mode, "vector", "keyword", "bleve"), "search.mode %q must be vector, keyword or bleve", c.Search.Mode)
	check(c.Search.DefaultK >= 1, "search.default_k must be at least 1")
	check(c.Search.SectionHardLimit >= 0, "search.section_hard_limit must not be negative")
	check(oneOf(c.Summarizer.Kind, "fallback", "generative"), "summarizer.kind %q must be fallback or generative", c.Summarizer.Kind)
	check(oneOf(c.Summarizer.Style, "bullet", "abstract", "qa"), "summarizer.style %q must be bullet, abstract or qa", c.Summarizer.Style)
	check(c.Summarizer.TokenBudget >= 0, "summarizer.token_budget must not be negative")
	check(c.Summarizer.Kind != "generative" || c.Model.Provider != "", "summarizer.kind generative needs model.provider")
	check(c.Agent.MaxSteps >= 1, "agent.max_steps must be at least 1")
	check(c.Gate.BudgetLimit >= 0, "gate.budget_limit must not be negative")
	check(c.Gate.SampleLimit >= 1, "gate.sample_limit must be at least 1")
	check(oneOf(c.Model.Provider, "", "anthropic", "openai"), "model.provider %q must be anthropic or openai", c.Model.Provider)
	check(c.Model.Temperature >= 0 && c.Model.Temperature <= 2, "model.temperature must be within [0, 2]")
	check(c.Model.MaxTokens >= 1, "model.max_tokens must be at least 1")
	check(c.Model.RequestsPerMinute >= 0, "model.requests_per_minute must not be negative")
	check(oneOf(strings.ToLower(c.Log.Level), "debug", "info", "warn", "warning", "error"), "log.level %q is unknown", c.Log.Level)
	check(oneOf(c.Log.Format, "text", "json"), "log.format %q must be text or json", c.Log.Format)

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, string, bool) {
	name := EnvPrefix + key
	v, ok := e.lookup(name)
	if !ok || v == "" {
		return name, "", false
	}
	return name, v, true
}

func (e *envReader) setString(key string, dst *string) {
	if _, v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) setList(key string, dst *[]string) {
	_, v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func (e *envReader) setInt(key string, dst *int) {
	name, v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", name, err))
		return
	}
	*dst = n
}

func (e *envReader) setInt64(key string, dst *int64) {
	name, v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", name, err))
		return
	}
	*dst = n
}

func (e *envReader) setFloat(key string, dst *float64) {
	name, v, ok := e.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", name, err))
		return
	}
	*dst = f
}

func (e *envReader) setBool(key string, dst *bool) {
	name, v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("config: %s: %w", name, err))
		return
	}
	*dst = b
}
